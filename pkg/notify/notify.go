package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jobwatch/upwork-fetcher/pkg/fetch"
	"github.com/jobwatch/upwork-fetcher/pkg/mail"
)

// Process exit codes. ExitConfigMissing is raised before any fetch; the
// rest map one-to-one onto the notification branches.
const (
	ExitSuccess          = 0
	ExitTransportFailure = 1
	ExitConfigMissing    = 2
	ExitAuthError        = 3
	ExitHTTPError        = 4
)

// timestampLayout renders UTC timestamps for subjects and attachment
// filenames, e.g. 20260824T123045Z.
const timestampLayout = "20060102T150405Z"

const bodyPreviewChars = 1000

// Notifier maps a fetch outcome onto exactly one notification email and
// the process exit code.
type Notifier struct {
	sender mail.Sender
	log    *zap.SugaredLogger

	// now is the clock used for subject/filename timestamps; fixed in tests.
	now func() time.Time
}

func New(sender mail.Sender, log *zap.SugaredLogger) *Notifier {
	return &Notifier{
		sender: sender,
		log:    log,
		now:    time.Now,
	}
}

// Notify composes the branch's email, attempts exactly one send, and
// returns the exit code. A failed send is logged and swallowed; it only
// changes the exit code on the success branch (0 becomes 1).
func (n *Notifier) Notify(out fetch.Outcome) int {
	msg, code := n.compose(out)

	if err := n.sender.Send(msg); err != nil {
		n.log.Errorw("Failed to send notification mail",
			"branch", out.Branch().String(),
			"error", err)
		if code == ExitSuccess {
			return ExitTransportFailure
		}
		return code
	}
	return code
}

func (n *Notifier) compose(out fetch.Outcome) (mail.Message, int) {
	ts := n.now().UTC().Format(timestampLayout)

	switch out.Branch() {
	case fetch.BranchSuccess:
		return n.composeSuccess(out, ts), ExitSuccess

	case fetch.BranchAuthError:
		n.log.Errorw("Authorization error", "status", out.Status)
		return mail.Message{
			Subject: fmt.Sprintf("[Upwork Fetcher] AUTH ERROR %d", out.Status),
			Body:    fmt.Sprintf("Upwork API returned %d. Response:\n\n%s", out.Status, out.Body),
		}, ExitAuthError

	case fetch.BranchHTTPError:
		n.log.Errorw("Unexpected HTTP status", "status", out.Status)
		return mail.Message{
			Subject: fmt.Sprintf("[Upwork Fetcher] ERROR %d", out.Status),
			Body:    fmt.Sprintf("Status: %d\n\n%s", out.Status, out.Body),
		}, ExitHTTPError

	default: // BranchTransportFailure
		n.log.Errorw("Fetch failed", "error", out.Err)
		return mail.Message{
			Subject: fmt.Sprintf("[Upwork Fetcher] ERROR at %s", ts),
			Body:    fmt.Sprintf("Failed to fetch Upwork API: %v", out.Err),
		}, ExitTransportFailure
	}
}

func (n *Notifier) composeSuccess(out fetch.Outcome, ts string) mail.Message {
	pretty := prettyJSON(out.Body)
	count := resultCount(out.Body)
	filename := fmt.Sprintf("upwork_feed_%s.json", ts)

	body := fmt.Sprintf(
		"Upwork API call succeeded.\n\nTime (UTC): %s\nHTTP Status: %d\n\nAttached: %s\n\n(First 1000 chars of payload below)\n\n%s",
		ts, out.Status, filename, truncate(pretty, bodyPreviewChars))

	return mail.Message{
		Subject: fmt.Sprintf("[Upwork] mostRecentJobsFeed — %d results — %s", count, ts),
		Body:    body,
		Attachment: &mail.Attachment{
			Filename: filename,
			MIMEType: "application/json",
			Content:  []byte(pretty),
		},
	}
}

// resultCount counts data.mostRecentJobsFeed.results. A body that is not
// JSON or lacks the nested path counts as zero.
func resultCount(body []byte) int {
	var payload struct {
		Data struct {
			MostRecentJobsFeed struct {
				Results []json.RawMessage `json:"results"`
			} `json:"mostRecentJobsFeed"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0
	}
	return len(payload.Data.MostRecentJobsFeed.Results)
}

// prettyJSON re-indents the body; invalid JSON is passed through verbatim.
func prettyJSON(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return string(body)
	}
	return buf.String()
}

// truncate limits s to max characters without splitting a multi-byte rune.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
