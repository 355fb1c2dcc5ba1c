package fetch

import "net/http"

// Branch identifies the notification branch a fetch outcome maps to.
type Branch int

const (
	BranchSuccess Branch = iota
	BranchAuthError
	BranchHTTPError
	BranchTransportFailure
)

func (b Branch) String() string {
	switch b {
	case BranchSuccess:
		return "success"
	case BranchAuthError:
		return "auth_error"
	case BranchHTTPError:
		return "http_error"
	case BranchTransportFailure:
		return "transport_failure"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of a fetch. Exactly one of the two shapes
// is populated: a response (Status, Body) or a failure (Err). It is
// produced once by Fetcher.Fetch and consumed once by the notifier.
type Outcome struct {
	Status int
	Body   []byte
	Err    error
}

// Branch classifies the outcome. Any response status other than 200, 401
// and 403 falls into the generic HTTP error branch; Err covers both
// transport failures and retry exhaustion.
func (o Outcome) Branch() Branch {
	switch {
	case o.Err != nil:
		return BranchTransportFailure
	case o.Status == http.StatusOK:
		return BranchSuccess
	case o.Status == http.StatusUnauthorized || o.Status == http.StatusForbidden:
		return BranchAuthError
	default:
		return BranchHTTPError
	}
}
