package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/jobwatch/upwork-fetcher/pkg/config"
	"github.com/jobwatch/upwork-fetcher/pkg/metrics"
)

const (
	// MaxRetries is the total number of attempts before giving up.
	MaxRetries = 3

	// retryBackoffBase is the first retry delay; each further delay doubles
	// (2s, 4s), no jitter.
	retryBackoffBase = 2 * time.Second

	requestTimeout = 20 * time.Second

	userAgent = "UpworkFetcher/1.0"
	referer   = "https://www.upwork.com/nx/find-work/most-recent"
)

// ErrMaxRetriesExceeded is surfaced when every attempt ended in a
// retryable failure (transport error or 5xx).
var ErrMaxRetriesExceeded = errors.New("max retries exceeded fetching Upwork API")

// serverError marks a 5xx response so the retry loop treats it like a
// transport failure.
type serverError struct {
	status int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server error %d", e.status)
}

// Fetcher issues the jobs-feed POST with bounded retries. Only transport
// failures and 5xx responses are retried; every other status, 4xx and 429
// included, is returned on the first attempt.
type Fetcher struct {
	cfg  *config.Config
	http *http.Client
	log  *zap.SugaredLogger

	// newBackOff builds the per-fetch retry schedule; tests swap it for a
	// zero-delay schedule.
	newBackOff func() backoff.BackOff
}

func New(cfg *config.Config, log *zap.SugaredLogger) *Fetcher {
	return &Fetcher{
		cfg:        cfg,
		http:       &http.Client{Timeout: requestTimeout},
		log:        log,
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	ebo := backoff.NewExponentialBackOff()
	ebo.InitialInterval = retryBackoffBase
	ebo.Multiplier = 2
	ebo.RandomizationFactor = 0
	ebo.MaxElapsedTime = 0
	ebo.Reset()
	return backoff.WithMaxRetries(ebo, MaxRetries-1)
}

// Fetch performs the POST, retrying retryable failures, and returns the
// terminal outcome. It never returns an error; failures are part of the
// Outcome value.
func (f *Fetcher) Fetch(ctx context.Context) Outcome {
	var out Outcome
	attempt := 0

	op := func() error {
		attempt++
		status, body, err := f.do(ctx)
		if err != nil {
			metrics.FetchAttempts.WithLabelValues("transport_error").Inc()
			return fmt.Errorf("attempt %d/%d: %w", attempt, MaxRetries, err)
		}
		if status >= http.StatusInternalServerError {
			metrics.FetchAttempts.WithLabelValues("server_error").Inc()
			return &serverError{status: status}
		}
		metrics.FetchAttempts.WithLabelValues("response").Inc()
		out = Outcome{Status: status, Body: body}
		return nil
	}

	notify := func(err error, delay time.Duration) {
		metrics.FetchRetries.Inc()
		f.log.Warnw("Retryable fetch failure",
			"attempt", attempt,
			"maxRetries", MaxRetries,
			"error", err,
			"retryIn", delay)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(f.newBackOff(), ctx), notify)
	if err == nil {
		return out
	}
	if ctx.Err() != nil {
		return Outcome{Err: fmt.Errorf("fetch aborted: %w", err)}
	}
	metrics.FetchExhausted.Inc()
	return Outcome{Err: fmt.Errorf("%w: last error: %v", ErrMaxRetriesExceeded, err)}
}

// do performs one POST attempt and reads the full response body.
func (f *Fetcher) do(ctx context.Context) (int, []byte, error) {
	payload, err := json.Marshal(graphQLRequest{
		Query:     Query,
		Variables: graphQLVariables{Limit: f.cfg.API.Limit},
	})
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.API.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.cfg.API.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Upwork-API-TenantId", f.cfg.API.TenantID)
	req.Header.Set("Referer", referer)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response body: %w", err)
	}
	return resp.StatusCode, body, nil
}
