package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jobwatch/upwork-fetcher/pkg/config"
)

// newTestFetcher builds a fetcher pointed at url with a zero-delay retry
// schedule so tests never sleep.
func newTestFetcher(url string, log *zap.SugaredLogger) *Fetcher {
	cfg := &config.Config{}
	cfg.API.URL = url
	cfg.API.Token = "test-token"
	cfg.API.TenantID = "test-tenant"
	cfg.API.Limit = 7
	f := New(cfg, log)
	f.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, MaxRetries-1)
	}
	return f
}

func observedLogger() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core).Sugar(), logs
}

func TestFetchSuccessFirstAttempt(t *testing.T) {
	var attempts atomic.Int32
	var mu sync.Mutex
	var gotAuth, gotTenant, gotUA, gotContentType string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		gotTenant = r.Header.Get("X-Upwork-API-TenantId")
		gotUA = r.Header.Get("User-Agent")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	log, _ := observedLogger()
	out := newTestFetcher(srv.URL, log).Fetch(context.Background())

	require.NoError(t, out.Err)
	assert.Equal(t, http.StatusOK, out.Status)
	assert.Equal(t, []byte(`{"data":{}}`), out.Body)
	assert.EqualValues(t, 1, attempts.Load())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "test-tenant", gotTenant)
	assert.Equal(t, userAgent, gotUA)
	assert.Equal(t, "application/json", gotContentType)

	var req graphQLRequest
	require.NoError(t, json.Unmarshal(gotBody, &req))
	assert.Equal(t, Query, req.Query)
	assert.Equal(t, 7, req.Variables.Limit)
}

func TestFetchRetriesServerErrorsThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	log, logs := observedLogger()
	out := newTestFetcher(srv.URL, log).Fetch(context.Background())

	require.NoError(t, out.Err)
	assert.Equal(t, http.StatusOK, out.Status)
	assert.EqualValues(t, 3, attempts.Load())

	warns := logs.FilterLevelExact(zap.WarnLevel).All()
	assert.Len(t, warns, 2, "each retryable failure logs one warning")
}

func TestFetchExhaustsRetriesOnPersistentServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	log, _ := observedLogger()
	out := newTestFetcher(srv.URL, log).Fetch(context.Background())

	require.Error(t, out.Err)
	assert.ErrorIs(t, out.Err, ErrMaxRetriesExceeded)
	assert.EqualValues(t, MaxRetries, attempts.Load())
	assert.Equal(t, BranchTransportFailure, out.Branch())
}

func TestFetchDoesNotRetryNonServerErrors(t *testing.T) {
	// 429 is conventionally retryable elsewhere; here only 5xx retries.
	for _, status := range []int{
		http.StatusOK,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusTooManyRequests,
	} {
		t.Run(fmt.Sprintf("status %d", status), func(t *testing.T) {
			var attempts atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				attempts.Add(1)
				w.WriteHeader(status)
				_, _ = w.Write([]byte("response text"))
			}))
			defer srv.Close()

			log, _ := observedLogger()
			out := newTestFetcher(srv.URL, log).Fetch(context.Background())

			require.NoError(t, out.Err)
			assert.Equal(t, status, out.Status)
			assert.Equal(t, []byte("response text"), out.Body)
			assert.EqualValues(t, 1, attempts.Load(), "non-5xx must not retry")
		})
	}
}

func TestFetchRetriesTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close() // every attempt now fails to connect

	log, logs := observedLogger()
	out := newTestFetcher(url, log).Fetch(context.Background())

	require.Error(t, out.Err)
	assert.ErrorIs(t, out.Err, ErrMaxRetriesExceeded)
	assert.Len(t, logs.FilterLevelExact(zap.WarnLevel).All(), MaxRetries-1)
}

func TestFetchAbortsOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	log, _ := observedLogger()
	out := newTestFetcher(srv.URL, log).Fetch(ctx)

	require.Error(t, out.Err)
	assert.False(t, errors.Is(out.Err, ErrMaxRetriesExceeded))
	assert.Equal(t, BranchTransportFailure, out.Branch())
}

func TestDefaultBackOffSchedule(t *testing.T) {
	bo := defaultBackOff()

	assert.Equal(t, 2*time.Second, bo.NextBackOff())
	assert.Equal(t, 4*time.Second, bo.NextBackOff())
	assert.Equal(t, backoff.Stop, bo.NextBackOff(), "third failure must stop, not sleep")
}
