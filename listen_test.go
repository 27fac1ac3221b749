package relaypoll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newBridge starts a test server whose handler is called for every poll
// and returns it together with a request counter.
func newBridge(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

// newTestListener builds a listener against the given bridge URL.
func newTestListener(t *testing.T, url string, opts ...Option) *Listener {
	t.Helper()
	opts = append([]Option{WithEndpoint(url), WithLogger(testLogger())}, opts...)
	l, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

// messageBody builds a one-entry bridge response for key k1.
func messageBody(msgType string, timestamp, expiration int64, data string) string {
	return fmt.Sprintf(`{"k1": {"type": %q, "data": %s, "meta": {"timestamp": %d, "expiration": %d}}}`,
		msgType, data, timestamp, expiration)
}

// TestListenFrom_SuccessFirstAttempt verifies that a fresh matching
// message at the first attempt resolves with its data and attempts=1.
func TestListenFrom_SuccessFirstAttempt(t *testing.T) {
	server, _ := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, messageBody("t", time.Now().Unix(), 300, `"X"`))
	})

	l := newTestListener(t, server.URL)
	req := mustRequest(t, "k1", "t",
		WithTimeout(10*time.Second),
		WithRetroBack(60*time.Second),
		WithInterval(time.Second),
	)

	outcome, err := l.ListenFrom(context.Background(), req)
	if err != nil {
		t.Fatalf("ListenFrom() error = %v, want nil", err)
	}

	if outcome.State != StateSuccess {
		t.Fatalf("State = %q, want success", outcome.State)
	}
	var data string
	if err := json.Unmarshal(outcome.Data, &data); err != nil {
		t.Fatalf("Data did not decode: %v", err)
	}
	if data != "X" {
		t.Errorf("Data = %q, want %q", data, "X")
	}
	if outcome.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", outcome.Attempts)
	}
	if outcome.Meta.Expiration != 300 {
		t.Errorf("Meta.Expiration = %d, want 300", outcome.Meta.Expiration)
	}
	// first fetch only fires after one full interval
	if outcome.Elapsed < 0.9 {
		t.Errorf("Elapsed = %v, want at least one interval before the first attempt", outcome.Elapsed)
	}
}

// TestListenFrom_StructuredDataPreserved verifies that a structured
// payload crosses the boundary as raw JSON, opaque to validation.
func TestListenFrom_StructuredDataPreserved(t *testing.T) {
	server, _ := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, messageBody("t", time.Now().Unix(), 300, `{"code": "123456", "link": "https://x"}`))
	})

	l := newTestListener(t, server.URL)
	req := mustRequest(t, "k1", "t", WithTimeout(10*time.Second), WithInterval(time.Second))

	outcome, err := l.ListenFrom(context.Background(), req)
	if err != nil {
		t.Fatalf("ListenFrom() error = %v, want nil", err)
	}

	var payload struct {
		Code string `json:"code"`
		Link string `json:"link"`
	}
	if err := json.Unmarshal(outcome.Data, &payload); err != nil {
		t.Fatalf("Data did not decode: %v", err)
	}
	if payload.Code != "123456" || payload.Link != "https://x" {
		t.Errorf("payload = %+v, want the structure preserved", payload)
	}
}

// TestListenFrom_TimeoutWhenKeyNeverPresent verifies that an endpoint
// that never contains the key resolves with a timeout outcome rather
// than an error, and that attempts stay within floor(timeout/interval) ±1.
func TestListenFrom_TimeoutWhenKeyNeverPresent(t *testing.T) {
	server, _ := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})

	l := newTestListener(t, server.URL)
	req := mustRequest(t, "k1", "t",
		WithTimeout(2200*time.Millisecond),
		WithInterval(time.Second),
	)

	start := time.Now()
	outcome, err := l.ListenFrom(context.Background(), req)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("ListenFrom() error = %v, want nil (timeout is not an error)", err)
	}
	if outcome.State != StateTimeout {
		t.Fatalf("State = %q, want timeout", outcome.State)
	}
	if outcome.Attempts < 1 || outcome.Attempts > 3 {
		t.Errorf("Attempts = %d, want floor(timeout/interval) ±1", outcome.Attempts)
	}
	if outcome.Data != nil {
		t.Errorf("Data = %s, want nil on timeout", outcome.Data)
	}
	if elapsed < 2200*time.Millisecond {
		t.Errorf("resolved after %v, want at least the configured timeout", elapsed)
	}
}

// TestListenFrom_TypeMismatchNeverSucceeds verifies that a message with
// the wrong type keeps polling and ends in timeout, regardless of how
// fresh the message is.
func TestListenFrom_TypeMismatchNeverSucceeds(t *testing.T) {
	server, _ := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, messageBody("other", time.Now().Unix(), 3600, `"X"`))
	})

	l := newTestListener(t, server.URL)
	req := mustRequest(t, "k1", "t",
		WithTimeout(1500*time.Millisecond),
		WithInterval(time.Second),
	)

	outcome, err := l.ListenFrom(context.Background(), req)
	if err != nil {
		t.Fatalf("ListenFrom() error = %v, want nil", err)
	}
	if outcome.State != StateTimeout {
		t.Errorf("State = %q, want timeout for a type mismatch", outcome.State)
	}
}

// TestListenFrom_ExpiredMessageNeverSucceeds verifies that an expired
// message keeps polling until the budget is exhausted.
func TestListenFrom_ExpiredMessageNeverSucceeds(t *testing.T) {
	server, _ := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		// emitted 100s ago with 10s validity: long expired
		_, _ = io.WriteString(w, messageBody("t", time.Now().Unix()-100, 10, `"X"`))
	})

	l := newTestListener(t, server.URL)
	req := mustRequest(t, "k1", "t",
		WithTimeout(1500*time.Millisecond),
		WithInterval(time.Second),
		WithRetroBack(time.Hour),
	)

	outcome, err := l.ListenFrom(context.Background(), req)
	if err != nil {
		t.Fatalf("ListenFrom() error = %v, want nil", err)
	}
	if outcome.State != StateTimeout {
		t.Errorf("State = %q, want timeout for an expired message", outcome.State)
	}
}

// TestListenFrom_OutsideRetroBackNeverSucceeds verifies that a message
// emitted before the retroBack window keeps polling until timeout even
// though it has not expired.
func TestListenFrom_OutsideRetroBackNeverSucceeds(t *testing.T) {
	server, _ := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		// emitted 120s ago, valid for an hour, but retroBack is 60s
		_, _ = io.WriteString(w, messageBody("t", time.Now().Unix()-120, 3600, `"X"`))
	})

	l := newTestListener(t, server.URL)
	req := mustRequest(t, "k1", "t",
		WithTimeout(1500*time.Millisecond),
		WithInterval(time.Second),
		WithRetroBack(60*time.Second),
	)

	outcome, err := l.ListenFrom(context.Background(), req)
	if err != nil {
		t.Fatalf("ListenFrom() error = %v, want nil", err)
	}
	if outcome.State != StateTimeout {
		t.Errorf("State = %q, want timeout for a message outside the retroBack window", outcome.State)
	}
}

// TestListenFrom_ParseErrorIsImmediatelyFatal verifies that an invalid
// JSON body rejects the call with *ParseError on the first attempt,
// with zero further attempts.
func TestListenFrom_ParseErrorIsImmediatelyFatal(t *testing.T) {
	server, requests := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>definitely not json</html>`)
	})

	l := newTestListener(t, server.URL)
	req := mustRequest(t, "k1", "t",
		WithTimeout(10*time.Second),
		WithInterval(time.Second),
	)

	start := time.Now()
	_, err := l.ListenFrom(context.Background(), req)
	elapsed := time.Since(start)

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("ListenFrom() error = %v, want *ParseError", err)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("bridge received %d requests, want exactly 1 (no retries after a parse error)", got)
	}
	if elapsed > 3*time.Second {
		t.Errorf("resolved after %v, want immediately after the first attempt", elapsed)
	}
}

// TestListenFrom_StructuralMismatchKeepsPolling verifies that an entry
// for the key that fails structural validation is "not yet", not a
// parse error: polling continues and later cycles can succeed.
func TestListenFrom_StructuralMismatchKeepsPolling(t *testing.T) {
	var calls atomic.Int64
	server, _ := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// present but malformed: timestamp is a string
			_, _ = io.WriteString(w, `{"k1": {"type": "t", "data": "X", "meta": {"timestamp": "soon", "expiration": 300}}}`)
			return
		}
		_, _ = io.WriteString(w, messageBody("t", time.Now().Unix(), 300, `"X"`))
	})

	l := newTestListener(t, server.URL)
	req := mustRequest(t, "k1", "t",
		WithTimeout(10*time.Second),
		WithInterval(time.Second),
	)

	outcome, err := l.ListenFrom(context.Background(), req)
	if err != nil {
		t.Fatalf("ListenFrom() error = %v, want nil", err)
	}
	if outcome.State != StateSuccess {
		t.Fatalf("State = %q, want success once the entry becomes well-formed", outcome.State)
	}
	if outcome.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", outcome.Attempts)
	}
}

// TestListenFrom_NetworkErrorsAreTransient verifies that connection and
// status failures are swallowed and polling recovers on a later cycle.
func TestListenFrom_NetworkErrorsAreTransient(t *testing.T) {
	var calls atomic.Int64
	server, _ := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, messageBody("t", time.Now().Unix(), 300, `"X"`))
	})

	l := newTestListener(t, server.URL)
	req := mustRequest(t, "k1", "t",
		WithTimeout(15*time.Second),
		WithInterval(time.Second),
	)

	outcome, err := l.ListenFrom(context.Background(), req)
	if err != nil {
		t.Fatalf("ListenFrom() error = %v, want nil (network errors are transient)", err)
	}
	if outcome.State != StateSuccess {
		t.Fatalf("State = %q, want success after transient failures", outcome.State)
	}
	if outcome.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3 (failed attempts still count)", outcome.Attempts)
	}
}

// TestListenFrom_SubSecondIntervalClamped verifies that an interval
// below 1s is silently clamped: polling proceeds, with the first
// attempt one clamped interval in.
func TestListenFrom_SubSecondIntervalClamped(t *testing.T) {
	server, _ := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, messageBody("t", time.Now().Unix(), 300, `"X"`))
	})

	l := newTestListener(t, server.URL)
	req := mustRequest(t, "k1", "t",
		WithTimeout(10*time.Second),
		WithInterval(50*time.Millisecond),
	)

	start := time.Now()
	outcome, err := l.ListenFrom(context.Background(), req)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("ListenFrom() error = %v, want nil", err)
	}
	if outcome.State != StateSuccess {
		t.Fatalf("State = %q, want success", outcome.State)
	}
	if elapsed < 900*time.Millisecond {
		t.Errorf("first attempt after %v, want the clamped 1s interval honored", elapsed)
	}
}

// TestListenFrom_ZeroValueRequestRejected verifies that a request not
// built with NewRequest is rejected before any network activity.
func TestListenFrom_ZeroValueRequestRejected(t *testing.T) {
	server, requests := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})

	l := newTestListener(t, server.URL)

	_, err := l.ListenFrom(context.Background(), Request{})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("ListenFrom() error = %v, want to wrap ErrInvalidRequest", err)
	}
	if requests.Load() != 0 {
		t.Error("bridge was contacted for an invalid request")
	}
}

// TestListenFrom_NoEndpointRejected verifies that a listener with no
// endpoint anywhere fails with ErrNoEndpoint before any I/O.
func TestListenFrom_NoEndpointRejected(t *testing.T) {
	t.Setenv(EndpointEnvVar, "")

	l, err := New(WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer l.Close()

	req := mustRequest(t, "k1", "t")
	if _, err := l.ListenFrom(context.Background(), req); !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("ListenFrom() error = %v, want ErrNoEndpoint", err)
	}
}

// TestListenFrom_EndpointOverrideWins verifies that a per-request
// endpoint takes precedence over the listener's configured one.
func TestListenFrom_EndpointOverrideWins(t *testing.T) {
	wrong, wrongRequests := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	right, _ := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, messageBody("t", time.Now().Unix(), 300, `"X"`))
	})

	l := newTestListener(t, wrong.URL)
	req := mustRequest(t, "k1", "t",
		WithTimeout(10*time.Second),
		WithInterval(time.Second),
		WithEndpointOverride(right.URL),
	)

	outcome, err := l.ListenFrom(context.Background(), req)
	if err != nil {
		t.Fatalf("ListenFrom() error = %v, want nil", err)
	}
	if outcome.State != StateSuccess {
		t.Errorf("State = %q, want success from the override endpoint", outcome.State)
	}
	if wrongRequests.Load() != 0 {
		t.Error("listener endpoint was contacted despite a per-request override")
	}
}

// TestListenFrom_EnvironmentEndpoint verifies the construction-time
// fallback to RELAYPOLL_ENDPOINT.
func TestListenFrom_EnvironmentEndpoint(t *testing.T) {
	server, _ := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, messageBody("t", time.Now().Unix(), 300, `"X"`))
	})

	t.Setenv(EndpointEnvVar, server.URL)

	l, err := New(WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer l.Close()

	if l.Endpoint() != server.URL {
		t.Fatalf("Endpoint() = %q, want the environment value", l.Endpoint())
	}

	req := mustRequest(t, "k1", "t", WithTimeout(10*time.Second), WithInterval(time.Second))
	outcome, err := l.ListenFrom(context.Background(), req)
	if err != nil {
		t.Fatalf("ListenFrom() error = %v, want nil", err)
	}
	if outcome.State != StateSuccess {
		t.Errorf("State = %q, want success", outcome.State)
	}
}

// TestListenFrom_HeaderMerging verifies the three-layer header merge:
// request headers over listener defaults over the client baseline.
func TestListenFrom_HeaderMerging(t *testing.T) {
	var got http.Header
	server, _ := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = io.WriteString(w, messageBody("t", time.Now().Unix(), 300, `"X"`))
	})

	l := newTestListener(t, server.URL,
		WithDefaultHeaders("Authorization", "Bearer listener", "X-Tenant", "acme"),
	)
	req := mustRequest(t, "k1", "t",
		WithTimeout(10*time.Second),
		WithInterval(time.Second),
		WithRequestHeaders("Authorization", "Bearer request"),
	)

	if _, err := l.ListenFrom(context.Background(), req); err != nil {
		t.Fatalf("ListenFrom() error = %v, want nil", err)
	}

	if got.Get("Authorization") != "Bearer request" {
		t.Errorf("Authorization = %q, want the request-level value", got.Get("Authorization"))
	}
	if got.Get("X-Tenant") != "acme" {
		t.Errorf("X-Tenant = %q, want the listener default", got.Get("X-Tenant"))
	}
	if got.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q, want the client baseline", got.Get("Accept"))
	}
}

// TestListenFrom_ContextCancellation verifies that cancelling the
// context ends the call promptly with ctx.Err().
func TestListenFrom_ContextCancellation(t *testing.T) {
	server, _ := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})

	l := newTestListener(t, server.URL)
	req := mustRequest(t, "k1", "t", WithTimeout(time.Hour), WithInterval(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := l.ListenFrom(ctx, req)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ListenFrom() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("cancellation was not prompt")
	}
}

// TestListenFrom_AttemptCallbacks verifies that callbacks observe every
// cycle, transient failures included, and that a panicking callback
// does not stop polling.
func TestListenFrom_AttemptCallbacks(t *testing.T) {
	var calls atomic.Int64
	server, _ := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, messageBody("t", time.Now().Unix(), 300, `"X"`))
	})

	var attempts []Attempt
	l := newTestListener(t, server.URL,
		WithAttemptCallback(func(a Attempt) {
			panic("misbehaving observer")
		}),
		WithAttemptCallback(func(a Attempt) {
			attempts = append(attempts, a)
		}),
	)

	req := mustRequest(t, "k1", "t", WithTimeout(15*time.Second), WithInterval(time.Second))

	outcome, err := l.ListenFrom(context.Background(), req)
	if err != nil {
		t.Fatalf("ListenFrom() error = %v, want nil", err)
	}
	if outcome.State != StateSuccess {
		t.Fatalf("State = %q, want success despite the panicking callback", outcome.State)
	}

	if len(attempts) != 2 {
		t.Fatalf("callback observed %d attempts, want 2", len(attempts))
	}
	if attempts[0].Err == nil {
		t.Error("attempts[0].Err = nil, want the transient network error")
	}
	if attempts[0].Number != 1 || attempts[1].Number != 2 {
		t.Errorf("attempt numbers = %d, %d, want 1, 2", attempts[0].Number, attempts[1].Number)
	}
	if !attempts[1].Found {
		t.Error("attempts[1].Found = false, want true once the entry is present")
	}
}

// TestListenFrom_ConcurrentCallsAreIsolated verifies that independent
// calls on one listener run in parallel without interfering: each gets
// its own resolution.
func TestListenFrom_ConcurrentCallsAreIsolated(t *testing.T) {
	server, _ := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, fmt.Sprintf(
			`{"k1": {"type": "t", "data": "one", "meta": {"timestamp": %d, "expiration": 300}}}`,
			time.Now().Unix()))
	})

	l := newTestListener(t, server.URL)

	match := mustRequest(t, "k1", "t", WithTimeout(10*time.Second), WithInterval(time.Second))
	miss := mustRequest(t, "absent", "t", WithTimeout(1500*time.Millisecond), WithInterval(time.Second))

	type result struct {
		outcome Outcome
		err     error
	}
	matchCh := make(chan result, 1)
	missCh := make(chan result, 1)

	go func() {
		o, err := l.ListenFrom(context.Background(), match)
		matchCh <- result{o, err}
	}()
	go func() {
		o, err := l.ListenFrom(context.Background(), miss)
		missCh <- result{o, err}
	}()

	got := <-matchCh
	if got.err != nil || got.outcome.State != StateSuccess {
		t.Errorf("matching call: outcome = %+v, err = %v, want success", got.outcome, got.err)
	}
	got = <-missCh
	if got.err != nil || got.outcome.State != StateTimeout {
		t.Errorf("missing-key call: outcome = %+v, err = %v, want timeout", got.outcome, got.err)
	}
}

// TestListenFrom_PerRequestTimeoutIsTransient verifies that an attempt
// exceeding the per-request network timeout is swallowed as transient
// and does not end polling by itself.
func TestListenFrom_PerRequestTimeoutIsTransient(t *testing.T) {
	var calls atomic.Int64
	server, _ := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			time.Sleep(600 * time.Millisecond) // exceeds the per-request budget
		}
		_, _ = io.WriteString(w, messageBody("t", time.Now().Unix(), 300, `"X"`))
	})

	l := newTestListener(t, server.URL)
	req := mustRequest(t, "k1", "t",
		WithTimeout(15*time.Second),
		WithInterval(time.Second),
		WithRequestTimeout(200*time.Millisecond),
	)

	outcome, err := l.ListenFrom(context.Background(), req)
	if err != nil {
		t.Fatalf("ListenFrom() error = %v, want nil (per-request timeout is transient)", err)
	}
	if outcome.State != StateSuccess {
		t.Fatalf("State = %q, want success on the retry", outcome.State)
	}
	if outcome.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", outcome.Attempts)
	}
}
