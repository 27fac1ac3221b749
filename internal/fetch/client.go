package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// connection pooling limits to prevent resource exhaustion when many
// listeners poll the same bridge concurrently
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second // conservative: matches common ALB defaults
)

// userAgent identifies relaypoll requests at the bridge.
const userAgent = "relaypoll/1"

// NetworkError classifies a failed fetch attempt: connection failure,
// non-2xx status, or a per-request timeout.
//
// NetworkError is always transient from the listener's point of view;
// the polling loop absorbs it and retries on the next cycle. StatusCode
// is zero when the failure happened before a response was received.
type NetworkError struct {
	// StatusCode is the HTTP status code, or zero for transport failures.
	StatusCode int

	// Status is the HTTP status text (e.g., "503 Service Unavailable").
	// Empty for transport failures.
	Status string

	// Err is the underlying transport error, if any.
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("unexpected status %s", e.Status)
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return fmt.Sprintf("request timed out: %v", e.Err)
	}
	return fmt.Sprintf("request failed: %v", e.Err)
}

// Unwrap returns the underlying transport error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Client is an HTTP client wrapper for polling a message bridge.
//
// Client uses per-request timeouts via context rather than a global
// timeout, so each attempt carries its own network budget independent
// of the overall polling budget. The transport pools connections since
// a single listen issues many sequential requests to the same host.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new polling [Client].
//
// The client is configured with connection pooling limits. Timeouts are
// applied per-request via the timeout parameter in [Client.Fetch], not
// as a global client timeout.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
				DisableKeepAlives:   false, // explicitly enable connection reuse
			},
		},
	}
}

// Fetch performs a single GET request and returns the raw response body.
//
// Caller headers are merged over a fixed baseline (Accept:
// application/json and the relaypoll User-Agent); callers may override
// baseline entries but not the method. The timeout applies to this
// attempt only and aborts the in-flight request when exceeded.
//
// Any failure, whether a connection error, a per-request timeout, or a
// status outside [200,300), is returned as a [*NetworkError]. Retry policy
// lives in the caller; Fetch never retries. No size cap is imposed on
// the body.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &NetworkError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &NetworkError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &NetworkError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return string(body), nil
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times. After Close, the client remains usable
// but new connections will be established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
