package relaypoll

import (
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/relaypoll/relaypoll/internal/fetch"
)

// EndpointEnvVar is the environment variable consulted for the default
// bridge endpoint when none is configured via [WithEndpoint]. It is
// read once, at construction.
const EndpointEnvVar = "RELAYPOLL_ENDPOINT"

// Listener polls a message bridge on behalf of [Listener.ListenFrom]
// calls.
//
// Listener holds the pieces shared across calls: the resolved bridge
// endpoint, default headers, the logger, and the pooled HTTP client.
// It is created with [New] and functional options. A Listener is safe
// for concurrent use; each call owns its own timer and counters, so
// independent calls never interfere.
//
// The typical lifecycle is:
//
//	l, err := relaypoll.New(relaypoll.WithEndpoint("https://bridge.example.com/messages"))
//	if err != nil {
//	    slog.Error("failed to create listener", "error", err)
//	    os.Exit(1)
//	}
//	defer l.Close()
//
//	req, err := relaypoll.NewRequest("user@example.com", "login-code")
//	if err != nil {
//	    // ...
//	}
//
//	outcome, err := l.ListenFrom(ctx, req)
type Listener struct {
	endpoint         string
	headers          map[string]string
	logger           *slog.Logger
	client           *fetch.Client
	attemptCallbacks []func(Attempt)
}

// New creates a new [Listener] with the given options.
//
// The bridge endpoint is taken from [WithEndpoint], falling back to the
// RELAYPOLL_ENDPOINT environment variable read once here. A Listener
// with no endpoint at all is still valid (requests may carry their own
// via [WithEndpointOverride]), but a [Listener.ListenFrom] call that
// resolves no endpoint fails with [ErrNoEndpoint] before any network
// activity.
//
// Example:
//
//	l, err := relaypoll.New(
//	    relaypoll.WithEndpoint("https://bridge.example.com/messages"),
//	    relaypoll.WithDefaultHeaders("Authorization", "Bearer "+token),
//	)
func New(opts ...Option) (*Listener, error) {
	cfg := &listenerConfig{
		headers: make(map[string]string),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	endpoint := cfg.endpoint
	if endpoint == "" {
		endpoint = os.Getenv(EndpointEnvVar)
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Listener{
		endpoint:         endpoint,
		headers:          cfg.headers,
		logger:           logger,
		client:           fetch.NewClient(),
		attemptCallbacks: cfg.attemptCallbacks,
	}, nil
}

// Endpoint returns the listener's resolved default endpoint. Empty if
// neither [WithEndpoint] nor the environment provided one.
func (l *Listener) Endpoint() string {
	return l.endpoint
}

// Headers returns a copy of the listener's default headers.
func (l *Listener) Headers() map[string]string {
	return copyMap(l.headers)
}

// Close releases the listener's idle HTTP connections. The listener
// remains usable afterwards; new connections are established as needed.
func (l *Listener) Close() {
	l.client.Close()
}

// notifyAttempt invokes registered attempt callbacks in registration
// order with panic recovery. The logger already carries the listen's
// correlation ID. A panicking callback never stops polling.
func (l *Listener) notifyAttempt(logger *slog.Logger, attempt Attempt) {
	for _, cb := range l.attemptCallbacks {
		invokeCallbackSafe(cb, attempt, logger)
	}
}

// invokeCallbackSafe calls an attempt callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Attempt), attempt Attempt, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("attempt callback panicked",
				"panic", r,
				"attempt", attempt.Number,
			)
		}
	}()
	cb(attempt)
}

// newListenID returns the correlation ID attached to one listen call's
// trace records.
func newListenID() string {
	return uuid.NewString()
}
