package relaypoll

import (
	"errors"
	"log/slog"
	"net/url"
)

// listenerConfig holds mutable state during Listener construction.
type listenerConfig struct {
	endpoint         string
	headers          map[string]string
	logger           *slog.Logger
	attemptCallbacks []func(Attempt)
}

// Option is a function that configures a [Listener] during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithEndpoint], [WithDefaultHeaders], [WithLogger],
// [WithAttemptCallback].
type Option func(*listenerConfig) error

// WithEndpoint sets the bridge endpoint polled by every listen call
// that does not carry its own [WithEndpointOverride].
//
// If not specified, the RELAYPOLL_ENDPOINT environment variable is
// consulted once at construction.
//
// Example:
//
//	l, err := relaypoll.New(
//	    relaypoll.WithEndpoint("https://bridge.example.com/messages"),
//	)
//
// Returns an error if the URL is empty or has no http/https scheme.
func WithEndpoint(rawURL string) Option {
	return func(cfg *listenerConfig) error {
		if rawURL == "" {
			return errors.New("endpoint cannot be empty")
		}
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return errors.New("invalid endpoint URL: " + err.Error())
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return errors.New("endpoint URL must have an http:// or https:// scheme")
		}
		cfg.endpoint = rawURL
		return nil
	}
}

// WithDefaultHeaders adds HTTP headers sent with every fetch made by
// this listener, for bridges that require authentication.
//
// Per-request headers set via [WithRequestHeaders] are merged over
// these, overriding on conflict.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	l, err := relaypoll.New(
//	    relaypoll.WithEndpoint(url),
//	    relaypoll.WithDefaultHeaders("Authorization", "Bearer token123"),
//	)
//
// Returns an error if an odd number of arguments is provided.
func WithDefaultHeaders(keyValues ...string) Option {
	return func(cfg *listenerConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithDefaultHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Listener.
//
// This controls where debug traces and callback panic records are
// written and in what format. If not specified, [slog.Default] is used.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	l, err := relaypoll.New(
//	    relaypoll.WithEndpoint(url),
//	    relaypoll.WithLogger(logger),
//	)
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *listenerConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithAttemptCallback registers a function called after every completed
// poll cycle.
//
// The callback receives an [Attempt] describing the cycle: its number,
// fetch latency, any transient network error, and whether an entry for
// the key was present. Multiple callbacks may be registered; they
// execute in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. They are invoked
// synchronously from the polling loop, so a slow callback delays the
// next cycle. Panics within callbacks are recovered and logged; they do
// not stop polling.
//
// Example:
//
//	l, err := relaypoll.New(
//	    relaypoll.WithEndpoint(url),
//	    relaypoll.WithAttemptCallback(func(a relaypoll.Attempt) {
//	        if a.Err != nil {
//	            log.Printf("attempt %d failed: %v", a.Number, a.Err)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithAttemptCallback(cb func(Attempt)) Option {
	return func(cfg *listenerConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.attemptCallbacks = append(cfg.attemptCallbacks, cb)
		return nil
	}
}
