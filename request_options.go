package relaypoll

import (
	"fmt"
	"time"
)

// requestConfig holds mutable state during request construction.
type requestConfig struct {
	timeout        time.Duration
	retroBack      time.Duration
	interval       time.Duration
	requestTimeout time.Duration
	endpoint       string
	headers        map[string]string
	debug          bool
}

// RequestOption is a function that configures a [Request] during
// construction.
//
// RequestOption implements the functional options pattern, allowing
// optional configuration to be passed to [NewRequest] in a type-safe,
// extensible way. Options return an error if validation fails; those
// errors wrap [ErrInvalidRequest].
//
// Built-in options: [WithTimeout], [WithRetroBack], [WithInterval],
// [WithRequestTimeout], [WithRequestHeaders], [WithEndpointOverride],
// [WithDebug].
type RequestOption func(*requestConfig) error

// WithTimeout sets the total wall-clock budget for the whole operation.
//
// When the budget is exhausted the listen resolves with a
// [StateTimeout] outcome. Defaults to 2 minutes if not specified.
//
// Example:
//
//	req, err := relaypoll.NewRequest(key, "login-code",
//	    relaypoll.WithTimeout(90 * time.Second),
//	)
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) RequestOption {
	return func(cfg *requestConfig) error {
		if d <= 0 {
			return fmt.Errorf("%w: timeout must be positive", ErrInvalidRequest)
		}
		cfg.timeout = d
		return nil
	}
}

// WithRetroBack sets the acceptance window before "now".
//
// A message is only acceptable if its emission timestamp falls within
// this window of the evaluation instant, so stale messages left over
// from an earlier flow are never matched. Defaults to 5 minutes.
//
// Returns an error if the duration is zero or negative.
func WithRetroBack(d time.Duration) RequestOption {
	return func(cfg *requestConfig) error {
		if d <= 0 {
			return fmt.Errorf("%w: retroBack must be positive", ErrInvalidRequest)
		}
		cfg.retroBack = d
		return nil
	}
}

// WithInterval sets the spacing between fetch attempts.
//
// Defaults to 5 seconds. Intervals below 1 second are accepted here and
// silently clamped to 1 second when the listen starts; the clamp is
// reported only through debug tracing.
//
// Returns an error if the duration is zero or negative.
func WithInterval(d time.Duration) RequestOption {
	return func(cfg *requestConfig) error {
		if d <= 0 {
			return fmt.Errorf("%w: interval must be positive", ErrInvalidRequest)
		}
		cfg.interval = d
		return nil
	}
}

// WithRequestTimeout sets the network timeout for a single fetch
// attempt, independent of the overall [WithTimeout] budget.
//
// An attempt exceeding it is aborted and treated as a transient network
// failure; polling continues on the next cycle. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(cfg *requestConfig) error {
		if d <= 0 {
			return fmt.Errorf("%w: request timeout must be positive", ErrInvalidRequest)
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithEndpointOverride sets a bridge endpoint for this request only,
// taking precedence over the listener's configured endpoint.
func WithEndpointOverride(url string) RequestOption {
	return func(cfg *requestConfig) error {
		cfg.endpoint = url
		return nil
	}
}

// WithRequestHeaders adds HTTP headers sent with every fetch for this
// request. They are merged over the listener's default headers, which
// are merged over the client baseline.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	req, err := relaypoll.NewRequest(key, "login-code",
//	    relaypoll.WithRequestHeaders("X-Flow-ID", flowID),
//	)
//
// Returns an error if an odd number of arguments is provided.
func WithRequestHeaders(keyValues ...string) RequestOption {
	return func(cfg *requestConfig) error {
		if len(keyValues)%2 != 0 {
			return fmt.Errorf("%w: WithRequestHeaders requires an even number of arguments (key-value pairs)", ErrInvalidRequest)
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithDebug enables diagnostic tracing for this request.
//
// When set, every cycle emits a Debug-level record to the listener's
// logger, tagged with the listen's correlation ID. The flag has no
// behavioral effect on polling.
func WithDebug() RequestOption {
	return func(cfg *requestConfig) error {
		cfg.debug = true
		return nil
	}
}
