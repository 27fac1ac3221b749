package relaypoll

import (
	"fmt"
	"time"
)

const (
	defaultTimeout        = 2 * time.Minute
	defaultRetroBack      = 5 * time.Minute
	defaultInterval       = 5 * time.Second
	defaultRequestTimeout = 10 * time.Second

	// minInterval is the floor applied to sub-second intervals at listen
	// time. The clamp is silent; it is observable only via debug tracing.
	minInterval = time.Second
)

// Request describes one wait for a message: which key to watch, what
// message type qualifies, and the timing budget for the whole operation.
//
// Request is immutable after creation via [NewRequest] and read-only for
// the duration of the call. All fields are private with getter methods
// that return copies of mutable data (maps).
//
// Requests are configured using the functional options pattern with
// [RequestOption] functions such as [WithTimeout], [WithRetroBack],
// [WithInterval], [WithRequestTimeout], [WithRequestHeaders],
// [WithEndpointOverride], and [WithDebug].
type Request struct {
	key            string
	msgType        string
	timeout        time.Duration
	retroBack      time.Duration
	interval       time.Duration
	requestTimeout time.Duration
	endpoint       string
	headers        map[string]string
	debug          bool
}

// Key returns the lookup key for this request.
func (r Request) Key() string {
	return r.key
}

// Type returns the message type a message must declare to qualify.
func (r Request) Type() string {
	return r.msgType
}

// Timeout returns the total wall-clock budget for the whole operation.
// Defaults to 2 minutes if not explicitly set via [WithTimeout].
func (r Request) Timeout() time.Duration {
	return r.timeout
}

// RetroBack returns the sliding window before "now" within which a
// message's emission timestamp must fall to be acceptable.
// Defaults to 5 minutes if not explicitly set via [WithRetroBack].
func (r Request) RetroBack() time.Duration {
	return r.retroBack
}

// Interval returns the configured spacing between fetch attempts.
// Defaults to 5 seconds. Values below 1 second are clamped to 1 second
// when the listen starts, not here.
func (r Request) Interval() time.Duration {
	return r.interval
}

// RequestTimeout returns the per-attempt network timeout, independent
// of the overall [Request.Timeout]. Defaults to 10 seconds.
func (r Request) RequestTimeout() time.Duration {
	return r.requestTimeout
}

// Endpoint returns the per-call endpoint override, or empty string if
// the listener's endpoint should be used.
func (r Request) Endpoint() string {
	return r.endpoint
}

// Headers returns a copy of the per-call headers merged into every
// fetch for this request. Returns nil if none are set.
func (r Request) Headers() map[string]string {
	return copyMap(r.headers)
}

// Debug reports whether diagnostic tracing is enabled for this request.
// The flag has no behavioral effect.
func (r Request) Debug() bool {
	return r.debug
}

// NewRequest creates a [Request] for the given key and message type.
//
// The key identifies the message in the bridge's shared map (commonly
// an email address); msgType is the type a message must declare to
// qualify. Both are required.
//
// Options are applied in order using the functional options pattern.
// Validation failures wrap [ErrInvalidRequest] and are reported before
// any network activity ever happens.
//
// Example:
//
//	req, err := relaypoll.NewRequest("user@example.com", "login-code",
//	    relaypoll.WithTimeout(90 * time.Second),
//	    relaypoll.WithRetroBack(time.Minute),
//	)
func NewRequest(key, msgType string, opts ...RequestOption) (Request, error) {
	if key == "" {
		return Request{}, fmt.Errorf("%w: key cannot be empty", ErrInvalidRequest)
	}
	if msgType == "" {
		return Request{}, fmt.Errorf("%w: message type cannot be empty", ErrInvalidRequest)
	}

	cfg := &requestConfig{
		timeout:        defaultTimeout,
		retroBack:      defaultRetroBack,
		interval:       defaultInterval,
		requestTimeout: defaultRequestTimeout,
		headers:        make(map[string]string),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Request{}, err
		}
	}

	return Request{
		key:            key,
		msgType:        msgType,
		timeout:        cfg.timeout,
		retroBack:      cfg.retroBack,
		interval:       cfg.interval,
		requestTimeout: cfg.requestTimeout,
		endpoint:       cfg.endpoint,
		headers:        cfg.headers,
		debug:          cfg.debug,
	}, nil
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
