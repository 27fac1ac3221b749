package relaypoll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/relaypoll/relaypoll/internal/fetch"
)

// ListenFrom polls the bridge until an acceptable message for the
// request's key appears or the overall timeout elapses.
//
// The call resolves exactly once, with one of:
//
//   - a [StateSuccess] outcome carrying the message data and metadata
//   - a [StateTimeout] outcome (a normal resolution, not an error)
//   - an error: [ErrInvalidRequest], [ErrNoEndpoint], a [*ParseError]
//     when the bridge returned a body that is not valid JSON, or
//     ctx.Err() if the context is cancelled
//
// Attempts are strictly serialized: the loop arms a single timer for
// the polling interval and re-arms it only after a cycle fully
// completes, so a slow fetch can never overlap the next one. The first
// fetch happens one full interval after the call starts.
//
// Transient network failures (connection errors, non-2xx statuses,
// per-attempt timeouts) never end the call; they are traced when the
// request has [WithDebug] set and retried on the next cycle. Only
// exhaustion of the overall budget or a fatal condition ends polling.
func (l *Listener) ListenFrom(ctx context.Context, req Request) (Outcome, error) {
	if req.key == "" || req.msgType == "" {
		return Outcome{}, fmt.Errorf("%w: request must be built with NewRequest", ErrInvalidRequest)
	}

	endpoint := req.endpoint
	if endpoint == "" {
		endpoint = l.endpoint
	}
	if endpoint == "" {
		return Outcome{}, ErrNoEndpoint
	}

	logger := l.logger.With("listen_id", newListenID(), "key", req.key, "type", req.msgType)

	interval := req.interval
	if interval < minInterval {
		if req.debug {
			logger.Debug("interval below floor, clamped",
				"configured", req.interval.String(),
				"effective", minInterval.String(),
			)
		}
		interval = minInterval
	}

	headers := mergeHeaders(l.headers, req.headers)

	if req.debug {
		logger.Debug("listen started",
			"endpoint", endpoint,
			"timeout", req.timeout.String(),
			"retro_back", req.retroBack.String(),
			"interval", interval.String(),
		)
	}

	start := time.Now()
	attempts := 0

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-timer.C:
		}

		// budget check before fetching, on fresh elapsed time; ending
		// here does not count as an attempt
		if time.Since(start) >= req.timeout {
			outcome := Outcome{
				State:    StateTimeout,
				Elapsed:  elapsedSeconds(time.Since(start)),
				Attempts: attempts,
			}
			if req.debug {
				logger.Debug("listen timed out", "elapsed", outcome.Elapsed, "attempts", attempts)
			}
			return outcome, nil
		}

		attempts++
		outcome, done, err := l.pollCycle(ctx, req, endpoint, headers, attempts, start, logger)
		if err != nil {
			return Outcome{}, err
		}
		if done {
			return outcome, nil
		}

		timer.Reset(interval)
	}
}

// pollCycle performs one fetch-and-validate pass. done is true when an
// acceptable message was found and outcome carries the success. A
// non-nil error is fatal and ends the listen immediately; transient
// network failures are absorbed here and reported as not-done.
func (l *Listener) pollCycle(ctx context.Context, req Request, endpoint string, headers map[string]string, attempt int, start time.Time, logger *slog.Logger) (Outcome, bool, error) {
	fetchStart := time.Now()
	body, err := l.client.Fetch(ctx, endpoint, headers, req.requestTimeout)
	latency := time.Since(fetchStart)

	if err != nil {
		var netErr *fetch.NetworkError
		if errors.As(err, &netErr) {
			if req.debug {
				logger.Debug("attempt failed, will retry",
					"attempt", attempt,
					"latency_ms", latency.Milliseconds(),
					"error", netErr.Error(),
				)
			}
			l.notifyAttempt(logger, Attempt{
				Number:    attempt,
				Latency:   latency,
				CheckedAt: time.Now(),
				Err:       netErr,
			})
			return Outcome{}, false, nil
		}
		// not a classified network failure: the request itself could
		// not be constructed (e.g. unparsable endpoint)
		return Outcome{}, false, err
	}

	messages, err := decodeMessageMap(body)
	if err != nil {
		return Outcome{}, false, err
	}

	raw, present := messages[req.key]
	l.notifyAttempt(logger, Attempt{
		Number:    attempt,
		Latency:   latency,
		CheckedAt: time.Now(),
		Found:     present,
	})

	if present {
		if env, ok := decodeEnvelope(raw); ok && env.acceptable(req, time.Now()) {
			outcome := Outcome{
				State:    StateSuccess,
				Data:     env.Data,
				Meta:     env.meta(),
				Elapsed:  elapsedSeconds(time.Since(start)),
				Attempts: attempt,
			}
			if req.debug {
				logger.Debug("message accepted",
					"elapsed", outcome.Elapsed,
					"attempts", attempt,
					"timestamp", outcome.Meta.Timestamp,
				)
			}
			return outcome, true, nil
		}
	}

	if req.debug {
		logger.Debug("no acceptable message yet",
			"attempt", attempt,
			"entry_present", present,
			"latency_ms", latency.Milliseconds(),
		)
	}
	return Outcome{}, false, nil
}

// mergeHeaders layers request headers over listener defaults.
// Returns nil when both are empty.
func mergeHeaders(base, over map[string]string) map[string]string {
	if len(base) == 0 && len(over) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range over {
		merged[k] = v
	}
	return merged
}
