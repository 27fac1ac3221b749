package relaypoll

import (
	"encoding/json"
	"time"
)

// State is the terminal resolution of a listen call.
//
// State is a string type that can hold one of two predefined values:
// [StateSuccess] or [StateTimeout]. Using a string type allows for easy
// JSON serialization and human-readable logging while maintaining type
// safety through the defined constants. Fatal failures (bad arguments,
// missing endpoint, malformed response body) are returned as errors and
// never appear as a State.
type State string

const (
	// StateSuccess indicates an acceptable message was found before the
	// overall timeout elapsed.
	StateSuccess State = "success"

	// StateTimeout indicates the overall polling budget was exhausted
	// without finding an acceptable message. A timeout is a normal
	// resolution, not an error.
	StateTimeout State = "timeout"
)

// String returns the string representation of the state.
// This implements the fmt.Stringer interface.
func (s State) String() string {
	return string(s)
}

// Meta carries the emission metadata of a matched message.
type Meta struct {
	// Timestamp is the emission time in Unix seconds.
	Timestamp int64 `json:"timestamp"`

	// Expiration is the validity duration in seconds, counted from
	// Timestamp. Always non-negative.
	Expiration int64 `json:"expiration"`
}

// Outcome is the result of a listen call, produced exactly once.
//
// Outcome is a tagged result: check [Outcome.State] (or the [Outcome.Found]
// convenience) to distinguish success from timeout. Data and Meta are
// populated only on success. No partial or intermediate outcome ever
// crosses the call boundary.
type Outcome struct {
	// State is the terminal resolution: success or timeout.
	State State `json:"state"`

	// Data is the matched message payload, opaque to relaypoll. It may
	// be a JSON primitive or an arbitrary structure; decode it with
	// json.Unmarshal into whatever shape the flow expects. Nil on timeout.
	Data json.RawMessage `json:"data,omitempty"`

	// Meta is the matched message's emission metadata. Zero on timeout.
	Meta Meta `json:"meta"`

	// Elapsed is the wall-clock time the call took, in seconds rounded
	// to one decimal place.
	Elapsed float64 `json:"elapsed"`

	// Attempts counts fetch attempts initiated. A budget check that
	// ends the call before fetching does not count.
	Attempts int `json:"attempts"`
}

// Found reports whether the outcome is a success.
func (o Outcome) Found() bool {
	return o.State == StateSuccess
}

// Attempt describes one completed poll cycle, delivered to callbacks
// registered with [WithAttemptCallback].
type Attempt struct {
	// Number is the 1-based attempt counter.
	Number int

	// Latency is the time the fetch took.
	Latency time.Duration

	// CheckedAt is when the cycle completed.
	CheckedAt time.Time

	// Err is the transient network error for this cycle, or nil.
	Err error

	// Found reports whether an entry for the key was present in the
	// fetched map (regardless of whether it was acceptable).
	Found bool
}

// elapsedSeconds converts a wall-clock delta to seconds rounded to one
// decimal place, round-half-up on the tenths digit.
func elapsedSeconds(d time.Duration) float64 {
	tenths := (d.Milliseconds() + 50) / 100
	return float64(tenths) / 10
}
