package relaypoll

import (
	"testing"
	"time"
)

// TestElapsedSeconds verifies rounding to one decimal place with
// round-half-up on the tenths digit, from millisecond deltas.
func TestElapsedSeconds(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want float64
	}{
		{name: "zero", d: 0, want: 0},
		{name: "exact tenth", d: 1200 * time.Millisecond, want: 1.2},
		{name: "rounds down below half", d: 1249 * time.Millisecond, want: 1.2},
		{name: "half rounds up", d: 1250 * time.Millisecond, want: 1.3},
		{name: "rounds up above half", d: 1251 * time.Millisecond, want: 1.3},
		{name: "sub-tenth rounds to zero", d: 49 * time.Millisecond, want: 0},
		{name: "sub-tenth rounds up", d: 50 * time.Millisecond, want: 0.1},
		{name: "whole seconds", d: 10 * time.Second, want: 10},
		{name: "carries into seconds", d: 1950 * time.Millisecond, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := elapsedSeconds(tt.d); got != tt.want {
				t.Errorf("elapsedSeconds(%v) = %v, want %v", tt.d, got, tt.want)
			}
		})
	}
}

// TestOutcome_Found verifies the success/timeout tag.
func TestOutcome_Found(t *testing.T) {
	if !(Outcome{State: StateSuccess}).Found() {
		t.Error("Found() = false for StateSuccess, want true")
	}
	if (Outcome{State: StateTimeout}).Found() {
		t.Error("Found() = true for StateTimeout, want false")
	}
}

// TestState_String verifies the Stringer implementation.
func TestState_String(t *testing.T) {
	if StateSuccess.String() != "success" {
		t.Errorf("StateSuccess.String() = %q, want %q", StateSuccess.String(), "success")
	}
	if StateTimeout.String() != "timeout" {
		t.Errorf("StateTimeout.String() = %q, want %q", StateTimeout.String(), "timeout")
	}
}
