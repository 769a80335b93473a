package push

import (
	"testing"
	"time"
)

func TestBackoffGrowth(t *testing.T) {
	cfg := BackoffConfig{
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 2.0,
	}

	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second, // capped
		30 * time.Second,
	}

	for i, expected := range want {
		got := nextBackoffDelay(cfg, i+1, nil)
		if got != expected {
			t.Errorf("attempt %d: delay = %v, want %v", i+1, got, expected)
		}
	}
}

func TestBackoffSubUnityMultiplier(t *testing.T) {
	cfg := BackoffConfig{Initial: time.Second, Multiplier: 0.5}

	if got := nextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Errorf("delay = %v, want multiplier clamped to 1.0", got)
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	cfg := BackoffConfig{
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}

	// With a nil rng the jitter factor is the midpoint 0.5.
	if got := nextBackoffDelay(cfg, 2, nil); got != time.Second {
		t.Errorf("jittered delay = %v, want 1s (0.5 * 2s)", got)
	}
}

func TestBackoffZeroInitial(t *testing.T) {
	cfg := BackoffConfig{Multiplier: 2.0}

	if got := nextBackoffDelay(cfg, 5, nil); got != 0 {
		t.Errorf("delay = %v, want 0 for unset initial", got)
	}
}
