package push

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig shapes the reconnect delay curve.
type BackoffConfig struct {
	// Initial is the delay before the first retry.
	Initial time.Duration

	// Max caps the delay; zero means uncapped.
	Max time.Duration

	// Multiplier is the per-attempt growth factor; values below 1 are
	// treated as 1.
	Multiplier float64

	// Jitter randomizes each delay within [0.5x, 1.5x].
	Jitter bool
}

// DefaultBackoff is the reconnect curve used when no configuration is
// supplied: 1s doubling up to 30s, with jitter.
var DefaultBackoff = BackoffConfig{
	Initial:    time.Second,
	Max:        30 * time.Second,
	Multiplier: 2.0,
	Jitter:     true,
}

// nextBackoffDelay returns the retry delay for attempt N (1-based).
func nextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return cfg.Initial
	}
	if cfg.Initial <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.Initial) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.Max > 0 && delay > float64(cfg.Max) {
		delay = float64(cfg.Max)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}
