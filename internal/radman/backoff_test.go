package radman

import (
	"math/rand"
	"testing"
	"time"
)

func TestNextBackoffDelay(t *testing.T) {
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     10 * time.Second,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 250 * time.Millisecond},
		{2, 500 * time.Millisecond},
		{3, time.Second},
		{4, 2 * time.Second},
		{10, 10 * time.Second}, // capped
	}

	for _, tt := range tests {
		if got := NextBackoffDelay(cfg, tt.attempt, nil); got != tt.want {
			t.Errorf("Attempt %d: expected %s, got %s", tt.attempt, tt.want, got)
		}
	}
}

func TestNextBackoffDelay_Jitter(t *testing.T) {
	cfg := DefaultBackoff()
	rng := rand.New(rand.NewSource(1))

	// Jittered delays stay within [0.5x, 1.5x] of the exponential value.
	for attempt := 2; attempt < 8; attempt++ {
		base := NextBackoffDelay(BackoffConfig{
			InitialDelay: cfg.InitialDelay,
			Multiplier:   cfg.Multiplier,
			MaxDelay:     cfg.MaxDelay,
		}, attempt, nil)

		got := NextBackoffDelay(cfg, attempt, rng)
		if got < base/2 || got > base+base/2 {
			t.Errorf("Attempt %d: jittered delay %s outside [%s, %s]", attempt, got, base/2, base+base/2)
		}
	}
}
