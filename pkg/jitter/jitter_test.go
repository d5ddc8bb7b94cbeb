package jitter

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDuration_Bounds(t *testing.T) {
	base := 100 * time.Millisecond

	for i := 0; i < 100; i++ {
		d := Duration(base, DefaultJitter)
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+base/2)
	}
}

func TestDurationWithSeed_Deterministic(t *testing.T) {
	a := DurationWithSeed(time.Second, DefaultJitter, rand.New(rand.NewPCG(42, 7)))
	b := DurationWithSeed(time.Second, DefaultJitter, rand.New(rand.NewPCG(42, 7)))

	assert.Equal(t, a, b)
}

func TestExponentialBackoff_Caps(t *testing.T) {
	tests := map[string]struct {
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		"first attempt": {attempt: 0, min: 100 * time.Millisecond, max: 100 * time.Millisecond},
		"third attempt": {attempt: 2, min: 400 * time.Millisecond, max: 400 * time.Millisecond},
		"capped":        {attempt: 20, min: time.Second, max: time.Second},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			d := ExponentialBackoff(100*time.Millisecond, time.Second, tt.attempt, 0)
			assert.GreaterOrEqual(t, d, tt.min)
			assert.LessOrEqual(t, d, tt.max)
		})
	}
}

func TestSleep_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Sleep(ctx, time.Hour)

	assert.ErrorIs(t, err, context.Canceled)
}
