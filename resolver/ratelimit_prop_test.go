package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// The quota must hold for arbitrary interleavings of calls and clock
// advances, not just the handcrafted schedules above. Each step is an
// advance of 0..20s followed by one Wait; the admitted call times must
// never put more than limit calls inside any rolling window.
func TestLimiterQuotaHoldsForArbitrarySchedules(t *testing.T) {
	const (
		limit  = 10
		window = 60 * time.Second
	)

	properties := gopter.NewProperties(nil)

	properties.Property("at most limit calls in any rolling window", prop.ForAll(
		func(advancesMs []int64) bool {
			clock := newFakeClock()
			limiter := NewSlidingWindowLimiter(limit, window, clock)

			admitted := make([]time.Time, 0, len(advancesMs))
			for _, ms := range advancesMs {
				clock.advance(time.Duration(ms) * time.Millisecond)
				if err := limiter.Wait(context.Background()); err != nil {
					return false
				}
				admitted = append(admitted, clock.Now())
			}

			for i, at := range admitted {
				inWindow := 0
				for j := 0; j <= i; j++ {
					if admitted[j].After(at.Add(-window)) {
						inWindow++
					}
				}
				if inWindow > limit {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(0, 20_000)),
	))

	properties.TestingRun(t)
}
