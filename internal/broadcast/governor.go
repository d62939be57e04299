package broadcast

import (
	"context"

	"golang.org/x/time/rate"
)

// Governor bounds the aggregate send rate of a batch. A nil limiter means no
// throttling (rate <= 0): the slot is granted immediately.
type Governor struct {
	lim *rate.Limiter
}

// NewGovernor builds a governor for perMinute messages per minute. Fractional
// rates are fine; the limiter works at sub-second resolution.
func NewGovernor(perMinute float64) *Governor {
	if perMinute <= 0 {
		return &Governor{}
	}
	return &Governor{lim: rate.NewLimiter(rate.Limit(perMinute/60.0), 1)}
}

// Wait blocks until the next send slot (or ctx is done).
func (g *Governor) Wait(ctx context.Context) error {
	if g == nil || g.lim == nil {
		return ctx.Err()
	}
	return g.lim.Wait(ctx)
}
