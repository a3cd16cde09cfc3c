package tablesource

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/tercen/ggrs-plot-operator-sub000/frame"
)

// RateLimited caps how many rows per second a source serves. Fetches wait
// until the window's row count fits the budget, then delegate.
type RateLimited struct {
	src     Source
	limiter *rate.Limiter
}

// NewRateLimited wraps src with a rows-per-second budget. A burst below one
// defaults to one second's worth of rows. Non-positive rates disable
// limiting and return src unchanged.
func NewRateLimited(src Source, rowsPerSec float64, burst int) Source {
	if rowsPerSec <= 0 {
		return src
	}
	if burst < 1 {
		burst = int(rowsPerSec)
		if burst < 1 {
			burst = 1
		}
	}
	return &RateLimited{
		src:     src,
		limiter: rate.NewLimiter(rate.Limit(rowsPerSec), burst),
	}
}

// Schema delegates to the wrapped source.
func (r *RateLimited) Schema(ctx context.Context, tableID string) (Schema, error) {
	return r.src.Schema(ctx, tableID)
}

// FetchColumns waits for the window's rows to fit the budget, in at most
// burst-sized steps, honoring context cancellation.
func (r *RateLimited) FetchColumns(ctx context.Context, tableID string, columns []string, rng frame.Range) (*frame.Frame, error) {
	remaining := rng.Len()
	burst := int64(r.limiter.Burst())
	for remaining > 0 {
		n := remaining
		if n > burst {
			n = burst
		}
		if err := r.limiter.WaitN(ctx, int(n)); err != nil {
			return nil, err
		}
		remaining -= n
	}
	return r.src.FetchColumns(ctx, tableID, columns, rng)
}
