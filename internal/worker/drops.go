package worker

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// dropLimiter aggregates drops so the sustained-backpressure warning is
// reported at most once per interval.
type dropLimiter struct {
	limiter *rate.Limiter
	pending atomic.Int64
	now     func() time.Time
}

func newDropLimiter(interval time.Duration) *dropLimiter {
	return &dropLimiter{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		now:     time.Now,
	}
}

// note records one drop and returns the drops accumulated since the last
// report when a new report is due, or zero otherwise.
func (d *dropLimiter) note() int64 {
	d.pending.Add(1)
	if !d.limiter.AllowN(d.now(), 1) {
		return 0
	}
	return d.pending.Swap(0)
}
