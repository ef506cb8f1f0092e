package apipool

import (
	"context"
	"time"
)

// Reaper periodically evicts idle handles older than the pool's
// MaxIdleSecs. It implements suture.Service (Serve(ctx) error) so the
// caller's supervisor tree can own its lifecycle, the same way
// verbose/background services are wired into a supervisor elsewhere
// in the teacher's stack.
type Reaper struct {
	Pool     *Pool
	Interval time.Duration
}

func (r *Reaper) String() string {
	return "apipool.Reaper"
}

func (r *Reaper) Serve(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			r.Pool.ReapIdle(now)
		}
	}
}
