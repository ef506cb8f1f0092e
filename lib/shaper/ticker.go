package shaper

import (
	"context"
	"time"
)

// Ticker periodically accounts a zero-byte tick so an Accountant's
// published speed decays to zero during idle periods instead of
// holding the last observed value forever. It implements suture.Service.
type Ticker struct {
	Accountant *Accountant
	Interval   time.Duration
}

func (t *Ticker) String() string { return "shaper.Ticker" }

func (t *Ticker) Serve(ctx context.Context) error {
	interval := t.Interval
	if interval <= 0 {
		interval = time.Second
	}
	tk := time.NewTicker(interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-tk.C:
			t.Accountant.Account(now.Unix(), 0)
		}
	}
}
