// Package shaper implements the traffic accounting and enforcement
// loops of spec §4.7: a per-second byte-accounting ring per direction,
// and hard-cap / auto enforcement wrapped around a connection's
// Read/Write calls.
package shaper

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// AverageWindowSeconds is the ring width the reference client calls
// PSYNC_SPEED_CALC_AVERAGE_SEC.
const AverageWindowSeconds = 8

type slot struct {
	sec   int64
	bytes uint64
}

// Accountant tracks one direction's (download or upload) throughput.
// Per spec §5, its counters are intentionally not mutex-protected by
// default — concurrent readers may see a slightly stale average, which
// the spec explicitly accepts. Pass WithLocking to wrap every access
// in a mutex if that inconsistency is unacceptable for a given caller.
type Accountant struct {
	mu    *sync.Mutex
	slots [AverageWindowSeconds]slot
	off   int

	curSec   int64
	curBytes uint64

	speed uint64 // atomic: last published average, bytes/sec

	gauge prometheus.Gauge
}

type Option func(*Accountant)

func WithLocking() Option {
	return func(a *Accountant) { a.mu = &sync.Mutex{} }
}

func WithGauge(g prometheus.Gauge) Option {
	return func(a *Accountant) { a.gauge = g }
}

func NewAccountant(opts ...Option) *Accountant {
	a := &Accountant{curSec: -1}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Accountant) lock() {
	if a.mu != nil {
		a.mu.Lock()
	}
}

func (a *Accountant) unlock() {
	if a.mu != nil {
		a.mu.Unlock()
	}
}

// Account records n bytes transferred at wall-clock second now,
// rolling the ring and republishing the average whenever now crosses
// into a new second (spec §4.7).
func (a *Accountant) Account(now int64, n uint64) {
	a.lock()
	defer a.unlock()

	if now == a.curSec {
		a.curBytes += n
		return
	}

	a.slots[a.off] = slot{sec: a.curSec, bytes: a.curBytes}
	a.off = (a.off + 1) % AverageWindowSeconds
	a.curSec = now
	a.curBytes = n

	var sum uint64
	for _, s := range a.slots {
		if s.sec >= now-AverageWindowSeconds {
			sum += s.bytes
		}
	}
	speed := sum / AverageWindowSeconds
	atomic.StoreUint64(&a.speed, speed)
	if a.gauge != nil {
		a.gauge.Set(float64(speed))
	}
}

// BytesThisSec returns the running byte count for wall-clock second
// now, or 0 if now has already rolled past the last accounted second.
func (a *Accountant) BytesThisSec(now int64) uint64 {
	a.lock()
	defer a.unlock()
	if now == a.curSec {
		return a.curBytes
	}
	return 0
}

// Speed returns the last published per-second average.
func (a *Accountant) Speed() uint64 {
	return atomic.LoadUint64(&a.speed)
}
