// Package apipool implements the bounded idle+active connection cache
// of spec §4.8: authenticated long-lived sockets to the API, reused
// across concurrent callers, invalidated fast when the TLS mode
// setting changes.
package apipool

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/deltasync/deltasync/internal/logger"
)

var l = logger.New("apipool")

// Handle is one pooled socket. The reference pool's entries are
// "opaque socket handles plus a boolean is-ssl" (spec §3 data model);
// TLS reports that boolean.
type Handle interface {
	net.Conn
	TLS() bool
}

// Factory dials a fresh Handle in the pool's current TLS mode.
type Factory func(ctx context.Context) (Handle, error)

// Destroyer disposes of a handle that will never be reused.
type Destroyer func(Handle)

// ExhaustionNotifier is told when Get fails to produce a handle at
// all, so a caller (normally the shaper) can treat it as a probable
// network outage and collapse its retry timers.
type ExhaustionNotifier interface {
	NotifyOutage()
}

var ErrClosed = errors.New("apipool: pool closed")

type idleEntry struct {
	handle Handle
	since  time.Time
}

// Pool is safe for concurrent Get/Release/ReleaseBad.
type Pool struct {
	factory     Factory
	destroy     Destroyer
	maxActive   int
	maxIdleSecs time.Duration
	tlsMode     func() bool
	onExhausted ExhaustionNotifier

	mu     sync.Mutex
	idle   *lru.Cache[uint64, *idleEntry]
	nextID uint64
	closed bool

	// sem bounds the number of simultaneously live handles (idle +
	// handed-out) to maxActive (spec §4.8, §8 invariant 6). nil means
	// unbounded. A token is acquired only when a handle is actually
	// dialed, and held for that handle's whole lifetime — reusing an
	// idle handle doesn't touch it, only destroying one frees a token.
	sem chan struct{}

	active *xsync.Counter

	idleGauge   prometheus.Gauge
	activeGauge prometheus.Gauge
}

// Config bundles Pool's construction parameters, mirroring
// psync_pool_create's (factory, destroyer, maxidle, maxactive,
// maxidlesec) argument list.
type Config struct {
	Factory     Factory
	Destroy     Destroyer
	MaxIdle     int
	MaxActive   int
	MaxIdleSecs int
	// TLSMode reports the currently configured TLS setting; Get
	// compares it against each idle handle's own mode.
	TLSMode func() bool
	// OnExhausted is notified whenever Get's factory call fails.
	OnExhausted ExhaustionNotifier
	// Registerer, if non-nil, gets idle/active gauges registered
	// against it.
	Registerer prometheus.Registerer
}

func New(cfg Config) (*Pool, error) {
	p := &Pool{
		factory:     cfg.Factory,
		destroy:     cfg.Destroy,
		maxActive:   cfg.MaxActive,
		maxIdleSecs: time.Duration(cfg.MaxIdleSecs) * time.Second,
		tlsMode:     cfg.TLSMode,
		onExhausted: cfg.OnExhausted,
		active:      xsync.NewCounter(),
	}
	if cfg.MaxActive > 0 {
		p.sem = make(chan struct{}, cfg.MaxActive)
		for i := 0; i < cfg.MaxActive; i++ {
			p.sem <- struct{}{}
		}
	}

	maxIdle := cfg.MaxIdle
	if maxIdle <= 0 {
		maxIdle = 1
	}
	idle, err := lru.NewWithEvict[uint64, *idleEntry](maxIdle, func(_ uint64, e *idleEntry) {
		if e.handle == nil {
			return // taken by popIdle, not evicted
		}
		p.destroy(e.handle)
		p.releaseSlot()
	})
	if err != nil {
		return nil, err
	}
	p.idle = idle

	if cfg.Registerer != nil {
		p.idleGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "deltasync_apipool_idle_handles",
			Help: "Number of idle pooled API connections.",
		})
		p.activeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "deltasync_apipool_active_handles",
			Help: "Number of handed-out API connections.",
		})
		cfg.Registerer.MustRegister(p.idleGauge, p.activeGauge)
	}
	return p, nil
}

// Get returns an idle handle in the current TLS mode, discarding any
// idle handles in the wrong mode, or dials a fresh one via Factory. When
// MaxActive live handles already exist, Get blocks until one is
// destroyed or ctx is done (spec §4.8: "get() may block ... when
// exhausted").
func (p *Pool) Get(ctx context.Context) (Handle, error) {
	for {
		h, ok := p.popIdle()
		if !ok {
			break
		}
		if p.tlsMode == nil || h.TLS() == p.tlsMode() {
			p.accountActive(1)
			return h, nil
		}
		p.destroy(h)
		p.releaseSlot()
	}

	if err := p.acquireSlot(ctx); err != nil {
		return nil, err
	}

	h, err := p.factory(ctx)
	if err != nil {
		p.releaseSlot()
		if p.onExhausted != nil {
			p.onExhausted.NotifyOutage()
		}
		return nil, err
	}
	p.accountActive(1)
	return h, nil
}

// acquireSlot reserves one of MaxActive live-handle tokens, blocking
// until one frees up or ctx is done. A nil sem means no bound was
// configured.
func (p *Pool) acquireSlot(ctx context.Context) error {
	if p.sem == nil {
		return nil
	}
	select {
	case <-p.sem:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) releaseSlot() {
	if p.sem == nil {
		return
	}
	p.sem <- struct{}{}
}

// Release returns a handle to the idle set.
func (p *Pool) Release(h Handle) {
	p.accountActive(-1)
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.destroy(h)
		p.releaseSlot()
		return
	}
	id := p.nextID
	p.nextID++
	p.idle.Add(id, &idleEntry{handle: h, since: time.Now()})
	p.mu.Unlock()
	p.updateGauges()
}

// ReleaseBad destroys a handle instead of returning it to the pool,
// for callers that found it broken mid-use.
func (p *Pool) ReleaseBad(h Handle) {
	p.accountActive(-1)
	p.destroy(h)
	p.releaseSlot()
}

// Close destroys every idle handle and rejects further Release calls
// (they destroy instead of re-idling).
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	for _, key := range p.idle.Keys() {
		p.idle.Remove(key)
	}
	p.mu.Unlock()
}

func (p *Pool) popIdle() (Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := p.idle.Keys()
	if len(keys) == 0 {
		return nil, false
	}
	key := keys[len(keys)-1]
	e, ok := p.idle.Get(key)
	if !ok {
		return nil, false
	}
	// Clear the entry before Remove so the eviction callback it fires
	// doesn't destroy the handle being handed out.
	h := e.handle
	e.handle = nil
	p.idle.Remove(key)
	return h, true
}

func (p *Pool) accountActive(delta int64) {
	p.active.Add(delta)
	p.updateGauges()
}

func (p *Pool) updateGauges() {
	if p.idleGauge != nil {
		p.idleGauge.Set(float64(p.idle.Len()))
	}
	if p.activeGauge != nil {
		p.activeGauge.Set(float64(p.active.Value()))
	}
}

// ReapIdle evicts every idle handle that has sat longer than
// MaxIdleSecs. Call it periodically (see Reaper) to bound idle
// connection lifetime the way the reference pool's background sweep
// does.
func (p *Pool) ReapIdle(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, key := range p.idle.Keys() {
		e, ok := p.idle.Peek(key)
		if !ok {
			continue
		}
		if now.Sub(e.since) >= p.maxIdleSecs {
			p.idle.Remove(key)
		}
	}
}
