package isolate

import (
	"errors"
	"sync"

	"github.com/my-piper/piper-deno/internal/script"
)

// ErrPoolClosed is returned by Acquire after the pool has shut down.
var ErrPoolClosed = errors.New("isolate pool is closed")

// PoolConfig defines pool sizing.
type PoolConfig struct {
	Capacity         int // pooled entries, created lazily
	RecycleThreshold int // requests served before an entry is retired
}

// DefaultPoolConfig returns the stock pool sizing.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Capacity:         5,
		RecycleThreshold: 100,
	}
}

// Entry is one runtime with lease bookkeeping. Pooled entries survive across
// requests; temporary entries are handed out when the pool is saturated and
// never return to it.
type Entry struct {
	rt       *Runtime
	requests int
	busy     bool
	pooled   bool
}

// Runtime exposes the leased execution context.
func (e *Entry) Runtime() *Runtime { return e.rt }

// Pool owns every reusable isolate. All lease state lives behind one mutex;
// each Acquire/Release is a single atomic transition, and a busy entry is
// never handed to a second request.
type Pool struct {
	mu      sync.Mutex
	entries []*Entry
	cfg     PoolConfig
	loader  *script.Loader
	closed  bool
}

// NewPool creates an empty pool; entries are created on demand.
func NewPool(cfg PoolConfig, loader *script.Loader) *Pool {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultPoolConfig().Capacity
	}
	if cfg.RecycleThreshold <= 0 {
		cfg.RecycleThreshold = DefaultPoolConfig().RecycleThreshold
	}
	return &Pool{
		cfg:    cfg,
		loader: loader,
	}
}

// Acquire leases an entry: an idle pooled one if available, a fresh pooled
// one while below capacity, otherwise a temporary single-use entry.
func (p *Pool) Acquire() (*Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	for _, e := range p.entries {
		if !e.busy {
			e.busy = true
			e.requests++
			return e, nil
		}
	}

	rt, err := NewRuntime(p.loader)
	if err != nil {
		return nil, err
	}
	e := &Entry{rt: rt, busy: true, requests: 1}
	if len(p.entries) < p.cfg.Capacity {
		e.pooled = true
		p.entries = append(p.entries, e)
	}
	return e, nil
}

// Release returns a leased entry. A failed lease, an entry at its recycle
// threshold, and every temporary entry are destroyed; only a cleanly
// finished pooled entry below the threshold goes back to idle.
func (p *Pool) Release(e *Entry, failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if failed || !e.pooled || p.closed || e.requests >= p.cfg.RecycleThreshold {
		p.remove(e)
		e.rt.Close()
		return
	}
	e.busy = false
}

// remove drops e from the pooled set. Caller holds p.mu.
func (p *Pool) remove(e *Entry) {
	for i, cur := range p.entries {
		if cur == e {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return
		}
	}
}

// Stats reports pooled entry counts for monitoring.
func (p *Pool) Stats() (entries, busy int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.entries {
		if e.busy {
			busy++
		}
	}
	return len(p.entries), busy
}

// Close destroys all idle entries and fails further acquisitions. Busy
// entries are destroyed by their own release.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	for _, e := range p.entries {
		if !e.busy {
			e.rt.Close()
		}
	}
	p.entries = nil
}
