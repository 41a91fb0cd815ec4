package isolate

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/my-piper/piper-deno/internal/logging"
	"github.com/my-piper/piper-deno/internal/sandbox"
)

// Runner executes requests in pooled in-process isolates.
type Runner struct {
	pool   *Pool
	logger *logging.Logger
}

// NewRunner creates a runner over an isolate pool.
func NewRunner(pool *Pool, logger *logging.Logger) *Runner {
	return &Runner{pool: pool, logger: logger}
}

// Start leases an isolate and begins the invocation. The returned handle
// delivers exactly one report.
func (r *Runner) Start(ctx context.Context, req *sandbox.Request) (sandbox.Handle, error) {
	entry, err := r.pool.Acquire()
	if err != nil {
		return nil, err
	}

	r.logger.Debug("isolate leased",
		zap.Bool("pooled", entry.pooled),
		zap.Int("requests", entry.requests),
	)

	h := &handle{
		pool:  r.pool,
		entry: entry,
		done:  make(chan *sandbox.Report, 1),
	}
	go func() {
		h.done <- entry.Runtime().Invoke(ctx, req.Script, req.Function, req.Payload)
	}()
	return h, nil
}

// handle owns one pool lease for the duration of one invocation.
type handle struct {
	pool     *Pool
	entry    *Entry
	done     chan *sandbox.Report
	killed   atomic.Bool
	released atomic.Bool
}

func (h *handle) Done() <-chan *sandbox.Report { return h.done }

// Kill interrupts the running script. The leased runtime is destroyed on
// release and never returns to the pool.
func (h *handle) Kill() {
	if h.killed.CompareAndSwap(false, true) {
		h.entry.Runtime().Interrupt("execution timeout")
	}
}

// Release ends the lease exactly once. A killed handle always releases as
// failed, whatever the caller passes.
func (h *handle) Release(failed bool) {
	if h.released.CompareAndSwap(false, true) {
		h.pool.Release(h.entry, failed || h.killed.Load())
	}
}
