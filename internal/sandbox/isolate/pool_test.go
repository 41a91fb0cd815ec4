package isolate

import (
	"context"
	"testing"
	"time"

	"github.com/my-piper/piper-deno/internal/logging"
	"github.com/my-piper/piper-deno/internal/sandbox"
	"github.com/my-piper/piper-deno/internal/script"
)

func newTestPool(cfg PoolConfig) *Pool {
	return NewPool(cfg, script.NewLoader(script.DefaultConfig()))
}

func TestPoolReuseAfterCleanRelease(t *testing.T) {
	pool := newTestPool(PoolConfig{Capacity: 2, RecycleThreshold: 100})
	defer pool.Close()

	first, err := pool.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !first.pooled || first.requests != 1 {
		t.Fatalf("unexpected entry state: pooled=%v requests=%d", first.pooled, first.requests)
	}
	pool.Release(first, false)

	second, err := pool.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if second != first {
		t.Error("idle entry was not reused")
	}
	if second.requests != 2 {
		t.Errorf("requests = %d, want 2", second.requests)
	}
	pool.Release(second, false)
}

func TestPoolFailedReleaseDestroys(t *testing.T) {
	pool := newTestPool(PoolConfig{Capacity: 2, RecycleThreshold: 100})
	defer pool.Close()

	e, err := pool.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	pool.Release(e, true)

	if entries, _ := pool.Stats(); entries != 0 {
		t.Errorf("failed entry still pooled: %d entries", entries)
	}
}

func TestPoolRecycleThreshold(t *testing.T) {
	pool := newTestPool(PoolConfig{Capacity: 2, RecycleThreshold: 2})
	defer pool.Close()

	e, _ := pool.Acquire()
	pool.Release(e, false) // requests=1, below threshold

	e2, _ := pool.Acquire() // requests=2, at threshold
	if e2 != e {
		t.Fatal("expected reuse before threshold")
	}
	pool.Release(e2, false)

	if entries, _ := pool.Stats(); entries != 0 {
		t.Errorf("entry at threshold was recycled into the pool")
	}
}

func TestPoolOverflowIsTemporary(t *testing.T) {
	pool := newTestPool(PoolConfig{Capacity: 1, RecycleThreshold: 100})
	defer pool.Close()

	first, err := pool.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	overflow, err := pool.Acquire()
	if err != nil {
		t.Fatalf("overflow Acquire() error = %v", err)
	}
	if overflow.pooled {
		t.Error("overflow entry should not be pooled")
	}

	pool.Release(overflow, false)
	pool.Release(first, false)

	if entries, _ := pool.Stats(); entries != 1 {
		t.Errorf("pool size = %d, want 1", entries)
	}
}

func TestPoolNeverDoubleLeases(t *testing.T) {
	pool := newTestPool(PoolConfig{Capacity: 3, RecycleThreshold: 100})
	defer pool.Close()

	a, _ := pool.Acquire()
	b, _ := pool.Acquire()
	if a == b {
		t.Fatal("same entry leased twice")
	}
	pool.Release(a, false)
	pool.Release(b, false)
}

func TestPoolClosedAcquire(t *testing.T) {
	pool := newTestPool(PoolConfig{})
	pool.Close()

	if _, err := pool.Acquire(); err != ErrPoolClosed {
		t.Errorf("Acquire() error = %v, want ErrPoolClosed", err)
	}
}

func TestRunnerLifecycle(t *testing.T) {
	pool := newTestPool(PoolConfig{Capacity: 1, RecycleThreshold: 100})
	defer pool.Close()
	runner := NewRunner(pool, logging.NewNop())

	h, err := runner.Start(context.Background(), &sandbox.Request{
		Script:   `export function run(x) { return x.n; }`,
		Function: "run",
		Payload:  map[string]any{"n": "val"},
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case rep := <-h.Done():
		if rep.Err != nil {
			t.Fatalf("report error: %v", rep.Err)
		}
		if rep.Result != "val" {
			t.Errorf("result = %v", rep.Result)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no report delivered")
	}

	h.Release(false)
	if entries, busy := pool.Stats(); entries != 1 || busy != 0 {
		t.Errorf("pool state after release: entries=%d busy=%d", entries, busy)
	}

	// Release is idempotent.
	h.Release(true)
	if entries, _ := pool.Stats(); entries != 1 {
		t.Error("second release changed pool state")
	}
}

func TestRunnerKilledHandleDestroysEntry(t *testing.T) {
	pool := newTestPool(PoolConfig{Capacity: 1, RecycleThreshold: 100})
	defer pool.Close()
	runner := NewRunner(pool, logging.NewNop())

	h, err := runner.Start(context.Background(), &sandbox.Request{
		Script:   `export function run() { while (true) {} }`,
		Function: "run",
		Payload:  map[string]any{},
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	h.Kill()
	h.Release(false) // killed handles always release as failed

	if entries, _ := pool.Stats(); entries != 0 {
		t.Error("killed entry returned to the pool")
	}

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("interrupted run never reported")
	}
}
