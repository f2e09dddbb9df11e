package pool

import (
	"sync/atomic"
	"time"

	"github.com/ajitpratap0/poolkit/pkg/metrics"
)

// Handle binds one borrowed instance to its return capability. A handle is
// unique per loan: the pool never hands out two handles for the same
// instance while it is on loan.
//
// A handle must settle exactly once, through one of Release, ReleaseAfter,
// or Close. The idiomatic pattern is to defer Close immediately after a
// successful Acquire; an earlier explicit Release or ReleaseAfter makes the
// deferred Close a no-op.
//
// Close also covers the case of a handle outliving its pool: when the pool
// has been closed, disposal invokes the teardown hook that was in effect at
// acquisition time and discards the instance instead of returning it.
type Handle[T any] struct {
	pool       *Pool[T]
	it         *item[T]
	teardown   Hook[T] // snapshot at acquisition, used only when the pool is gone
	acquiredAt time.Time
	done       int32
}

// Object returns the borrowed instance. The instance must not be used after
// the handle has settled.
func (h *Handle[T]) Object() T {
	return h.it.obj
}

// Release returns the instance to the pool immediately. The post-release
// hook runs before the instance becomes available again. Calling Release on
// an already settled handle is a no-op.
func (h *Handle[T]) Release() {
	if !atomic.CompareAndSwapInt32(&h.done, 0, 1) {
		return
	}
	h.observeLoan(metrics.PathImmediate)
	h.pool.release(h.it, stateLoaned)
}

// ReleaseAfter returns the instance no earlier than d from now. The instance
// enters the deferred-return queue and is not reacquirable until the sweep
// migrates it; the post-release hook runs at migration time. A non-positive
// d degenerates to Release. If the pool has already been closed the deferred
// queue is gone, so the return settles immediately: post-release, then
// teardown. Calling ReleaseAfter on an already settled handle is a no-op.
func (h *Handle[T]) ReleaseAfter(d time.Duration) {
	if d <= 0 {
		h.Release()
		return
	}
	if !atomic.CompareAndSwapInt32(&h.done, 0, 1) {
		return
	}
	h.observeLoan(metrics.PathDeferred)

	if h.pool.isClosed() {
		// release discards on a closed pool after running post-release,
		// matching how Clear settles queued deferred entries.
		h.pool.release(h.it, stateLoaned)
		return
	}

	if atomic.CompareAndSwapInt32(&h.it.state, stateLoaned, statePending) {
		atomic.AddInt64(&h.pool.inUse, -1)
		if !h.pool.sched.add(h.it, time.Now().Add(d)) {
			// Shutdown won the race after the closed check above. The queue
			// will never be swept or drained again, so settle the loan
			// through the storage core instead of stranding it.
			h.pool.release(h.it, statePending)
		}
	}
}

// Close settles the handle if it has not been settled yet: the instance
// returns to the pool when the pool is still open, or is torn down with the
// hook captured at acquisition when the pool has been closed. Close always
// returns nil; the error return satisfies io.Closer so handles compose with
// defer and cleanup helpers. Close is idempotent.
func (h *Handle[T]) Close() error {
	if !atomic.CompareAndSwapInt32(&h.done, 0, 1) {
		return nil
	}
	h.observeLoan(metrics.PathAuto)

	if h.pool.isClosed() {
		h.discard()
		return nil
	}
	h.pool.release(h.it, stateLoaned)
	return nil
}

// discard settles a loan whose pool has already been closed: the captured
// teardown hook runs exactly once and the instance is dropped.
func (h *Handle[T]) discard() {
	if !atomic.CompareAndSwapInt32(&h.it.state, stateLoaned, stateDestroyed) {
		return
	}
	atomic.AddInt64(&h.pool.inUse, -1)
	h.pool.invokeHook(h.teardown, h.it.obj, "teardown")
	atomic.AddInt64(&h.pool.allocated, -1)
	atomic.AddInt64(&h.pool.discarded, 1)
	if h.pool.collector != nil {
		h.pool.collector.RecordDiscard()
	}
}

func (h *Handle[T]) observeLoan(path string) {
	if h.pool.collector == nil {
		return
	}
	h.pool.collector.RecordReturn(path)
	h.pool.collector.ObserveLoanDuration(time.Since(h.acquiredAt))
}
