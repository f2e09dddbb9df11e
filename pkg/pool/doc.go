// Package pool implements a bounded, thread-safe object pool for
// expensive-to-construct, reusable instances. Instances are handed out on
// demand wrapped in borrow handles and routed back for reuse rather than
// destroyed, amortizing construction cost across many borrowers.
//
// # Architecture
//
// The pool is built from four cooperating parts:
//
//   - Storage core: the bounded stack of available instances plus the
//     counters tracking outstanding construction and loans. Owns the
//     capacity invariant: the available collection never exceeds
//     MaxCapacity, and MaxCapacity also caps total outstanding construction.
//   - Handle protocol: every loan is wrapped in a Handle[T] binding the
//     instance to its return capability. A handle can return its instance
//     explicitly (Release), after a delay (ReleaseAfter), or on scope exit
//     (Close, typically deferred). All paths converge on a per-loan
//     idempotency guard, so the second and later return attempts are no-ops.
//   - Deferred-return scheduler: a min-heap of (instance, expiry) entries
//     swept by one background goroutine per pool. Expired entries migrate
//     back into the available collection; unexpired entries are drained,
//     never dropped, when the pool shuts down.
//   - Hook pipeline: three optional callbacks. PreAcquire runs after an
//     instance is selected and before its handle is returned; PostRelease
//     runs before an instance becomes available again from any return path;
//     Teardown runs immediately before an instance is discarded.
//
// Acquisition never blocks: when the pool is exhausted Acquire returns
// ErrExhausted, a normal and observable outcome distinct from a construction
// failure. Reuse is preferred over growth, and reuse is LIFO so the most
// recently released (cache-warm) instance is handed out first.
//
// # Usage
//
//	p, err := pool.New(pool.Config[*Conn]{
//	    Name:        "db_conns",
//	    InitialSize: 2,
//	    MaxCapacity: 10,
//	    Factory:     func() (*Conn, error) { return dial(addr) },
//	    PostRelease: func(c *Conn) { c.Reset() },
//	    Teardown:    func(c *Conn) { c.Shutdown() },
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	h, err := p.Acquire()
//	if err != nil {
//	    return err // pool.ErrExhausted when at capacity
//	}
//	defer h.Close() // automatic return if not explicitly released
//
//	use(h.Object())
//	h.ReleaseAfter(5 * time.Second) // cool-down before reuse
//
// # Concurrency
//
// All pool operations are safe for concurrent use. Two independent locks
// guard the available collection and the deferred-return queue so the sweep
// goroutine never blocks callers performing immediate returns. Hooks and the
// factory always execute with both locks released; a hook may therefore
// re-enter the pool.
package pool
