// Package poolkit provides a generic, thread-safe object pooling toolkit
// built around explicit ownership handles, deferred returns, and lifecycle
// hooks.
//
// A pool constructs instances of any type T through a caller-supplied
// factory, retains returned instances for reuse, and bounds both the
// reusable set and total outstanding construction with a single capacity
// limit. Acquisition never blocks: a pool at capacity reports exhaustion
// and lets the caller decide whether to back off or fail.
//
// # Architecture
//
// Poolkit is organized around four cooperating pieces:
//
// 1. Storage Core: a LIFO stack of available instances plus atomic counters,
// guarded by a single mutex held only for stack manipulation.
//
// 2. Handle-Return Protocol: every acquisition hands out a Handle that owns
// the loan. Returns are idempotent across the explicit, deferred, and
// disposal paths, enforced with a per-instance state machine.
//
// 3. Deferred Return Scheduler: a min-heap of (instance, expiry) entries
// swept by a background goroutine, so callers can schedule a return in the
// future without holding a goroutine open.
//
// 4. Hook Pipeline: optional pre-acquire, post-release, and teardown
// callbacks observe every lifecycle transition, replaceable at runtime.
//
// # Quick Start
//
// Pool database sessions with eager warmup and a capacity bound:
//
//	import (
//	    "github.com/ajitpratap0/poolkit/pkg/pool"
//	)
//
//	p, err := pool.New(pool.Config[*Session]{
//	    Name:        "sessions",
//	    InitialSize: 4,
//	    MaxCapacity: 32,
//	    Factory:     func() (*Session, error) { return Dial(addr) },
//	    Teardown:    func(s *Session) { s.Hangup() },
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	h, err := p.Acquire()
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//	use(h.Object())
//
// # Key Packages
//
//	pkg/pool          - Generic pool, handles, deferred-return scheduler
//	pkg/errors        - Structured error handling
//	pkg/logger        - Structured logging
//	pkg/metrics       - Prometheus metrics collection
//	pkg/observability - Tracing and logging initialization
//	pkg/testutil      - Shared test helpers
//
// # License
//
// Poolkit is released under the Apache 2.0 License.
// See LICENSE file for details.
package poolkit
