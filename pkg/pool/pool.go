package pool

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	poolerrors "github.com/ajitpratap0/poolkit/pkg/errors"
	"github.com/ajitpratap0/poolkit/pkg/metrics"
)

// DefaultSweepInterval is the polling interval of the deferred-return sweep
// when Config.SweepInterval is not set.
const DefaultSweepInterval = 100 * time.Millisecond

// Sentinel errors returned by Acquire. Both are checked with errors.Is.
var (
	// ErrExhausted is returned when the available collection is empty and no
	// capacity headroom remains. Exhaustion is a normal outcome of a bounded
	// pool, not a failure; callers typically back off and retry.
	ErrExhausted = poolerrors.New(poolerrors.ErrorTypeExhausted, "pool exhausted")

	// ErrClosed is returned by Acquire after Close has begun. A closed pool
	// never constructs new instances.
	ErrClosed = poolerrors.New(poolerrors.ErrorTypeClosed, "pool closed")
)

// Hook is a caller-supplied callback invoked at a lifecycle transition.
// Within one loan cycle the ordering is: pre-acquire, caller use,
// post-release, then either reuse or teardown. Hooks run with no pool lock
// held and may re-enter the pool.
type Hook[T any] func(obj T)

// Per-instance lifecycle states. An instance is in exactly one state at any
// instant; the returning state is a transient claimed by whichever return
// path wins the transition, which is what makes returns idempotent.
const (
	stateAvailable int32 = iota
	stateLoaned
	statePending
	stateReturning
	stateDestroyed
)

// item is one constructed instance together with its lifecycle state word.
type item[T any] struct {
	obj   T
	state int32
}

// Config describes a pool. Factory is required; everything else is optional.
type Config[T any] struct {
	// Name identifies the pool in logs and metric labels
	Name string

	// InitialSize is the number of instances eagerly constructed by New
	InitialSize int

	// MaxCapacity bounds both the available collection and total outstanding
	// construction. Zero or negative means effectively unbounded.
	MaxCapacity int

	// Factory constructs one instance. It stands in for a fixed
	// construction-argument tuple: close over the arguments and every
	// instance is built the same way. A factory error is fatal to the
	// triggering Acquire (or to New during the initial fill) and is never
	// retried automatically.
	Factory func() (T, error)

	// PreAcquire, when set, runs on an instance after it is selected or
	// constructed and before its handle is returned to the caller.
	PreAcquire Hook[T]

	// PostRelease, when set, runs on an instance before it becomes
	// available again, from any return path.
	PostRelease Hook[T]

	// Teardown, when set, runs on an instance immediately before it is
	// discarded: capacity overflow, Clear, Close, or disposal of a handle
	// that outlived the pool.
	Teardown Hook[T]

	// SweepInterval is the deferred-return polling interval.
	// Defaults to DefaultSweepInterval.
	SweepInterval time.Duration

	// Metrics, when set, receives pool lifecycle events
	Metrics *metrics.Collector
}

// Pool is a bounded store of reusable instances of T. Create one with New;
// the zero value is not usable. All methods are safe for concurrent use.
type Pool[T any] struct {
	name      string
	max       int
	factory   func() (T, error)
	logger    *zap.Logger
	collector *metrics.Collector

	// Storage core. mu guards the available stack; the counters are
	// atomics so Stats never takes the lock for them.
	mu        sync.Mutex
	available []*item[T]

	allocated int64 // instances constructed and not yet destroyed
	inUse     int64 // instances currently on loan
	reused    int64
	created   int64
	exhausted int64
	discarded int64

	// Hooks are replaceable at runtime. hookMu serializes replacement and
	// snapshot reads; it is never held across a hook invocation.
	hookMu      sync.RWMutex
	preAcquire  Hook[T]
	postRelease Hook[T]
	teardown    Hook[T]

	sched *scheduler[T]

	closed    int32
	closeOnce sync.Once
}

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	// Name is the pool name
	Name string `json:"name"`
	// Allocated is the number of instances constructed and not yet destroyed
	Allocated int64 `json:"allocated"`
	// InUse is the number of instances currently on loan
	InUse int64 `json:"in_use"`
	// Available is the number of instances eligible for acquisition
	Available int `json:"available"`
	// Deferred is the number of instances waiting in the deferred-return queue
	Deferred int `json:"deferred"`
	// Reused counts acquisitions served from the available collection
	Reused int64 `json:"reused"`
	// Created counts instances constructed by the factory
	Created int64 `json:"created"`
	// Exhausted counts acquisitions denied at capacity
	Exhausted int64 `json:"exhausted"`
	// Discarded counts instances torn down instead of retained
	Discarded int64 `json:"discarded"`
}

// New creates a pool, eagerly constructs InitialSize instances, and starts
// the deferred-return sweep goroutine. A factory error during the eager fill
// tears down the partially built fill and is returned to the caller.
func New[T any](cfg Config[T], logger *zap.Logger) (*Pool[T], error) {
	if cfg.Factory == nil {
		return nil, poolerrors.New(poolerrors.ErrorTypeConfig, "pool factory must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	max := cfg.MaxCapacity
	if max <= 0 {
		max = math.MaxInt
	}
	if cfg.InitialSize < 0 {
		return nil, poolerrors.New(poolerrors.ErrorTypeConfig, "initial size must not be negative")
	}
	if cfg.InitialSize > max {
		return nil, poolerrors.New(poolerrors.ErrorTypeConfig, "initial size exceeds max capacity").
			WithDetail("initial_size", cfg.InitialSize).
			WithDetail("max_capacity", cfg.MaxCapacity)
	}

	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	name := cfg.Name
	if name == "" {
		name = "pool"
	}

	p := &Pool[T]{
		name:        name,
		max:         max,
		factory:     cfg.Factory,
		logger:      logger.With(zap.String("pool", name)),
		collector:   cfg.Metrics,
		preAcquire:  cfg.PreAcquire,
		postRelease: cfg.PostRelease,
		teardown:    cfg.Teardown,
	}
	p.sched = newScheduler(p, interval)

	for i := 0; i < cfg.InitialSize; i++ {
		obj, err := p.factory()
		if err != nil {
			// Undo the partial fill before reporting the failure.
			_, _, td := p.hooks()
			for _, it := range p.available {
				atomic.StoreInt32(&it.state, stateDestroyed)
				p.invokeHook(td, it.obj, "teardown")
			}
			p.available = nil
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeResource, "constructing initial pool instance").
				WithDetail("pool", name).
				WithDetail("constructed", i)
		}
		atomic.AddInt64(&p.allocated, 1)
		atomic.AddInt64(&p.created, 1)
		p.available = append(p.available, &item[T]{obj: obj, state: stateAvailable})
	}

	p.sched.start()

	p.logger.Debug("pool created",
		zap.Int("initial_size", cfg.InitialSize),
		zap.Int("max_capacity", cfg.MaxCapacity),
		zap.Duration("sweep_interval", interval))

	return p, nil
}

// Acquire hands out one instance wrapped in a handle. The most recently
// released available instance is preferred; when none is available and
// capacity headroom exists a new instance is constructed. When neither holds,
// Acquire returns ErrExhausted without blocking. After Close it returns
// ErrClosed. A factory error is returned as a resource error.
func (p *Pool[T]) Acquire() (*Handle[T], error) {
	if p.isClosed() {
		return nil, ErrClosed
	}

	var it *item[T]
	grow := false

	p.mu.Lock()
	if n := len(p.available); n > 0 {
		it = p.available[n-1]
		p.available[n-1] = nil
		p.available = p.available[:n-1]
		atomic.StoreInt32(&it.state, stateLoaned)
	} else if atomic.LoadInt64(&p.allocated) < int64(p.max) {
		// Reserve the headroom before constructing so concurrent callers
		// cannot overshoot the capacity bound while the factory runs
		// outside the lock.
		atomic.AddInt64(&p.allocated, 1)
		grow = true
	}
	availNow := len(p.available)
	p.mu.Unlock()

	switch {
	case it != nil:
		atomic.AddInt64(&p.reused, 1)
		p.recordAcquire(metrics.OutcomeReused, availNow)
	case grow:
		obj, err := p.factory()
		if err != nil {
			atomic.AddInt64(&p.allocated, -1)
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeResource, "constructing pooled instance").
				WithDetail("pool", p.name)
		}
		it = &item[T]{obj: obj, state: stateLoaned}
		atomic.AddInt64(&p.created, 1)
		p.recordAcquire(metrics.OutcomeCreated, availNow)
		p.logger.Debug("constructed new instance",
			zap.Int64("allocated", atomic.LoadInt64(&p.allocated)))
	default:
		atomic.AddInt64(&p.exhausted, 1)
		p.recordAcquire(metrics.OutcomeExhausted, availNow)
		return nil, ErrExhausted
	}

	atomic.AddInt64(&p.inUse, 1)
	if p.collector != nil {
		p.collector.SetInUse(atomic.LoadInt64(&p.inUse))
	}

	pre, _, td := p.hooks()
	if pre != nil {
		pre(it.obj)
	}

	return &Handle[T]{
		pool:       p,
		it:         it,
		teardown:   td,
		acquiredAt: time.Now(),
	}, nil
}

// AvailableCount returns a snapshot of the available collection size.
func (p *Pool[T]) AvailableCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.available)
}

// Stats returns a snapshot of pool counters.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Name:      p.name,
		Allocated: atomic.LoadInt64(&p.allocated),
		InUse:     atomic.LoadInt64(&p.inUse),
		Available: p.AvailableCount(),
		Deferred:  p.sched.pending(),
		Reused:    atomic.LoadInt64(&p.reused),
		Created:   atomic.LoadInt64(&p.created),
		Exhausted: atomic.LoadInt64(&p.exhausted),
		Discarded: atomic.LoadInt64(&p.discarded),
	}
}

// Clear drains the deferred-return queue and the available collection.
// Deferred entries receive the post-release hook then the teardown hook;
// available instances receive the teardown hook. Instances currently on loan
// are untouched and settle through their own return paths. Hook panics are
// recovered and logged so Clear always completes.
func (p *Pool[T]) Clear() {
	_, post, td := p.hooks()

	// Deferred entries first so none migrates into the available
	// collection mid-drain.
	pending := p.sched.drain()
	for _, it := range pending {
		atomic.StoreInt32(&it.state, stateDestroyed)
		p.invokeHook(post, it.obj, "post_release")
		p.invokeHook(td, it.obj, "teardown")
		atomic.AddInt64(&p.allocated, -1)
		atomic.AddInt64(&p.discarded, 1)
	}

	p.mu.Lock()
	drained := p.available
	p.available = nil
	p.mu.Unlock()

	for _, it := range drained {
		atomic.StoreInt32(&it.state, stateDestroyed)
		p.invokeHook(td, it.obj, "teardown")
		atomic.AddInt64(&p.allocated, -1)
		atomic.AddInt64(&p.discarded, 1)
	}

	if p.collector != nil {
		p.collector.SetAvailable(0)
		p.collector.SetDeferredDepth(0)
	}

	p.logger.Info("pool cleared",
		zap.Int("available_discarded", len(drained)),
		zap.Int("deferred_discarded", len(pending)))
}

// Close marks the pool closed, stops and joins the sweep goroutine, then
// clears remaining state. No acquisition is serviceable once Close begins.
// Instances still on loan settle when their handles are disposed: their
// captured teardown hooks run and the instances are discarded. Close is
// idempotent.
func (p *Pool[T]) Close() {
	p.closeOnce.Do(func() {
		atomic.StoreInt32(&p.closed, 1)
		p.sched.stop()
		p.Clear()
		p.logger.Info("pool closed",
			zap.Int64("still_on_loan", atomic.LoadInt64(&p.inUse)))
	})
}

// SetPreAcquire replaces the pre-acquire hook. Replacement is synchronized
// against concurrent replacement but not against in-flight invocations.
func (p *Pool[T]) SetPreAcquire(h Hook[T]) {
	p.hookMu.Lock()
	p.preAcquire = h
	p.hookMu.Unlock()
}

// SetPostRelease replaces the post-release hook.
func (p *Pool[T]) SetPostRelease(h Hook[T]) {
	p.hookMu.Lock()
	p.postRelease = h
	p.hookMu.Unlock()
}

// SetTeardown replaces the teardown hook. Handles capture the hook in effect
// at acquisition time for the pool-gone disposal path, so replacement does
// not affect loans already outstanding.
func (p *Pool[T]) SetTeardown(h Hook[T]) {
	p.hookMu.Lock()
	p.teardown = h
	p.hookMu.Unlock()
}

// hooks returns a consistent snapshot of the three hooks.
func (p *Pool[T]) hooks() (pre, post, td Hook[T]) {
	p.hookMu.RLock()
	defer p.hookMu.RUnlock()
	return p.preAcquire, p.postRelease, p.teardown
}

func (p *Pool[T]) isClosed() bool {
	return atomic.LoadInt32(&p.closed) == 1
}

// release routes an instance back into the available collection, or tears it
// down when the collection is full or the pool is closed. Only the caller
// that wins the state transition from `from` proceeds; later attempts within
// the same loan cycle are no-ops, which makes returns idempotent across the
// explicit, deferred, and disposal paths.
func (p *Pool[T]) release(it *item[T], from int32) {
	if !atomic.CompareAndSwapInt32(&it.state, from, stateReturning) {
		return
	}
	if from == stateLoaned {
		atomic.AddInt64(&p.inUse, -1)
	}

	_, post, td := p.hooks()
	if post != nil {
		post(it.obj)
	}

	p.mu.Lock()
	if len(p.available) < p.max && !p.isClosed() {
		atomic.StoreInt32(&it.state, stateAvailable)
		p.available = append(p.available, it)
		availNow := len(p.available)
		p.mu.Unlock()

		if p.collector != nil {
			p.collector.SetAvailable(availNow)
			p.collector.SetInUse(atomic.LoadInt64(&p.inUse))
		}
		return
	}
	p.mu.Unlock()

	// Capacity exceeded, or the pool is shutting down: discard.
	atomic.StoreInt32(&it.state, stateDestroyed)
	if td != nil {
		td(it.obj)
	}
	atomic.AddInt64(&p.allocated, -1)
	atomic.AddInt64(&p.discarded, 1)
	if p.collector != nil {
		p.collector.RecordDiscard()
		p.collector.SetInUse(atomic.LoadInt64(&p.inUse))
	}
	p.logger.Debug("discarded instance over capacity",
		zap.Int64("allocated", atomic.LoadInt64(&p.allocated)))
}

// invokeHook runs a hook and recovers a panic, logging it instead of letting
// teardown paths finish half-done with locks or goroutines dangling.
func (p *Pool[T]) invokeHook(h Hook[T], obj T, stage string) {
	if h == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("hook panicked",
				zap.String("stage", stage),
				zap.Any("panic", r))
		}
	}()
	h(obj)
}

func (p *Pool[T]) recordAcquire(outcome string, available int) {
	if p.collector == nil {
		return
	}
	p.collector.RecordAcquire(outcome)
	p.collector.SetAvailable(available)
}
