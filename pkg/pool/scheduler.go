package pool

import (
	"container/heap"
	"sync"
	"time"
)

// deferredReturn is one queued "return no earlier than expiry" entry.
type deferredReturn[T any] struct {
	it     *item[T]
	expiry time.Time
}

// returnQueue is a min-heap of deferred returns ordered by expiry ascending,
// so the expired entries always form a prefix.
type returnQueue[T any] []*deferredReturn[T]

func (q returnQueue[T]) Len() int { return len(q) }

func (q returnQueue[T]) Less(i, j int) bool { return q[i].expiry.Before(q[j].expiry) }

func (q returnQueue[T]) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *returnQueue[T]) Push(x any) {
	*q = append(*q, x.(*deferredReturn[T]))
}

func (q *returnQueue[T]) Pop() any {
	old := *q
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return entry
}

// scheduler owns the deferred-return queue and the background sweep. The
// queue has its own lock, independent of the storage lock, so the sweep
// never blocks callers performing immediate returns and vice versa.
type scheduler[T any] struct {
	pool     *Pool[T]
	interval time.Duration

	mu     sync.Mutex
	queue  returnQueue[T]
	closed bool

	stopCh chan struct{}
	doneCh chan struct{}
}

func newScheduler[T any](p *Pool[T], interval time.Duration) *scheduler[T] {
	return &scheduler[T]{
		pool:     p,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// start launches the sweep goroutine. Called once, by New.
func (s *scheduler[T]) start() {
	go s.sweepLoop()
}

// stop refuses further adds, then signals the sweep goroutine and waits for
// it to exit. Called once, by Pool.Close, before the remaining queue is
// drained. Marking the queue closed first means no entry can slip in between
// the join and the drain: an add that lost the race is refused and its caller
// settles the instance itself.
func (s *scheduler[T]) stop() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh
}

func (s *scheduler[T]) sweepLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			s.sweep(now)
		case <-s.stopCh:
			return
		}
	}
}

// sweep pops the expired prefix under the queue lock, releases the lock,
// then routes each popped instance through the storage core so the
// post-release hook runs exactly once per entry, outside any lock.
func (s *scheduler[T]) sweep(now time.Time) {
	var expired []*item[T]

	s.mu.Lock()
	for len(s.queue) > 0 && !s.queue[0].expiry.After(now) {
		entry := heap.Pop(&s.queue).(*deferredReturn[T])
		expired = append(expired, entry.it)
	}
	depth := len(s.queue)
	s.mu.Unlock()

	if len(expired) == 0 {
		return
	}

	for _, it := range expired {
		s.pool.release(it, statePending)
	}
	if s.pool.collector != nil {
		s.pool.collector.SetDeferredDepth(depth)
	}
}

// add queues an instance for return once expiry has passed. It reports
// whether the entry was accepted; after stop the queue takes nothing more
// and the caller must settle the instance through the storage core instead.
func (s *scheduler[T]) add(it *item[T], expiry time.Time) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	heap.Push(&s.queue, &deferredReturn[T]{it: it, expiry: expiry})
	depth := len(s.queue)
	s.mu.Unlock()

	if s.pool.collector != nil {
		s.pool.collector.SetDeferredDepth(depth)
	}
	return true
}

// drain removes every queued entry, expired or not, in expiry order and
// returns the instances. Used by Clear and Close so a shutdown never leaks a
// queued instance.
func (s *scheduler[T]) drain() []*item[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]*item[T], 0, len(s.queue))
	for len(s.queue) > 0 {
		entry := heap.Pop(&s.queue).(*deferredReturn[T])
		items = append(items, entry.it)
	}
	return items
}

// pending returns the current queue depth.
func (s *scheduler[T]) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
