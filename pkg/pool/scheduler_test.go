package pool

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/poolkit/pkg/testutil"
)

func TestDeferredReturnTiming(t *testing.T) {
	factory, _ := newCountingFactory()
	var postReleases int64

	p, err := New(Config[*resource]{
		Factory:       factory,
		MaxCapacity:   2,
		SweepInterval: 10 * time.Millisecond,
		PostRelease:   func(*resource) { atomic.AddInt64(&postReleases, 1) },
	}, testutil.TestLogger(t))
	require.NoError(t, err)
	defer p.Close()

	h, err := p.Acquire()
	require.NoError(t, err)
	id := h.Object().id

	h.ReleaseAfter(150 * time.Millisecond)

	// Not reacquirable before the delay elapses.
	require.Equal(t, 0, p.AvailableCount())
	require.Equal(t, 1, p.Stats().Deferred)
	require.EqualValues(t, 0, atomic.LoadInt64(&postReleases))
	testutil.AssertNever(t, func() bool {
		return p.AvailableCount() > 0
	}, 100*time.Millisecond, "instance visible before its delay elapsed")

	// Present within the delay plus a sweep interval (with slack).
	testutil.AssertEventually(t, func() bool {
		return p.AvailableCount() == 1
	}, time.Second, "instance never migrated back")

	assert.EqualValues(t, 1, atomic.LoadInt64(&postReleases))
	assert.Equal(t, 0, p.Stats().Deferred)

	again, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, id, again.Object().id)
	again.Release()
}

func TestDeferredInstanceStillCountsAgainstCapacity(t *testing.T) {
	factory, _ := newCountingFactory()

	p, err := New(Config[*resource]{
		Factory:       factory,
		MaxCapacity:   1,
		SweepInterval: 10 * time.Millisecond,
	}, testutil.TestLogger(t))
	require.NoError(t, err)
	defer p.Close()

	h, err := p.Acquire()
	require.NoError(t, err)
	h.ReleaseAfter(100 * time.Millisecond)

	// The pending instance occupies the only capacity slot.
	_, err = p.Acquire()
	require.ErrorIs(t, err, ErrExhausted)

	testutil.AssertEventually(t, func() bool {
		return p.AvailableCount() == 1
	}, time.Second, "instance never migrated back")

	h2, err := p.Acquire()
	require.NoError(t, err)
	h2.Release()
}

func TestReleaseAfterZeroIsImmediate(t *testing.T) {
	factory, _ := newCountingFactory()

	p, err := New(Config[*resource]{Factory: factory, MaxCapacity: 2}, testutil.TestLogger(t))
	require.NoError(t, err)
	defer p.Close()

	h, err := p.Acquire()
	require.NoError(t, err)
	h.ReleaseAfter(0)

	assert.Equal(t, 1, p.AvailableCount())
	assert.Equal(t, 0, p.Stats().Deferred)
}

func TestCloseDrainsPendingEntries(t *testing.T) {
	factory, _ := newCountingFactory()
	var postReleases, teardowns int64

	p, err := New(Config[*resource]{
		Factory:     factory,
		MaxCapacity: 2,
		PostRelease: func(*resource) { atomic.AddInt64(&postReleases, 1) },
		Teardown:    func(*resource) { atomic.AddInt64(&teardowns, 1) },
	}, testutil.TestLogger(t))
	require.NoError(t, err)

	h, err := p.Acquire()
	require.NoError(t, err)
	h.ReleaseAfter(time.Hour)
	require.Equal(t, 1, p.Stats().Deferred)

	p.Close()

	// The unexpired entry is drained, not dropped.
	assert.EqualValues(t, 1, atomic.LoadInt64(&postReleases))
	assert.EqualValues(t, 1, atomic.LoadInt64(&teardowns))
	assert.EqualValues(t, 0, p.Stats().Allocated)
	assert.Equal(t, 0, p.Stats().Deferred)
}

func TestSweepMigratesExpiredPrefixOnly(t *testing.T) {
	factory, _ := newCountingFactory()

	p, err := New(Config[*resource]{
		Factory:       factory,
		MaxCapacity:   4,
		SweepInterval: time.Hour, // keep the background sweep out of the way
	}, testutil.TestLogger(t))
	require.NoError(t, err)
	defer p.Close()

	h1, err := p.Acquire()
	require.NoError(t, err)
	h2, err := p.Acquire()
	require.NoError(t, err)

	now := time.Now()
	h1.ReleaseAfter(10 * time.Millisecond)
	h2.ReleaseAfter(time.Hour)

	p.sched.sweep(now.Add(time.Second))

	assert.Equal(t, 1, p.AvailableCount())
	assert.Equal(t, 1, p.Stats().Deferred)
}

func TestQueueOrderingUnderConcurrentInsertion(t *testing.T) {
	factory, _ := newCountingFactory()

	p, err := New(Config[*resource]{
		Factory:       factory,
		SweepInterval: time.Hour,
	}, testutil.TestLogger(t))
	require.NoError(t, err)
	defer p.Close()

	base := time.Now()
	offsets := rand.Perm(200)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := g; i < len(offsets); i += 8 {
				it := &item[*resource]{obj: &resource{id: offsets[i]}, state: statePending}
				p.sched.add(it, base.Add(time.Duration(offsets[i])*time.Millisecond))
			}
		}(g)
	}
	wg.Wait()

	require.Equal(t, len(offsets), p.sched.pending())

	// drain pops in expiry order, so the ids come out ascending.
	items := p.sched.drain()
	require.Len(t, items, len(offsets))
	for i := 1; i < len(items); i++ {
		assert.Less(t, items[i-1].obj.id, items[i].obj.id)
	}
}

func TestDeferredAddRefusedAfterStop(t *testing.T) {
	factory, _ := newCountingFactory()
	var postReleases int64

	p, err := New(Config[*resource]{
		Factory:     factory,
		MaxCapacity: 2,
		PostRelease: func(*resource) { atomic.AddInt64(&postReleases, 1) },
	}, testutil.TestLogger(t))
	require.NoError(t, err)

	h, err := p.Acquire()
	require.NoError(t, err)

	// Once the sweep has stopped, the queue refuses new entries.
	p.sched.stop()
	require.False(t, p.sched.add(&item[*resource]{state: statePending}, time.Now()))

	// A deferred return that loses the race against shutdown settles through
	// the storage core instead of sitting in a queue nothing will sweep.
	h.ReleaseAfter(time.Hour)

	assert.Equal(t, 0, p.sched.pending())
	assert.Equal(t, 1, p.AvailableCount())
	assert.EqualValues(t, 1, atomic.LoadInt64(&postReleases))
	assert.EqualValues(t, 0, p.Stats().InUse)
}

func TestReleaseAfterRacingClose(t *testing.T) {
	for i := 0; i < 200; i++ {
		factory, _ := newCountingFactory()
		var teardowns int64

		p, err := New(Config[*resource]{
			Factory:     factory,
			MaxCapacity: 1,
			Teardown:    func(*resource) { atomic.AddInt64(&teardowns, 1) },
		}, testutil.TestLogger(t))
		require.NoError(t, err)

		h, err := p.Acquire()
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.ReleaseAfter(time.Millisecond)
		}()
		go func() {
			defer wg.Done()
			p.Close()
		}()
		wg.Wait()

		// Whichever side wins the interleaving, the loan settles: nothing
		// stays queued and teardown runs exactly once.
		assert.Equal(t, 0, p.sched.pending())
		assert.EqualValues(t, 1, atomic.LoadInt64(&teardowns), "iteration %d", i)
		assert.EqualValues(t, 0, p.Stats().Allocated)
	}
}
