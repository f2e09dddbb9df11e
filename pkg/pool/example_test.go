// Package pool_test provides example usage of the object pool.
package pool_test

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ajitpratap0/poolkit/pkg/pool"
)

type conn struct {
	id int
}

// Example demonstrates the full lifecycle of a pooled instance: eager
// construction, acquisition through a handle, explicit return, and teardown
// when the pool shuts down.
func Example() {
	next := 0
	p, err := pool.New(pool.Config[*conn]{
		Name:        "conns",
		InitialSize: 1,
		MaxCapacity: 4,
		Factory: func() (*conn, error) {
			next++
			fmt.Printf("constructed conn %d\n", next)
			return &conn{id: next}, nil
		},
		PreAcquire:  func(c *conn) { fmt.Printf("checked out conn %d\n", c.id) },
		PostRelease: func(c *conn) { fmt.Printf("checked in conn %d\n", c.id) },
		Teardown:    func(c *conn) { fmt.Printf("shut down conn %d\n", c.id) },
	}, zap.NewNop())
	if err != nil {
		fmt.Println(err)
		return
	}

	h, err := p.Acquire()
	if err != nil {
		fmt.Println(err)
		return
	}

	// Use the instance, then return it for reuse.
	_ = h.Object()
	h.Release()

	p.Close()

	// Output:
	// constructed conn 1
	// checked out conn 1
	// checked in conn 1
	// shut down conn 1
}

// ExamplePool_Acquire shows exhaustion as a normal, checkable outcome: a
// bounded pool with every instance on loan reports ErrExhausted instead of
// blocking or growing.
func ExamplePool_Acquire() {
	p, err := pool.New(pool.Config[*conn]{
		Name:        "bounded",
		MaxCapacity: 1,
		Factory:     func() (*conn, error) { return &conn{id: 1}, nil },
	}, zap.NewNop())
	if err != nil {
		fmt.Println(err)
		return
	}
	defer p.Close()

	h, _ := p.Acquire()
	defer h.Close()

	if _, err := p.Acquire(); errors.Is(err, pool.ErrExhausted) {
		fmt.Println("pool exhausted, try again later")
	}

	// Output:
	// pool exhausted, try again later
}

// ExampleHandle_Close shows the deferred-disposal pattern: Close settles the
// loan automatically when the surrounding scope exits, unless the handle was
// already returned explicitly.
func ExampleHandle_Close() {
	p, err := pool.New(pool.Config[*conn]{
		Name:        "scoped",
		MaxCapacity: 2,
		Factory:     func() (*conn, error) { return &conn{}, nil },
	}, zap.NewNop())
	if err != nil {
		fmt.Println(err)
		return
	}
	defer p.Close()

	func() {
		h, err := p.Acquire()
		if err != nil {
			return
		}
		defer h.Close() // returns the instance on scope exit

		_ = h.Object()
	}()

	fmt.Printf("available after scope exit: %d\n", p.AvailableCount())

	// Output:
	// available after scope exit: 1
}
