// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/exp/maps"

	"github.com/xmidt-org/caplimit/ident"
	"github.com/xmidt-org/caplimit/sema"
)

var (
	// ErrAlreadyHolding is returned by a non-reentrant acquire when the calling
	// task already holds one of the limiter's tokens.
	ErrAlreadyHolding = errors.New("the current task is already holding one of this capacity limiter's tokens")

	// ErrNotHolding is returned by a release when the calling task holds none
	// of the limiter's tokens.
	ErrNotHolding = errors.New("the current task is not holding any of this capacity limiter's tokens")

	// ErrOverRelease is returned by a reentrant release whose count exceeds the
	// calling task's held count.  The limiter is left untouched.
	ErrOverRelease = errors.New("capacity limiter released too many times")

	// ErrInvalidCount is returned by any reentrant operation given a count less than 1.
	ErrInvalidCount = errors.New("count must be at least 1")
)

// Option is a configurable option for a limiter
type Option func(*core)

// WithLogger establishes a go-kit logger used to record rejected operations
// at debug level.  If a nil logger is supplied, logging is discarded.
func WithLogger(l log.Logger) Option {
	return func(c *core) {
		if l != nil {
			c.logger = l
		} else {
			c.logger = log.NewNopLogger()
		}
	}
}

// WithBorrowedGauge establishes a gauge tracking the number of distinct tasks
// currently holding a slot.  If a nil gauge is supplied, the metric is discarded.
func WithBorrowedGauge(g metrics.Gauge) Option {
	return func(c *core) {
		if g != nil {
			c.borrowedGauge = g
		} else {
			c.borrowedGauge = discard.NewGauge()
		}
	}
}

// newSlot selects the slot primitive backing a limiter.  The binary form is
// used for capacities below 2.  The choice is not observable by callers.
func newSlot(totalTokens int) sema.Interface {
	switch {
	case totalTokens < 0:
		panic("totalTokens must be nonnegative")

	case totalTokens == 1:
		return sema.Mutex()

	default:
		return sema.New(totalTokens)
	}
}

// core holds the state shared by both limiter variants:  the slot primitive
// and the borrower ledger.  Ledger membership exactly mirrors slot occupancy:
// a task identity is present if and only if it occupies exactly one slot,
// regardless of how many logical units it has accumulated.
//
// Only the owning task ever creates, updates, or removes its own ledger
// entry;  the lock serializes mutation of distinct entries by distinct tasks.
type core struct {
	sem  sema.Interface
	lock sync.Mutex

	borrowers map[ident.ID]int

	logger        log.Logger
	borrowedGauge metrics.Gauge
}

func (c *core) init(totalTokens int, options []Option) {
	c.sem = newSlot(totalTokens)
	c.borrowers = make(map[ident.ID]int)
	c.logger = log.NewNopLogger()
	c.borrowedGauge = discard.NewGauge()

	for _, o := range options {
		o(c)
	}
}

func (c *core) reject(op string, task ident.ID, err error) error {
	level.Debug(c.logger).Log("msg", "operation rejected", "op", op, "task", task, "error", err)
	return err
}

// held reports the calling task's ledger entry, if any.
func (c *core) held(task ident.ID) (int, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	count, ok := c.borrowers[task]
	return count, ok
}

// record creates the ledger entry for a task that just acquired a slot.
func (c *core) record(task ident.ID, count int) {
	c.lock.Lock()
	c.borrowers[task] = count
	c.borrowedGauge.Set(float64(len(c.borrowers)))
	c.lock.Unlock()
}

// accumulate adds logical units to an existing entry.  The number of distinct
// borrowers, and thus the gauge, is unchanged.
func (c *core) accumulate(task ident.ID, count int) {
	c.lock.Lock()
	c.borrowers[task] += count
	c.lock.Unlock()
}

// acquireSlot implements the non-reentrant acquire contract for a resolved
// task identity.  The acquire strategy is supplied by the caller, binding the
// blocking mode and scheduling-model entry point of the slot primitive.  The
// ledger is mutated only after the slot primitive confirms success, so a
// canceled or timed-out wait leaves no trace.
func (c *core) acquireSlot(task ident.ID, acquire func(sema.Interface) error) error {
	if _, ok := c.held(task); ok {
		return c.reject("acquire", task, ErrAlreadyHolding)
	}

	if err := acquire(c.sem); err != nil {
		return err
	}

	c.record(task, 1)
	return nil
}

func (c *core) tryAcquireSlot(task ident.ID) (bool, error) {
	if _, ok := c.held(task); ok {
		return false, c.reject("acquire", task, ErrAlreadyHolding)
	}

	if !c.sem.TryAcquire() {
		return false, nil
	}

	c.record(task, 1)
	return true, nil
}

func (c *core) releaseSlot(task ident.ID) error {
	c.lock.Lock()
	if _, ok := c.borrowers[task]; !ok {
		c.lock.Unlock()
		return c.reject("release", task, ErrNotHolding)
	}

	delete(c.borrowers, task)
	c.borrowedGauge.Set(float64(len(c.borrowers)))
	c.lock.Unlock()

	return c.sem.Release()
}

// Borrowed tests whether the calling goroutine currently holds a token.
func (c *core) Borrowed() bool {
	_, ok := c.held(ident.Green())
	return ok
}

// BorrowedCtx tests whether the task identified by ctx currently holds a token.
// A context carrying no task identity holds nothing.
func (c *core) BorrowedCtx(ctx context.Context) bool {
	task, ok := ident.Task(ctx)
	if !ok {
		return false
	}

	_, ok = c.held(task)
	return ok
}

// TotalTokens returns the fixed capacity this limiter was created with.
func (c *core) TotalTokens() int {
	return c.sem.InitialValue()
}

// AvailableTokens returns the number of slots currently free.
func (c *core) AvailableTokens() int {
	return c.sem.Value()
}

// BorrowedTokens returns the number of distinct tasks currently holding a
// slot.  For the reentrant variant this is slot occupancy, not the sum of
// accumulated unit counts.
func (c *core) BorrowedTokens() int {
	return c.sem.InitialValue() - c.sem.Value()
}

// Waiting returns the number of tasks parked in a blocking acquire.
// Non-blocking attempts never count.
func (c *core) Waiting() int {
	return c.sem.Waiting()
}

// InUse reports whether any token is currently borrowed.
func (c *core) InUse() bool {
	return c.sem.InitialValue() > c.sem.Value()
}

// Borrowers returns a snapshot of the ledger:  task identity to held unit
// count.  Mutating the returned map has no effect on the limiter.
func (c *core) Borrowers() map[ident.ID]int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return maps.Clone(c.borrowers)
}

// describe renders the human-readable representation shared by both variants.
func (c *core) describe(kind string, self interface{}) string {
	available := c.sem.Value()
	if available > 0 {
		return fmt.Sprintf("<limiter.%s(%d) at %p [available_tokens=%d]>",
			kind, c.sem.InitialValue(), self, available)
	}

	return fmt.Sprintf("<limiter.%s(%d) at %p [available_tokens=%d, waiting=%d]>",
		kind, c.sem.InitialValue(), self, available, c.sem.Waiting())
}
