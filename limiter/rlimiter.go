// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package limiter

import (
	"context"
	"time"

	"github.com/xmidt-org/caplimit/checkpoint"
	"github.com/xmidt-org/caplimit/ident"
	"github.com/xmidt-org/caplimit/sema"
)

// RCapacityLimiter is the reentrant variant of CapacityLimiter.  A task that
// already holds a slot may accumulate additional logical units without
// consuming further slots;  the slot is freed when the task's accumulated
// count returns to zero.  Every count argument must be at least 1.
//
// Instances must be created via NewReentrant or BinaryReentrant.
type RCapacityLimiter struct {
	core
}

// NewReentrant constructs an RCapacityLimiter with the given fixed capacity.
// A negative capacity results in a panic.
func NewReentrant(totalTokens int, o ...Option) *RCapacityLimiter {
	l := new(RCapacityLimiter)
	l.core.init(totalTokens, o)
	return l
}

// BinaryReentrant is just syntactic sugar for NewReentrant(1).
func BinaryReentrant(o ...Option) *RCapacityLimiter {
	return NewReentrant(1, o...)
}

// acquireUnits implements the reentrant acquire contract.  A task already in
// the ledger never contacts the slot primitive:  blocking forms run the
// family's checkpoint first, so a tight reentrant loop cannot starve other
// tasks of scheduling turns, then accumulate count units.  A failed
// checkpoint aborts with nothing recorded.  Tasks not in the ledger delegate
// to the slot primitive and record count as the initial held value.
func (c *core) acquireUnits(task ident.ID, count int, yield func() error, acquire func(sema.Interface) error) error {
	if count < 1 {
		return c.reject("acquire", task, ErrInvalidCount)
	}

	if _, ok := c.held(task); ok {
		if yield != nil {
			if err := yield(); err != nil {
				return err
			}
		}

		c.accumulate(task, count)
		return nil
	}

	if err := acquire(c.sem); err != nil {
		return err
	}

	c.record(task, count)
	return nil
}

func (c *core) tryAcquireUnits(task ident.ID, count int) (bool, error) {
	if count < 1 {
		return false, c.reject("acquire", task, ErrInvalidCount)
	}

	// the non-blocking fast path skips the checkpoint
	if _, ok := c.held(task); ok {
		c.accumulate(task, count)
		return true, nil
	}

	if !c.sem.TryAcquire() {
		return false, nil
	}

	c.record(task, count)
	return true, nil
}

func (c *core) releaseUnits(task ident.ID, count int) error {
	if count < 1 {
		return c.reject("release", task, ErrInvalidCount)
	}

	c.lock.Lock()
	current, ok := c.borrowers[task]
	if !ok {
		c.lock.Unlock()
		return c.reject("release", task, ErrNotHolding)
	}

	switch {
	case current > count:
		c.borrowers[task] = current - count
		c.lock.Unlock()
		return nil

	case current == count:
		delete(c.borrowers, task)
		c.borrowedGauge.Set(float64(len(c.borrowers)))
		c.lock.Unlock()
		return c.sem.Release()

	default:
		c.lock.Unlock()
		return c.reject("release", task, ErrOverRelease)
	}
}

// count reports the task's accumulated units, or 0 when it holds nothing.
func (c *core) count(task ident.ID) int {
	current, _ := c.held(task)
	return current
}

func greenYield() error {
	checkpoint.Green()
	return nil
}

// Acquire acquires count logical units for the calling goroutine.  If the
// goroutine already holds units, the additional count is accumulated without
// consuming another slot;  otherwise this blocks until a slot is available.
func (l *RCapacityLimiter) Acquire(count int) error {
	return l.acquireUnits(ident.Green(), count, greenYield, sema.Interface.Acquire)
}

// AcquireWait is Acquire with a timer channel bounding the wait for the
// initial slot.  The reentrant fast path never waits on the slot primitive
// and so cannot time out.
func (l *RCapacityLimiter) AcquireWait(count int, t <-chan time.Time) error {
	return l.acquireUnits(ident.Green(), count, greenYield, func(s sema.Interface) error {
		return s.AcquireWait(t)
	})
}

// TryAcquire attempts to acquire count units for the calling goroutine
// without blocking or yielding.
func (l *RCapacityLimiter) TryAcquire(count int) (bool, error) {
	return l.tryAcquireUnits(ident.Green(), count)
}

// Release returns count units held by the calling goroutine.  The slot is
// freed only when the held count reaches exactly zero;  releasing more units
// than held fails with ErrOverRelease and changes nothing.
func (l *RCapacityLimiter) Release(count int) error {
	return l.releaseUnits(ident.Green(), count)
}

// Count returns the number of units currently held by the calling goroutine.
func (l *RCapacityLimiter) Count() int {
	return l.count(ident.Green())
}

// With acquires count units, invokes f, and releases the same count on every
// exit path, including a panic in f.
func (l *RCapacityLimiter) With(count int, f func()) error {
	if err := l.Acquire(count); err != nil {
		return err
	}

	defer l.Release(count)
	f()
	return nil
}

// AcquireCtx acquires count logical units for the task identified by ctx.
// On the reentrant fast path the checkpoint observes pending cancellation:
// a canceled ctx returns ctx.Err() with nothing accumulated.
func (l *RCapacityLimiter) AcquireCtx(ctx context.Context, count int) error {
	task, ok := ident.Task(ctx)
	if !ok {
		return ident.ErrNoTask
	}

	return l.acquireUnits(task, count,
		func() error { return checkpoint.Async(ctx) },
		func(s sema.Interface) error { return s.AcquireCtx(ctx) },
	)
}

// TryAcquireCtx attempts to acquire count units for the task identified by
// ctx without blocking or yielding.
func (l *RCapacityLimiter) TryAcquireCtx(ctx context.Context, count int) (bool, error) {
	task, ok := ident.Task(ctx)
	if !ok {
		return false, ident.ErrNoTask
	}

	return l.tryAcquireUnits(task, count)
}

// ReleaseCtx returns count units held by the task identified by ctx.
func (l *RCapacityLimiter) ReleaseCtx(ctx context.Context, count int) error {
	task, ok := ident.Task(ctx)
	if !ok {
		return ident.ErrNoTask
	}

	return l.releaseUnits(task, count)
}

// CountCtx returns the number of units currently held by the task identified
// by ctx, or 0 for a context carrying no task identity.
func (l *RCapacityLimiter) CountCtx(ctx context.Context) int {
	task, ok := ident.Task(ctx)
	if !ok {
		return 0
	}

	return l.count(task)
}

// WithCtx acquires count units for the task identified by ctx, invokes f with
// that context, and releases the same count on every exit path.  If ctx
// carries no task identity, a fresh one is minted for the duration of f.
func (l *RCapacityLimiter) WithCtx(ctx context.Context, count int, f func(context.Context)) error {
	ctx = ident.WithTask(ctx)
	if err := l.AcquireCtx(ctx, count); err != nil {
		return err
	}

	defer l.ReleaseCtx(ctx, count)
	f(ctx)
	return nil
}

func (l *RCapacityLimiter) String() string {
	return l.describe("RCapacityLimiter", l)
}
