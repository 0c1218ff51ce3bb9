// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package limiter

import (
	"context"
	"time"

	"github.com/xmidt-org/caplimit/ident"
	"github.com/xmidt-org/caplimit/sema"
)

// CapacityLimiter bounds the number of distinct tasks concurrently holding a
// resource slot.  Each task may hold at most one token:  a second acquire by
// the same task fails with ErrAlreadyHolding, and a release by a task that
// holds nothing fails with ErrNotHolding.
//
// Instances must be created via New or Binary.
type CapacityLimiter struct {
	core
}

// New constructs a CapacityLimiter with the given fixed capacity.  A negative
// capacity results in a panic.  A capacity of 0 yields a limiter whose tokens
// can never be acquired.
func New(totalTokens int, o ...Option) *CapacityLimiter {
	l := new(CapacityLimiter)
	l.core.init(totalTokens, o)
	return l
}

// Binary is just syntactic sugar for New(1).  The returned limiter admits a
// single holder at a time.
func Binary(o ...Option) *CapacityLimiter {
	return New(1, o...)
}

// Acquire acquires a token for the calling goroutine, blocking until one is
// available.
func (l *CapacityLimiter) Acquire() error {
	return l.acquireSlot(ident.Green(), sema.Interface.Acquire)
}

// AcquireWait acquires a token for the calling goroutine, giving up with
// sema.ErrTimeout if the given time channel becomes signaled first.  A timeout
// leaves the limiter untouched and is a normal outcome, not misuse.
func (l *CapacityLimiter) AcquireWait(t <-chan time.Time) error {
	return l.acquireSlot(ident.Green(), func(s sema.Interface) error {
		return s.AcquireWait(t)
	})
}

// TryAcquire attempts to acquire a token for the calling goroutine without
// blocking.  It returns (false, nil) when no token is free;  the caller is
// never registered as a waiter.
func (l *CapacityLimiter) TryAcquire() (bool, error) {
	return l.tryAcquireSlot(ident.Green())
}

// Release returns the calling goroutine's token to the limiter.
func (l *CapacityLimiter) Release() error {
	return l.releaseSlot(ident.Green())
}

// With acquires a token, invokes f, and releases the token on every exit
// path, including a panic in f.
func (l *CapacityLimiter) With(f func()) error {
	if err := l.Acquire(); err != nil {
		return err
	}

	defer l.Release()
	f()
	return nil
}

// AcquireCtx acquires a token for the task identified by ctx, blocking until
// one is available or ctx is canceled.  Cancellation returns ctx.Err() and
// leaves the limiter untouched.  A context carrying no task identity is
// rejected with ident.ErrNoTask.
func (l *CapacityLimiter) AcquireCtx(ctx context.Context) error {
	task, ok := ident.Task(ctx)
	if !ok {
		return ident.ErrNoTask
	}

	return l.acquireSlot(task, func(s sema.Interface) error {
		return s.AcquireCtx(ctx)
	})
}

// TryAcquireCtx attempts to acquire a token for the task identified by ctx
// without blocking.
func (l *CapacityLimiter) TryAcquireCtx(ctx context.Context) (bool, error) {
	task, ok := ident.Task(ctx)
	if !ok {
		return false, ident.ErrNoTask
	}

	return l.tryAcquireSlot(task)
}

// ReleaseCtx returns the token held by the task identified by ctx.
func (l *CapacityLimiter) ReleaseCtx(ctx context.Context) error {
	task, ok := ident.Task(ctx)
	if !ok {
		return ident.ErrNoTask
	}

	return l.releaseSlot(task)
}

// WithCtx acquires a token for the task identified by ctx, invokes f with
// that context, and releases the token on every exit path.  If ctx carries
// no task identity, a fresh one is minted for the duration of f.
func (l *CapacityLimiter) WithCtx(ctx context.Context, f func(context.Context)) error {
	ctx = ident.WithTask(ctx)
	if err := l.AcquireCtx(ctx); err != nil {
		return err
	}

	defer l.ReleaseCtx(ctx)
	f(ctx)
	return nil
}

func (l *CapacityLimiter) String() string {
	return l.describe("CapacityLimiter", l)
}
