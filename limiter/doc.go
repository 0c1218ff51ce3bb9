// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package limiter provides capacity limiters:  synchronization primitives that
bound how many logical tasks may concurrently hold a resource slot.

A CapacityLimiter allows each task at most one slot.  An RCapacityLimiter is
its reentrant variant:  a task that already holds a slot may accumulate
additional logical units without consuming further slots.

Every limiter exposes two symmetric operation families with identical
semantics.  The plain methods (Acquire, AcquireWait, TryAcquire, Release,
Borrowed) serve ordinary goroutines and resolve the caller's identity from
the goroutine itself.  The Ctx methods (AcquireCtx, TryAcquireCtx,
ReleaseCtx, BorrowedCtx) serve context-scoped tasks, resolve identity from
the context, and use cancellation instead of timer channels.  A single
limiter may be shared by tasks of both kinds;  waiters of either kind are
woken in arrival order regardless of which kind released.
*/
package limiter
