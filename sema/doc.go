// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package sema provides the slot primitive used by the capacity limiters:
a channel-based semaphore, either binary or counting, that can be acquired
from plain goroutines (blocking, with an optional timer channel) or from
context-scoped tasks (cancellation-driven).

In addition to the acquire/release surface, every semaphore reports its
initial capacity, the number of currently available resources, and the
number of parked acquirers.  Waiters are serviced in arrival order.
*/
package sema
