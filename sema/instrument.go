// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package sema

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics/discard"
)

// Adder is the metrics sink required to instrument a semaphore.  Both go-kit
// counters and gauges satisfy this interface.
type Adder interface {
	Add(delta float64)
}

// InstrumentOption represents a configurable option for instrumenting a semaphore
type InstrumentOption func(*instrumentedSemaphore)

// WithResources establishes a metric that tracks the resource count of the semaphore.
// If a nil adder is supplied, resource counts are discarded.
func WithResources(a Adder) InstrumentOption {
	return func(i *instrumentedSemaphore) {
		if a != nil {
			i.resources = a
		} else {
			i.resources = discard.NewCounter()
		}
	}
}

// WithFailures establishes a metric that tracks how many failed resource acquisitions
// happen, whether through timeouts, cancellations, or unavailable resources.  If a nil
// adder is supplied, failure counts are discarded.
func WithFailures(a Adder) InstrumentOption {
	return func(i *instrumentedSemaphore) {
		if a != nil {
			i.failures = a
		} else {
			i.failures = discard.NewCounter()
		}
	}
}

// Instrument decorates an existing semaphore with a set of options.
// A nil semaphore results in a panic.
func Instrument(s Interface, o ...InstrumentOption) Interface {
	if s == nil {
		panic("A delegate semaphore is required")
	}

	is := &instrumentedSemaphore{
		Interface: s,
		resources: discard.NewCounter(),
		failures:  discard.NewCounter(),
	}

	for _, f := range o {
		f(is)
	}

	return is
}

type instrumentedSemaphore struct {
	Interface
	resources Adder
	failures  Adder
}

func (is *instrumentedSemaphore) Acquire() (err error) {
	err = is.Interface.Acquire()
	if err != nil {
		is.failures.Add(1.0)
	} else {
		is.resources.Add(1.0)
	}

	return
}

func (is *instrumentedSemaphore) AcquireWait(t <-chan time.Time) (err error) {
	err = is.Interface.AcquireWait(t)
	if err != nil {
		is.failures.Add(1.0)
	} else {
		is.resources.Add(1.0)
	}

	return
}

func (is *instrumentedSemaphore) AcquireCtx(ctx context.Context) (err error) {
	err = is.Interface.AcquireCtx(ctx)
	if err != nil {
		is.failures.Add(1.0)
	} else {
		is.resources.Add(1.0)
	}

	return
}

func (is *instrumentedSemaphore) TryAcquire() (acquired bool) {
	acquired = is.Interface.TryAcquire()
	if acquired {
		is.resources.Add(1.0)
	} else {
		is.failures.Add(1.0)
	}

	return
}

func (is *instrumentedSemaphore) Release() (err error) {
	err = is.Interface.Release()
	if err == nil {
		is.resources.Add(-1.0)
	}

	return
}
