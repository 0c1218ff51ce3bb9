// Package checkpoint provides the cooperative yield points used by the
// limiter package on reentrant fast paths.  A checkpoint may reorder
// ready-to-run goroutines but never blocks the caller indefinitely and has
// no effect on limiter state.
package checkpoint

import (
	"context"
	"runtime"
)

// Green yields the processor, allowing other goroutines to run.
func Green() {
	runtime.Gosched()
}

// Async honors any pending cancellation on ctx, then yields the processor.
// A non-nil return means ctx was already canceled and the caller must not
// proceed.
func Async(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	runtime.Gosched()
	return nil
}
