/*
Package ident resolves the identity of the calling logical task.

Two kinds of task are supported, matching the two operation families of the
limiter package: plain goroutines, whose identity is derived from the calling
goroutine and is stable for its lifetime, and context-scoped tasks, whose
identity travels with a context.Context.

This package follows the general pattern in use for context values:  a getter
with the signature Task(ctx) (ID, bool) and a setter with the signature
SetTask(ctx, ID) context.Context.
*/
package ident

import (
	"bytes"
	"context"
	"errors"
	"runtime"

	"github.com/segmentio/ksuid"
)

// ID is an opaque identifier for a logical task.  IDs are comparable and
// safe for use as map keys.  An ID is unique among live tasks and stable
// for the lifetime of the task it denotes.
type ID string

type contextKey int

const taskKey contextKey = iota

var (
	// ErrNoTask indicates a context that carries no task identity.
	ErrNoTask = errors.New("no task identity found in context")

	greenPrefix = []byte("goroutine ")
)

func init() {
	ksuid.SetRand(ksuid.FastRander)
}

// Green returns the identity of the calling goroutine.  The returned ID is
// unique among live goroutines and stable until the calling goroutine exits.
func Green() ID {
	// The first stack record line is of the form "goroutine 123 [running]:".
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)

	header := bytes.TrimPrefix(buf[:n], greenPrefix)
	if i := bytes.IndexByte(header, ' '); i > 0 {
		header = header[:i]
	}

	return ID("goroutine-" + string(header))
}

// WithTask returns a context carrying a freshly minted task identity.  If ctx
// already carries an identity, ctx is returned unchanged.
func WithTask(ctx context.Context) context.Context {
	if _, ok := Task(ctx); ok {
		return ctx
	}

	return SetTask(ctx, ID("task-"+ksuid.New().String()))
}

// SetTask sets the task identity in the enclosing context
func SetTask(ctx context.Context, value ID) context.Context {
	return context.WithValue(ctx, taskKey, value)
}

// Task retrieves the task identity from the enclosing context
func Task(ctx context.Context) (ID, bool) {
	value, ok := ctx.Value(taskKey).(ID)
	return value, ok
}

// MustTask retrieves the task identity from the context, panicking
// if no such identity is found.
func MustTask(ctx context.Context) ID {
	value, ok := Task(ctx)
	if !ok {
		panic(ErrNoTask)
	}

	return value
}
