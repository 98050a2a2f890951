package asyncify

import (
	"context"
)

// Future is a host result that becomes available later.
type Future interface {
	Await(ctx context.Context) (uint64, error)
}

// FutureFunc adapts a function to Future.
type FutureFunc func(ctx context.Context) (uint64, error)

func (f FutureFunc) Await(ctx context.Context) (uint64, error) {
	return f(ctx)
}

// Result is what an import handler produces: either a value now or a Future.
type Result struct {
	Future Future
	Value  uint64
}

// Immediate returns a Result carrying v.
func Immediate(v uint64) Result {
	return Result{Value: v}
}

// Deferred returns a Result that resolves when f does.
func Deferred(f Future) Result {
	return Result{Future: f}
}

// IsDeferred reports whether the value must be awaited.
func (r Result) IsDeferred() bool {
	return r.Future != nil
}

// ImportFunc is a host import handler. params holds the raw wasm arguments.
type ImportFunc func(ctx context.Context, params []uint64) (Result, error)

// SyncFunc is an import as seen by the guest: it returns a single value.
type SyncFunc func(ctx context.Context, params []uint64) (uint64, error)

// Function is a callable guest export.
type Function interface {
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

// Blocking adapts fn for guests without the asyncify control exports by
// awaiting deferred results in place.
func Blocking(fn ImportFunc) SyncFunc {
	return func(ctx context.Context, params []uint64) (uint64, error) {
		res, err := fn(ctx, params)
		if err != nil {
			return 0, err
		}
		if !res.IsDeferred() {
			return res.Value, nil
		}
		return res.Future.Await(ctx)
	}
}
