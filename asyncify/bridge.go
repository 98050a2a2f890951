package asyncify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/wasishim"
	"github.com/wippyai/wasishim/errors"
)

// Default data region placement. The region is a fixed contract with the
// guest's asyncify build and must not overlap guest data.
const (
	DefaultDataAddr uint32 = 16
	DefaultStackEnd uint32 = 8 * 1024 * 1024
)

// Layout places the asyncify data region in guest memory.
type Layout struct {
	DataAddr uint32
	StackEnd uint32
}

// DefaultLayout returns the standard data region placement.
func DefaultLayout() Layout {
	return Layout{DataAddr: DefaultDataAddr, StackEnd: DefaultStackEnd}
}

// StackStart is where saved frames begin.
func (l Layout) StackStart() uint32 {
	return l.DataAddr + 8
}

// Bridge runs the suspend/resume protocol for one guest instance. It holds a
// single carried value and at most one pending future.
type Bridge struct {
	ctrl    Controller
	mem     wasishim.Memory
	pending Future
	layout  Layout
	value   uint64
	active  bool
}

// NewBridge returns an unbound bridge. Bind it once the guest is
// instantiated.
func NewBridge(layout Layout) *Bridge {
	return &Bridge{layout: layout}
}

// Bind attaches the guest's control exports and memory and writes the data
// region header.
func (b *Bridge) Bind(ctrl Controller, mem wasishim.Memory) error {
	if mem == nil {
		return errors.NotInitialized(errors.PhaseBridge, "guest memory")
	}
	if b.layout.StackEnd <= b.layout.StackStart() {
		return errors.InvalidInput(errors.PhaseBridge, "stack end must lie past the data region header")
	}
	b.ctrl = ctrl
	b.mem = mem
	if err := b.mem.WriteU32(b.layout.DataAddr+4, b.layout.StackEnd); err != nil {
		return errors.Wrap(errors.PhaseBridge, errors.KindOutOfBounds, err, "write stack end")
	}
	return b.resetStack()
}

// Layout returns the data region placement.
func (b *Bridge) Layout() Layout {
	return b.layout
}

func (b *Bridge) resetStack() error {
	if err := b.mem.WriteU32(b.layout.DataAddr, b.layout.StackStart()); err != nil {
		return errors.Wrap(errors.PhaseBridge, errors.KindOutOfBounds, err, "write stack pointer")
	}
	return nil
}

func (b *Bridge) state(ctx context.Context) (State, error) {
	if b.ctrl == nil {
		return 0, errors.NotInitialized(errors.PhaseBridge, "asyncify bridge")
	}
	return b.ctrl.State(ctx)
}

func (b *Bridge) expect(ctx context.Context, op string, want State) error {
	st, err := b.state(ctx)
	if err != nil {
		return err
	}
	if st != want {
		return errors.IllegalState(op, want, st)
	}
	return nil
}

// WrapImport returns the guest-facing form of fn. While the guest rewinds it
// returns the carried value without calling fn. A deferred result from fn
// becomes the pending future and starts an unwind.
func (b *Bridge) WrapImport(fn ImportFunc) SyncFunc {
	return func(ctx context.Context, params []uint64) (uint64, error) {
		st, err := b.state(ctx)
		if err != nil {
			return 0, err
		}

		if st == StateRewinding {
			if err := b.ctrl.StopRewind(ctx); err != nil {
				return 0, err
			}
			v := b.value
			b.value = 0
			Logger().Debug("resumed import", zap.Uint64("value", v))
			return v, nil
		}
		if st != StateIdle {
			return 0, errors.IllegalState("import", StateIdle, st)
		}

		res, err := fn(ctx, params)
		if err != nil {
			return 0, err
		}
		if !res.IsDeferred() {
			return res.Value, nil
		}

		if !b.active {
			return 0, errors.New(errors.PhaseBridge, errors.KindIllegalState).
				Detail("deferred result outside a wrapped export call").
				Build()
		}
		if b.pending != nil {
			return 0, errors.New(errors.PhaseBridge, errors.KindIllegalState).
				Detail("suspension already pending").
				Build()
		}
		b.pending = res.Future
		Logger().Debug("suspending import")
		if err := b.ctrl.StartUnwind(ctx, b.layout.DataAddr); err != nil {
			b.pending = nil
			return 0, err
		}
		return 0, nil
	}
}

// WrapExport returns fn wrapped in the resume loop. The wrapped function
// rejects re-entrant calls while a cycle is in progress.
func (b *Bridge) WrapExport(fn Function) Function {
	return &export{bridge: b, fn: fn}
}

type export struct {
	bridge *Bridge
	fn     Function
}

func (e *export) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	b := e.bridge
	if b.active {
		return nil, errors.New(errors.PhaseBridge, errors.KindIllegalState).
			Detail("export called while another export is in progress").
			Build()
	}
	b.active = true
	defer func() {
		b.active = false
		b.pending = nil
		b.value = 0
	}()

	if err := b.expect(ctx, "call export", StateIdle); err != nil {
		return nil, err
	}
	if err := b.resetStack(); err != nil {
		return nil, err
	}

	results, err := e.fn.Call(ctx, params...)
	for {
		if err != nil {
			return nil, err
		}
		st, serr := b.state(ctx)
		if serr != nil {
			return nil, serr
		}
		if st != StateUnwinding {
			break
		}

		if err := b.ctrl.StopUnwind(ctx); err != nil {
			return nil, err
		}
		fut := b.pending
		b.pending = nil
		if fut == nil {
			return nil, errors.New(errors.PhaseBridge, errors.KindIllegalState).
				Detail("guest unwound without a pending result").
				Build()
		}

		v, aerr := fut.Await(ctx)
		if aerr != nil {
			return nil, fmt.Errorf("asyncify: await suspended import: %w", aerr)
		}
		b.value = v

		if err := b.expect(ctx, "resume", StateIdle); err != nil {
			return nil, err
		}
		if err := b.ctrl.StartRewind(ctx, b.layout.DataAddr); err != nil {
			return nil, err
		}
		// the guest ignores arguments while rewinding, but wasm arity still holds
		results, err = e.fn.Call(ctx, make([]uint64, len(params))...)
	}

	if err := b.expect(ctx, "return from export", StateIdle); err != nil {
		return nil, err
	}
	return results, nil
}
