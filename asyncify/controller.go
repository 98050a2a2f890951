package asyncify

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasishim/errors"
)

// State is the guest's asyncify state.
type State int32

const (
	StateIdle      State = 0
	StateUnwinding State = 1
	StateRewinding State = 2
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUnwinding:
		return "unwinding"
	case StateRewinding:
		return "rewinding"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Names of the control exports.
const (
	ExportGetState    = "asyncify_get_state"
	ExportStartUnwind = "asyncify_start_unwind"
	ExportStopUnwind  = "asyncify_stop_unwind"
	ExportStartRewind = "asyncify_start_rewind"
	ExportStopRewind  = "asyncify_stop_rewind"
)

// ControlExports lists every export an instrumented guest provides.
var ControlExports = []string{
	ExportGetState,
	ExportStartUnwind,
	ExportStopUnwind,
	ExportStartRewind,
	ExportStopRewind,
}

// MissingControlExports returns the control exports for which has reports
// false.
func MissingControlExports(has func(name string) bool) []string {
	var missing []string
	for _, name := range ControlExports {
		if !has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Controller drives the guest's control exports.
type Controller interface {
	State(ctx context.Context) (State, error)
	StartUnwind(ctx context.Context, dataAddr uint32) error
	StopUnwind(ctx context.Context) error
	StartRewind(ctx context.Context, dataAddr uint32) error
	StopRewind(ctx context.Context) error
}

// ModuleController implements Controller over a wazero module.
type ModuleController struct {
	getState    api.Function
	startUnwind api.Function
	stopUnwind  api.Function
	startRewind api.Function
	stopRewind  api.Function
}

// NewModuleController binds the control exports of mod. All five must be
// present.
func NewModuleController(mod api.Module) (*ModuleController, error) {
	missing := MissingControlExports(func(name string) bool {
		return mod.ExportedFunction(name) != nil
	})
	if len(missing) > 0 {
		return nil, &errors.MissingExportsError{Group: "asyncify", Exports: missing}
	}
	return &ModuleController{
		getState:    mod.ExportedFunction(ExportGetState),
		startUnwind: mod.ExportedFunction(ExportStartUnwind),
		stopUnwind:  mod.ExportedFunction(ExportStopUnwind),
		startRewind: mod.ExportedFunction(ExportStartRewind),
		stopRewind:  mod.ExportedFunction(ExportStopRewind),
	}, nil
}

func (c *ModuleController) State(ctx context.Context) (State, error) {
	results, err := c.getState.Call(ctx)
	if err != nil {
		return 0, fmt.Errorf("asyncify: get state: %w", err)
	}
	if len(results) == 0 {
		return 0, errors.WrongType(errors.PhaseBridge, ExportGetState, "returned no result")
	}
	return State(int32(results[0])), nil
}

func (c *ModuleController) StartUnwind(ctx context.Context, dataAddr uint32) error {
	if _, err := c.startUnwind.Call(ctx, uint64(dataAddr)); err != nil {
		return fmt.Errorf("asyncify: start unwind: %w", err)
	}
	return nil
}

func (c *ModuleController) StopUnwind(ctx context.Context) error {
	if _, err := c.stopUnwind.Call(ctx); err != nil {
		return fmt.Errorf("asyncify: stop unwind: %w", err)
	}
	return nil
}

func (c *ModuleController) StartRewind(ctx context.Context, dataAddr uint32) error {
	if _, err := c.startRewind.Call(ctx, uint64(dataAddr)); err != nil {
		return fmt.Errorf("asyncify: start rewind: %w", err)
	}
	return nil
}

func (c *ModuleController) StopRewind(ctx context.Context) error {
	if _, err := c.stopRewind.Call(ctx); err != nil {
		return fmt.Errorf("asyncify: stop rewind: %w", err)
	}
	return nil
}
