package preview1

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/wasishim/abi"
	"github.com/wippyai/wasishim/asyncify"
)

// base holds the handlers every table carries before features apply.
func base() Imports {
	return Imports{
		"proc_exit": func(_ context.Context, params []uint64) (asyncify.Result, error) {
			code := U32(params, 0)
			Logger().Debug("proc_exit", zap.Uint32("code", code))
			return asyncify.Result{}, &ExitError{Code: code}
		},
		"sched_yield": func(context.Context, []uint64) (asyncify.Result, error) {
			return Errno(abi.ErrnoSuccess), nil
		},
	}
}

func unimplemented(name string) Handler {
	return func(context.Context, []uint64) (asyncify.Result, error) {
		Logger().Debug("unimplemented syscall", zap.String("name", name))
		return Errno(abi.ErrnoNosys), nil
	}
}

// BuildImports merges base handlers and features in order and fills every
// remaining preview1 name with an ENOSYS stub.
func BuildImports(env *Env) Imports {
	imports := base()
	for _, feature := range env.Options.Features {
		for name, h := range feature(env) {
			imports[name] = h
		}
	}
	for _, name := range abi.ImportNames {
		if _, ok := imports[name]; !ok {
			imports[name] = unimplemented(name)
		}
	}
	return imports
}
