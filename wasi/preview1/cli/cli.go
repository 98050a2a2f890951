package cli

import (
	"context"
	"sort"

	"github.com/wippyai/wasishim"
	"github.com/wippyai/wasishim/abi"
	"github.com/wippyai/wasishim/wasi/preview1"
)

// Args serves args_get and args_sizes_get from Options.Args.
func Args(env *preview1.Env) preview1.Imports {
	return stringList(env, "args", env.Options.Args)
}

// Environ serves environ_get and environ_sizes_get from Options.Env.
func Environ(env *preview1.Env) preview1.Imports {
	return stringList(env, "environ", Environment(env.Options.Env))
}

// Environment renders vars as sorted "KEY=value" entries.
func Environment(vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+vars[k])
	}
	return out
}

func stringList(env *preview1.Env, prefix string, values []string) preview1.Imports {
	codec := env.Codec
	return preview1.Imports{
		prefix + "_get": env.Sync(func(_ context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error) {
			ptrs, buf := preview1.U32(params, 0), preview1.U32(params, 1)
			if err := codec.WriteStrings(mem, ptrs, buf, values); err != nil {
				return 0, err
			}
			return abi.ErrnoSuccess, nil
		}),
		prefix + "_sizes_get": env.Sync(func(_ context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error) {
			count, size := preview1.U32(params, 0), preview1.U32(params, 1)
			if err := codec.WriteSizes(mem, count, size, values); err != nil {
				return 0, err
			}
			return abi.ErrnoSuccess, nil
		}),
	}
}
