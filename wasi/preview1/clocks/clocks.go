// Package clocks provides clock_res_get and clock_time_get.
package clocks

import (
	"context"
	"time"

	"github.com/wippyai/wasishim"
	"github.com/wippyai/wasishim/abi"
	"github.com/wippyai/wasishim/wasi/preview1"
)

// Nominal resolutions in nanoseconds. Monotonic is the finer one.
const (
	RealtimeResolution  uint64 = 1000
	MonotonicResolution uint64 = 1
)

// Clock reports wall time since the Unix epoch and monotonic time since the
// feature was built.
func Clock(env *preview1.Env) preview1.Imports {
	return New(time.Now)(env)
}

// New returns a clock feature reading time from now.
func New(now func() time.Time) preview1.Feature {
	return func(env *preview1.Env) preview1.Imports {
		start := now()
		read := func(id uint32) (uint64, bool) {
			switch id {
			case abi.ClockRealtime:
				return uint64(now().UnixNano()), true
			case abi.ClockMonotonic:
				return uint64(now().Sub(start).Nanoseconds()), true
			default:
				return 0, false
			}
		}

		return preview1.Imports{
			"clock_res_get": env.Sync(func(_ context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error) {
				var res uint64
				switch preview1.U32(params, 0) {
				case abi.ClockRealtime:
					res = RealtimeResolution
				case abi.ClockMonotonic:
					res = MonotonicResolution
				default:
					return abi.ErrnoNosys, nil
				}
				return abi.ErrnoSuccess, mem.WriteU64(preview1.U32(params, 1), res)
			}),
			"clock_time_get": env.Sync(func(_ context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error) {
				ts, ok := read(preview1.U32(params, 0))
				if !ok {
					return abi.ErrnoNosys, nil
				}
				return abi.ErrnoSuccess, mem.WriteU64(preview1.U32(params, 2), ts)
			}),
		}
	}
}
