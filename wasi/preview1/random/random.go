// Package random provides random_get backed by crypto/rand.
package random

import (
	"context"
	"crypto/rand"
	"io"

	"github.com/wippyai/wasishim"
	"github.com/wippyai/wasishim/abi"
	"github.com/wippyai/wasishim/wasi/preview1"
)

// New returns the randomness feature using crypto/rand.
func New() preview1.Feature {
	return FromReader(rand.Reader)
}

// FromReader returns the randomness feature filling buffers from r.
func FromReader(r io.Reader) preview1.Feature {
	return func(env *preview1.Env) preview1.Imports {
		return preview1.Imports{
			"random_get": env.Sync(func(_ context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error) {
				buf, err := mem.Read(preview1.U32(params, 0), preview1.U32(params, 1))
				if err != nil {
					return 0, err
				}
				if _, err := io.ReadFull(r, buf); err != nil {
					return abi.ErrnoIo, nil
				}
				return abi.ErrnoSuccess, nil
			}),
		}
	}
}
