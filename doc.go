// Package wasishim runs WASI preview1 guests on a host-side emulation layer.
//
// The guest sees the classic wasi_snapshot_preview1 import set. Every call is
// served in-process: arguments and environment from configuration, clocks and
// randomness from the Go runtime, and files from an in-memory virtual
// filesystem. Guests compiled with the asyncify transform can additionally
// suspend on host calls that complete later (for example a lazily fetched
// byte range) without the guest noticing.
//
// # Architecture Overview
//
//	wasishim/            Root package with the guest Memory contract
//	├── abi/             Errno vocabulary and little-endian record layouts
//	├── vfs/             In-memory filesystem tree and lazy blobs
//	├── asyncify/        Suspension bridge over the asyncify control exports
//	├── wasi/preview1/   Syscall dispatcher, lifecycle and feature modules
//	├── runtime/         wazero binding: host module, guest instantiation
//	├── config/          YAML run description and filesystem seeding
//	├── errors/          Structured error types for debugging
//	└── cmd/run/         Command line runner with an interactive console
//
// # Quick Start
//
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    return err
//	}
//	defer rt.Close(ctx)
//
//	fsFeature, err := filesystem.New(filesystem.Options{
//	    Preopens: []string{"/sandbox"},
//	    Stdout:   filesystem.WriterSink(os.Stdout),
//	})
//
//	code, err := rt.Run(ctx, wasmBytes, preview1.Options{
//	    Args: []string{"app", "/sandbox/in.txt"},
//	    Features: []preview1.Feature{
//	        cli.Args, cli.Environ, clocks.Clock, random.New(),
//	        fsFeature,
//	    },
//	})
//
// # Thread Safety
//
// A running guest, its filesystem and its descriptor table belong to a single
// goroutine. Runtime serializes instantiations.
package wasishim
