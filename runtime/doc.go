// Package runtime binds the preview1 host to wazero.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	features, err := runtime.Features(nil, filesystem.Options{
//	    Preopens: []string{"/sandbox"},
//	    Stdout:   filesystem.WriterSink(os.Stdout),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	code, err := rt.Run(ctx, wasmBytes, preview1.Options{
//	    Args:     []string{"app"},
//	    Features: features,
//	})
//
// # Host Module
//
// The runtime registers one wasi_snapshot_preview1 host module exporting
// every preview1 function with its exact wasm signature. Each call is routed
// to the import table of the guest that made it, so several guests may be
// instantiated side by side on one Runtime.
//
// # Asyncify
//
// A guest exporting all five asyncify control functions gets a suspension
// bridge: imports returning deferred results unwind the guest and rewind it
// once the value is ready. Guests with none of them have deferred results
// awaited in place. A guest exporting only some of them is rejected.
//
// # Errors
//
// Handler errors trap the guest. proc_exit traps with *preview1.ExitError,
// which Instance.Start turns into the exit code.
package runtime
