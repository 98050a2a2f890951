// Package wasmtest holds hand-encoded guest modules and a real wazero memory
// for tests.
package wasmtest

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

const (
	i32 = 0x7f

	kindFunc   = 0x00
	kindMemory = 0x02
)

// MemoryWASM is a minimal WASM module with 1 page of memory exported as "memory".
var MemoryWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 page, no max
	0x07, 0x0a, 0x01, // export section: 10 bytes, 1 export
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, // name: "memory"
	0x02, 0x00, // kind: memory, index 0
}

// ExitWASM exports memory and a _start that calls proc_exit(7).
var ExitWASM = module(
	section(1, vec(
		functype([]byte{i32}, nil),
		functype(nil, nil),
	)),
	section(2, vec(importFunc("proc_exit", 0))),
	section(3, vec([]byte{1})),
	memorySection(),
	section(7, vec(export("memory", kindMemory, 0), export("_start", kindFunc, 1))),
	section(10, vec(body(
		0x41, 0x07, // i32.const 7
		0x10, 0x00, // call proc_exit
	))),
)

// HelloWASM exports memory and a _start that writes "hi" to stdout with
// fd_write(1, iovs=0, iovs_len=1, nwritten=16) and returns normally.
var HelloWASM = module(
	section(1, vec(
		functype([]byte{i32, i32, i32, i32}, []byte{i32}),
		functype(nil, nil),
	)),
	section(2, vec(importFunc("fd_write", 0))),
	section(3, vec([]byte{1})),
	memorySection(),
	section(7, vec(export("memory", kindMemory, 0), export("_start", kindFunc, 1))),
	section(10, vec(body(
		0x41, 0x01, // fd
		0x41, 0x00, // iovs
		0x41, 0x01, // iovs_len
		0x41, 0x10, // nwritten
		0x10, 0x00, // call fd_write
		0x1a, // drop
	))),
	section(11, vec(
		data(0, []byte{0x08, 0, 0, 0, 0x02, 0, 0, 0}),
		data(8, []byte("hi")),
	)),
)

// ReactorWASM exports memory and an empty _initialize.
var ReactorWASM = module(
	section(1, vec(functype(nil, nil))),
	section(3, vec([]byte{0})),
	memorySection(),
	section(7, vec(export("memory", kindMemory, 0), export("_initialize", kindFunc, 0))),
	section(10, vec(body())),
)

// NoMemoryWASM exports only an empty _start.
var NoMemoryWASM = module(
	section(1, vec(functype(nil, nil))),
	section(3, vec([]byte{0})),
	section(7, vec(export("_start", kindFunc, 0))),
	section(10, vec(body())),
)

// BadStartWASM exports memory and a _start taking one i32.
var BadStartWASM = module(
	section(1, vec(functype([]byte{i32}, nil))),
	section(3, vec([]byte{0})),
	memorySection(),
	section(7, vec(export("memory", kindMemory, 0), export("_start", kindFunc, 0))),
	section(10, vec(body())),
)

// AsyncifyStubWASM exports memory and the five asyncify control functions as
// no-ops; asyncify_get_state always reports 0.
var AsyncifyStubWASM = module(
	section(1, vec(
		functype(nil, []byte{i32}),
		functype([]byte{i32}, nil),
		functype(nil, nil),
	)),
	section(3, vec([]byte{0}, []byte{1}, []byte{2}, []byte{1}, []byte{2})),
	memorySection(),
	section(7, vec(
		export("memory", kindMemory, 0),
		export("asyncify_get_state", kindFunc, 0),
		export("asyncify_start_unwind", kindFunc, 1),
		export("asyncify_stop_unwind", kindFunc, 2),
		export("asyncify_start_rewind", kindFunc, 3),
		export("asyncify_stop_rewind", kindFunc, 4),
	)),
	section(10, vec(
		body(0x41, 0x00),
		body(), body(), body(), body(),
	)),
)

// AsyncReadWASM is an asyncify-shaped guest whose state lives in a mutable
// global. Its _start calls fd_read(4, iovs=40, 1, nread=56) with one iovec
// {48, 5} and stores the errno at 60. While the state is unwinding it
// returns early, so a rewind re-runs _start from the top and the import
// hands back the carried value. Memory[60:64] starts as 0xffffffff.
var AsyncReadWASM = module(
	section(1, vec(
		functype([]byte{i32, i32, i32, i32}, []byte{i32}),
		functype(nil, []byte{i32}),
		functype([]byte{i32}, nil),
		functype(nil, nil),
	)),
	section(2, vec(importFunc("fd_read", 0))),
	section(3, vec([]byte{1}, []byte{2}, []byte{3}, []byte{2}, []byte{3}, []byte{3})),
	memorySection(),
	section(6, vec([]byte{i32, 0x01, 0x41, 0x00, 0x0b})),
	section(7, vec(
		export("memory", kindMemory, 0),
		export("asyncify_get_state", kindFunc, 1),
		export("asyncify_start_unwind", kindFunc, 2),
		export("asyncify_stop_unwind", kindFunc, 3),
		export("asyncify_start_rewind", kindFunc, 4),
		export("asyncify_stop_rewind", kindFunc, 5),
		export("_start", kindFunc, 6),
	)),
	section(10, vec(
		body(0x23, 0x00),             // global.get 0
		body(0x41, 0x01, 0x24, 0x00), // state = unwinding
		body(0x41, 0x00, 0x24, 0x00), // state = idle
		body(0x41, 0x02, 0x24, 0x00), // state = rewinding
		body(0x41, 0x00, 0x24, 0x00), // state = idle
		body(
			0x41, 0x3c,       // errno address
			0x41, 0x04,       // fd
			0x41, 0x28,       // iovs
			0x41, 0x01,       // iovs_len
			0x41, 0x38,       // nread
			0x10, 0x00,       // call fd_read
			0x23, 0x00,       // global.get 0
			0x04, 0x40,       // if
			0x0f,             // return
			0x0b,             // end
			0x36, 0x02, 0x00, // i32.store
		),
	)),
	section(11, vec(
		data(40, []byte{48, 0, 0, 0, 5, 0, 0, 0}),
		data(60, []byte{0xff, 0xff, 0xff, 0xff}),
	)),
)

// PartialAsyncifyWASM exports only asyncify_get_state.
var PartialAsyncifyWASM = module(
	section(1, vec(functype(nil, []byte{i32}))),
	section(3, vec([]byte{0})),
	memorySection(),
	section(7, vec(export("memory", kindMemory, 0), export("asyncify_get_state", kindFunc, 0))),
	section(10, vec(body(0x41, 0x00))),
)

func module(sections ...[]byte) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	for _, s := range sections {
		out = append(out, s...)
	}
	return out
}

func section(id byte, content []byte) []byte {
	return append(append([]byte{id}, uleb(uint32(len(content)))...), content...)
}

func memorySection() []byte {
	return section(5, vec([]byte{0x00, 0x01}))
}

func vec(items ...[]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func name(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func functype(params, results []byte) []byte {
	out := []byte{0x60}
	out = append(out, append(uleb(uint32(len(params))), params...)...)
	return append(out, append(uleb(uint32(len(results))), results...)...)
}

func importFunc(field string, typeIdx byte) []byte {
	out := name("wasi_snapshot_preview1")
	out = append(out, name(field)...)
	return append(out, kindFunc, typeIdx)
}

func export(field string, kind, idx byte) []byte {
	return append(name(field), kind, idx)
}

// body encodes a function body with no locals; end is appended.
func body(code ...byte) []byte {
	fn := append([]byte{0x00}, code...)
	fn = append(fn, 0x0b)
	return append(uleb(uint32(len(fn))), fn...)
}

func data(offset byte, bytes []byte) []byte {
	out := []byte{0x00, 0x41, offset, 0x0b}
	return append(out, append(uleb(uint32(len(bytes))), bytes...)...)
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

// NewMemory instantiates MemoryWASM and returns its exported memory. The
// runtime is closed when the test ends.
func NewMemory(t testing.TB) api.Memory {
	t.Helper()
	return Instantiate(t, MemoryWASM).ExportedMemory("memory")
}

// Instantiate compiles and instantiates bin in a fresh runtime without
// running start functions. The runtime is closed when the test ends.
func Instantiate(t testing.TB, bin []byte) api.Module {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	compiled, err := rt.CompileModule(ctx, bin)
	if err != nil {
		t.Fatalf("failed to compile: %v", err)
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithStartFunctions())
	if err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}
	return mod
}
