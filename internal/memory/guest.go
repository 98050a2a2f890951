// Package memory exposes wazero linear memory as wasishim.Memory.
package memory

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasishim"
	"github.com/wippyai/wasishim/errors"
)

// ExportName is the export a preview1 guest must provide.
const ExportName = "memory"

// Guest is bounds-checked access to one guest's linear memory. Every
// failed access is an errors.OutOfBounds fault.
type Guest struct {
	mem api.Memory
}

// WrapMemory returns mem as wasishim.Memory, or nil when mem is nil.
func WrapMemory(mem api.Memory) wasishim.Memory {
	if mem == nil {
		return nil
	}
	return &Guest{mem: mem}
}

// FromModule returns the memory mod exports as "memory", or nil.
func FromModule(mod api.Module) wasishim.Memory {
	if mod == nil {
		return nil
	}
	return WrapMemory(mod.ExportedMemory(ExportName))
}

// Size returns the current memory size in bytes.
func (g *Guest) Size() uint32 { return g.mem.Size() }

// Read returns a view of length bytes at offset, not a copy.
func (g *Guest) Read(offset, length uint32) ([]byte, error) {
	return load(offset, length, func(off uint32) ([]byte, bool) { return g.mem.Read(off, length) })
}

func (g *Guest) Write(offset uint32, data []byte) error {
	return store(offset, uint32(len(data)), g.mem.Write, data)
}

func (g *Guest) ReadU8(offset uint32) (uint8, error) {
	return load(offset, 1, g.mem.ReadByte)
}

func (g *Guest) ReadU16(offset uint32) (uint16, error) {
	return load(offset, 2, g.mem.ReadUint16Le)
}

func (g *Guest) ReadU32(offset uint32) (uint32, error) {
	return load(offset, 4, g.mem.ReadUint32Le)
}

func (g *Guest) ReadU64(offset uint32) (uint64, error) {
	return load(offset, 8, g.mem.ReadUint64Le)
}

func (g *Guest) WriteU8(offset uint32, v uint8) error {
	return store(offset, 1, g.mem.WriteByte, v)
}

func (g *Guest) WriteU16(offset uint32, v uint16) error {
	return store(offset, 2, g.mem.WriteUint16Le, v)
}

func (g *Guest) WriteU32(offset uint32, v uint32) error {
	return store(offset, 4, g.mem.WriteUint32Le, v)
}

func (g *Guest) WriteU64(offset uint32, v uint64) error {
	return store(offset, 8, g.mem.WriteUint64Le, v)
}

// load and store turn wazero's ok results into faults sized by n.
func load[T any](offset, n uint32, read func(uint32) (T, bool)) (T, error) {
	v, ok := read(offset)
	if !ok {
		var zero T
		return zero, errors.OutOfBounds(offset, n)
	}
	return v, nil
}

func store[T any](offset, n uint32, write func(uint32, T) bool, v T) error {
	if !write(offset, v) {
		return errors.OutOfBounds(offset, n)
	}
	return nil
}
