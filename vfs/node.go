package vfs

import (
	"context"
	"fmt"
	"slices"
	"sort"
)

// MaxFileSize caps the length of in-memory file content.
const MaxFileSize int64 = 1 << 30

// Kind identifies the variant of a Node.
type Kind uint8

const (
	KindDirectory Kind = iota + 1
	KindFile
	KindDevice
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	case KindDevice:
		return "device"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Node is an entry of the tree. It is implemented only by *Dir, *File and
// *Device; type switches over Node handle exactly those three.
type Node interface {
	Kind() Kind
	sealed()
}

// Dir maps unique names to child nodes.
type Dir struct {
	entries map[string]Node
}

// NewDir returns an empty directory.
func NewDir() *Dir {
	return &Dir{entries: make(map[string]Node)}
}

func (d *Dir) Kind() Kind { return KindDirectory }
func (d *Dir) sealed()    {}

// Lookup returns the child called name.
func (d *Dir) Lookup(name string) (Node, bool) {
	n, ok := d.entries[name]
	return n, ok
}

// Names returns the child names in sorted order.
func (d *Dir) Names() []string {
	names := make([]string, 0, len(d.entries))
	for name := range d.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of children.
func (d *Dir) Len() int {
	return len(d.entries)
}

// File is a regular file. Its content is either an in-memory buffer or a Blob.
type File struct {
	data []byte
	blob Blob
}

// NewFile returns a file holding data. The slice is owned by the file.
func NewFile(data []byte) *File {
	return &File{data: data}
}

// NewLazyFile returns a file whose content is fetched from blob on read.
func NewLazyFile(blob Blob) *File {
	return &File{blob: blob}
}

func (f *File) Kind() Kind { return KindFile }
func (f *File) sealed()    {}

// Lazy reports whether the content is fetched on demand.
func (f *File) Lazy() bool {
	return f.blob != nil
}

// Size returns the content length in bytes.
func (f *File) Size() int64 {
	if f.blob != nil {
		return f.blob.Size()
	}
	return int64(len(f.data))
}

// Bytes returns the in-memory content. It is nil for lazy files.
func (f *File) Bytes() []byte {
	return f.data
}

// ReadAt copies content starting at off into p and returns the number of
// bytes copied. Reading at or past the end returns 0. For lazy files only the
// requested range is fetched.
func (f *File) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, newError(OpRead, "", ErrInvalidOffset)
	}
	size := f.Size()
	if off >= size || len(p) == 0 {
		return 0, nil
	}
	n := min(int64(len(p)), size-off)
	if f.blob == nil {
		return copy(p, f.data[off:off+n]), nil
	}
	chunk, err := f.blob.ReadRange(ctx, off, n)
	if err != nil {
		return 0, newError(OpRead, "", err)
	}
	return copy(p, chunk), nil
}

// WriteAt copies p into the content at off, growing the buffer when needed.
// The buffer never shrinks here; bytes between the old end and off read as
// zero. Content never grows past MaxFileSize.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if f.blob != nil {
		return 0, newError(OpWrite, "", ErrReadOnly)
	}
	if off < 0 {
		return 0, newError(OpWrite, "", ErrInvalidOffset)
	}
	if off > MaxFileSize-int64(len(p)) {
		return 0, newError(OpWrite, "", ErrTooLarge)
	}
	end := off + int64(len(p))
	if end > int64(len(f.data)) {
		old := len(f.data)
		f.data = slices.Grow(f.data, int(end)-old)[:end]
		clear(f.data[old:end])
	}
	return copy(f.data[off:], p), nil
}

// Truncate replaces the content with an empty in-memory buffer. A lazy file
// stops being lazy.
func (f *File) Truncate() {
	f.blob = nil
	f.data = nil
}

// Resize sets the content length, zero-filling on growth.
func (f *File) Resize(size int64) error {
	if f.blob != nil {
		return newError(OpResize, "", ErrReadOnly)
	}
	switch {
	case size < 0:
		return newError(OpResize, "", ErrInvalidOffset)
	case size > MaxFileSize:
		return newError(OpResize, "", ErrTooLarge)
	}
	if size <= int64(len(f.data)) {
		f.data = f.data[:size]
		return nil
	}
	_, err := f.WriteAt(nil, size)
	return err
}

// Device is a character device. Reads return nothing and writes are
// discarded.
type Device struct{}

func (d *Device) Kind() Kind { return KindDevice }
func (d *Device) sealed()    {}
