package vfs

import (
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"
)

// DevNull is the guest path of the null device.
const DevNull = "/dev/null"

// FS is an in-memory directory tree with a fixed list of preopened
// directories.
type FS struct {
	root     *Dir
	devNull  *Device
	preopens []string
}

// New builds a tree containing /dev/null and the given preopen directories,
// creating any missing ancestors. With no preopens, "/" is preopened.
func New(preopens ...string) (*FS, error) {
	fs := &FS{root: NewDir(), devNull: &Device{}}

	dev, err := fs.EnsureDir("/dev")
	if err != nil {
		return nil, err
	}
	dev.entries["null"] = fs.devNull

	for _, p := range preopens {
		if _, err := fs.EnsureDir(p); err != nil {
			return nil, err
		}
		fs.preopens = append(fs.preopens, p)
		Logger().Debug("preopen registered", zap.String("path", p))
	}
	if len(fs.preopens) == 0 {
		fs.preopens = append(fs.preopens, "/")
		Logger().Debug("preopen registered", zap.String("path", "/"))
	}
	return fs, nil
}

// Root returns the root directory.
func (fs *FS) Root() *Dir {
	return fs.root
}

// DevNull returns the null device node.
func (fs *FS) DevNull() *Device {
	return fs.devNull
}

// Preopens returns the preopened guest paths in registration order.
func (fs *FS) Preopens() []string {
	out := make([]string, len(fs.preopens))
	copy(out, fs.preopens)
	return out
}

// EnsureDir returns the directory at the absolute path, creating it and any
// missing ancestors.
func (fs *FS) EnsureDir(path string) (*Dir, error) {
	return fs.mkdirAll(fs.root, segments(path), path)
}

// AddFile stores data as a regular file at the absolute path, creating
// parent directories. An existing entry is replaced.
func (fs *FS) AddFile(path string, data []byte) error {
	return fs.setNode(path, NewFile(data))
}

// AddBlob stores a lazily fetched file at the absolute path.
func (fs *FS) AddBlob(path string, blob Blob) error {
	return fs.setNode(path, NewLazyFile(blob))
}

// Lookup returns the node at the absolute path.
func (fs *FS) Lookup(path string) (Node, bool) {
	n, err := fs.Resolve(fs.root, path)
	if err != nil {
		return nil, false
	}
	return n, true
}

// Resolve walks rel starting at dir. An empty path resolves to dir itself.
func (fs *FS) Resolve(dir *Dir, rel string) (Node, error) {
	var current Node = dir
	for _, part := range segments(rel) {
		switch part {
		case ".":
			continue
		case "..":
			current = fs.root
			continue
		}
		d, ok := current.(*Dir)
		if !ok {
			return nil, newError(OpLookup, rel, ErrNotExist)
		}
		next, ok := d.entries[part]
		if !ok {
			return nil, newError(OpLookup, rel, ErrNotExist)
		}
		current = next
	}
	return current, nil
}

// CreateFileIn creates an empty regular file at rel under dir, creating
// missing intermediate directories. An existing entry with the same name is
// replaced.
func (fs *FS) CreateFileIn(dir *Dir, rel string) (*File, error) {
	parent, name, err := fs.parentOf(dir, rel, true)
	if err != nil {
		return nil, newError(OpCreate, rel, err)
	}
	f := NewFile(nil)
	parent.entries[name] = f
	return f, nil
}

// MkdirIn creates a single directory at rel under dir. The parent must exist.
func (fs *FS) MkdirIn(dir *Dir, rel string) (*Dir, error) {
	parent, name, err := fs.parentOf(dir, rel, false)
	if err != nil {
		return nil, newError(OpMkdir, rel, err)
	}
	if _, ok := parent.entries[name]; ok {
		return nil, newError(OpMkdir, rel, ErrExist)
	}
	d := NewDir()
	parent.entries[name] = d
	return d, nil
}

// RemoveIn unlinks the entry at rel under dir. With wantDir the entry must be
// an empty directory; otherwise it must not be a directory.
func (fs *FS) RemoveIn(dir *Dir, rel string, wantDir bool) error {
	parent, name, err := fs.parentOf(dir, rel, false)
	if err != nil {
		return newError(OpRemove, rel, err)
	}
	node, ok := parent.entries[name]
	if !ok {
		return newError(OpRemove, rel, ErrNotExist)
	}

	switch n := node.(type) {
	case *Dir:
		if !wantDir {
			return newError(OpRemove, rel, ErrIsDir)
		}
		if n.Len() > 0 {
			return newError(OpRemove, rel, ErrNotEmpty)
		}
	case *File, *Device:
		if wantDir {
			return newError(OpRemove, rel, ErrNotDir)
		}
	default:
		panic("vfs: unknown node kind")
	}

	delete(parent.entries, name)
	return nil
}

// Close releases blobs that hold host resources.
func (fs *FS) Close() error {
	var errs []error
	fs.walk(fs.root, func(f *File) {
		if c, ok := f.blob.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

func (fs *FS) walk(d *Dir, visit func(*File)) {
	for _, name := range d.Names() {
		switch n := d.entries[name].(type) {
		case *Dir:
			fs.walk(n, visit)
		case *File:
			visit(n)
		case *Device:
		default:
			panic("vfs: unknown node kind")
		}
	}
}

func (fs *FS) setNode(path string, node Node) error {
	parts := segments(path)
	if len(parts) == 0 {
		return newError(OpCreate, path, ErrInvalidPath)
	}
	parent, err := fs.mkdirAll(fs.root, parts[:len(parts)-1], path)
	if err != nil {
		return err
	}
	parent.entries[parts[len(parts)-1]] = node
	return nil
}

func (fs *FS) mkdirAll(start *Dir, parts []string, path string) (*Dir, error) {
	current := start
	for _, part := range parts {
		switch part {
		case ".":
			continue
		case "..":
			current = fs.root
			continue
		}
		next, ok := current.entries[part]
		if !ok {
			d := NewDir()
			current.entries[part] = d
			current = d
			continue
		}
		d, ok := next.(*Dir)
		if !ok {
			return nil, newError(OpMkdir, path, ErrNotDir)
		}
		current = d
	}
	return current, nil
}

// parentOf resolves every segment of rel but the last, returning the parent
// directory and the final name.
func (fs *FS) parentOf(dir *Dir, rel string, create bool) (*Dir, string, error) {
	parts := segments(rel)
	for len(parts) > 0 && parts[len(parts)-1] == "." {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 || parts[len(parts)-1] == ".." {
		return nil, "", ErrInvalidPath
	}
	name := parts[len(parts)-1]
	parts = parts[:len(parts)-1]

	if create {
		parent, err := fs.mkdirAll(dir, parts, rel)
		if err != nil {
			return nil, "", ErrNotDir
		}
		return parent, name, nil
	}

	node, err := fs.Resolve(dir, strings.Join(parts, "/"))
	if err != nil {
		return nil, "", ErrNotExist
	}
	parent, ok := node.(*Dir)
	if !ok {
		return nil, "", ErrNotDir
	}
	return parent, name, nil
}

func segments(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
