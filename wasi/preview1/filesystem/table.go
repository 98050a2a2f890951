package filesystem

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/wippyai/wasishim/abi"
	"github.com/wippyai/wasishim/errors"
	"github.com/wippyai/wasishim/vfs"
)

// FirstFD is the first descriptor number handed out to filesystem entries.
const FirstFD uint32 = 3

// OpenFile is a filesystem descriptor.
type OpenFile struct {
	FD       uint32
	Node     vfs.Node
	Position int64
	Preopen  bool
	Path     string
}

// EventType identifies a descriptor lifecycle event.
type EventType int

const (
	EventOpened EventType = iota
	EventClosed
)

func (e EventType) String() string {
	if e == EventOpened {
		return "opened"
	}
	return "closed"
}

// Event describes a descriptor being opened or closed.
type Event struct {
	Type EventType
	File *OpenFile
}

// Observer receives descriptor lifecycle events.
type Observer interface {
	OnDescriptorEvent(e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(e Event)

func (f ObserverFunc) OnDescriptorEvent(e Event) { f(e) }

// Table maps descriptor numbers to stdio streams and open VFS nodes. It is
// not safe for concurrent use.
type Table struct {
	fs        *vfs.FS
	stdio     [3]Stream
	files     map[uint32]*OpenFile
	next      uint32
	observers []Observer
}

// NewTable registers every preopen of fs from descriptor 3 on. stdio holds
// stdin, stdout and stderr; nil entries read nothing and discard writes.
func NewTable(fs *vfs.FS, stdio [3]Stream) (*Table, error) {
	if stdio[0] == nil {
		stdio[0] = NewReadable(nil)
	}
	for i := 1; i < len(stdio); i++ {
		if stdio[i] == nil {
			stdio[i] = NewWritable(nil)
		}
	}
	t := &Table{
		fs:    fs,
		stdio: stdio,
		files: make(map[uint32]*OpenFile),
		next:  FirstFD,
	}
	for _, path := range fs.Preopens() {
		node, ok := fs.Lookup(path)
		if !ok {
			return nil, errors.NotFound(errors.PhaseFS, "preopen", path)
		}
		if _, ok := node.(*vfs.Dir); !ok {
			return nil, errors.InvalidInput(errors.PhaseFS, fmt.Sprintf("preopen %q is not a directory", path))
		}
		t.insert(&OpenFile{Node: node, Preopen: true, Path: path})
	}
	return t, nil
}

// FS returns the filesystem the table opens from.
func (t *Table) FS() *vfs.FS {
	return t.fs
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.observers = append(t.observers, o)
}

// Get returns the filesystem entry for fd.
func (t *Table) Get(fd uint32) (*OpenFile, bool) {
	f, ok := t.files[fd]
	return f, ok
}

// Len returns the number of open filesystem descriptors.
func (t *Table) Len() int {
	return len(t.files)
}

// Lazy reports whether reading fd fetches content on demand.
func (t *Table) Lazy(fd uint32) bool {
	f, ok := t.files[fd]
	if !ok {
		return false
	}
	file, ok := f.Node.(*vfs.File)
	return ok && file.Lazy()
}

// Open resolves rel under the directory dirFD and returns a descriptor for
// it. An already open guest path returns its existing descriptor.
func (t *Table) Open(dirFD uint32, rel string, oflags abi.Oflags) (uint32, abi.Errno) {
	dir, base, errno := t.dir(dirFD)
	if errno != abi.ErrnoSuccess {
		return 0, errno
	}

	path := join(base.Path, rel)
	for fd, f := range t.files {
		if f.Path == path {
			return fd, abi.ErrnoSuccess
		}
	}

	node, err := t.fs.Resolve(dir, rel)
	switch {
	case err == nil:
		if oflags.Has(abi.OflagExcl) {
			return 0, abi.ErrnoExist
		}
		if oflags.Has(abi.OflagTrunc) {
			file, ok := node.(*vfs.File)
			if !ok {
				return 0, abi.ErrnoInval
			}
			file.Truncate()
		}
		if oflags.Has(abi.OflagDirectory) && node.Kind() != vfs.KindDirectory {
			return 0, abi.ErrnoNotdir
		}
	case !oflags.Has(abi.OflagCreat):
		return 0, abi.ErrnoNoent
	default:
		file, err := t.fs.CreateFileIn(dir, rel)
		if err != nil {
			return 0, Errno(err)
		}
		node = file
	}

	return t.insert(&OpenFile{Node: node, Path: path}), abi.ErrnoSuccess
}

// Read copies from the cursor into bufs and advances the cursor. The error
// is set only when fetching lazy content fails.
func (t *Table) Read(ctx context.Context, fd uint32, bufs [][]byte) (uint32, abi.Errno, error) {
	if fd < FirstFD {
		n, err := t.stdio[fd].Readv(bufs)
		if err != nil {
			return uint32(n), abi.ErrnoIo, nil
		}
		return uint32(n), abi.ErrnoSuccess, nil
	}
	f, ok := t.files[fd]
	if !ok {
		return 0, abi.ErrnoBadf, nil
	}
	n, errno, err := readAt(ctx, f.Node, bufs, f.Position)
	f.Position += int64(n)
	return n, errno, err
}

// PRead reads like Read at offset without moving the cursor. Offsets past
// MaxInt64 arrive negative and are rejected.
func (t *Table) PRead(ctx context.Context, fd uint32, bufs [][]byte, offset int64) (uint32, abi.Errno, error) {
	f, ok := t.file(fd)
	if !ok {
		return 0, abi.ErrnoBadf, nil
	}
	if offset < 0 {
		return 0, abi.ErrnoInval, nil
	}
	return readAt(ctx, f.Node, bufs, offset)
}

func readAt(ctx context.Context, node vfs.Node, bufs [][]byte, offset int64) (uint32, abi.Errno, error) {
	switch n := node.(type) {
	case *vfs.Dir:
		return 0, abi.ErrnoIsdir, nil
	case *vfs.Device:
		return 0, abi.ErrnoSuccess, nil
	case *vfs.File:
		var total int64
		for _, buf := range bufs {
			if offset+total >= n.Size() {
				break
			}
			read, err := n.ReadAt(ctx, buf, offset+total)
			if err != nil {
				return uint32(total), abi.ErrnoIo, err
			}
			total += int64(read)
			if read < len(buf) {
				break
			}
		}
		return uint32(total), abi.ErrnoSuccess, nil
	default:
		panic("filesystem: unknown node kind")
	}
}

// Write copies bufs at the cursor and advances it.
func (t *Table) Write(fd uint32, bufs [][]byte) (uint32, abi.Errno) {
	if fd < FirstFD {
		n, err := t.stdio[fd].Writev(bufs)
		if err != nil {
			return uint32(n), abi.ErrnoIo
		}
		return uint32(n), abi.ErrnoSuccess
	}
	f, ok := t.files[fd]
	if !ok {
		return 0, abi.ErrnoBadf
	}
	n, errno := writeAt(f.Node, bufs, f.Position)
	f.Position += int64(n)
	return n, errno
}

// PWrite writes like Write at offset without moving the cursor.
func (t *Table) PWrite(fd uint32, bufs [][]byte, offset int64) (uint32, abi.Errno) {
	f, ok := t.file(fd)
	if !ok {
		return 0, abi.ErrnoBadf
	}
	if offset < 0 {
		return 0, abi.ErrnoInval
	}
	return writeAt(f.Node, bufs, offset)
}

func writeAt(node vfs.Node, bufs [][]byte, offset int64) (uint32, abi.Errno) {
	switch n := node.(type) {
	case *vfs.Dir:
		return 0, abi.ErrnoIsdir
	case *vfs.Device:
		var total int
		for _, b := range bufs {
			total += len(b)
		}
		return uint32(total), abi.ErrnoSuccess
	case *vfs.File:
		if n.Lazy() {
			return 0, abi.ErrnoInval
		}
		var total int64
		for _, b := range bufs {
			written, err := n.WriteAt(b, offset+total)
			if err != nil {
				return uint32(total), Errno(err)
			}
			total += int64(written)
		}
		return uint32(total), abi.ErrnoSuccess
	default:
		panic("filesystem: unknown node kind")
	}
}

// Seek moves the cursor of a regular file and returns the new position.
// Negative positions clamp to 0.
func (t *Table) Seek(fd uint32, offset int64, whence uint32) (uint64, abi.Errno) {
	f, ok := t.file(fd)
	if !ok {
		return 0, abi.ErrnoBadf
	}
	file, ok := f.Node.(*vfs.File)
	if !ok {
		return 0, abi.ErrnoBadf
	}

	var pos int64
	switch whence {
	case abi.WhenceSet:
		pos = offset
	case abi.WhenceCur:
		pos = f.Position + offset
	case abi.WhenceEnd:
		pos = file.Size() + offset
	default:
		return 0, abi.ErrnoInval
	}
	f.Position = max(pos, 0)
	return uint64(f.Position), abi.ErrnoSuccess
}

// Tell returns the cursor of fd.
func (t *Table) Tell(fd uint32) (uint64, abi.Errno) {
	f, ok := t.file(fd)
	if !ok {
		return 0, abi.ErrnoBadf
	}
	return uint64(f.Position), abi.ErrnoSuccess
}

// Close releases fd. Closing a stdio stream is forwarded to the stream.
func (t *Table) Close(fd uint32) abi.Errno {
	if fd < FirstFD {
		if err := t.stdio[fd].Close(); err != nil {
			return abi.ErrnoIo
		}
		return abi.ErrnoSuccess
	}
	f, ok := t.files[fd]
	if !ok {
		return abi.ErrnoBadf
	}
	delete(t.files, fd)
	t.notify(Event{Type: EventClosed, File: f})
	return abi.ErrnoSuccess
}

// Stat returns the file type of fd and, for regular files, its size.
func (t *Table) Stat(fd uint32) (abi.Filetype, uint64, abi.Errno) {
	if fd < FirstFD {
		return abi.FiletypeCharDevice, 0, abi.ErrnoSuccess
	}
	f, ok := t.files[fd]
	if !ok {
		return abi.FiletypeUnknown, 0, abi.ErrnoBadf
	}
	ft, size := stat(f.Node)
	return ft, size, abi.ErrnoSuccess
}

// PathStat stats rel under the directory dirFD.
func (t *Table) PathStat(dirFD uint32, rel string) (abi.Filetype, uint64, abi.Errno) {
	if dirFD >= FirstFD {
		if _, ok := t.files[dirFD]; !ok {
			return abi.FiletypeUnknown, 0, abi.ErrnoBadf
		}
	}
	dir, _, errno := t.dir(dirFD)
	if errno != abi.ErrnoSuccess {
		return abi.FiletypeUnknown, 0, errno
	}
	node, err := t.fs.Resolve(dir, rel)
	if err != nil {
		return abi.FiletypeUnknown, 0, Errno(err)
	}
	ft, size := stat(node)
	return ft, size, abi.ErrnoSuccess
}

func stat(node vfs.Node) (abi.Filetype, uint64) {
	switch n := node.(type) {
	case *vfs.Dir:
		return abi.FiletypeDirectory, 0
	case *vfs.Device:
		return abi.FiletypeCharDevice, 0
	case *vfs.File:
		return abi.FiletypeRegularFile, uint64(n.Size())
	default:
		panic("filesystem: unknown node kind")
	}
}

// SetSize truncates or zero-extends the regular file behind fd.
func (t *Table) SetSize(fd uint32, size int64) abi.Errno {
	f, ok := t.file(fd)
	if !ok {
		return abi.ErrnoBadf
	}
	if size < 0 {
		return abi.ErrnoInval
	}
	switch n := f.Node.(type) {
	case *vfs.Dir:
		return abi.ErrnoIsdir
	case *vfs.Device:
		return abi.ErrnoInval
	case *vfs.File:
		if err := n.Resize(size); err != nil {
			return Errno(err)
		}
		return abi.ErrnoSuccess
	default:
		panic("filesystem: unknown node kind")
	}
}

// Mkdir creates one directory at rel under dirFD.
func (t *Table) Mkdir(dirFD uint32, rel string) abi.Errno {
	dir, _, errno := t.dir(dirFD)
	if errno != abi.ErrnoSuccess {
		return errno
	}
	if _, err := t.fs.MkdirIn(dir, rel); err != nil {
		return Errno(err)
	}
	return abi.ErrnoSuccess
}

// Unlink removes the non-directory entry at rel under dirFD.
func (t *Table) Unlink(dirFD uint32, rel string) abi.Errno {
	return t.remove(dirFD, rel, false)
}

// Rmdir removes the empty directory at rel under dirFD.
func (t *Table) Rmdir(dirFD uint32, rel string) abi.Errno {
	return t.remove(dirFD, rel, true)
}

func (t *Table) remove(dirFD uint32, rel string, wantDir bool) abi.Errno {
	dir, _, errno := t.dir(dirFD)
	if errno != abi.ErrnoSuccess {
		return errno
	}
	if err := t.fs.RemoveIn(dir, rel, wantDir); err != nil {
		return Errno(err)
	}
	return abi.ErrnoSuccess
}

// Prestat returns the guest path of the preopen at fd.
func (t *Table) Prestat(fd uint32) (string, abi.Errno) {
	f, ok := t.file(fd)
	if !ok || !f.Preopen {
		return "", abi.ErrnoBadf
	}
	return f.Path, abi.ErrnoSuccess
}

func (t *Table) file(fd uint32) (*OpenFile, bool) {
	if fd < FirstFD {
		return nil, false
	}
	f, ok := t.files[fd]
	return f, ok
}

func (t *Table) dir(fd uint32) (*vfs.Dir, *OpenFile, abi.Errno) {
	f, ok := t.file(fd)
	if !ok {
		return nil, nil, abi.ErrnoNotdir
	}
	d, ok := f.Node.(*vfs.Dir)
	if !ok {
		return nil, nil, abi.ErrnoNotdir
	}
	return d, f, abi.ErrnoSuccess
}

func (t *Table) insert(f *OpenFile) uint32 {
	f.FD = t.next
	t.next++
	t.files[f.FD] = f
	t.notify(Event{Type: EventOpened, File: f})
	return f.FD
}

func (t *Table) notify(e Event) {
	for _, o := range t.observers {
		o.OnDescriptorEvent(e)
	}
}

func join(dir, rel string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + rel
	}
	return dir + "/" + rel
}

// Errno maps a vfs error to its protocol code. Unknown errors map to io.
func Errno(err error) abi.Errno {
	switch {
	case err == nil:
		return abi.ErrnoSuccess
	case stderrors.Is(err, vfs.ErrNotExist):
		return abi.ErrnoNoent
	case stderrors.Is(err, vfs.ErrExist):
		return abi.ErrnoExist
	case stderrors.Is(err, vfs.ErrNotDir):
		return abi.ErrnoNotdir
	case stderrors.Is(err, vfs.ErrIsDir):
		return abi.ErrnoIsdir
	case stderrors.Is(err, vfs.ErrNotEmpty),
		stderrors.Is(err, vfs.ErrReadOnly),
		stderrors.Is(err, vfs.ErrInvalidPath),
		stderrors.Is(err, vfs.ErrInvalidOffset),
		stderrors.Is(err, vfs.ErrTooLarge):
		return abi.ErrnoInval
	default:
		return abi.ErrnoIo
	}
}
