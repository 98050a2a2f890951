package filesystem

import (
	"context"

	"github.com/wippyai/wasishim"
	"github.com/wippyai/wasishim/abi"
	"github.com/wippyai/wasishim/asyncify"
	"github.com/wippyai/wasishim/vfs"
	"github.com/wippyai/wasishim/wasi/preview1"
)

// Options configures the filesystem feature.
type Options struct {
	// FS is used as is when set; Preopens is ignored.
	FS       *vfs.FS
	Preopens []string

	Stdin  Source
	Stdout Sink
	Stderr Sink

	Observers []Observer
}

// New builds the descriptor table and returns the feature serving it. The
// feature owns one table and is meant for a single guest.
func New(opts Options) (preview1.Feature, error) {
	fs := opts.FS
	if fs == nil {
		var err error
		if fs, err = vfs.New(opts.Preopens...); err != nil {
			return nil, err
		}
	}

	t, err := NewTable(fs, [3]Stream{
		NewReadable(opts.Stdin),
		NewWritable(opts.Stdout),
		NewWritable(opts.Stderr),
	})
	if err != nil {
		return nil, err
	}
	for _, o := range opts.Observers {
		t.Subscribe(o)
	}
	return Feature(t), nil
}

// Feature returns the fd_* and path_* handlers over t.
func Feature(t *Table) preview1.Feature {
	return func(env *preview1.Env) preview1.Imports {
		h := &handlers{table: t, codec: env.Codec}
		read := env.Sync(h.read)
		pread := env.Sync(h.pread)

		return preview1.Imports{
			"fd_read":               h.deferLazy(env, read, h.read),
			"fd_pread":              h.deferLazy(env, pread, h.pread),
			"fd_write":              env.Sync(h.write),
			"fd_pwrite":             env.Sync(h.pwrite),
			"fd_close":              env.Sync(h.close),
			"fd_seek":               env.Sync(h.seek),
			"fd_tell":               env.Sync(h.tell),
			"fd_fdstat_get":         env.Sync(h.fdstat),
			"fd_filestat_get":       env.Sync(h.filestat),
			"fd_filestat_set_size":  env.Sync(h.setSize),
			"fd_prestat_get":        env.Sync(h.prestat),
			"fd_prestat_dir_name":   env.Sync(h.prestatDirName),
			"path_open":             env.Sync(h.open),
			"path_filestat_get":     env.Sync(h.pathFilestat),
			"path_create_directory": env.Sync(h.mkdir),
			"path_unlink_file":      env.Sync(h.unlink),
			"path_remove_directory": env.Sync(h.rmdir),
		}
	}
}

type handlers struct {
	table *Table
	codec *abi.Codec
}

// deferLazy answers reads of lazy files with a deferred result. The iovecs
// are decoded when the future runs.
func (h *handlers) deferLazy(env *preview1.Env, sync preview1.Handler, fn preview1.SyncFunc) preview1.Handler {
	return func(ctx context.Context, params []uint64) (asyncify.Result, error) {
		if !h.table.Lazy(preview1.U32(params, 0)) {
			return sync(ctx, params)
		}
		return asyncify.Deferred(asyncify.FutureFunc(func(ctx context.Context) (uint64, error) {
			mem, err := env.Memory()
			if err != nil {
				return 0, err
			}
			errno, err := fn(ctx, mem, params)
			return uint64(errno), err
		})), nil
	}
}

// fd_read(fd, iovs, iovs_len, nread)
func (h *handlers) read(ctx context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error) {
	bufs, err := h.codec.IOVecs(mem, preview1.U32(params, 1), preview1.U32(params, 2))
	if err != nil {
		return 0, err
	}
	n, errno, err := h.table.Read(ctx, preview1.U32(params, 0), bufs)
	if err != nil {
		return 0, err
	}
	if errno != abi.ErrnoSuccess {
		return errno, nil
	}
	return errno, mem.WriteU32(preview1.U32(params, 3), n)
}

// fd_pread(fd, iovs, iovs_len, offset, nread)
func (h *handlers) pread(ctx context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error) {
	bufs, err := h.codec.IOVecs(mem, preview1.U32(params, 1), preview1.U32(params, 2))
	if err != nil {
		return 0, err
	}
	n, errno, err := h.table.PRead(ctx, preview1.U32(params, 0), bufs, preview1.I64(params, 3))
	if err != nil {
		return 0, err
	}
	if errno != abi.ErrnoSuccess {
		return errno, nil
	}
	return errno, mem.WriteU32(preview1.U32(params, 4), n)
}

// fd_write(fd, iovs, iovs_len, nwritten)
func (h *handlers) write(_ context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error) {
	bufs, err := h.codec.IOVecs(mem, preview1.U32(params, 1), preview1.U32(params, 2))
	if err != nil {
		return 0, err
	}
	n, errno := h.table.Write(preview1.U32(params, 0), bufs)
	if errno != abi.ErrnoSuccess {
		return errno, nil
	}
	return errno, mem.WriteU32(preview1.U32(params, 3), n)
}

// fd_pwrite(fd, iovs, iovs_len, offset, nwritten)
func (h *handlers) pwrite(_ context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error) {
	bufs, err := h.codec.IOVecs(mem, preview1.U32(params, 1), preview1.U32(params, 2))
	if err != nil {
		return 0, err
	}
	n, errno := h.table.PWrite(preview1.U32(params, 0), bufs, preview1.I64(params, 3))
	if errno != abi.ErrnoSuccess {
		return errno, nil
	}
	return errno, mem.WriteU32(preview1.U32(params, 4), n)
}

func (h *handlers) close(_ context.Context, _ wasishim.Memory, params []uint64) (abi.Errno, error) {
	return h.table.Close(preview1.U32(params, 0)), nil
}

// fd_seek(fd, offset, whence, newoffset)
func (h *handlers) seek(_ context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error) {
	pos, errno := h.table.Seek(preview1.U32(params, 0), preview1.I64(params, 1), preview1.U32(params, 2))
	if errno != abi.ErrnoSuccess {
		return errno, nil
	}
	return errno, mem.WriteU64(preview1.U32(params, 3), pos)
}

func (h *handlers) tell(_ context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error) {
	pos, errno := h.table.Tell(preview1.U32(params, 0))
	if errno != abi.ErrnoSuccess {
		return errno, nil
	}
	return errno, mem.WriteU64(preview1.U32(params, 1), pos)
}

func (h *handlers) fdstat(_ context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error) {
	ft, _, errno := h.table.Stat(preview1.U32(params, 0))
	if errno != abi.ErrnoSuccess {
		return errno, nil
	}
	return errno, h.codec.WriteFdstat(mem, preview1.U32(params, 1), ft, 0)
}

func (h *handlers) filestat(_ context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error) {
	ft, size, errno := h.table.Stat(preview1.U32(params, 0))
	if errno != abi.ErrnoSuccess {
		return errno, nil
	}
	return errno, h.codec.WriteFilestat(mem, preview1.U32(params, 1), ft, size)
}

func (h *handlers) setSize(_ context.Context, _ wasishim.Memory, params []uint64) (abi.Errno, error) {
	return h.table.SetSize(preview1.U32(params, 0), preview1.I64(params, 1)), nil
}

func (h *handlers) prestat(_ context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error) {
	path, errno := h.table.Prestat(preview1.U32(params, 0))
	if errno != abi.ErrnoSuccess {
		return errno, nil
	}
	return errno, h.codec.WritePrestat(mem, preview1.U32(params, 1), h.codec.ByteLength(path))
}

// fd_prestat_dir_name(fd, path, path_len)
func (h *handlers) prestatDirName(_ context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error) {
	path, errno := h.table.Prestat(preview1.U32(params, 0))
	if errno != abi.ErrnoSuccess {
		return errno, nil
	}
	if h.codec.ByteLength(path) != preview1.U32(params, 2) {
		return abi.ErrnoInval, nil
	}
	_, err := h.codec.WriteString(mem, preview1.U32(params, 1), path)
	return abi.ErrnoSuccess, err
}

// path_open(fd, dirflags, path, path_len, oflags, rights_base,
// rights_inheriting, fdflags, opened_fd)
func (h *handlers) open(_ context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error) {
	rel, err := h.codec.ReadString(mem, preview1.U32(params, 2), preview1.U32(params, 3))
	if err != nil {
		return 0, err
	}
	fd, errno := h.table.Open(preview1.U32(params, 0), rel, abi.Oflags(preview1.U32(params, 4)))
	if errno != abi.ErrnoSuccess {
		return errno, nil
	}
	return errno, mem.WriteU32(preview1.U32(params, 8), fd)
}

// path_filestat_get(fd, flags, path, path_len, buf)
func (h *handlers) pathFilestat(_ context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error) {
	rel, err := h.codec.ReadString(mem, preview1.U32(params, 2), preview1.U32(params, 3))
	if err != nil {
		return 0, err
	}
	ft, size, errno := h.table.PathStat(preview1.U32(params, 0), rel)
	if errno != abi.ErrnoSuccess {
		return errno, nil
	}
	return errno, h.codec.WriteFilestat(mem, preview1.U32(params, 4), ft, size)
}

// pathOp adapts a (dirfd, path, path_len) call.
func (h *handlers) pathOp(mem wasishim.Memory, params []uint64, op func(uint32, string) abi.Errno) (abi.Errno, error) {
	rel, err := h.codec.ReadString(mem, preview1.U32(params, 1), preview1.U32(params, 2))
	if err != nil {
		return 0, err
	}
	return op(preview1.U32(params, 0), rel), nil
}

func (h *handlers) mkdir(_ context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error) {
	return h.pathOp(mem, params, h.table.Mkdir)
}

func (h *handlers) unlink(_ context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error) {
	return h.pathOp(mem, params, h.table.Unlink)
}

func (h *handlers) rmdir(_ context.Context, mem wasishim.Memory, params []uint64) (abi.Errno, error) {
	return h.pathOp(mem, params, h.table.Rmdir)
}
