package filesystem

import (
	"bytes"
	"context"
	"testing"

	"github.com/wippyai/wasishim"
	"github.com/wippyai/wasishim/abi"
	"github.com/wippyai/wasishim/internal/memory"
	"github.com/wippyai/wasishim/internal/wasmtest"
	"github.com/wippyai/wasishim/vfs"
	"github.com/wippyai/wasishim/wasi/preview1"
)

type guest struct {
	t       *testing.T
	mem     wasishim.Memory
	imports preview1.Imports
}

func newGuest(t *testing.T, opts Options) *guest {
	t.Helper()
	feature, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mem := memory.WrapMemory(wasmtest.NewMemory(t))
	env := preview1.NewEnv(&preview1.Options{}, func() (wasishim.Memory, error) { return mem, nil })
	return &guest{t: t, mem: mem, imports: feature(env)}
}

func (g *guest) call(name string, params ...uint64) abi.Errno {
	g.t.Helper()
	res, err := g.imports[name](context.Background(), params)
	if err != nil {
		g.t.Fatalf("%s: %v", name, err)
	}
	if res.IsDeferred() {
		v, err := res.Future.Await(context.Background())
		if err != nil {
			g.t.Fatalf("%s await: %v", name, err)
		}
		return abi.Errno(v)
	}
	return abi.Errno(res.Value)
}

// iovec writes one iovec record at ptr pointing to [buf, buf+n).
func (g *guest) iovec(ptr, buf, n uint32) {
	_ = g.mem.WriteU32(ptr, buf)
	_ = g.mem.WriteU32(ptr+4, n)
}

func (g *guest) u32(ptr uint32) uint32 {
	v, _ := g.mem.ReadU32(ptr)
	return v
}

func TestFeature_Scenario(t *testing.T) {
	g := newGuest(t, Options{Preopens: []string{"/sandbox"}})

	_ = g.mem.Write(1000, []byte("a.txt"))
	if errno := g.call("path_open", 3, 0, 1000, 5, uint64(abi.OflagCreat), 0, 0, 0, 100); errno != abi.ErrnoSuccess {
		t.Fatalf("path_open = %v", errno)
	}
	fd := uint64(g.u32(100))

	_ = g.mem.Write(2000, []byte("hi"))
	g.iovec(200, 2000, 2)
	if errno := g.call("fd_write", fd, 200, 1, 104); errno != abi.ErrnoSuccess || g.u32(104) != 2 {
		t.Fatalf("fd_write = %v, nwritten %d", errno, g.u32(104))
	}

	_ = g.mem.WriteU64(112, 99)
	if errno := g.call("fd_seek", fd, 0, uint64(abi.WhenceSet), 112); errno != abi.ErrnoSuccess {
		t.Fatalf("fd_seek = %v", errno)
	}
	if pos, _ := g.mem.ReadU64(112); pos != 0 {
		t.Errorf("new offset = %d", pos)
	}

	g.iovec(200, 3000, 10)
	if errno := g.call("fd_read", fd, 200, 1, 108); errno != abi.ErrnoSuccess {
		t.Fatalf("fd_read = %v", errno)
	}
	n := g.u32(108)
	got, _ := g.mem.Read(3000, n)
	if string(got) != "hi" {
		t.Errorf("read %q", got)
	}

	_ = g.mem.WriteU64(120, 99)
	if errno := g.call("fd_tell", fd, 120); errno != abi.ErrnoSuccess {
		t.Fatalf("fd_tell = %v", errno)
	}
	if pos, _ := g.mem.ReadU64(120); pos != 2 {
		t.Errorf("tell = %d, want 2", pos)
	}

	if errno := g.call("fd_filestat_get", fd, 400); errno != abi.ErrnoSuccess {
		t.Fatalf("fd_filestat_get = %v", errno)
	}
	rec, _ := g.mem.Read(400, abi.FilestatSize)
	if rec[16] != byte(abi.FiletypeRegularFile) {
		t.Errorf("filetype = %d", rec[16])
	}
	if size, _ := g.mem.ReadU64(432); size != 2 {
		t.Errorf("size = %d", size)
	}

	if errno := g.call("fd_close", fd); errno != abi.ErrnoSuccess {
		t.Fatalf("fd_close = %v", errno)
	}
	if errno := g.call("fd_close", fd); errno != abi.ErrnoBadf {
		t.Errorf("second fd_close = %v", errno)
	}
}

func TestFeature_Prestat(t *testing.T) {
	g := newGuest(t, Options{Preopens: []string{"/sandbox"}})

	if errno := g.call("fd_prestat_get", 3, 100); errno != abi.ErrnoSuccess {
		t.Fatalf("fd_prestat_get = %v", errno)
	}
	tag, _ := g.mem.ReadU8(100)
	if tag != abi.PrestatDir || g.u32(104) != 8 {
		t.Errorf("prestat = tag %d len %d", tag, g.u32(104))
	}

	if errno := g.call("fd_prestat_dir_name", 3, 200, 8); errno != abi.ErrnoSuccess {
		t.Fatalf("fd_prestat_dir_name = %v", errno)
	}
	name, _ := g.mem.Read(200, 8)
	if string(name) != "/sandbox" {
		t.Errorf("name = %q", name)
	}

	tests := []struct {
		name   string
		call   string
		params []uint64
		want   abi.Errno
	}{
		{"stdio", "fd_prestat_get", []uint64{0, 100}, abi.ErrnoBadf},
		{"unknown", "fd_prestat_get", []uint64{7, 100}, abi.ErrnoBadf},
		{"length mismatch", "fd_prestat_dir_name", []uint64{3, 200, 3}, abi.ErrnoInval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if errno := g.call(tt.call, tt.params...); errno != tt.want {
				t.Errorf("%s = %v, want %v", tt.call, errno, tt.want)
			}
		})
	}
}

func TestFeature_Fdstat(t *testing.T) {
	g := newGuest(t, Options{})
	tests := []struct {
		fd   uint64
		want abi.Filetype
	}{
		{0, abi.FiletypeCharDevice},
		{1, abi.FiletypeCharDevice},
		{3, abi.FiletypeDirectory},
	}
	for _, tt := range tests {
		_ = g.mem.Write(0, bytes.Repeat([]byte{0xff}, abi.FdstatSize))
		if errno := g.call("fd_fdstat_get", tt.fd, 0); errno != abi.ErrnoSuccess {
			t.Fatalf("fd_fdstat_get(%d) = %v", tt.fd, errno)
		}
		rec, _ := g.mem.Read(0, abi.FdstatSize)
		want := make([]byte, abi.FdstatSize)
		want[0] = byte(tt.want)
		if !bytes.Equal(rec, want) {
			t.Errorf("fdstat(%d) = %v", tt.fd, rec)
		}
	}
	if errno := g.call("fd_fdstat_get", 50, 0); errno != abi.ErrnoBadf {
		t.Errorf("unknown fd = %v", errno)
	}
}

func TestFeature_Stdout(t *testing.T) {
	var out bytes.Buffer
	g := newGuest(t, Options{Stdout: WriterSink(&out), Stdin: ReaderSource(bytes.NewReader([]byte("typed")))})

	_ = g.mem.Write(500, []byte("hello"))
	g.iovec(0, 500, 3)
	g.iovec(8, 503, 2)
	if errno := g.call("fd_write", 1, 0, 2, 100); errno != abi.ErrnoSuccess || g.u32(100) != 5 {
		t.Fatalf("fd_write = %v, %d", errno, g.u32(100))
	}
	if out.String() != "hello" {
		t.Errorf("stdout = %q", out.String())
	}

	g.iovec(0, 600, 16)
	if errno := g.call("fd_read", 0, 0, 1, 100); errno != abi.ErrnoSuccess {
		t.Fatalf("fd_read(0) = %v", errno)
	}
	in, _ := g.mem.Read(600, g.u32(100))
	if string(in) != "typed" {
		t.Errorf("stdin = %q", in)
	}
}

func TestFeature_LazyReadDefers(t *testing.T) {
	fs, err := vfs.New()
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("lazy content")
	_ = fs.AddBlob("/blob", vfs.NewReaderAtBlob(bytes.NewReader(data), int64(len(data))))
	_ = fs.AddFile("/plain", []byte("plain"))
	g := newGuest(t, Options{FS: fs})

	_ = g.mem.Write(1000, []byte("blob"))
	if errno := g.call("path_open", 3, 0, 1000, 4, 0, 0, 0, 0, 100); errno != abi.ErrnoSuccess {
		t.Fatalf("path_open = %v", errno)
	}
	lazyFD := uint64(g.u32(100))
	_ = g.mem.Write(1000, []byte("plain"))
	if errno := g.call("path_open", 3, 0, 1000, 5, 0, 0, 0, 0, 100); errno != abi.ErrnoSuccess {
		t.Fatalf("path_open = %v", errno)
	}
	plainFD := uint64(g.u32(100))

	g.iovec(200, 2000, 64)
	res, err := g.imports["fd_read"](context.Background(), []uint64{lazyFD, 200, 1, 104})
	if err != nil || !res.IsDeferred() {
		t.Fatalf("lazy fd_read = %+v, %v; want deferred", res, err)
	}
	if g.u32(104) != 0 {
		t.Error("nread written before the future ran")
	}
	v, err := res.Future.Await(context.Background())
	if err != nil || abi.Errno(v) != abi.ErrnoSuccess {
		t.Fatalf("await = %d, %v", v, err)
	}
	got, _ := g.mem.Read(2000, g.u32(104))
	if string(got) != "lazy content" {
		t.Errorf("read %q", got)
	}

	res, err = g.imports["fd_read"](context.Background(), []uint64{plainFD, 200, 1, 104})
	if err != nil || res.IsDeferred() || abi.Errno(res.Value) != abi.ErrnoSuccess {
		t.Errorf("plain fd_read = %+v, %v; want immediate success", res, err)
	}
}

func TestFeature_PathHandlers(t *testing.T) {
	g := newGuest(t, Options{Preopens: []string{"/work"}})
	put := func(s string) (uint64, uint64) {
		_ = g.mem.Write(1000, []byte(s))
		return 1000, uint64(len(s))
	}

	p, n := put("dir")
	if errno := g.call("path_create_directory", 3, p, n); errno != abi.ErrnoSuccess {
		t.Fatalf("path_create_directory = %v", errno)
	}
	p, n = put("dir")
	if errno := g.call("path_filestat_get", 3, 0, p, n, 300); errno != abi.ErrnoSuccess {
		t.Fatalf("path_filestat_get = %v", errno)
	}
	if ft, _ := g.mem.ReadU8(316); ft != uint8(abi.FiletypeDirectory) {
		t.Errorf("filetype = %d", ft)
	}
	p, n = put("dir")
	if errno := g.call("path_remove_directory", 3, p, n); errno != abi.ErrnoSuccess {
		t.Fatalf("path_remove_directory = %v", errno)
	}

	p, n = put("f")
	if errno := g.call("path_open", 3, 0, p, n, uint64(abi.OflagCreat), 0, 0, 0, 100); errno != abi.ErrnoSuccess {
		t.Fatalf("path_open = %v", errno)
	}
	fd := uint64(g.u32(100))
	if errno := g.call("fd_filestat_set_size", fd, 16); errno != abi.ErrnoSuccess {
		t.Fatalf("fd_filestat_set_size = %v", errno)
	}
	_ = g.mem.Write(2000, []byte("xy"))
	g.iovec(200, 2000, 2)
	if errno := g.call("fd_pwrite", fd, 200, 1, 4, 104); errno != abi.ErrnoSuccess || g.u32(104) != 2 {
		t.Fatalf("fd_pwrite = %v, %d", errno, g.u32(104))
	}
	g.iovec(200, 3000, 4)
	if errno := g.call("fd_pread", fd, 200, 1, 3, 104); errno != abi.ErrnoSuccess {
		t.Fatalf("fd_pread = %v", errno)
	}
	got, _ := g.mem.Read(3000, g.u32(104))
	if !bytes.Equal(got, []byte{0, 'x', 'y', 0}) {
		t.Errorf("pread = %v", got)
	}

	p, n = put("f")
	if errno := g.call("path_unlink_file", 3, p, n); errno != abi.ErrnoSuccess {
		t.Fatalf("path_unlink_file = %v", errno)
	}
	p, n = put("f")
	if errno := g.call("path_filestat_get", 3, 0, p, n, 300); errno != abi.ErrnoNoent {
		t.Errorf("path_filestat_get after unlink = %v", errno)
	}
}

func TestFeature_MemoryFault(t *testing.T) {
	g := newGuest(t, Options{})
	g.iovec(0, 65530, 100)
	if _, err := g.imports["fd_write"](context.Background(), []uint64{1, 0, 1, 8}); err == nil {
		t.Error("expected fault for iovec past end of memory")
	}
}

func TestNew_BadPreopen(t *testing.T) {
	if _, err := New(Options{Preopens: []string{"/dev/null"}}); err == nil {
		t.Error("expected error for a preopen through a device")
	}
}

func TestFeature_Names(t *testing.T) {
	g := newGuest(t, Options{})
	want := []string{
		"fd_read", "fd_pread", "fd_write", "fd_pwrite", "fd_close", "fd_seek",
		"fd_tell", "fd_fdstat_get", "fd_filestat_get", "fd_filestat_set_size",
		"fd_prestat_get", "fd_prestat_dir_name", "path_open", "path_filestat_get",
		"path_create_directory", "path_unlink_file", "path_remove_directory",
	}
	for _, name := range want {
		if g.imports[name] == nil {
			t.Errorf("missing handler %s", name)
		}
	}
}
