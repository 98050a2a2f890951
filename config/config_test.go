package config

import (
	"bytes"
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/wippyai/wasishim/asyncify"
	"github.com/wippyai/wasishim/errors"
	"github.com/wippyai/wasishim/vfs"
)

const sample = `
args: [example, /input.txt]
env: {HOME: /}
preopens: [/sandbox]
features: [args, environ, clock, random, fs]
output: text
files:
  - {path: /sandbox/a.txt, content: "hi"}
asyncify: {data_addr: 16, stack_end: 8388608}
log: {level: info, format: console}
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(cfg.Args) != 2 || cfg.Args[1] != "/input.txt" {
		t.Errorf("Args = %v", cfg.Args)
	}
	if cfg.Env["HOME"] != "/" {
		t.Errorf("Env = %v", cfg.Env)
	}
	if len(cfg.Files) != 1 || cfg.Files[0].Content != "hi" {
		t.Errorf("Files = %+v", cfg.Files)
	}
	if l := cfg.Layout(); l != asyncify.DefaultLayout() {
		t.Errorf("Layout = %+v, want default", l)
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(cfg.FeatureList()) != 0 {
		t.Errorf("FeatureList = %v, want empty", cfg.FeatureList())
	}
}

func TestParse_UnknownKey(t *testing.T) {
	_, err := Parse([]byte("argz: [a]\n"))
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindInvalidData}) {
		t.Fatalf("expected config decode error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"empty", Config{}, true},
		{"content", Config{Files: []File{{Path: "/a", Content: "x"}}}, true},
		{"lazy host", Config{Files: []File{{Path: "/a", Host: "a.bin", Lazy: true}}}, true},
		{"lazy url", Config{Files: []File{{Path: "/a", URL: "http://x/a", Lazy: true}}}, true},
		{"zstd host", Config{Files: []File{{Path: "/a", Host: "a.zst", Compression: "zstd"}}}, true},
		{"no source", Config{Files: []File{{Path: "/a"}}}, false},
		{"two sources", Config{Files: []File{{Path: "/a", Content: "x", Host: "a"}}}, false},
		{"relative path", Config{Files: []File{{Path: "a", Content: "x"}}}, false},
		{"lazy content", Config{Files: []File{{Path: "/a", Content: "x", Lazy: true}}}, false},
		{"compressed url", Config{Files: []File{{Path: "/a", URL: "http://x", Compression: "lz4"}}}, false},
		{"compressed lazy", Config{Files: []File{{Path: "/a", Host: "a", Lazy: true, Compression: "zstd"}}}, false},
		{"unknown compression", Config{Files: []File{{Path: "/a", Host: "a", Compression: "gzip"}}}, false},
		{"unknown feature", Config{Features: []string{"sockets"}}, false},
		{"unknown output", Config{Output: "html"}, false},
		{"relative preopen", Config{Preopens: []string{"sandbox"}}, false},
		{"bad level", Config{Log: Log{Level: "loud"}}, false},
		{"bad format", Config{Log: Log{Format: "xml"}}, false},
		{"bad layout", Config{Asyncify: Asyncify{DataAddr: 1024, StackEnd: 1028}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindInvalidInput}) {
					t.Errorf("error = %v, want config invalid input", err)
				}
			}
		})
	}
}

func TestValidate_ErrorPath(t *testing.T) {
	cfg := Config{Files: []File{{Path: "/a", Content: "x"}, {Path: "/b", Host: "b", Compression: "gzip"}}}
	var e *errors.Error
	if !stderrors.As(cfg.Validate(), &e) {
		t.Fatal("expected *errors.Error")
	}
	want := []string{"files", "1", "compression"}
	if len(e.Path) != len(want) {
		t.Fatalf("Path = %v, want %v", e.Path, want)
	}
	for i := range want {
		if e.Path[i] != want[i] {
			t.Errorf("Path = %v, want %v", e.Path, want)
		}
	}
}

func TestLayout_Override(t *testing.T) {
	cfg := Config{Asyncify: Asyncify{DataAddr: 1024}}
	l := cfg.Layout()
	if l.DataAddr != 1024 || l.StackEnd != asyncify.DefaultStackEnd {
		t.Errorf("Layout = %+v", l)
	}
}

func TestLogger(t *testing.T) {
	for _, format := range []string{"", "console", "json"} {
		cfg := Config{Log: Log{Level: "debug", Format: format}}
		log, err := cfg.Logger()
		if err != nil {
			t.Fatalf("Logger(%q) failed: %v", format, err)
		}
		if !log.Core().Enabled(-1) {
			t.Errorf("Logger(%q) should enable debug", format)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Dir != dir {
		t.Errorf("Dir = %q, want %q", cfg.Dir, dir)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func readFile(t *testing.T, fs *vfs.FS, path string) (*vfs.File, []byte) {
	t.Helper()
	n, ok := fs.Lookup(path)
	if !ok {
		t.Fatalf("%s not seeded", path)
	}
	f, ok := n.(*vfs.File)
	if !ok {
		t.Fatalf("%s is %v, want file", path, n.Kind())
	}
	buf := make([]byte, f.Size())
	if _, err := f.ReadAt(context.Background(), buf, 0); err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return f, buf
}

func TestBuildFS(t *testing.T) {
	dir := t.TempDir()
	text := []byte("the quick brown fox jumps over the lazy dog")

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	zst := enc.EncodeAll(text, nil)
	_ = enc.Close()

	var lz bytes.Buffer
	w := lz4.NewWriter(&lz)
	if _, err := w.Write(text); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	for name, data := range map[string][]byte{"words.zst": zst, "data.lz4": lz.Bytes(), "big.bin": text} {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "remote.bin", time.Time{}, bytes.NewReader(text))
	}))
	defer srv.Close()

	cfg := &Config{
		Preopens: []string{"/sandbox"},
		Dir:      dir,
		Files: []File{
			{Path: "/sandbox/a.txt", Content: "hi"},
			{Path: "/etc/words", Host: "words.zst", Compression: CompressionZstd},
			{Path: "/etc/data", Host: "data.lz4", Compression: CompressionLZ4},
			{Path: "/data/big.bin", Host: "big.bin", Lazy: true},
			{Path: "/data/remote.bin", URL: srv.URL, Lazy: true},
			{Path: "/data/eager.bin", URL: srv.URL},
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	fs, err := cfg.BuildFS(context.Background(), srv.Client())
	if err != nil {
		t.Fatalf("BuildFS failed: %v", err)
	}
	defer fs.Close()

	if _, got := readFile(t, fs, "/sandbox/a.txt"); string(got) != "hi" {
		t.Errorf("a.txt = %q", got)
	}

	tests := []struct {
		path string
		lazy bool
	}{
		{"/etc/words", false},
		{"/etc/data", false},
		{"/data/big.bin", true},
		{"/data/remote.bin", true},
		{"/data/eager.bin", false},
	}
	for _, tt := range tests {
		f, got := readFile(t, fs, tt.path)
		if !bytes.Equal(got, text) {
			t.Errorf("%s = %q, want %q", tt.path, got, text)
		}
		if f.Lazy() != tt.lazy {
			t.Errorf("%s lazy = %v, want %v", tt.path, f.Lazy(), tt.lazy)
		}
	}
}

func TestBuildFS_Errors(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "plain.txt"), []byte("not zstd"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		file File
	}{
		{"missing host", File{Path: "/a", Host: "nope.bin"}},
		{"missing lazy host", File{Path: "/a", Host: "nope.bin", Lazy: true}},
		{"corrupt zstd", File{Path: "/a", Host: "plain.txt", Compression: CompressionZstd}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Dir: dir, Files: []File{tt.file}}
			_, err := cfg.BuildFS(context.Background(), nil)
			if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseFS, Kind: errors.KindInvalidData}) {
				t.Fatalf("error = %v, want fs invalid data", err)
			}
		})
	}
}
