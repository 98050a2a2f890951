package vfs

import (
	"errors"
	"testing"
)

func TestNew_DefaultPreopen(t *testing.T) {
	fs, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := fs.Preopens(); len(got) != 1 || got[0] != "/" {
		t.Errorf("Preopens = %v, want [/]", got)
	}
	n, ok := fs.Lookup(DevNull)
	if !ok {
		t.Fatal("/dev/null missing")
	}
	if n.Kind() != KindDevice {
		t.Errorf("/dev/null kind = %v, want device", n.Kind())
	}
}

func TestNew_Preopens(t *testing.T) {
	fs, err := New("/sandbox", "/data/in")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	got := fs.Preopens()
	if len(got) != 2 || got[0] != "/sandbox" || got[1] != "/data/in" {
		t.Errorf("Preopens = %v", got)
	}
	for _, p := range []string{"/sandbox", "/data", "/data/in"} {
		n, ok := fs.Lookup(p)
		if !ok || n.Kind() != KindDirectory {
			t.Errorf("%s should be a directory", p)
		}
	}

	// returned slice is a copy
	got[0] = "/mutated"
	if fs.Preopens()[0] != "/sandbox" {
		t.Error("Preopens exposed internal slice")
	}
}

func TestAddFile_CreatesParents(t *testing.T) {
	fs, _ := New()
	if err := fs.AddFile("/a/b/c.txt", []byte("hello")); err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}
	n, ok := fs.Lookup("/a/b/c.txt")
	if !ok {
		t.Fatal("file missing")
	}
	f, ok := n.(*File)
	if !ok {
		t.Fatalf("got %T, want *File", n)
	}
	if string(f.Bytes()) != "hello" {
		t.Errorf("content = %q", f.Bytes())
	}

	if err := fs.AddFile("/a/b/c.txt/d", nil); !errors.Is(err, ErrNotDir) {
		t.Errorf("AddFile under a file: got %v, want ErrNotDir", err)
	}
	if err := fs.AddFile("/", nil); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("AddFile at root: got %v, want ErrInvalidPath", err)
	}
}

func TestResolve(t *testing.T) {
	fs, _ := New("/sandbox")
	_ = fs.AddFile("/sandbox/a.txt", []byte("a"))
	_ = fs.AddFile("/etc/hosts", []byte("h"))
	sandbox, _ := fs.EnsureDir("/sandbox")

	tests := []struct {
		name    string
		rel     string
		want    Kind
		wantErr bool
	}{
		{"empty is self", "", KindDirectory, false},
		{"dot is self", ".", KindDirectory, false},
		{"plain file", "a.txt", KindFile, false},
		{"dot segments skipped", "./././a.txt", KindFile, false},
		{"dotdot jumps to root", "../etc/hosts", KindFile, false},
		{"dotdot from deep still root", "x/../../etc/hosts", KindFile, false},
		{"missing", "b.txt", 0, true},
		{"through a file", "a.txt/x", 0, true},
		{"extra slashes", "//a.txt", KindFile, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := fs.Resolve(sandbox, tt.rel)
			if tt.wantErr {
				if !errors.Is(err, ErrNotExist) {
					t.Fatalf("got %v, want ErrNotExist", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if n.Kind() != tt.want {
				t.Errorf("kind = %v, want %v", n.Kind(), tt.want)
			}
		})
	}
}

func TestCreateFileIn(t *testing.T) {
	fs, _ := New("/sandbox")
	sandbox, _ := fs.EnsureDir("/sandbox")

	f, err := fs.CreateFileIn(sandbox, "deep/er/new.txt")
	if err != nil {
		t.Fatalf("CreateFileIn failed: %v", err)
	}
	if f.Size() != 0 {
		t.Errorf("new file size = %d", f.Size())
	}
	if _, ok := fs.Lookup("/sandbox/deep/er/new.txt"); !ok {
		t.Error("created file not reachable")
	}

	_ = fs.AddFile("/sandbox/plain", nil)
	if _, err := fs.CreateFileIn(sandbox, "plain/child"); !errors.Is(err, ErrNotDir) {
		t.Errorf("create under file: got %v, want ErrNotDir", err)
	}
	if _, err := fs.CreateFileIn(sandbox, ".."); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("create named ..: got %v, want ErrInvalidPath", err)
	}
}

func TestMkdirIn(t *testing.T) {
	fs, _ := New()
	root := fs.Root()

	if _, err := fs.MkdirIn(root, "work"); err != nil {
		t.Fatalf("MkdirIn failed: %v", err)
	}
	if _, err := fs.MkdirIn(root, "work"); !errors.Is(err, ErrExist) {
		t.Errorf("second mkdir: got %v, want ErrExist", err)
	}
	if _, err := fs.MkdirIn(root, "missing/child"); !errors.Is(err, ErrNotExist) {
		t.Errorf("mkdir without parent: got %v, want ErrNotExist", err)
	}
}

func TestRemoveIn(t *testing.T) {
	fs, _ := New()
	root := fs.Root()
	_ = fs.AddFile("/d/f", []byte("x"))
	_, _ = fs.EnsureDir("/empty")

	tests := []struct {
		name    string
		rel     string
		wantDir bool
		want    error
	}{
		{"non-empty dir", "d", true, ErrNotEmpty},
		{"unlink dir", "d", false, ErrIsDir},
		{"rmdir file", "d/f", true, ErrNotDir},
		{"missing", "nope", false, ErrNotExist},
		{"unlink file", "d/f", false, nil},
		{"rmdir now empty", "d", true, nil},
		{"rmdir empty", "empty", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fs.RemoveIn(root, tt.rel, tt.wantDir)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("RemoveIn failed: %v", err)
				}
				if _, ok := fs.Lookup("/" + tt.rel); ok {
					t.Error("entry still present")
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

type closingBlob struct {
	memBlob
	closed bool
}

func (b *closingBlob) Close() error {
	b.closed = true
	return nil
}

func TestClose_ReleasesBlobs(t *testing.T) {
	fs, _ := New()
	blob := &closingBlob{}
	if err := fs.AddBlob("/lazy/x", blob); err != nil {
		t.Fatal(err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !blob.closed {
		t.Error("blob not closed")
	}
}
