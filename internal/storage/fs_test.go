package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/backlinker/internal/apperr"
)

func tempCorpus(t *testing.T, opts ...FSOption) *FS {
	t.Helper()
	dir := t.TempDir()
	store, err := NewFS(dir, opts...)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return store
}

func TestWriteAndRead(t *testing.T) {
	s := tempCorpus(t)
	content := []byte("# Hello\nWorld\n")
	if err := s.Write("note.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWritePreservesMode(t *testing.T) {
	s := tempCorpus(t)
	abs := filepath.Join(s.Root(), "ro.md")
	if err := os.WriteFile(abs, []byte("a"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("ro.md", []byte("b")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestList_SortedAndFiltered(t *testing.T) {
	s := tempCorpus(t)
	_ = s.Write("b.md", []byte("b"))
	_ = s.Write("a/z.md", []byte("z"))
	_ = s.Write("a.md", []byte("a"))
	_ = s.Write("readme.txt", []byte("not md"))

	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var paths []string
	for _, it := range items {
		paths = append(paths, it.Path)
	}
	want := []string{"a.md", "a/z.md", "b.md"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths = %v, want %v", paths, want)
			break
		}
	}
}

func TestList_IncludeExclude(t *testing.T) {
	s := tempCorpus(t, WithInclude("notes/**/*.md"), WithExclude("**/drafts/**"))
	_ = s.Write("notes/a.md", []byte("a"))
	_ = s.Write("notes/drafts/b.md", []byte("b"))
	_ = s.Write("top.md", []byte("c"))

	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Path != "notes/a.md" {
		t.Errorf("items = %+v, want only notes/a.md", items)
	}
}

func TestNewFS_InvalidPattern(t *testing.T) {
	if _, err := NewFS(t.TempDir(), WithInclude("[")); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempCorpus(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempCorpus(t)
	_ = s.Write("atomic.md", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.md", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".backlinker-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, apperr.ErrCorpusMissing) {
		t.Errorf("err = %v, want ErrCorpusMissing", err)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "backlinker-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if !errors.Is(err, apperr.ErrCorpusMissing) {
		t.Errorf("err = %v, want ErrCorpusMissing", err)
	}
}

func TestList_SkipsUnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	s := tempCorpus(t)
	if err := s.Write("a.md", []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("locked/b.md", []byte("b")); err != nil {
		t.Fatal(err)
	}
	locked := filepath.Join(s.Root(), "locked")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	metas, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 1 || metas[0].Path != "a.md" {
		t.Errorf("List = %+v, want only a.md", metas)
	}
}

func TestVisit_WalkErrorsAreSkipped(t *testing.T) {
	s := tempCorpus(t)
	if err := os.Mkdir(filepath.Join(s.Root(), "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("gone.md", []byte("x")); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(s.Root())
	if err != nil {
		t.Fatal(err)
	}
	denied := &fs.PathError{Op: "open", Path: "sub", Err: fs.ErrPermission}

	for _, d := range entries {
		p := filepath.Join(s.Root(), d.Name())
		_, ok, err := s.visit(p, d, denied)
		if ok {
			t.Errorf("%s: unreadable entry listed", d.Name())
		}
		want := error(nil)
		if d.IsDir() {
			want = fs.SkipDir
		}
		if err != want {
			t.Errorf("%s: err = %v, want %v", d.Name(), err, want)
		}
	}

	// A file removed between ReadDir and Info is dropped, not fatal.
	var file fs.DirEntry
	for _, d := range entries {
		if d.Name() == "gone.md" {
			file = d
		}
	}
	if err := os.Remove(filepath.Join(s.Root(), "gone.md")); err != nil {
		t.Fatal(err)
	}
	_, ok, err := s.visit(filepath.Join(s.Root(), "gone.md"), file, nil)
	if ok || err != nil {
		t.Errorf("vanished file: ok = %v, err = %v", ok, err)
	}
}

func TestVisit_RootErrorIsReturned(t *testing.T) {
	s := tempCorpus(t)
	denied := &fs.PathError{Op: "open", Path: s.Root(), Err: fs.ErrPermission}
	if _, _, err := s.visit(s.Root(), nil, denied); err == nil {
		t.Fatal("expected root error to be returned")
	}
}
