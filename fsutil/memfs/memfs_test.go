package memfs

import (
	"testing"
)

func TestMkdirAndListDir(t *testing.T) {
	fs := New()
	if err := fs.Mkdir("/a"); err != nil {
		t.Fatal(err)
	}
	if err := fs.Mkdir("/a/b"); err != nil {
		t.Fatal(err)
	}

	names, err := fs.ListDir("/a")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "b" {
		t.Fatalf("got %v", names)
	}
}

func TestOpenWriteReadRoundTrip(t *testing.T) {
	fs := New()
	f, err := fs.Open("/file", true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("hello world")); err != nil {
		t.Fatal(err)
	}
	f.Close()

	r, err := fs.Open("/file", false)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 5)
	n, err := r.ReadAt(buf, 6)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 || string(buf) != "world" {
		t.Fatalf("got %q", buf[:n])
	}
}

func TestSymlinkAndReadlink(t *testing.T) {
	fs := New()
	if err := fs.Symlink("/target", "/link"); err != nil {
		t.Fatal(err)
	}
	target, err := fs.Readlink("/link")
	if err != nil {
		t.Fatal(err)
	}
	if target != "/target" {
		t.Fatalf("got %q", target)
	}
	isLink, err := fs.IsSymlink("/link")
	if err != nil {
		t.Fatal(err)
	}
	if !isLink {
		t.Fatalf("expected symlink")
	}
}

func TestRmdirRejectsNonEmpty(t *testing.T) {
	fs := New()
	fs.Mkdir("/a")
	fs.Mkdir("/a/b")
	if err := fs.Rmdir("/a"); err == nil {
		t.Fatalf("expected error removing non-empty dir")
	}
}

func TestMkdtempUniqueNames(t *testing.T) {
	fs := New()
	d1, err := fs.Mkdtemp("")
	if err != nil {
		t.Fatal(err)
	}
	d2, err := fs.Mkdtemp("")
	if err != nil {
		t.Fatal(err)
	}
	if d1 == d2 {
		t.Fatalf("expected unique temp dirs, got %q twice", d1)
	}
}

func TestExistsFalseForMissing(t *testing.T) {
	fs := New()
	ok, err := fs.Exists("/nope")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected false")
	}
}

func TestLstatDirectory(t *testing.T) {
	fs := New()
	fs.Mkdir("/a")
	m, err := fs.Lstat("/a")
	if err != nil {
		t.Fatal(err)
	}
	if !m.IsDirectory() {
		t.Fatalf("expected directory")
	}
}
