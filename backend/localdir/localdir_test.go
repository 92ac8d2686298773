package localdir

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/scode/shastity/backend"
)

func TestPutGetDelete(t *testing.T) {
	dir := t.TempDir()
	d, err := New(filepath.Join(dir, "store"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if exists, _ := d.Exists(ctx); exists {
		t.Fatalf("expected not to exist before Create")
	}
	if err := d.Create(ctx); err != nil {
		t.Fatal(err)
	}

	if err := d.Put(ctx, "a", []byte("hello")); err != nil {
		t.Fatal(err)
	}

	got, err := d.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}

	names, err := d.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "a" {
		t.Fatalf("unexpected listing: %v", names)
	}

	if err := d.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Get(ctx, "a"); !backend.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestPutLeavesNoTempDebrisOnSuccess(t *testing.T) {
	dir := t.TempDir()
	d, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := d.Put(ctx, "x", []byte("y")); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "x" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}

func TestExistsCleansStaleTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, hiddenPrefix+"stale"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	exists, err := d.Exists(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatalf("expected existing directory to report exists")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected stale temp file to be cleaned up, found: %v", entries)
	}
}

func TestNameRejectsPathSeparator(t *testing.T) {
	d, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Put(context.Background(), "a/b", []byte("x")); err == nil {
		t.Fatalf("expected error for name containing path separator")
	}
}
