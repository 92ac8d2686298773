package materialize

import (
	"context"
	"testing"

	"github.com/scode/shastity/backend"
	"github.com/scode/shastity/backend/inmemory"
	"github.com/scode/shastity/digest"
	"github.com/scode/shastity/fsutil/memfs"
	"github.com/scode/shastity/manifest"
	"github.com/scode/shastity/metadata"
	"github.com/scode/shastity/queue"
)

func newTestQueue(b backend.Backend) *queue.Queue {
	return queue.New(func(ctx context.Context) (backend.Backend, error) { return b, nil }, 4)
}

func sendEntries(entries []manifest.Entry) (<-chan manifest.Entry, <-chan error) {
	ch := make(chan manifest.Entry)
	errc := make(chan error, 1)
	go func() {
		defer close(ch)
		defer close(errc)
		for _, e := range entries {
			ch <- e
		}
	}()
	return ch, errc
}

func TestMaterializeReassemblesBlocksInOrder(t *testing.T) {
	ctx := context.Background()
	fs := memfs.New()
	if err := fs.Mkdir("/dest"); err != nil {
		t.Fatal(err)
	}

	dataBackend := inmemory.New("")
	hasher := digest.NewHasher()
	blockA := []byte("AAAA")
	blockB := []byte("BB")
	dA := hasher(blockA)
	dB := hasher(blockB)
	if err := dataBackend.Put(ctx, dA.Hex(), blockA); err != nil {
		t.Fatal(err)
	}
	if err := dataBackend.Put(ctx, dB.Hex(), blockB); err != nil {
		t.Fatal(err)
	}

	q := newTestQueue(dataBackend)
	m, err := New(fs, q, "/dest")
	if err != nil {
		t.Fatal(err)
	}

	fileMeta := metadata.New(metadata.Params{
		Type: metadata.Regular,
		UserRead: true, UserWrite: true,
		GroupRead: true,
		OtherRead: true,
	})

	entries := []manifest.Entry{
		{Path: "file", Metadata: fileMeta, Digests: []digest.BlockDigest{dA, dB}},
	}
	entryCh, errc := sendEntries(entries)

	if err := m.Run(ctx, entryCh, errc); err != nil {
		t.Fatal(err)
	}

	f, err := fs.Open("/dest/file", false)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 6)
	n, err := f.ReadAt(buf, 0)
	if err != nil && n != 6 {
		t.Fatal(err)
	}
	if string(buf) != "AAAABB" {
		t.Fatalf("got %q, want AAAABB", buf)
	}
}

func TestMaterializeRecreatesDirectoriesAndSymlinks(t *testing.T) {
	ctx := context.Background()
	fs := memfs.New()
	if err := fs.Mkdir("/dest"); err != nil {
		t.Fatal(err)
	}

	q := newTestQueue(inmemory.New(""))
	m, err := New(fs, q, "/dest")
	if err != nil {
		t.Fatal(err)
	}

	dirMeta := metadata.New(metadata.Params{
		Type: metadata.Directory,
		UserRead: true, UserWrite: true, UserExecute: true,
	})
	linkMeta := metadata.New(metadata.Params{Type: metadata.Symlink})
	linkMeta = metadata.WithLinkTarget(linkMeta, "../somewhere")

	entries := []manifest.Entry{
		{Path: "sub", Metadata: dirMeta},
		{Path: "sub/link", Metadata: linkMeta},
	}
	entryCh, errc := sendEntries(entries)

	if err := m.Run(ctx, entryCh, errc); err != nil {
		t.Fatal(err)
	}

	isDir, err := fs.IsDir("/dest/sub")
	if err != nil || !isDir {
		t.Fatalf("expected /dest/sub to be a directory: %v %v", isDir, err)
	}
	target, err := fs.Readlink("/dest/sub/link")
	if err != nil {
		t.Fatal(err)
	}
	if target != "../somewhere" {
		t.Fatalf("got %q", target)
	}
}

func TestMaterializeRejectsNonDirectoryDestination(t *testing.T) {
	fs := memfs.New()
	f, err := fs.Open("/notadir", true)
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	q := newTestQueue(inmemory.New(""))
	if _, err := New(fs, q, "/notadir"); err == nil {
		t.Fatalf("expected DestinationPathNotDirectoryError")
	}
}

func TestMaterializeRejectsAbsoluteEntryPath(t *testing.T) {
	ctx := context.Background()
	fs := memfs.New()
	if err := fs.Mkdir("/dest"); err != nil {
		t.Fatal(err)
	}
	q := newTestQueue(inmemory.New(""))
	m, err := New(fs, q, "/dest")
	if err != nil {
		t.Fatal(err)
	}

	fileMeta := metadata.New(metadata.Params{Type: metadata.Regular})
	entries := []manifest.Entry{{Path: "/abs", Metadata: fileMeta}}
	entryCh, errc := sendEntries(entries)

	if err := m.Run(ctx, entryCh, errc); err == nil {
		t.Fatalf("expected error for absolute manifest path")
	}
}
