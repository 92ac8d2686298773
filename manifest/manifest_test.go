package manifest

import (
	"context"
	"testing"

	"github.com/scode/shastity/backend/inmemory"
	"github.com/scode/shastity/digest"
	"github.com/scode/shastity/metadata"
)

func drain(entries <-chan Entry, errc <-chan error) ([]Entry, error) {
	var out []Entry
	for e := range entries {
		out = append(out, e)
	}
	if err := <-errc; err != nil {
		return out, err
	}
	return out, nil
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := inmemory.New("")

	hasher := digest.NewHasher()
	d1 := hasher([]byte("block one"))
	d2 := hasher([]byte("block two"))

	fileMeta := metadata.New(metadata.Params{
		Type: metadata.Regular,
		UserRead: true, UserWrite: true,
		GroupRead: true,
		OtherRead: true,
		Size:      18,
	})
	dirMeta := metadata.New(metadata.Params{
		Type: metadata.Directory,
		UserRead: true, UserWrite: true, UserExecute: true,
		GroupRead: true, GroupExecute: true,
		OtherRead: true, OtherExecute: true,
	})
	linkMeta := metadata.New(metadata.Params{Type: metadata.Symlink})
	linkMeta = metadata.WithLinkTarget(linkMeta, "../target")

	want := []Entry{
		{Path: "top", Metadata: dirMeta},
		{Path: "top/file.txt", Metadata: fileMeta, Digests: []digest.BlockDigest{d1, d2}},
		{Path: "top/link", Metadata: linkMeta},
	}

	entries := make(chan Entry)
	go func() {
		defer close(entries)
		for _, e := range want {
			entries <- e
		}
	}()

	if err := Write(ctx, b, "snap1", entries); err != nil {
		t.Fatal(err)
	}

	readEntries, errc := Read(ctx, b, "snap1")
	got, err := drain(readEntries, errc)
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Path != want[i].Path {
			t.Fatalf("entry %d: path mismatch %q != %q", i, got[i].Path, want[i].Path)
		}
		if len(got[i].Digests) != len(want[i].Digests) {
			t.Fatalf("entry %d: digest count mismatch", i)
		}
		for j := range want[i].Digests {
			if !got[i].Digests[j].Equal(want[i].Digests[j]) {
				t.Fatalf("entry %d digest %d mismatch", i, j)
			}
		}
	}

	if got[2].Metadata.LinkTarget() != "../target" {
		t.Fatalf("symlink target lost: %q", got[2].Metadata.LinkTarget())
	}
}

func TestReadRejectsBadHeader(t *testing.T) {
	ctx := context.Background()
	b := inmemory.New("")
	if err := b.Put(ctx, "bad", []byte("not-shastity\nversion 1\nend")); err != nil {
		t.Fatal(err)
	}

	entries, errc := Read(ctx, b, "bad")
	_, err := drain(entries, errc)
	if err == nil {
		t.Fatalf("expected header error")
	}
}

func TestReadRejectsMissingVersion(t *testing.T) {
	ctx := context.Background()
	b := inmemory.New("")
	if err := b.Put(ctx, "bad", []byte("shastity\nend")); err != nil {
		t.Fatal(err)
	}

	entries, errc := Read(ctx, b, "bad")
	_, err := drain(entries, errc)
	if err == nil {
		t.Fatalf("expected missing-version error")
	}
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	b := inmemory.New("")

	entries := make(chan Entry)
	close(entries)
	if err := Write(ctx, b, "m1", entries); err != nil {
		t.Fatal(err)
	}

	names, err := List(ctx, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "m1" {
		t.Fatalf("unexpected listing: %v", names)
	}

	if err := Delete(ctx, b, "m1"); err != nil {
		t.Fatal(err)
	}
	names, err = List(ctx, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Fatalf("expected empty listing after delete, got %v", names)
	}
}

func TestNameWithDotRejected(t *testing.T) {
	ctx := context.Background()
	b := inmemory.New("")
	entries := make(chan Entry)
	close(entries)
	if err := Write(ctx, b, "bad.name", entries); err == nil {
		t.Fatalf("expected error for dotted manifest name")
	}
}
