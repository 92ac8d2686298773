package inmemory

import (
	"context"
	"testing"

	"github.com/scode/shastity/backend"
)

func TestIsolatedInstancesDoNotShareData(t *testing.T) {
	ctx := context.Background()
	a := New("")
	b := New("")

	if err := a.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Get(ctx, "k"); !backend.IsNotFound(err) {
		t.Fatalf("expected isolated instances, got %v", err)
	}
}

func TestSharedIdentifierSharesData(t *testing.T) {
	ctx := context.Background()
	a := New("shared-1")
	b := New("shared-1")

	if err := a.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	got, err := b.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v" {
		t.Fatalf("got %q", got)
	}
}

func TestPutCopiesInputBuffer(t *testing.T) {
	ctx := context.Background()
	d := New("")
	buf := []byte("original")
	if err := d.Put(ctx, "k", buf); err != nil {
		t.Fatal(err)
	}
	buf[0] = 'X'

	got, err := d.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "original" {
		t.Fatalf("Put must copy its input, got %q", got)
	}
}

func TestDeleteUnknownIsNotFound(t *testing.T) {
	d := New("")
	if err := d.Delete(context.Background(), "missing"); !backend.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestExistsAlwaysTrue(t *testing.T) {
	d := New("")
	ok, err := d.Exists(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected (true, nil), got (%v, %v)", ok, err)
	}
}
