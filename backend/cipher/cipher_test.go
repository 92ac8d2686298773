package cipher

import (
	"context"
	"testing"

	"github.com/scode/shastity/backend"
	"github.com/scode/shastity/backend/inmemory"
)

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	inner := inmemory.New("")
	b, err := New(inner, "correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Put(ctx, "k", []byte("plaintext data")); err != nil {
		t.Fatal(err)
	}

	got, err := b.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "plaintext data" {
		t.Fatalf("got %q", got)
	}
}

func TestInnerStoresCiphertextNotPlaintext(t *testing.T) {
	ctx := context.Background()
	inner := inmemory.New("")
	b, err := New(inner, "passphrase")
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Put(ctx, "k", []byte("secret value")); err != nil {
		t.Fatal(err)
	}

	raw, err := inner.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) == "secret value" {
		t.Fatalf("inner backend must not see plaintext")
	}
}

func TestWrongPassphraseFailsToDecrypt(t *testing.T) {
	ctx := context.Background()
	inner := inmemory.New("")
	b, err := New(inner, "passphrase-a")
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Put(ctx, "k", []byte("data")); err != nil {
		t.Fatal(err)
	}

	b2, err := New(inner, "passphrase-b")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b2.Get(ctx, "k"); err == nil {
		t.Fatalf("expected decryption failure with wrong passphrase")
	}
}

func TestEmptyPassphraseRejected(t *testing.T) {
	if _, err := New(inmemory.New(""), ""); err == nil {
		t.Fatalf("expected error for empty passphrase")
	}
}

func TestNotFoundPropagates(t *testing.T) {
	inner := inmemory.New("")
	b, err := New(inner, "passphrase")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Get(context.Background(), "missing"); !backend.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
