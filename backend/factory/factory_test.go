package factory

import (
	"context"
	"testing"

	"github.com/scode/shastity/backend"
)

type fakeBackend struct {
	exists  bool
	created bool
}

func (f *fakeBackend) Put(ctx context.Context, name string, data []byte) error { return nil }
func (f *fakeBackend) Get(ctx context.Context, name string) ([]byte, error)    { return nil, nil }
func (f *fakeBackend) List(ctx context.Context) ([]string, error)              { return nil, nil }
func (f *fakeBackend) Delete(ctx context.Context, name string) error           { return nil }
func (f *fakeBackend) Exists(ctx context.Context) (bool, error)                { return f.exists, nil }
func (f *fakeBackend) Create(ctx context.Context) error {
	f.created = true
	f.exists = true
	return nil
}

type fakeFactory struct {
	b *fakeBackend
}

func (f fakeFactory) Create(ctx context.Context, identifier string) (backend.Backend, error) {
	return f.b, nil
}

func TestCreateInitializesMissingBackend(t *testing.T) {
	b := &fakeBackend{exists: false}
	Register("factorytest-fresh", fakeFactory{b: b})

	got, err := Create(context.Background(), "factorytest-fresh", "id")
	if err != nil {
		t.Fatal(err)
	}
	if got != b {
		t.Fatalf("expected the registered backend to be returned")
	}
	if !b.created {
		t.Fatalf("expected Create to be called on a not-yet-existing backend")
	}
}

func TestCreateSkipsCreateWhenAlreadyExists(t *testing.T) {
	b := &fakeBackend{exists: true}
	Register("factorytest-existing", fakeFactory{b: b})

	if _, err := Create(context.Background(), "factorytest-existing", "id"); err != nil {
		t.Fatal(err)
	}
	if b.created {
		t.Fatalf("expected Create not to be called on an already-existing backend")
	}
}

func TestCreateUnregisteredSchemeErrors(t *testing.T) {
	_, err := Create(context.Background(), "no-such-scheme", "id")
	if _, ok := err.(UnregisteredSchemeError); !ok {
		t.Fatalf("expected UnregisteredSchemeError, got %v", err)
	}
}

func TestRegisterPanicsOnDuplicate(t *testing.T) {
	Register("factorytest-dup", fakeFactory{b: &fakeBackend{}})

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	Register("factorytest-dup", fakeFactory{b: &fakeBackend{}})
}
