// Package factory maps a backend URI's scheme (e.g. "file", "mem",
// "s3") to a constructor, the way registry/storage/driver/factory maps
// a storage driver name to one. Concrete backend packages register
// themselves in their init() functions.
package factory

import (
	"context"
	"fmt"

	"github.com/scode/shastity/backend"
)

// Factory constructs a Backend from the identifier portion of a URI
// (the part after "scheme:").
type Factory interface {
	Create(ctx context.Context, identifier string) (backend.Backend, error)
}

var registry = make(map[string]Factory)

// Register makes a backend scheme available. Panics on duplicate
// registration or a nil factory, mirroring driver/factory.Register:
// this only ever happens at package init time, so a panic surfaces the
// programming error immediately rather than papering over it.
func Register(scheme string, f Factory) {
	if f == nil {
		panic("factory: nil Factory registered for scheme " + scheme)
	}
	if _, exists := registry[scheme]; exists {
		panic("factory: scheme already registered: " + scheme)
	}
	registry[scheme] = f
}

// Create builds a Backend for the given scheme and identifier,
// initializing the backing store via Exists/Create if it does not yet
// exist.
func Create(ctx context.Context, scheme, identifier string) (backend.Backend, error) {
	f, ok := registry[scheme]
	if !ok {
		return nil, UnregisteredSchemeError{Scheme: scheme}
	}

	b, err := f.Create(ctx, identifier)
	if err != nil {
		return nil, err
	}

	exists, err := b.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("factory: checking existence of %s:%s: %w", scheme, identifier, err)
	}
	if !exists {
		if err := b.Create(ctx); err != nil {
			return nil, fmt.Errorf("factory: initializing %s:%s: %w", scheme, identifier, err)
		}
	}

	return b, nil
}

// UnregisteredSchemeError records a request for a backend scheme that
// no package has registered.
type UnregisteredSchemeError struct {
	Scheme string
}

func (e UnregisteredSchemeError) Error() string {
	return fmt.Sprintf("factory: no backend registered for scheme %q", e.Scheme)
}
