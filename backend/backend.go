// Package backend defines the contract a storage backend must satisfy to
// be driven by the storage queue: PUT/GET/LIST/DELETE, plus an
// administrative EXISTS/CREATE pair for one-time initialization.
//
// The interface and its decorator pattern are modeled on
// registry/storage/driver.StorageDriver from the distribution registry:
// a narrow interface, composed rather than subclassed.
package backend

import (
	"context"
	"errors"
	"fmt"
)

// Backend is a stateful handle to an object store identified by a
// URI (see the factory package). Distinct Backend instances must be
// safely usable concurrently from distinct goroutines; a single
// instance is used by at most one operation at a time, a guarantee the
// storage queue upholds on the backend's behalf.
type Backend interface {
	// Put writes name atomically: a failed or half-finished Put must
	// never leave a partial object visible to Get or List. The last
	// Put to complete for a given name wins.
	Put(ctx context.Context, name string, data []byte) error

	// Get returns the full bytes of the most recently completed Put
	// for name, or a NotFoundError if name does not exist.
	Get(ctx context.Context, name string) ([]byte, error)

	// List returns all names currently visible in the backend. After a
	// just-completed Put, freshness is backend-defined.
	List(ctx context.Context) ([]string, error)

	// Delete removes name. Idempotent: deleting an absent name is not
	// required to be an error, but callers that need to distinguish
	// "never existed" from "removed" should check List/Get first.
	Delete(ctx context.Context, name string) error

	// Exists reports whether the backing store (bucket, directory,
	// etc.) has been initialized. Administrative only: callers invoke
	// it once, before concurrent use begins.
	Exists(ctx context.Context) (bool, error)

	// Create initializes the backing store. Only called when Exists
	// returned false. Unlike Put/Get/List/Delete, Create is not
	// required to be safe for concurrent invocation.
	Create(ctx context.Context) error
}

// NotFoundError is returned by Get (always) and may be returned by
// Delete (backend-defined) when name does not exist.
type NotFoundError struct {
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("backend: not found: %s", e.Name)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
