// Package inmemory implements a Backend backed by a mutex-protected
// map, modeled on shastity's original MemoryBackend and on
// registry/storage/driver/inmemory's use of a shared, URI-keyed store
// so that multiple Driver instances opened with the same identifier
// within a process see the same data (mirroring how a "mem:name"
// URI is expected to behave like a real shared store across
// Create calls).
package inmemory

import (
	"context"
	"sync"

	"github.com/scode/shastity/backend"
	"github.com/scode/shastity/backend/factory"
)

const scheme = "mem"

func init() {
	factory.Register(scheme, factoryImpl{})
}

type factoryImpl struct{}

func (factoryImpl) Create(ctx context.Context, identifier string) (backend.Backend, error) {
	return New(identifier), nil
}

var (
	registryMu sync.Mutex
	stores     = make(map[string]*store)
)

type store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// storeFor returns the shared store for identifier, creating it if
// this is the first reference. An empty identifier gets a private,
// unshared store: useful for tests that want isolation without
// coordinating unique names.
func storeFor(identifier string) *store {
	if identifier == "" {
		return &store{data: make(map[string][]byte)}
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	s, ok := stores[identifier]
	if !ok {
		s = &store{data: make(map[string][]byte)}
		stores[identifier] = s
	}
	return s
}

// Driver is a Backend implementation over an in-memory map. Intended
// for tests and the "mem:" scheme, not for actual persistence.
type Driver struct {
	s *store
}

var _ backend.Backend = (*Driver)(nil)

// New returns a Driver using the shared store named by identifier.
// Two Drivers created with the same non-empty identifier observe each
// other's writes.
func New(identifier string) *Driver {
	return &Driver{s: storeFor(identifier)}
}

func (d *Driver) Put(ctx context.Context, name string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)

	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	d.s.data[name] = cp
	return nil
}

func (d *Driver) Get(ctx context.Context, name string) ([]byte, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()

	data, ok := d.s.data[name]
	if !ok {
		return nil, backend.NotFoundError{Name: name}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (d *Driver) List(ctx context.Context) ([]string, error) {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()

	names := make([]string, 0, len(d.s.data))
	for name := range d.s.data {
		names = append(names, name)
	}
	return names, nil
}

func (d *Driver) Delete(ctx context.Context, name string) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()

	if _, ok := d.s.data[name]; !ok {
		return backend.NotFoundError{Name: name}
	}
	delete(d.s.data, name)
	return nil
}

func (d *Driver) Exists(ctx context.Context) (bool, error) {
	return true, nil
}

func (d *Driver) Create(ctx context.Context) error {
	return nil
}
