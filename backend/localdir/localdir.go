// Package localdir implements a Backend backed by a single directory
// on the local file system, one file per object. It mirrors
// shastity's original DirectoryBackend: writes go to a hidden
// temporary file, fsync, then rename, so a crash never leaves a
// partially-written object visible under its final name.
package localdir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/scode/shastity/backend"
	"github.com/scode/shastity/backend/factory"
)

const scheme = "file"

// hiddenPrefix marks temporary files owned by this backend. Any file
// with this prefix found in the directory is assumed to be debris
// from a previous crash and is safe to remove on open.
const hiddenPrefix = "__shastity_localdir."

func init() {
	factory.Register(scheme, factoryImpl{})
}

type factoryImpl struct{}

func (factoryImpl) Create(ctx context.Context, identifier string) (backend.Backend, error) {
	return New(identifier)
}

// Driver stores each object as a regular file named identically to
// its key within a single root directory.
type Driver struct {
	root string
}

var _ backend.Backend = (*Driver)(nil)

// New returns a Driver rooted at path. It does not create the
// directory; call Create (or go through backend/factory.Create, which
// does this automatically) before use.
func New(path string) (*Driver, error) {
	if path == "" {
		return nil, fmt.Errorf("localdir: empty path")
	}
	return &Driver{root: path}, nil
}

func (d *Driver) namePath(name string) (string, error) {
	if strings.HasPrefix(name, hiddenPrefix) {
		return "", fmt.Errorf("localdir: name collides with reserved prefix: %s", name)
	}
	if strings.ContainsRune(name, os.PathSeparator) {
		return "", fmt.Errorf("localdir: name must not contain path separators: %s", name)
	}
	return filepath.Join(d.root, name), nil
}

func (d *Driver) Put(ctx context.Context, name string, data []byte) error {
	target, err := d.namePath(name)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(d.root, hiddenPrefix+"*")
	if err != nil {
		return fmt.Errorf("localdir: creating temp file: %w", err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("localdir: writing %s: %w", name, err)
	}

	// This fsync is load-bearing: without it, a crash could persist
	// the rename before the data it points to, corrupting the object
	// rather than merely losing it.
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("localdir: fsyncing %s: %w", name, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("localdir: closing %s: %w", name, err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("localdir: renaming into place %s: %w", name, err)
	}

	return nil
}

func (d *Driver) Get(ctx context.Context, name string) ([]byte, error) {
	target, err := d.namePath(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, backend.NotFoundError{Name: name}
		}
		return nil, fmt.Errorf("localdir: reading %s: %w", name, err)
	}
	return data, nil
}

func (d *Driver) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("localdir: listing %s: %w", d.root, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), hiddenPrefix) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (d *Driver) Delete(ctx context.Context, name string) error {
	target, err := d.namePath(name)
	if err != nil {
		return err
	}

	if err := os.Remove(target); err != nil {
		if os.IsNotExist(err) {
			return backend.NotFoundError{Name: name}
		}
		return fmt.Errorf("localdir: deleting %s: %w", name, err)
	}
	return nil
}

func (d *Driver) Exists(ctx context.Context) (bool, error) {
	info, err := os.Stat(d.root)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("localdir: stat %s: %w", d.root, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("localdir: %s exists and is not a directory", d.root)
	}

	// Clean up debris left by a process that crashed mid-Put.
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return false, fmt.Errorf("localdir: listing %s: %w", d.root, err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), hiddenPrefix) {
			os.Remove(filepath.Join(d.root, e.Name()))
		}
	}

	return true, nil
}

func (d *Driver) Create(ctx context.Context) error {
	return os.MkdirAll(d.root, 0o755)
}
