// Package fsutil abstracts file system access behind a narrow
// interface, the way filesystem.py wraps os/shutil:
// traversal, persistence and materialization all
// talk to a FileSystem rather than the os package directly, so they
// can be driven against an in-memory tree in tests and against the
// real disk in production.
package fsutil

import (
	"io"

	"github.com/scode/shastity/metadata"
)

// File is the subset of *os.File operations a FileSystem's Open
// exposes to callers: positioned reads/writes plus an explicit Sync,
// since materialization fsyncs each file after writing its last block.
type File interface {
	io.ReadWriteCloser
	io.WriterAt
	io.ReaderAt
	Sync() error
}

// FileSystem is the operations traversal, persistence, and
// materialization need from an underlying storage tree. Unless noted,
// semantics follow the POSIX call of the same name.
type FileSystem interface {
	Mkdir(path string) error
	Rmdir(path string) error
	Unlink(path string) error
	Symlink(oldname, newname string) error
	Readlink(path string) (string, error)

	// Open with create true opens path for read/write, creating it or
	// truncating any existing content. With create false it opens an
	// existing file for reading.
	Open(path string, create bool) (File, error)

	Exists(path string) (bool, error)
	IsDir(path string) (bool, error)
	IsSymlink(path string) (bool, error)

	// Lstat returns metadata about path without following a trailing
	// symlink, the way os.Lstat does.
	Lstat(path string) (metadata.FileMetadata, error)

	// ListDir returns the immediate children of path, unsorted;
	// callers that need a deterministic order (traversal does) sort
	// it themselves.
	ListDir(path string) ([]string, error)

	// RmTree recursively removes the tree rooted at path without
	// following symlinks encountered along the way.
	RmTree(path string) error

	// Restore applies the permission bits, ownership, and timestamps
	// recorded in m to the file or directory at path. Used by
	// materialization's final metadata pass; never called for
	// symlinks, whose only restorable property is their target,
	// already set at creation time.
	Restore(path string, m metadata.FileMetadata) error

	// Mkdtemp atomically creates a new temporary directory and
	// returns its path. suffix, if non-empty, is appended to the
	// generated name.
	Mkdtemp(suffix string) (string, error)
}

// TemporaryDirectory wraps a directory created by FileSystem.Mkdtemp
// and removes it on Close, mirroring the original's
// TemporaryDirectory/StaleTemporaryDirectory pair.
type TemporaryDirectory struct {
	fs    FileSystem
	path  string
	stale bool
}

// NewTempDir allocates a new temporary directory on fs.
func NewTempDir(fs FileSystem, suffix string) (*TemporaryDirectory, error) {
	path, err := fs.Mkdtemp(suffix)
	if err != nil {
		return nil, err
	}
	return &TemporaryDirectory{fs: fs, path: path}, nil
}

// ErrStaleTemporaryDirectory is returned by Path when the directory
// has already been closed.
type ErrStaleTemporaryDirectory struct {
	Path string
}

func (e ErrStaleTemporaryDirectory) Error() string {
	return "fsutil: stale temporary directory: " + e.Path
}

// Path returns the directory's path. Panics are avoided in favor of
// an error so callers holding a reference past Close fail loudly
// rather than silently reusing a path someone else may now own.
func (t *TemporaryDirectory) Path() (string, error) {
	if t.stale {
		return "", ErrStaleTemporaryDirectory{Path: t.path}
	}
	return t.path, nil
}

// Close removes the temporary directory. Idempotent.
func (t *TemporaryDirectory) Close() error {
	if t.stale {
		return nil
	}
	t.stale = true
	return t.fs.RmTree(t.path)
}
