// Package traversal walks a file system tree depth-first in sorted
// order, producing (path, metadata) pairs. The order is load bearing:
// it becomes the manifest's entry order, and materialization relies on
// it to create a directory before the entries inside it arrive.
//
// Directly modeled on traversal.py, including its choice to
// path-based lstat rather than fstat an open file descriptor
// (accepting the same TOCTOU caveat that file documents).
package traversal

import (
	"fmt"
	"path"
	"sort"

	"github.com/scode/shastity/fsutil"
	"github.com/scode/shastity/metadata"
)

// Entry pairs a traversed path with its metadata.
type Entry struct {
	Path     string
	Metadata metadata.FileMetadata
}

// NotADirectoryError is returned by Traverse when root is not a
// directory (or is itself a symlink).
type NotADirectoryError struct {
	Path string
}

func (e NotADirectoryError) Error() string {
	return fmt.Sprintf("traversal: not a directory: %s", e.Path)
}

// Traverse walks fs starting at root (which must be a real, non-
// symlink directory) and streams every entry found, root included, on
// the returned channel in a deterministic depth-first, lexically
// sorted order. Errors encountered mid-walk are sent to errc and
// terminate the stream; both channels are closed when done.
func Traverse(fs fsutil.FileSystem, root string) (<-chan Entry, <-chan error) {
	entries := make(chan Entry)
	errc := make(chan error, 1)

	go func() {
		defer close(entries)
		defer close(errc)

		isSymlink, err := fs.IsSymlink(root)
		if err != nil {
			errc <- err
			return
		}
		isDir, err := fs.IsDir(root)
		if err != nil {
			errc <- err
			return
		}
		if isSymlink || !isDir {
			errc <- NotADirectoryError{Path: root}
			return
		}

		rootMeta, err := fs.Lstat(root)
		if err != nil {
			errc <- err
			return
		}
		entries <- Entry{Path: root, Metadata: rootMeta}

		if err := walkDir(fs, root, entries); err != nil {
			errc <- err
		}
	}()

	return entries, errc
}

func walkDir(fs fsutil.FileSystem, dir string, entries chan<- Entry) error {
	children, err := fs.ListDir(dir)
	if err != nil {
		return err
	}
	sort.Strings(children)

	for _, name := range children {
		childPath := path.Join(dir, name)

		meta, err := fs.Lstat(childPath)
		if err != nil {
			return err
		}
		entries <- Entry{Path: childPath, Metadata: meta}

		if meta.IsDirectory() {
			if err := walkDir(fs, childPath, entries); err != nil {
				return err
			}
		}
	}

	return nil
}
