// Package memfs implements fsutil.FileSystem as an in-memory tree,
// modeled on filesystem.py's MemoryFileSystem: useful
// for exercising traversal, persistence and materialization in tests
// without touching disk.
package memfs

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/scode/shastity/fsutil"
	"github.com/scode/shastity/metadata"
)

type kind int

const (
	kindDir kind = iota
	kindFile
	kindSymlink
)

type node struct {
	kind kind

	children map[string]*node // kindDir
	data     []byte           // kindFile
	target   string           // kindSymlink

	uid, gid                        int
	userR, userW, userX             bool
	groupR, groupW, groupX          bool
	otherR, otherW, otherX          bool
	setuid, setgid, sticky          bool
	atime, mtime, ctime             int64
}

func newDir() *node {
	now := epoch()
	return &node{kind: kindDir, children: make(map[string]*node),
		userR: true, userW: true, userX: true,
		groupR: true, groupX: true,
		otherR: true, otherX: true,
		atime: now, mtime: now, ctime: now,
	}
}

func newFile() *node {
	now := epoch()
	return &node{kind: kindFile,
		userR: true, userW: true,
		groupR: true,
		otherR: true,
		atime:  now, mtime: now, ctime: now,
	}
}

// FileSystem is an in-memory fsutil.FileSystem. The zero value is not
// usable; construct with New.
type FileSystem struct {
	mu       sync.Mutex
	root     *node
	tmpCount int
}

var _ fsutil.FileSystem = (*FileSystem)(nil)

// New returns an empty FileSystem with a pre-created /tmp directory,
// matching the original's MemoryFileSystem default layout.
func New() *FileSystem {
	root := newDir()
	root.children["tmp"] = newDir()
	return &FileSystem{root: root}
}

func split(p string) []string {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// lookup resolves path to its node without following a trailing
// symlink. @pre fs.mu held.
func (fs *FileSystem) lookup(p string) (*node, error) {
	comps := split(p)
	cur := fs.root
	for i, c := range comps {
		if cur.kind != kindDir {
			return nil, notDirError(strings.Join(comps[:i], "/"))
		}
		next, ok := cur.children[c]
		if !ok {
			return nil, notExistError(p)
		}
		cur = next
	}
	return cur, nil
}

func (fs *FileSystem) lookupParent(p string) (*node, string, error) {
	comps := split(p)
	if len(comps) == 0 {
		return nil, "", fmt.Errorf("memfs: cannot operate on root")
	}
	parentPath := "/" + strings.Join(comps[:len(comps)-1], "/")
	parent, err := fs.lookup(parentPath)
	if err != nil {
		return nil, "", err
	}
	if parent.kind != kindDir {
		return nil, "", notDirError(parentPath)
	}
	return parent, comps[len(comps)-1], nil
}

type notExistError string

func (e notExistError) Error() string { return fmt.Sprintf("memfs: no such file or directory: %s", string(e)) }

type notDirError string

func (e notDirError) Error() string { return fmt.Sprintf("memfs: not a directory: %s", string(e)) }

type existsError string

func (e existsError) Error() string { return fmt.Sprintf("memfs: file exists: %s", string(e)) }

func (fs *FileSystem) Mkdir(p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent, name, err := fs.lookupParent(p)
	if err != nil {
		return err
	}
	if _, exists := parent.children[name]; exists {
		return existsError(p)
	}
	parent.children[name] = newDir()
	return nil
}

func (fs *FileSystem) Rmdir(p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if split(p) == nil {
		return fmt.Errorf("memfs: cannot rmdir root")
	}
	parent, name, err := fs.lookupParent(p)
	if err != nil {
		return err
	}
	n, ok := parent.children[name]
	if !ok {
		return notExistError(p)
	}
	if n.kind != kindDir {
		return notDirError(p)
	}
	if len(n.children) > 0 {
		return fmt.Errorf("memfs: directory not empty: %s", p)
	}
	delete(parent.children, name)
	return nil
}

func (fs *FileSystem) Unlink(p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if split(p) == nil {
		return fmt.Errorf("memfs: cannot unlink root")
	}
	parent, name, err := fs.lookupParent(p)
	if err != nil {
		return err
	}
	n, ok := parent.children[name]
	if !ok {
		return notExistError(p)
	}
	if n.kind == kindDir {
		return fmt.Errorf("memfs: cannot unlink a directory: %s", p)
	}
	delete(parent.children, name)
	return nil
}

func (fs *FileSystem) Symlink(oldname, newname string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent, name, err := fs.lookupParent(newname)
	if err != nil {
		return err
	}
	if _, exists := parent.children[name]; exists {
		return existsError(newname)
	}

	now := epoch()
	parent.children[name] = &node{kind: kindSymlink, target: oldname, atime: now, mtime: now, ctime: now}
	return nil
}

func (fs *FileSystem) Readlink(p string) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.lookup(p)
	if err != nil {
		return "", err
	}
	if n.kind != kindSymlink {
		return "", fmt.Errorf("memfs: not a symlink: %s", p)
	}
	return n.target, nil
}

func (fs *FileSystem) Exists(p string) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, err := fs.lookup(p)
	if err != nil {
		if _, ok := err.(notExistError); ok {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (fs *FileSystem) IsDir(p string) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.lookup(p)
	if err != nil {
		return false, err
	}
	return n.kind == kindDir, nil
}

func (fs *FileSystem) IsSymlink(p string) (bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.lookup(p)
	if err != nil {
		return false, err
	}
	return n.kind == kindSymlink, nil
}

func (fs *FileSystem) Lstat(p string) (metadata.FileMetadata, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.lookup(p)
	if err != nil {
		return metadata.FileMetadata{}, err
	}

	params := metadata.Params{
		UID: n.uid, GID: n.gid,
		Atime: n.atime, Mtime: n.mtime, Ctime: n.ctime,
		UserRead: n.userR, UserWrite: n.userW, UserExecute: n.userX,
		GroupRead: n.groupR, GroupWrite: n.groupW, GroupExecute: n.groupX,
		OtherRead: n.otherR, OtherWrite: n.otherW, OtherExecute: n.otherX,
		Setuid: n.setuid, Setgid: n.setgid, Sticky: n.sticky,
	}

	switch n.kind {
	case kindDir:
		params.Type = metadata.Directory
	case kindSymlink:
		params.Type = metadata.Symlink
		params.LinkTarget = n.target
	case kindFile:
		params.Type = metadata.Regular
		params.Size = int64(len(n.data))
	}

	return metadata.New(params), nil
}

func (fs *FileSystem) ListDir(p string) ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.lookup(p)
	if err != nil {
		return nil, err
	}
	if n.kind != kindDir {
		return nil, notDirError(p)
	}

	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (fs *FileSystem) RmTree(p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if split(p) == nil {
		return fmt.Errorf("memfs: cannot delete root")
	}
	parent, name, err := fs.lookupParent(p)
	if err != nil {
		return err
	}
	if _, ok := parent.children[name]; !ok {
		return notExistError(p)
	}
	delete(parent.children, name)
	return nil
}

func (fs *FileSystem) Restore(p string, m metadata.FileMetadata) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.lookup(p)
	if err != nil {
		return err
	}

	n.uid, n.gid = m.UID(), m.GID()
	n.atime, n.mtime = m.Atime(), m.Mtime()
	n.userR, n.userW, n.userX = m.UserRead(), m.UserWrite(), m.UserExecute()
	n.groupR, n.groupW, n.groupX = m.GroupRead(), m.GroupWrite(), m.GroupExecute()
	n.otherR, n.otherW, n.otherX = m.OtherRead(), m.OtherWrite(), m.OtherExecute()
	n.setuid, n.setgid, n.sticky = m.Setuid(), m.Setgid(), m.Sticky()

	return nil
}

func (fs *FileSystem) Mkdtemp(suffix string) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	tmp, err := fs.lookup("/tmp")
	if err != nil {
		return "", err
	}

	name := "tmp" + strconv.Itoa(fs.tmpCount)
	fs.tmpCount++
	if suffix != "" {
		name += "-" + suffix
	}
	if _, exists := tmp.children[name]; exists {
		return "", fmt.Errorf("memfs: temp name collision: %s", name)
	}
	tmp.children[name] = newDir()

	return "/tmp/" + name, nil
}

func (fs *FileSystem) Open(p string, create bool) (fsutil.File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.lookup(p)
	if err != nil {
		if _, ok := err.(notExistError); !ok || !create {
			return nil, err
		}
		parent, name, perr := fs.lookupParent(p)
		if perr != nil {
			return nil, perr
		}
		n = newFile()
		parent.children[name] = n
	} else if create {
		if n.kind != kindFile {
			return nil, fmt.Errorf("memfs: cannot open non-file for write: %s", p)
		}
		n.data = nil
	}

	if n.kind != kindFile {
		return nil, fmt.Errorf("memfs: not a regular file: %s", p)
	}

	return &handle{n: n, mu: &fs.mu}, nil
}

// handle implements fsutil.File over a file node, sharing the
// FileSystem's lock for every access so concurrent traversal/open
// calls stay consistent.
type handle struct {
	n      *node
	mu     *sync.Mutex
	offset int64
}

func (h *handle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.offset >= int64(len(h.n.data)) {
		return 0, io.EOF
	}
	n := copy(p, h.n.data[h.offset:])
	h.offset += int64(n)
	return n, nil
}

func (h *handle) Write(p []byte) (int, error) {
	n, err := h.WriteAt(p, h.offset)
	h.offset += int64(n)
	return n, err
}

func (h *handle) WriteAt(p []byte, off int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	end := off + int64(len(p))
	if end > int64(len(h.n.data)) {
		grown := make([]byte, end)
		copy(grown, h.n.data)
		h.n.data = grown
	}
	copy(h.n.data[off:end], p)
	h.n.mtime = epoch()
	return len(p), nil
}

func (h *handle) ReadAt(p []byte, off int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if off >= int64(len(h.n.data)) {
		return 0, io.EOF
	}
	n := copy(p, h.n.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (h *handle) Sync() error  { return nil }
func (h *handle) Close() error { return nil }

func epoch() int64 { return time.Now().Unix() }
