// Package native implements fsutil.FileSystem over the real local
// file system, using os and syscall the way the original
// implementation's LocalFileSystem wraps the os module.
package native

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/scode/shastity/fsutil"
	"github.com/scode/shastity/metadata"
)

func timeFromUnix(sec int64) time.Time {
	return time.Unix(sec, 0)
}

// FileSystem implements fsutil.FileSystem against the OS.
type FileSystem struct{}

var _ fsutil.FileSystem = FileSystem{}

// New returns a FileSystem backed by the real OS file system calls.
func New() FileSystem {
	return FileSystem{}
}

func (FileSystem) Mkdir(path string) error {
	return os.Mkdir(path, 0o777)
}

func (FileSystem) Rmdir(path string) error {
	return os.Remove(path)
}

func (FileSystem) Unlink(path string) error {
	return os.Remove(path)
}

func (FileSystem) Symlink(oldname, newname string) error {
	return os.Symlink(oldname, newname)
}

func (FileSystem) Readlink(path string) (string, error) {
	return os.Readlink(path)
}

func (FileSystem) Open(path string, create bool) (fsutil.File, error) {
	flags := os.O_RDONLY
	if create {
		flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	}
	return os.OpenFile(path, flags, 0o666)
}

func (FileSystem) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (fs FileSystem) IsDir(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func (fs FileSystem) IsSymlink(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	return info.Mode()&os.ModeSymlink != 0, nil
}

func (FileSystem) Lstat(path string) (metadata.FileMetadata, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return metadata.FileMetadata{}, err
	}

	sys, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return metadata.FileMetadata{}, fmt.Errorf("native: unsupported platform stat for %s", path)
	}

	mode := info.Mode()
	p := metadata.Params{
		UID:   int(sys.Uid),
		GID:   int(sys.Gid),
		Size:  info.Size(),
		Atime: atime(sys),
		Mtime: info.ModTime().Unix(),
		Ctime: ctime(sys),

		UserRead:  mode&0o400 != 0,
		UserWrite: mode&0o200 != 0,
		UserExecute: mode&0o100 != 0,
		GroupRead:   mode&0o040 != 0,
		GroupWrite:  mode&0o020 != 0,
		GroupExecute: mode&0o010 != 0,
		OtherRead:   mode&0o004 != 0,
		OtherWrite:  mode&0o002 != 0,
		OtherExecute: mode&0o001 != 0,

		Setuid: mode&os.ModeSetuid != 0,
		Setgid: mode&os.ModeSetgid != 0,
		Sticky: mode&os.ModeSticky != 0,
	}

	switch {
	case mode.IsRegular():
		p.Type = metadata.Regular
	case mode.IsDir():
		p.Type = metadata.Directory
	case mode&os.ModeSymlink != 0:
		p.Type = metadata.Symlink
		target, err := os.Readlink(path)
		if err != nil {
			return metadata.FileMetadata{}, err
		}
		p.LinkTarget = target
	case mode&os.ModeDevice != 0 && mode&os.ModeCharDevice != 0:
		p.Type = metadata.CharDevice
	case mode&os.ModeDevice != 0:
		p.Type = metadata.BlockDevice
	case mode&os.ModeNamedPipe != 0:
		p.Type = metadata.Fifo
	default:
		return metadata.FileMetadata{}, fmt.Errorf("native: unsupported file type for %s", path)
	}

	return metadata.New(p), nil
}

func (FileSystem) ListDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (FileSystem) RmTree(path string) error {
	return os.RemoveAll(path)
}

func (FileSystem) Restore(path string, m metadata.FileMetadata) error {
	mode := permMode(m)
	if err := os.Chmod(path, mode); err != nil {
		return err
	}
	if err := os.Chown(path, m.UID(), m.GID()); err != nil {
		return err
	}
	return os.Chtimes(path, timeFromUnix(m.Atime()), timeFromUnix(m.Mtime()))
}

func permMode(m metadata.FileMetadata) os.FileMode {
	var mode os.FileMode

	if m.UserRead() {
		mode |= 0o400
	}
	if m.UserWrite() {
		mode |= 0o200
	}
	if m.UserExecute() {
		mode |= 0o100
	}
	if m.GroupRead() {
		mode |= 0o040
	}
	if m.GroupWrite() {
		mode |= 0o020
	}
	if m.GroupExecute() {
		mode |= 0o010
	}
	if m.OtherRead() {
		mode |= 0o004
	}
	if m.OtherWrite() {
		mode |= 0o002
	}
	if m.OtherExecute() {
		mode |= 0o001
	}
	if m.Setuid() {
		mode |= os.ModeSetuid
	}
	if m.Setgid() {
		mode |= os.ModeSetgid
	}
	if m.Sticky() {
		mode |= os.ModeSticky
	}

	return mode
}

func (FileSystem) Mkdtemp(suffix string) (string, error) {
	dir, err := os.MkdirTemp("", "shastity*"+suffix)
	if err != nil {
		return "", err
	}
	return filepath.Clean(dir), nil
}
