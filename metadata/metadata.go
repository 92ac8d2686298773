// Package metadata represents file metadata preserved across a
// persist/materialize round trip, and the ls-l-style text encoding used
// to store it in a manifest line.
package metadata

import "fmt"

// FileType is exactly one of the six recognized POSIX file types.
type FileType int

const (
	Regular FileType = iota
	Directory
	Symlink
	BlockDevice
	CharDevice
	Fifo
)

// FileMetadata is a read-only record of everything the manifest codec
// preserves about a single traversal entry. The zero value is not
// meaningful; always construct via New.
type FileMetadata struct {
	fileType FileType

	userRead, userWrite, userExecute    bool
	groupRead, groupWrite, groupExecute bool
	otherRead, otherWrite, otherExecute bool
	setuid, setgid, sticky              bool

	uid, gid   int
	size       int64
	atime      int64
	mtime      int64
	ctime      int64
	linkTarget string
}

// Params groups the fields needed to build a FileMetadata. It exists so
// New's call sites read as named fields rather than a 20-argument list.
type Params struct {
	Type FileType

	UserRead, UserWrite, UserExecute    bool
	GroupRead, GroupWrite, GroupExecute bool
	OtherRead, OtherWrite, OtherExecute bool
	Setuid, Setgid, Sticky              bool

	UID, GID   int
	Size       int64
	Atime      int64
	Mtime      int64
	Ctime      int64
	LinkTarget string
}

// New constructs a FileMetadata. There are deliberately no setters
// afterwards: to change a field, construct a new instance.
func New(p Params) FileMetadata {
	return FileMetadata{
		fileType:     p.Type,
		userRead:     p.UserRead,
		userWrite:    p.UserWrite,
		userExecute:  p.UserExecute,
		groupRead:    p.GroupRead,
		groupWrite:   p.GroupWrite,
		groupExecute: p.GroupExecute,
		otherRead:    p.OtherRead,
		otherWrite:   p.OtherWrite,
		otherExecute: p.OtherExecute,
		setuid:       p.Setuid,
		setgid:       p.Setgid,
		sticky:       p.Sticky,
		uid:          p.UID,
		gid:          p.GID,
		size:         p.Size,
		atime:        p.Atime,
		mtime:        p.Mtime,
		ctime:        p.Ctime,
		linkTarget:   p.LinkTarget,
	}
}

func (m FileMetadata) Type() FileType    { return m.fileType }
func (m FileMetadata) IsDirectory() bool { return m.fileType == Directory }
func (m FileMetadata) IsSymlink() bool   { return m.fileType == Symlink }
func (m FileMetadata) IsRegular() bool   { return m.fileType == Regular }

func (m FileMetadata) UserRead() bool     { return m.userRead }
func (m FileMetadata) UserWrite() bool    { return m.userWrite }
func (m FileMetadata) UserExecute() bool  { return m.userExecute }
func (m FileMetadata) GroupRead() bool    { return m.groupRead }
func (m FileMetadata) GroupWrite() bool   { return m.groupWrite }
func (m FileMetadata) GroupExecute() bool { return m.groupExecute }
func (m FileMetadata) OtherRead() bool    { return m.otherRead }
func (m FileMetadata) OtherWrite() bool   { return m.otherWrite }
func (m FileMetadata) OtherExecute() bool { return m.otherExecute }

func (m FileMetadata) Setuid() bool { return m.setuid }
func (m FileMetadata) Setgid() bool { return m.setgid }
func (m FileMetadata) Sticky() bool { return m.sticky }

func (m FileMetadata) UID() int           { return m.uid }
func (m FileMetadata) GID() int           { return m.gid }
func (m FileMetadata) Size() int64        { return m.size }
func (m FileMetadata) Atime() int64       { return m.atime }
func (m FileMetadata) Mtime() int64       { return m.mtime }
func (m FileMetadata) Ctime() int64       { return m.ctime }
func (m FileMetadata) LinkTarget() string { return m.linkTarget }

// ModeToStr renders the type + permission bits as a 10-character
// ls -l-style string: [-bcdlp][r-][w-][x-sS][r-][w-][x-sS][r-][w-][x-tT].
func ModeToStr(m FileMetadata) string {
	b := make([]byte, 10)

	switch m.fileType {
	case Regular:
		b[0] = '-'
	case BlockDevice:
		b[0] = 'b'
	case CharDevice:
		b[0] = 'c'
	case Directory:
		b[0] = 'd'
	case Symlink:
		b[0] = 'l'
	case Fifo:
		b[0] = 'p'
	default:
		panic(fmt.Sprintf("metadata: unreachable file type %d", m.fileType))
	}

	b[1] = rwChar(m.userRead, 'r')
	b[2] = rwChar(m.userWrite, 'w')
	b[3] = execChar(m.userExecute, m.setuid, 's', 'S')

	b[4] = rwChar(m.groupRead, 'r')
	b[5] = rwChar(m.groupWrite, 'w')
	b[6] = execChar(m.groupExecute, m.setgid, 's', 'S')

	b[7] = rwChar(m.otherRead, 'r')
	b[8] = rwChar(m.otherWrite, 'w')
	b[9] = execChar(m.otherExecute, m.sticky, 't', 'T')

	return string(b)
}

func rwChar(set bool, c byte) byte {
	if set {
		return c
	}
	return '-'
}

// execChar renders the execute position, folding in the corresponding
// special bit: lowercase when execute and the bit are both set,
// uppercase when only the bit is set, 'x'/'-' otherwise.
func execChar(execute, special bool, lower, upper byte) byte {
	switch {
	case execute && special:
		return lower
	case execute:
		return 'x'
	case special:
		return upper
	default:
		return '-'
	}
}

// StrToMode is the inverse of ModeToStr, producing only the type and
// permission/special-bit fields of a Params (caller fills in the rest).
func StrToMode(s string) (Params, error) {
	if len(s) != 10 {
		return Params{}, fmt.Errorf("metadata: mode string must be 10 chars, got %q", s)
	}

	var p Params

	switch s[0] {
	case '-':
		p.Type = Regular
	case 'b':
		p.Type = BlockDevice
	case 'c':
		p.Type = CharDevice
	case 'd':
		p.Type = Directory
	case 'l':
		p.Type = Symlink
	case 'p':
		p.Type = Fifo
	default:
		return Params{}, fmt.Errorf("metadata: invalid type char %q in %q", s[0], s)
	}

	var err error
	if p.UserRead, err = rwBit(s[1], 'r', '-'); err != nil {
		return Params{}, err
	}
	if p.UserWrite, err = rwBit(s[2], 'w', '-'); err != nil {
		return Params{}, err
	}
	if p.UserExecute, p.Setuid, err = execBit(s[3], 's', 'S'); err != nil {
		return Params{}, err
	}

	if p.GroupRead, err = rwBit(s[4], 'r', '-'); err != nil {
		return Params{}, err
	}
	if p.GroupWrite, err = rwBit(s[5], 'w', '-'); err != nil {
		return Params{}, err
	}
	if p.GroupExecute, p.Setgid, err = execBit(s[6], 's', 'S'); err != nil {
		return Params{}, err
	}

	if p.OtherRead, err = rwBit(s[7], 'r', '-'); err != nil {
		return Params{}, err
	}
	if p.OtherWrite, err = rwBit(s[8], 'w', '-'); err != nil {
		return Params{}, err
	}
	if p.OtherExecute, p.Sticky, err = execBit(s[9], 't', 'T'); err != nil {
		return Params{}, err
	}

	return p, nil
}

func rwBit(c byte, set, unset byte) (bool, error) {
	switch c {
	case set:
		return true, nil
	case unset:
		return false, nil
	default:
		return false, fmt.Errorf("metadata: invalid char %q, expected %q or %q", c, set, unset)
	}
}

func execBit(c byte, lower, upper byte) (execute, special bool, err error) {
	switch c {
	case 'x':
		return true, false, nil
	case '-':
		return false, false, nil
	case lower:
		return true, true, nil
	case upper:
		return false, true, nil
	default:
		return false, false, fmt.Errorf("metadata: invalid char %q, expected one of 'x' '-' %q %q", c, lower, upper)
	}
}

// ToString encodes the metadata as "MODESTR uid gid size atime mtime ctime".
func ToString(m FileMetadata) string {
	return fmt.Sprintf("%s %d %d %d %d %d %d",
		ModeToStr(m), m.uid, m.gid, m.size, m.atime, m.mtime, m.ctime)
}

// FromString parses the format produced by ToString. LinkTarget is not
// part of this string form; callers that need it (symlinks) must carry
// it out of band, as the manifest codec does in an extra field of the
// entry line.
func FromString(s string) (FileMetadata, error) {
	var modestr string
	var uid, gid int
	var size, atime, mtime, ctime int64

	n, err := fmt.Sscanf(s, "%s %d %d %d %d %d %d", &modestr, &uid, &gid, &size, &atime, &mtime, &ctime)
	if err != nil || n != 7 {
		return FileMetadata{}, fmt.Errorf("metadata: malformed metadata string %q: %w", s, err)
	}

	p, err := StrToMode(modestr)
	if err != nil {
		return FileMetadata{}, err
	}
	p.UID, p.GID, p.Size, p.Atime, p.Mtime, p.Ctime = uid, gid, size, atime, mtime, ctime

	return New(p), nil
}

// WithLinkTarget returns a copy of m with the symlink target set. Used
// by the manifest codec, which carries the target as part of the entry
// rather than the metadata string proper.
func WithLinkTarget(m FileMetadata, target string) FileMetadata {
	m.linkTarget = target
	return m
}
