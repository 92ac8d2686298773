// Package manifest implements shastity's text manifest format: the
// ordered, human-readable listing of every file captured by one
// backup, together with per-file metadata and the digests of the
// blocks that make up its content.
//
// The format is unchanged from manifest.py's: a three-line
// header ("shastity" / "version 1" / "end")
// followed by one pipe-delimited line per entry. Entry order is part
// of the public contract: materialization relies on it to create
// parent directories before children.
package manifest

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/scode/shastity/backend"
	"github.com/scode/shastity/digest"
	"github.com/scode/shastity/metadata"
	"github.com/scode/shastity/pathcodec"
)

const (
	headerMagic   = "shastity"
	headerVersion = "version 1"
	headerEnd     = "end"
)

// Entry is one file (or directory, symlink, device, ...) captured in
// a manifest, in the order it was written.
type Entry struct {
	Path     string
	Metadata metadata.FileMetadata
	Digests  []digest.BlockDigest
}

// ManifestError reports a malformed manifest, identifying the
// offending line the way manifest.py's ManifestError does.
type ManifestError struct {
	Line    int
	Content string
	Msg     string
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest: line %d: %s: %q", e.Line, e.Msg, e.Content)
}

func validName(name string) error {
	if strings.Contains(name, ".") {
		return fmt.Errorf("manifest: names must not contain dots: %q", name)
	}
	return nil
}

// Write renders entries (read from the given channel, in order) into
// the manifest format and stores them under name in b. The channel
// must be closed by the producer when done.
func Write(ctx context.Context, b backend.Backend, name string, entries <-chan Entry) error {
	if err := validName(name); err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString(headerMagic)
	sb.WriteByte('\n')
	sb.WriteString(headerVersion)
	sb.WriteByte('\n')
	sb.WriteString(headerEnd)

	for e := range entries {
		sb.WriteByte('\n')
		if err := writeEntry(&sb, e); err != nil {
			return err
		}
	}

	return b.Put(ctx, name, []byte(sb.String()))
}

func writeEntry(sb *strings.Builder, e Entry) error {
	md := metadata.ToString(e.Metadata)
	pth := pathcodec.Encode(e.Path)

	digestStrs := make([]string, len(e.Digests))
	for i, d := range e.Digests {
		digestStrs[i] = d.String()
	}
	rest := strings.Join(digestStrs, " ")

	sb.WriteString(md)
	sb.WriteString(" | ")
	sb.WriteString(pth)
	sb.WriteString(" | ")
	sb.WriteString(rest)

	if e.Metadata.IsSymlink() {
		sb.WriteString(" | ")
		sb.WriteString(pathcodec.Encode(e.Metadata.LinkTarget()))
	}

	return nil
}

// Read retrieves the manifest named name from b and streams its
// entries, in order, on the returned channel. Parse errors are sent
// on the returned error channel and terminate the stream. Both
// channels are closed when reading completes, whether by success,
// error, or EOF.
//
// This is a pull-style iterator in the spirit of the original
// generator-based read_manifest: entries are parsed only as fast as
// the caller receives them, rather than all at once up front.
func Read(ctx context.Context, b backend.Backend, name string) (<-chan Entry, <-chan error) {
	entries := make(chan Entry)
	errc := make(chan error, 1)

	go func() {
		defer close(entries)
		defer close(errc)

		if err := validName(name); err != nil {
			errc <- err
			return
		}

		data, err := b.Get(ctx, name)
		if err != nil {
			errc <- err
			return
		}

		if err := parseInto(data, entries); err != nil {
			errc <- err
		}
	}()

	return entries, errc
}

func parseInto(data []byte, entries chan<- Entry) error {
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineno := 0
	nextLine := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		lineno++
		return strings.TrimSpace(scanner.Text()), true
	}

	first, ok := nextLine()
	if !ok {
		return &ManifestError{Line: lineno, Content: "", Msg: "manifest empty"}
	}
	if first != headerMagic {
		return &ManifestError{Line: lineno, Content: first, Msg: "first line not 'shastity'"}
	}

	version := -1
	for {
		line, ok := nextLine()
		if !ok {
			return &ManifestError{Line: lineno, Content: "", Msg: "header error or no data"}
		}
		if line == headerEnd {
			break
		}
		if strings.HasPrefix(line, "version ") {
			v, err := strconv.Atoi(strings.TrimPrefix(line, "version "))
			if err != nil {
				return &ManifestError{Line: lineno, Content: line, Msg: "invalid version header"}
			}
			version = v
			continue
		}
		return &ManifestError{Line: lineno, Content: line, Msg: "invalid header line"}
	}
	if version < 0 {
		return &ManifestError{Line: lineno, Content: "", Msg: "required manifest header 'version' missing"}
	}
	if version != 1 {
		return &ManifestError{Line: lineno, Content: "", Msg: fmt.Sprintf("unsupported manifest version %d", version)}
	}

	for {
		line, ok := nextLine()
		if !ok {
			break
		}
		if line == "" {
			continue
		}

		entry, err := parseEntryLine(line, lineno)
		if err != nil {
			return err
		}
		entries <- entry
	}

	return scanner.Err()
}

func parseEntryLine(line string, lineno int) (Entry, error) {
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) != 3 && len(parts) != 4 {
		return Entry{}, &ManifestError{Line: lineno, Content: line, Msg: "expected 3 or 4 pipe-delimited fields"}
	}

	md, err := metadata.FromString(parts[0])
	if err != nil {
		return Entry{}, &ManifestError{Line: lineno, Content: line, Msg: err.Error()}
	}

	path, err := pathcodec.Decode(parts[1])
	if err != nil {
		return Entry{}, &ManifestError{Line: lineno, Content: line, Msg: err.Error()}
	}

	var digests []digest.BlockDigest
	if parts[2] != "" {
		for _, tok := range strings.Fields(parts[2]) {
			tag, hex, ok := strings.Cut(tok, ",")
			if !ok {
				return Entry{}, &ManifestError{Line: lineno, Content: line, Msg: "malformed digest entry"}
			}
			d, err := digest.FromTagHex(tag, hex)
			if err != nil {
				return Entry{}, &ManifestError{Line: lineno, Content: line, Msg: err.Error()}
			}
			digests = append(digests, d)
		}
	}

	if md.IsSymlink() {
		if len(parts) != 4 {
			return Entry{}, &ManifestError{Line: lineno, Content: line, Msg: "symlink entry missing link target field"}
		}
		target, err := pathcodec.Decode(parts[3])
		if err != nil {
			return Entry{}, &ManifestError{Line: lineno, Content: line, Msg: err.Error()}
		}
		md = metadata.WithLinkTarget(md, target)
	}

	return Entry{Path: path, Metadata: md, Digests: digests}, nil
}

// Delete removes the manifest named name from b.
func Delete(ctx context.Context, b backend.Backend, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	return b.Delete(ctx, name)
}

// List returns the names of all manifests present in b.
func List(ctx context.Context, b backend.Backend) ([]string, error) {
	return b.List(ctx)
}
