// Package persist implements the persistence pipeline: it consumes a
// traversal stream, chunks regular-file content into fixed-size
// blocks, deduplicates against a skip-set, enqueues block PUTs on a
// storage queue, and yields manifest entries.
//
// persistor.py was never filled in beyond a stub; this fleshes
// it out per the block-chunking and skip-set contract described
// alongside it, using the same traversal/storagequeue/manifest
// collaborators.
package persist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/scode/shastity/digest"
	"github.com/scode/shastity/fsutil"
	"github.com/scode/shastity/manifest"
	"github.com/scode/shastity/queue"
	"github.com/scode/shastity/traversal"
)

// SkipSet tracks digests already known to be present in the backend,
// so identical blocks are hashed but never re-enqueued. It is not
// safe for concurrent use; the Persistor is single-threaded with
// respect to its own skip-set, per the original's "no sharing"
// design.
type SkipSet struct {
	seen map[digest.BlockDigest]struct{}
}

// NewSkipSet returns an empty skip-set.
func NewSkipSet() *SkipSet {
	return &SkipSet{seen: make(map[digest.BlockDigest]struct{})}
}

// Add marks seeds as already known present, e.g. loaded from a prior
// manifest before persisting starts.
func (s *SkipSet) Add(d digest.BlockDigest) {
	s.seen[d] = struct{}{}
}

func (s *SkipSet) has(d digest.BlockDigest) bool {
	_, ok := s.seen[d]
	return ok
}

// Options configures a persist run.
type Options struct {
	// BasePrefix is stripped from every traversed path before it is
	// emitted in the manifest; the result must not have a leading
	// slash.
	BasePrefix string

	// BlockSize bounds the size of each chunk read from a regular
	// file before hashing and enqueueing it.
	BlockSize int

	Hasher  digest.Hasher
	SkipSet *SkipSet
}

// Persistor drives one persist run against a traversal stream.
type Persistor struct {
	fs    fsutil.FileSystem
	q     *queue.Queue
	opts  Options
	log   *logrus.Entry
}

// New constructs a Persistor. opts.SkipSet and opts.Hasher must be
// non-nil.
func New(fs fsutil.FileSystem, q *queue.Queue, opts Options) (*Persistor, error) {
	if opts.Hasher == nil {
		return nil, fmt.Errorf("persist: Hasher is required")
	}
	if opts.SkipSet == nil {
		return nil, fmt.Errorf("persist: SkipSet is required")
	}
	if opts.BlockSize <= 0 {
		return nil, fmt.Errorf("persist: BlockSize must be positive")
	}
	return &Persistor{fs: fs, q: q, opts: opts, log: logrus.WithField("component", "persist")}, nil
}

// Run consumes entries from a traversal.Traverse call and streams the
// resulting manifest.Entry values on the returned channel, in the
// same order they arrived. It does not itself wait on the queue or
// write the manifest object; callers are responsible for calling
// q.Wait before handing the returned entries off to manifest.Write,
// so that the manifest PUT always follows all block PUTs (the
// ordering invariant the original documents as "barrier between
// blocks and the manifest").
func (p *Persistor) Run(ctx context.Context, traversed <-chan traversal.Entry, traverseErrc <-chan error) (<-chan manifest.Entry, <-chan error) {
	out := make(chan manifest.Entry)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		for entry := range traversed {
			me, err := p.persistEntry(ctx, entry)
			if err != nil {
				errc <- err
				return
			}
			out <- me
		}

		if err := <-traverseErrc; err != nil {
			errc <- err
		}
	}()

	return out, errc
}

func (p *Persistor) persistEntry(ctx context.Context, entry traversal.Entry) (manifest.Entry, error) {
	relpath, err := relativize(p.opts.BasePrefix, entry.Path)
	if err != nil {
		return manifest.Entry{}, err
	}

	if entry.Metadata.IsDirectory() || entry.Metadata.IsSymlink() {
		return manifest.Entry{Path: relpath, Metadata: entry.Metadata}, nil
	}

	if !entry.Metadata.IsRegular() {
		return manifest.Entry{Path: relpath, Metadata: entry.Metadata}, nil
	}

	digests, err := p.persistRegularFile(ctx, entry.Path)
	if err != nil {
		return manifest.Entry{}, err
	}

	p.log.WithFields(logrus.Fields{"path": relpath, "blocks": len(digests)}).Debug("persisted file")
	return manifest.Entry{Path: relpath, Metadata: entry.Metadata, Digests: digests}, nil
}

func (p *Persistor) persistRegularFile(ctx context.Context, path string) ([]digest.BlockDigest, error) {
	f, err := p.fs.Open(path, false)
	if err != nil {
		return nil, fmt.Errorf("persist: opening %s: %w", path, err)
	}
	defer f.Close()

	var digests []digest.BlockDigest
	buf := make([]byte, p.opts.BlockSize)
	var offset int64

	for {
		n, readErr := f.ReadAt(buf, offset)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			d := p.opts.Hasher(chunk)
			digests = append(digests, d)

			if !p.opts.SkipSet.has(d) {
				p.opts.SkipSet.Add(d)
				if err := p.q.Enqueue(ctx, queue.Put(d.Hex(), chunk, nil)); err != nil {
					return nil, fmt.Errorf("persist: enqueueing block for %s: %w", path, err)
				}
			}

			offset += int64(n)
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, fmt.Errorf("persist: reading %s: %w", path, readErr)
		}
		if n == 0 {
			break
		}
	}

	return digests, nil
}

func relativize(basePrefix, fullPath string) (string, error) {
	if !strings.HasPrefix(fullPath, basePrefix) {
		return "", fmt.Errorf("persist: path %q does not start with base prefix %q", fullPath, basePrefix)
	}
	rel := strings.TrimPrefix(fullPath, basePrefix)
	rel = strings.TrimPrefix(rel, "/")
	return rel, nil
}
