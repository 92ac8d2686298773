// Package digest provides the content-addressing primitive used to name
// data blocks: a (algorithm, lowercase hex) pair produced by hashing a
// block's bytes.
package digest

import (
	_ "crypto/sha512"
	"fmt"

	godigest "github.com/opencontainers/go-digest"
)

// Algorithm fixed for v1. Collision resistance of the chosen hash is an
// assumption of the system; equal digests are treated as equal blocks
// unconditionally.
const Algorithm = godigest.SHA512

// BlockDigest identifies a data block globally. It is immutable.
type BlockDigest struct {
	d godigest.Digest
}

// Tag returns the short ASCII algorithm token (e.g. "sha512").
func (b BlockDigest) Tag() string {
	return string(b.d.Algorithm())
}

// Hex returns the lowercase hex encoding of the digest bytes.
func (b BlockDigest) Hex() string {
	return b.d.Encoded()
}

// String renders "tag,hex", the form used inside manifest digest lists.
func (b BlockDigest) String() string {
	return fmt.Sprintf("%s,%s", b.Tag(), b.Hex())
}

// IsZero reports whether this is the zero value (no digest).
func (b BlockDigest) IsZero() bool {
	return b.d == ""
}

// Equal reports whether two digests name the same block.
func (b BlockDigest) Equal(o BlockDigest) bool {
	return b.d == o.d
}

// FromTagHex reconstructs a BlockDigest from its wire components, as
// parsed out of a manifest's "tag,hex" pair.
func FromTagHex(tag, hex string) (BlockDigest, error) {
	d := godigest.NewDigestFromEncoded(godigest.Algorithm(tag), hex)
	if err := d.Validate(); err != nil {
		return BlockDigest{}, fmt.Errorf("digest: invalid %s digest %q: %w", tag, hex, err)
	}
	return BlockDigest{d: d}, nil
}

// Hasher hashes a byte buffer into a BlockDigest. It is a pure function:
// equal inputs always yield equal digests.
type Hasher func(data []byte) BlockDigest

// NewHasher returns the Hasher for the fixed system algorithm.
func NewHasher() Hasher {
	return func(data []byte) BlockDigest {
		return BlockDigest{d: Algorithm.FromBytes(data)}
	}
}
