// Package cipher implements the Backend decorator used for
// --crypto-key: every object is encrypted with AES-256-GCM before
// being handed to the wrapped Backend, and decrypted on the way back
// out. This is new relative to the original shastity (which had no
// encryption support) but follows the same decorator shape as
// backend.Base, and derives its AES key from the user-supplied
// passphrase with golang.org/x/crypto/hkdf rather than hand-rolling a
// KDF.
package cipher

import (
	"context"
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/scode/shastity/backend"
)

const keySize = 32 // AES-256

// Backend wraps an inner Backend, transparently encrypting values
// passed to Put and decrypting values returned by Get. Names (object
// keys) are left unencrypted: the manifest already treats names as
// content digests, not sensitive paths.
type Backend struct {
	inner backend.Backend
	aead  stdcipher.AEAD
}

var _ backend.Backend = (*Backend)(nil)

// New derives a 256-bit AES key from passphrase via HKDF-SHA256 and
// returns a Backend that encrypts/decrypts through it.
func New(inner backend.Backend, passphrase string) (*Backend, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("cipher: empty passphrase")
	}

	key := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, []byte(passphrase), nil, []byte("shastity-backend-cipher"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("cipher: deriving key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: creating AES cipher: %w", err)
	}
	aead, err := stdcipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher: creating GCM: %w", err)
	}

	return &Backend{inner: inner, aead: aead}, nil
}

func (b *Backend) Put(ctx context.Context, name string, data []byte) error {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("cipher: generating nonce: %w", err)
	}

	sealed := b.aead.Seal(nonce, nonce, data, nil)
	return b.inner.Put(ctx, name, sealed)
}

func (b *Backend) Get(ctx context.Context, name string) ([]byte, error) {
	sealed, err := b.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	nonceSize := b.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("cipher: ciphertext for %s shorter than nonce", name)
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]

	plain, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("cipher: decrypting %s: %w", name, err)
	}
	return plain, nil
}

func (b *Backend) List(ctx context.Context) ([]string, error) {
	return b.inner.List(ctx)
}

func (b *Backend) Delete(ctx context.Context, name string) error {
	return b.inner.Delete(ctx, name)
}

func (b *Backend) Exists(ctx context.Context) (bool, error) {
	return b.inner.Exists(ctx)
}

func (b *Backend) Create(ctx context.Context) error {
	return b.inner.Create(ctx)
}
