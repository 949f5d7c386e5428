// Package framecrypto implements the per-frame AES-GCM transforms applied
// to encoded media frames.
//
// An encrypted frame is laid out as
//
//	[cleartext prefix][ciphertext + 16-byte tag][12-byte IV]
//
// where the prefix length depends on the frame kind (see PrefixLength).
// IVs are drawn from crypto/rand for every frame, so frames may be
// encrypted and decrypted in any order and from several goroutines.
package framecrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"sync/atomic"

	"webcall/native/internal/domain"
	"webcall/native/internal/keycodec"
)

// IVSize is the length of the IV appended to every encrypted frame.
const IVSize = 12

var (
	// ErrFrameTooShort is returned when a frame cannot hold the prefix, a
	// GCM tag and an IV.
	ErrFrameTooShort = errors.New("framecrypto: frame too short")
	// ErrDecrypt is returned when authentication of a frame fails.
	ErrDecrypt = errors.New("framecrypto: decrypt failed")
	// ErrClosed is returned by transforms after their session ended.
	ErrClosed = errors.New("framecrypto: transform closed")
)

// Transform holds the imported key of one call. It lives only as long as
// the call session.
type Transform struct {
	aead   cipher.AEAD
	closed atomic.Bool
}

// New imports a raw AES-256 key.
func New(key []byte) (*Transform, error) {
	if len(key) != keycodec.KeySize {
		return nil, fmt.Errorf("framecrypto: invalid key length %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("framecrypto: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("framecrypto: %w", err)
	}
	return &Transform{aead: aead}, nil
}

// FromText decodes key text from the wire and imports it.
func FromText(text string) (*Transform, error) {
	key, err := keycodec.Decode(text)
	if err != nil {
		return nil, err
	}
	return New(key)
}

// Close makes the transform inert. Later calls fail with ErrClosed.
func (t *Transform) Close() {
	t.closed.Store(true)
}

// Encrypt returns prefix ++ seal(rest) ++ iv. A frame shorter than the
// prefix of its kind is rejected.
func (t *Transform) Encrypt(kind domain.FrameKind, data []byte) ([]byte, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	n := PrefixLength(kind)
	if len(data) < n {
		return nil, fmt.Errorf("%w: %d bytes for %s frame", ErrFrameTooShort, len(data), kind)
	}

	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("framecrypto: iv: %w", err)
	}

	out := make([]byte, n, len(data)+t.aead.Overhead()+IVSize)
	copy(out, data[:n])
	out = t.aead.Seal(out, iv, data[n:], nil)
	return append(out, iv...), nil
}

// Decrypt is the inverse of Encrypt for a frame of the same kind.
func (t *Transform) Decrypt(kind domain.FrameKind, data []byte) ([]byte, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	n := PrefixLength(kind)
	if len(data) < n+t.aead.Overhead()+IVSize {
		return nil, fmt.Errorf("%w: %d bytes for %s frame", ErrFrameTooShort, len(data), kind)
	}

	ivStart := len(data) - IVSize
	iv := data[ivStart:]
	out := make([]byte, n, ivStart-t.aead.Overhead())
	copy(out, data[:n])
	out, err := t.aead.Open(out, iv, data[n:ivStart], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return out, nil
}

// ForEncrypt returns a FrameTransformer that encrypts with t.
func (t *Transform) ForEncrypt() domain.FrameTransformer {
	return encryptor{t}
}

// ForDecrypt returns a FrameTransformer that decrypts with t.
func (t *Transform) ForDecrypt() domain.FrameTransformer {
	return decryptor{t}
}

type encryptor struct{ t *Transform }

func (e encryptor) TransformFrame(kind domain.FrameKind, data []byte) ([]byte, error) {
	return e.t.Encrypt(kind, data)
}

type decryptor struct{ t *Transform }

func (d decryptor) TransformFrame(kind domain.FrameKind, data []byte) ([]byte, error) {
	return d.t.Decrypt(kind, data)
}
