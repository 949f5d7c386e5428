// Package keycodec converts the pre-shared call key between its wire form
// (ASCII text carrying standard base64) and raw key bytes.
package keycodec

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// KeySize is the length of a call key in bytes (AES-256).
const KeySize = 32

// ErrInvalidEncoding is returned for key text that is not padded standard
// base64 made of single-byte characters.
var ErrInvalidEncoding = errors.New("keycodec: invalid key encoding")

// Decode reinterprets text as ASCII bytes and base64-decodes the result.
// The input length must be a multiple of 4 and may end in one or two '='.
func Decode(text string) ([]byte, error) {
	raw := make([]byte, 0, len(text))
	for _, r := range text {
		if r > 0x7f || !inAlphabet(byte(r)) {
			return nil, ErrInvalidEncoding
		}
		raw = append(raw, byte(r))
	}
	if len(raw)%4 != 0 {
		return nil, ErrInvalidEncoding
	}

	out := make([]byte, base64.StdEncoding.DecodedLen(len(raw)))
	n, err := base64.StdEncoding.Decode(out, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return out[:n], nil
}

// inAlphabet reports whether c belongs to standard base64 or is padding.
// The decoder itself skips CR and LF, so they are refused here.
func inAlphabet(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '+', c == '/', c == '=':
		return true
	}
	return false
}

// Encode returns the base64 text of key, padded according to len(key)%3.
func Encode(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// Generate returns the encoded form of a fresh random AES-256 key.
func Generate() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return Encode(key), nil
}
