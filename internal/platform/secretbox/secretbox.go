// Package secretbox seals short secrets such as OAuth tokens before they are
// written to the database.
package secretbox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const version = "v1"

// ErrMalformed is returned when a sealed value cannot be decoded.
var ErrMalformed = errors.New("secretbox: malformed sealed value")

// Box encrypts values with XChaCha20-Poly1305. A nil *Box passes values through
// unchanged, which keeps local development free of key management.
type Box struct {
	key []byte
}

// New builds a Box from a 32-byte key.
func New(key []byte) (*Box, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("secretbox: key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Box{key: append([]byte(nil), key...)}, nil
}

// NewFromBase64 decodes a standard base64 key and builds a Box. An empty string
// returns a nil Box.
func NewFromBase64(encoded string) (*Box, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("secretbox: decode key: %w", err)
	}
	return New(key)
}

// Seal encrypts plaintext and returns "v1:" followed by base64(nonce||ciphertext).
// Empty input stays empty.
func (b *Box) Seal(plaintext string) (string, error) {
	if b == nil || plaintext == "" {
		return plaintext, nil
	}

	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secretbox: nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return version + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Values without the version prefix are returned as-is so
// rows written before a key was configured stay readable.
func (b *Box) Open(value string) (string, error) {
	if b == nil || value == "" {
		return value, nil
	}

	encoded, ok := strings.CutPrefix(value, version+":")
	if !ok {
		return value, nil
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrMalformed
	}

	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", ErrMalformed
	}

	plaintext, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("secretbox: open: %w", err)
	}
	return string(plaintext), nil
}
