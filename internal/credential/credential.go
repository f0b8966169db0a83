// Package credential hashes provider API keys for lookup and seals them for
// storage at rest.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// MinLength is the shortest API key accepted for a sync.
	MinLength = 10

	keySize   = 32
	nonceSize = 24
)

var (
	// ErrInvalidKey is returned when the sealing key is not 32 bytes of hex.
	ErrInvalidKey = errors.New("credential key must be 64 hex characters")
	// ErrCorrupt is returned when a sealed value cannot be opened.
	ErrCorrupt = errors.New("sealed credential is corrupt or was sealed with another key")
)

// Hash returns the lowercase hex SHA-256 digest of the trimmed credential.
// It is the lookup key stored in users.tokko_api_hash.
func Hash(credential string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(credential)))
	return hex.EncodeToString(sum[:])
}

// Prefix returns a short, log-safe fragment of a credential hash.
func Prefix(hash string) string {
	if len(hash) <= 8 {
		return hash
	}
	return hash[:8]
}

// Sealer encrypts credentials with NaCl secretbox.
type Sealer struct {
	key  [keySize]byte
	rand io.Reader
}

// NewSealer parses a 64 character hex key.
func NewSealer(hexKey string) (*Sealer, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil || len(raw) != keySize {
		return nil, ErrInvalidKey
	}

	s := &Sealer{rand: rand.Reader}
	copy(s.key[:], raw)
	return s, nil
}

// Seal encrypts plaintext and returns base64(nonce || box).
func (s *Sealer) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(s.rand, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrCorrupt
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrCorrupt
	}
	return string(plain), nil
}
