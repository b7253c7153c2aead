// Package encryption seals store credentials before they are persisted
package encryption

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"store-sync-engine/internal/ports"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrInvalidCiphertext is returned for ciphertexts that were tampered with or
// sealed under another key
var ErrInvalidCiphertext = errors.New("invalid ciphertext")

const keyVersion = "v1"

// Service implements ports.EncryptionService with XChaCha20-Poly1305.
// Ciphertexts are "v1:" followed by base64(nonce || sealed).
type Service struct {
	key []byte
}

var _ ports.EncryptionService = (*Service)(nil)

// NewService creates a new encryption service from a 32-byte key given in hex or base64
func NewService(key string) (*Service, error) {
	raw, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	if _, err := chacha20poly1305.NewX(raw); err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &Service{key: raw}, nil
}

func decodeKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if b, err := hex.DecodeString(key); err == nil && len(b) == chacha20poly1305.KeySize {
		return b, nil
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(key); err == nil && len(b) == chacha20poly1305.KeySize {
			return b, nil
		}
	}
	return nil, fmt.Errorf("encryption key must be %d bytes encoded as hex or base64", chacha20poly1305.KeySize)
}

// Encrypt implements ports.EncryptionService
func (s *Service) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(keyVersion))
	return keyVersion + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt implements ports.EncryptionService
func (s *Service) Decrypt(ciphertext string) (string, error) {
	version, payload, ok := strings.Cut(ciphertext, ":")
	if !ok || version != keyVersion {
		return "", ErrInvalidCiphertext
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrInvalidCiphertext
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, []byte(keyVersion))
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plain), nil
}
