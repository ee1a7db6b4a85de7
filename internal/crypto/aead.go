package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the AES-256 key size in bytes.
	KeySize = 32

	// NonceSize is the GCM standard nonce size in bytes.
	NonceSize = 12
)

var (
	ErrEmptyKeyMaterial = errors.New("empty key material")
	ErrInvalidNonce     = errors.New("invalid nonce")
	ErrInvalidKeySize   = errors.New("invalid key size")
)

// DeriveKey derives a 256-bit key from master key material using HKDF-SHA256.
// The derivation is deterministic: the same master and info always produce the same key.
func DeriveKey(master []byte, info string) ([]byte, error) {
	if len(master) == 0 {
		return nil, ErrEmptyKeyMaterial
	}
	reader := hkdf.New(sha256.New, master, nil, []byte(info))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// GenerateKey returns KeySize bytes read from crypto/rand.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// AEAD seals and opens short values with AES-GCM. The nonce is generated
// internally on every Seal and returned separately from the ciphertext.
type AEAD struct {
	gcm cipher.AEAD
}

// NewAEAD creates an AES-GCM AEAD from a 32 byte key.
func NewAEAD(key []byte) (*AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeySize, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &AEAD{gcm: gcm}, nil
}

// Seal encrypts plaintext under a fresh random nonce.
func (a *AEAD) Seal(plaintext []byte) (ciphertext []byte, nonce []byte, err error) {
	nonce = make([]byte, a.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return a.gcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Open decrypts ciphertext with the nonce it was sealed under. Any mismatch
// between ciphertext, nonce and key fails authentication.
func (a *AEAD) Open(ciphertext, nonce []byte) ([]byte, error) {
	if len(nonce) != a.gcm.NonceSize() {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidNonce, a.gcm.NonceSize(), len(nonce))
	}
	if len(ciphertext) < a.gcm.Overhead() {
		return nil, fmt.Errorf("invalid ciphertext size")
	}
	plaintext, err := a.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}
