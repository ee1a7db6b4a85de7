package credx

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/hengadev/credx/internal/crypto"
)

// CipherService encrypts stored key material with AES-256-GCM under a key
// derived from the MasterKey. It holds no mutable state and is safe for
// concurrent use.
//
// The zero value has no key: every call fails with ErrMasterKeyUnavailable.
type CipherService struct {
	aead *crypto.AEAD
}

// NewCipherService derives the field cipher key from key.
func NewCipherService(key MasterKey) (*CipherService, error) {
	if key.IsZero() {
		return nil, ErrMasterKeyUnavailable
	}
	derived, err := crypto.DeriveKey(key.material(), cipherKeyInfo)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMasterKeyUnavailable, err)
	}
	aead, err := crypto.NewAEAD(derived)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMasterKeyUnavailable, err)
	}
	return &CipherService{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random IV. Callers cannot supply the IV.
func (c *CipherService) Encrypt(plaintext string) (SealedValue, error) {
	if c == nil || c.aead == nil {
		return SealedValue{}, fmt.Errorf("%w: %w", ErrEncryptionFailed, ErrMasterKeyUnavailable)
	}
	ciphertext, iv, err := c.aead.Seal([]byte(plaintext))
	if err != nil {
		return SealedValue{}, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	return SealedValue{Ciphertext: hex.EncodeToString(ciphertext), IV: iv}, nil
}

// Decrypt opens a hex ciphertext with exactly the IV it was sealed under.
// Every failure is a *DecryptionError.
func (c *CipherService) Decrypt(ciphertextHex string, iv []byte) (string, error) {
	if c == nil || c.aead == nil {
		return "", &DecryptionError{Err: ErrMasterKeyUnavailable}
	}
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", &DecryptionError{Err: errors.New("ciphertext is not valid hex")}
	}
	plaintext, err := c.aead.Open(ciphertext, iv)
	if err != nil {
		return "", &DecryptionError{Err: err}
	}
	return string(plaintext), nil
}

// Open decrypts a SealedValue.
func (c *CipherService) Open(v SealedValue) (string, error) {
	return c.Decrypt(v.Ciphertext, v.IV)
}

// decryptField decrypts v and names field in any resulting DecryptionError.
func decryptField(c KeyCipher, field string, v SealedValue) (string, error) {
	plaintext, err := c.Decrypt(v.Ciphertext, v.IV)
	if err == nil {
		return plaintext, nil
	}
	var de *DecryptionError
	if errors.As(err, &de) {
		return "", &DecryptionError{Field: field, Err: de.Err}
	}
	return "", &DecryptionError{Field: field, Err: err}
}
