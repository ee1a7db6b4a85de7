package credx

import (
	"fmt"
	"strings"
)

// SealAccessKey replaces the plaintext key pair by ciphertext and IV pairs.
// It is the only producer of the encrypted fields of an AccessKeyRecord.
// The returned record has no ID; the store assigns one on save.
func SealAccessKey(cipher KeyCipher, plain PlainAccessKey) (*AccessKeyRecord, error) {
	if err := plain.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	accessKey, err := cipher.Encrypt(plain.AccessKey)
	if err != nil {
		return nil, fmt.Errorf("seal access key: %w", err)
	}
	secretKey, err := cipher.Encrypt(plain.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("seal secret key: %w", err)
	}

	return &AccessKeyRecord{
		AccessKey: accessKey,
		SecretKey: secretKey,
		Region:    strings.TrimSpace(plain.Region),
		Mode:      NewCredentialMode(plain.RoleARN, plain.SessionName),
	}, nil
}
