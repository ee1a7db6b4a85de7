// Package awskms provides an AWS KMS wrapped master key for credx.
//
// The master key is stored outside the broker as a KMS ciphertext blob. At
// startup WrappedMasterKey asks KMS to decrypt the blob; the plaintext key
// lives only in process memory.
package awskms

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"

	"github.com/hengadev/credx"
)

// kmsClient interface for AWS KMS operations (allows mocking)
type kmsClient interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
	GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
}

// Config holds configuration for AWS KMS service.
type Config struct {
	// Region is the AWS region (e.g., "us-east-1")
	// If empty, uses AWS_REGION environment variable or AWS config file
	Region string

	// AWSConfig is an optional pre-configured AWS config
	// If provided, Region is ignored
	AWSConfig *aws.Config

	// KeyID optionally pins the KMS key the blob must have been encrypted
	// under. It can be a key ID, key ARN, alias name or alias ARN.
	KeyID string
}

// WrappedMasterKey implements credx.MasterKeyProvider by decrypting a
// base64 KMS ciphertext blob.
type WrappedMasterKey struct {
	client     kmsClient
	keyID      string
	ciphertext string
	region     string
}

// New creates a provider for the base64 ciphertext blob.
//
// Usage:
//
//	// Using default AWS configuration
//	provider, err := awskms.New(ctx, awskms.Config{}, os.Getenv("CREDX_MASTER_KEY_CIPHERTEXT"))
//
//	// Pinned to a key alias
//	provider, err := awskms.New(ctx, awskms.Config{Region: "us-east-1", KeyID: "credx-master"}, blob)
func New(ctx context.Context, cfg Config, ciphertext string) (*WrappedMasterKey, error) {
	if strings.TrimSpace(ciphertext) == "" {
		return nil, fmt.Errorf("%w: wrapped master key ciphertext is required", credx.ErrInvalidConfiguration)
	}

	client, region, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &WrappedMasterKey{
		client:     client,
		keyID:      normalizeKeyID(cfg.KeyID),
		ciphertext: strings.TrimSpace(ciphertext),
		region:     region,
	}, nil
}

// NewGenerator returns a WrappedMasterKey usable only for Generate.
func NewGenerator(ctx context.Context, cfg Config) (*WrappedMasterKey, error) {
	client, region, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &WrappedMasterKey{client: client, keyID: normalizeKeyID(cfg.KeyID), region: region}, nil
}

func newClient(ctx context.Context, cfg Config) (kmsClient, string, error) {
	var awsConfig aws.Config
	var err error

	if cfg.AWSConfig != nil {
		awsConfig = *cfg.AWSConfig
	} else {
		opts := []func(*config.LoadOptions) error{}
		if cfg.Region != "" {
			opts = append(opts, config.WithRegion(cfg.Region))
		}

		awsConfig, err = config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, "", fmt.Errorf("%w: failed to load AWS config: %w", credx.ErrMasterKeyUnavailable, err)
		}
	}
	return kms.NewFromConfig(awsConfig), awsConfig.Region, nil
}

// MasterKey decrypts the blob with KMS.
func (w *WrappedMasterKey) MasterKey(ctx context.Context) (credx.MasterKey, error) {
	blob, err := base64.StdEncoding.DecodeString(w.ciphertext)
	if err != nil {
		return credx.MasterKey{}, fmt.Errorf("%w: failed to decode wrapped master key: %w", credx.ErrMasterKeyUnavailable, err)
	}

	input := &kms.DecryptInput{
		CiphertextBlob: blob,
	}
	// KMS finds the key from the blob metadata; pinning rejects blobs from other keys.
	if w.keyID != "" {
		input.KeyId = aws.String(w.keyID)
	}

	result, err := w.client.Decrypt(ctx, input)
	if err != nil {
		return credx.MasterKey{}, fmt.Errorf("%w: failed to decrypt wrapped master key: %w", credx.ErrMasterKeyUnavailable, err)
	}
	if result.Plaintext == nil {
		return credx.MasterKey{}, fmt.Errorf("%w: no plaintext returned from KMS", credx.ErrMasterKeyUnavailable)
	}
	return credx.NewMasterKey(result.Plaintext)
}

// Generate asks KMS for a fresh 256-bit master key under keyID, or the
// configured KeyID when empty, and returns only its base64 ciphertext blob,
// ready to be passed to New.
func (w *WrappedMasterKey) Generate(ctx context.Context, keyID string) (string, error) {
	keyID = normalizeKeyID(keyID)
	if keyID == "" {
		keyID = w.keyID
	}
	if keyID == "" {
		return "", fmt.Errorf("%w: KMS key id is required", credx.ErrInvalidConfiguration)
	}

	result, err := w.client.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   aws.String(keyID),
		KeySpec: types.DataKeySpecAes256,
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to generate master key with KMS key %s: %w", credx.ErrEncryptionFailed, keyID, err)
	}
	if result.CiphertextBlob == nil {
		return "", fmt.Errorf("%w: no ciphertext returned from KMS", credx.ErrEncryptionFailed)
	}
	clear(result.Plaintext)

	return base64.StdEncoding.EncodeToString(result.CiphertextBlob), nil
}

// Region returns the AWS region this provider is configured for.
func (w *WrappedMasterKey) Region() string {
	return w.region
}

// normalizeKeyID adds the "alias/" prefix to bare alias names. Key IDs,
// key ARNs and alias ARNs are returned unchanged.
func normalizeKeyID(keyID string) string {
	keyID = strings.TrimSpace(keyID)
	switch {
	case keyID == "":
		return ""
	case strings.HasPrefix(keyID, "alias/"), strings.HasPrefix(keyID, "arn:"), strings.HasPrefix(keyID, "mrk-"), isKeyUUID(keyID):
		return keyID
	default:
		return "alias/" + keyID
	}
}

func isKeyUUID(s string) bool {
	return len(s) == 36 && strings.Count(s, "-") == 4
}
