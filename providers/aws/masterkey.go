package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/hengadev/credx"
)

// masterKeyClient interface for reading the master key secret (allows mocking)
type masterKeyClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerMasterKey implements credx.MasterKeyProvider by reading the
// master key from an AWS Secrets Manager secret with the ambient credential
// chain. A SecretString is parsed with credx.ParseMasterKey (raw text or
// "base64:" prefixed); a SecretBinary is used as is.
type SecretsManagerMasterKey struct {
	client   masterKeyClient
	secretID string
	region   string
}

// NewSecretsManagerMasterKey creates a provider for the secret secretID.
//
// Usage:
//
//	provider, err := aws.NewSecretsManagerMasterKey(ctx, aws.Config{Region: "us-east-1"}, "credx/master-key")
//	broker, err := credx.New(ctx, credx.WithMasterKeyProvider(provider), ...)
func NewSecretsManagerMasterKey(ctx context.Context, cfg Config, secretID string) (*SecretsManagerMasterKey, error) {
	if secretID == "" {
		return nil, fmt.Errorf("%w: master key secret id is required", credx.ErrInvalidConfiguration)
	}
	awsConfig, err := cfg.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", credx.ErrMasterKeyUnavailable, err)
	}
	return &SecretsManagerMasterKey{
		client:   secretsmanager.NewFromConfig(awsConfig),
		secretID: secretID,
		region:   awsConfig.Region,
	}, nil
}

func (p *SecretsManagerMasterKey) MasterKey(ctx context.Context) (credx.MasterKey, error) {
	result, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(p.secretID),
	})
	if err != nil {
		var notFoundErr *types.ResourceNotFoundException
		if errors.As(err, &notFoundErr) {
			return credx.MasterKey{}, fmt.Errorf("%w: secret %q does not exist", credx.ErrMasterKeyUnavailable, p.secretID)
		}
		return credx.MasterKey{}, fmt.Errorf("%w: failed to get secret %q from Secrets Manager: %w",
			credx.ErrMasterKeyUnavailable, p.secretID, err)
	}

	switch {
	case result.SecretString != nil:
		return credx.ParseMasterKey(*result.SecretString)
	case len(result.SecretBinary) > 0:
		return credx.NewMasterKey(result.SecretBinary)
	default:
		return credx.MasterKey{}, fmt.Errorf("%w: secret %q has no value", credx.ErrMasterKeyUnavailable, p.secretID)
	}
}

// Region returns the AWS region the provider reads from.
func (p *SecretsManagerMasterKey) Region() string {
	return p.region
}
