package cmd

import (
	"context"
	"fmt"

	"github.com/hengadev/credx"
	awsprovider "github.com/hengadev/credx/providers/aws"
	"github.com/hengadev/credx/providers/awskms"
	"github.com/hengadev/credx/providers/hashicorp"
)

func newMasterKeyProvider(ctx context.Context, cfg credx.Config) (credx.MasterKeyProvider, error) {
	switch cfg.MasterKeySource {
	case credx.MasterKeySourceEnv:
		return credx.EnvMasterKeySource{}, nil
	case credx.MasterKeySourceFile:
		return credx.FileMasterKeySource{Path: cfg.MasterKeyFile}, nil
	case credx.MasterKeySourceSecretsManager:
		return awsprovider.NewSecretsManagerMasterKey(ctx, awsprovider.Config{Region: cfg.Region}, cfg.MasterKeySecretID)
	case credx.MasterKeySourceKMS:
		return awskms.New(ctx, awskms.Config{Region: cfg.Region}, cfg.MasterKeyCiphertext)
	case credx.MasterKeySourceVault:
		return hashicorp.NewVaultMasterKey(ctx, cfg.MasterKeySecretID)
	default:
		return nil, fmt.Errorf("%w: unknown master key source %q", credx.ErrInvalidConfiguration, cfg.MasterKeySource)
	}
}

func newTransport(cfg credx.Config) (credx.Transport, error) {
	switch cfg.Transport {
	case credx.TransportSigV4:
		return awsprovider.NewSigV4Transport(), nil
	case credx.TransportSDK:
		return awsprovider.NewSDKTransport(), nil
	default:
		return nil, fmt.Errorf("%w: unknown transport %q", credx.ErrInvalidConfiguration, cfg.Transport)
	}
}
