package credx

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/hengadev/credx/internal/config"
	"github.com/hengadev/errsx"
)

// Master key sources accepted by Config.MasterKeySource.
const (
	MasterKeySourceEnv            = "env"
	MasterKeySourceFile           = "file"
	MasterKeySourceSecretsManager = "aws-secretsmanager"
	MasterKeySourceKMS            = "aws-kms"
	MasterKeySourceVault          = "vault"
)

var masterKeySources = []string{
	MasterKeySourceEnv,
	MasterKeySourceFile,
	MasterKeySourceSecretsManager,
	MasterKeySourceKMS,
	MasterKeySourceVault,
}

// Config holds the settings the CLI and embedding applications use to wire a
// Broker. It contains only data; Validate applies defaults.
//
// Example:
//
//	cfg := credx.Config{
//	    DBPath:          "/var/lib/credx/records.db",
//	    MasterKeySource: credx.MasterKeySourceFile,
//	    MasterKeyFile:   "/run/secrets/credx-master-key",
//	    CacheTTL:        5 * time.Minute,
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	// DBPath is the SQLite record database. Default: .credx/records.db under
	// the project root, or relative to the working directory.
	DBPath string `yaml:"db_path"`

	// MasterKeySource selects where the master key comes from. Default: env.
	MasterKeySource string `yaml:"master_key_source"`

	// MasterKeyFile is read when MasterKeySource is "file".
	MasterKeyFile string `yaml:"master_key_file"`

	// MasterKeySecretID names the Secrets Manager secret ("aws-secretsmanager")
	// or the Vault KV v2 path ("vault") holding the master key.
	MasterKeySecretID string `yaml:"master_key_secret_id"`

	// MasterKeyCiphertext is the base64 KMS ciphertext blob ("aws-kms").
	MasterKeyCiphertext string `yaml:"master_key_ciphertext"`

	// Region is used by the AWS master key sources. Default: the SDK's ambient region.
	Region string `yaml:"region"`

	// Transport is "sigv4" (default) or "sdk".
	Transport string `yaml:"transport"`

	// CacheTTL enables caching of elevated credentials when positive.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// CallTimeout bounds each remote call. Default: 10s.
	CallTimeout time.Duration `yaml:"call_timeout"`

	Log LogConfig `yaml:"log"`
}

// LogConfig selects the CLI logger.
type LogConfig struct {
	// Level is debug, info, warn or error. Default: info.
	Level string `yaml:"level"`
	// Format is "console" or "json". Default: console.
	Format string `yaml:"format"`
}

// Validate checks the configuration and fills empty optional fields with
// their defaults. All problems are reported together.
func (c *Config) Validate() error {
	c.applyDefaults()

	var errs errsx.Map
	if !slices.Contains(masterKeySources, c.MasterKeySource) {
		errs.Set("master_key_source", fmt.Sprintf("must be one of %v, got %q", masterKeySources, c.MasterKeySource))
	}
	switch c.MasterKeySource {
	case MasterKeySourceFile:
		if c.MasterKeyFile == "" {
			errs.Set("master_key_file", "is required when master_key_source is file")
		}
	case MasterKeySourceSecretsManager, MasterKeySourceVault:
		if c.MasterKeySecretID == "" {
			errs.Set("master_key_secret_id", fmt.Sprintf("is required when master_key_source is %s", c.MasterKeySource))
		}
	case MasterKeySourceKMS:
		if c.MasterKeyCiphertext == "" {
			errs.Set("master_key_ciphertext", "is required when master_key_source is aws-kms")
		}
	}
	if c.Transport != TransportSigV4 && c.Transport != TransportSDK {
		errs.Set("transport", fmt.Sprintf("must be %q or %q, got %q", TransportSigV4, TransportSDK, c.Transport))
	}
	if c.CacheTTL < 0 {
		errs.Set("cache_ttl", "must not be negative")
	}
	if c.CallTimeout < 0 {
		errs.Set("call_timeout", "must not be negative")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		errs.Set("log.level", fmt.Sprintf("unknown level %q", c.Log.Level))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs.Set("log.format", fmt.Sprintf("unknown format %q", c.Log.Format))
	}

	if errs.IsEmpty() {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfiguration, errs.AsError())
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = defaultDBPath()
	}
	if c.MasterKeySource == "" {
		c.MasterKeySource = MasterKeySourceEnv
	}
	if c.Transport == "" {
		c.Transport = DefaultTransport
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// defaultDBPath anchors DefaultDBPath at the nearest directory holding a
// .credx directory or a go.mod, falling back to the working directory.
func defaultDBPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return DefaultDBPath
	}
	root, err := config.FindProjectRoot(cwd, filepath.Dir(DefaultDBPath), "go.mod")
	if err != nil {
		return DefaultDBPath
	}
	return filepath.Join(root, DefaultDBPath)
}
