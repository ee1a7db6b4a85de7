package credx

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hengadev/errsx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ValidateDefaults(t *testing.T) {
	cfg := Config{DBPath: "/tmp/credx.db"}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/tmp/credx.db", cfg.DBPath)
	assert.Equal(t, MasterKeySourceEnv, cfg.MasterKeySource)
	assert.Equal(t, TransportSigV4, cfg.Transport)
	assert.Equal(t, DefaultCallTimeout, cfg.CallTimeout)
	assert.Zero(t, cfg.CacheTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestConfig_ValidateDefaultDBPath(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.Validate())
	assert.True(t, filepath.Base(cfg.DBPath) == filepath.Base(DefaultDBPath))
}

func TestConfig_ValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		keys []string
	}{
		{"unknown source", Config{DBPath: "x", MasterKeySource: "hsm"}, []string{"master_key_source"}},
		{"file without path", Config{DBPath: "x", MasterKeySource: MasterKeySourceFile}, []string{"master_key_file"}},
		{"secrets manager without id", Config{DBPath: "x", MasterKeySource: MasterKeySourceSecretsManager}, []string{"master_key_secret_id"}},
		{"vault without path", Config{DBPath: "x", MasterKeySource: MasterKeySourceVault}, []string{"master_key_secret_id"}},
		{"kms without blob", Config{DBPath: "x", MasterKeySource: MasterKeySourceKMS}, []string{"master_key_ciphertext"}},
		{"bad transport and durations", Config{DBPath: "x", Transport: "grpc", CacheTTL: -time.Second, CallTimeout: -time.Second}, []string{"transport", "cache_ttl", "call_timeout"}},
		{"bad log settings", Config{DBPath: "x", Log: LogConfig{Level: "loud", Format: "xml"}}, []string{"log.level", "log.format"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)

			var errs errsx.Map
			require.ErrorAs(t, err, &errs)
			assert.Len(t, errs, len(tt.keys))
			for _, k := range tt.keys {
				assert.Contains(t, errs, k)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path: /var/lib/credx/records.db
master_key_source: aws-secretsmanager
master_key_secret_id: credx/master-key
region: eu-west-1
transport: sdk
cache_ttl: 5m
call_timeout: 3s
log:
  level: debug
  format: json
`), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/credx/records.db", cfg.DBPath)
	assert.Equal(t, MasterKeySourceSecretsManager, cfg.MasterKeySource)
	assert.Equal(t, "credx/master-key", cfg.MasterKeySecretID)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, TransportSDK, cfg.Transport)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 3*time.Second, cfg.CallTimeout)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
}

func TestLoadConfigFile_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credx.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_path: /from/file.db\ncache_ttl: 5m\n"), 0o600))

	t.Setenv(EnvDBPath, "/from/env.db")
	t.Setenv(EnvCacheTTL, "60")
	t.Setenv(EnvMasterKeyFile, "/run/secrets/key")
	t.Setenv(EnvLogFormat, "json")

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env.db", cfg.DBPath)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, MasterKeySourceFile, cfg.MasterKeySource)
	assert.Equal(t, "/run/secrets/key", cfg.MasterKeyFile)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfigFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfigFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("cache_ttl: [not, a, duration]\n"), 0o600))
	_, err = LoadConfigFile(bad)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	t.Setenv(EnvCallTimeout, "whenever")
	_, err = LoadConfigFromEnvironment()
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv(EnvDBPath, "/data/credx.db")
	t.Setenv(EnvTransport, "sdk")
	t.Setenv(EnvCallTimeout, "2s")

	cfg, err := LoadConfigFromEnvironment()
	require.NoError(t, err)
	assert.Equal(t, "/data/credx.db", cfg.DBPath)
	assert.Equal(t, TransportSDK, cfg.Transport)
	assert.Equal(t, 2*time.Second, cfg.CallTimeout)
	assert.Equal(t, MasterKeySourceEnv, cfg.MasterKeySource)
}
