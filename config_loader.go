package credx

import (
	"fmt"
	"os"

	"github.com/hengadev/credx/internal/config"
	"gopkg.in/yaml.v3"
)

// LoadConfigFromEnvironment builds a Config from CREDX_* variables only.
//
// Recognized variables:
//   - CREDX_DB_PATH: record database path
//   - CREDX_MASTER_KEY_FILE: selects the file master key source
//   - CREDX_CACHE_TTL, CREDX_CALL_TIMEOUT: durations ("5m") or seconds ("300")
//   - CREDX_TRANSPORT: sigv4 or sdk
//   - CREDX_LOG_LEVEL, CREDX_LOG_FORMAT
//
// The master key itself is never part of Config; EnvMasterKeySource reads
// CREDX_MASTER_KEY when the key is needed.
func LoadConfigFromEnvironment() (Config, error) {
	var cfg Config
	if err := applyEnvironment(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML config file and then applies CREDX_*
// environment overrides. An empty path behaves like LoadConfigFromEnvironment.
//
// Example file:
//
//	db_path: /var/lib/credx/records.db
//	master_key_source: aws-secretsmanager
//	master_key_secret_id: credx/master-key
//	region: eu-west-1
//	cache_ttl: 5m
//	log:
//	  level: debug
//	  format: json
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return LoadConfigFromEnvironment()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read config file: %w", ErrInvalidConfiguration, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse config file %s: %w", ErrInvalidConfiguration, path, err)
	}
	if err := applyEnvironment(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnvironment(cfg *Config) error {
	config.StringFromEnv(&cfg.DBPath, EnvDBPath)
	config.StringFromEnv(&cfg.Transport, EnvTransport)
	config.StringFromEnv(&cfg.Log.Level, EnvLogLevel)
	config.StringFromEnv(&cfg.Log.Format, EnvLogFormat)

	if path, ok := os.LookupEnv(EnvMasterKeyFile); ok && path != "" {
		cfg.MasterKeySource = MasterKeySourceFile
		cfg.MasterKeyFile = path
	}

	if err := config.DurationFromEnv(&cfg.CacheTTL, EnvCacheTTL); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	if err := config.DurationFromEnv(&cfg.CallTimeout, EnvCallTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	return nil
}
