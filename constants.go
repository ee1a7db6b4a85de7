package credx

import "time"

// Session and timing policy
const (
	// AssumeRoleDuration is the lifetime requested for every elevated session.
	// It is a policy constant and cannot be overridden per access-key record.
	AssumeRoleDuration = 900 * time.Second

	// DefaultCallTimeout bounds each individual remote call when Config.CallTimeout is zero.
	DefaultCallTimeout = 10 * time.Second

	// CredentialExpirySkew is subtracted from the reported session expiration
	// before a cached credential is considered stale.
	CredentialExpirySkew = 30 * time.Second
)

// Key material constraints
const (
	// MinMasterKeyLength is the minimum accepted master key size in bytes.
	MinMasterKeyLength = 16

	// cipherKeyInfo is the HKDF info label used to derive the field cipher key.
	// Changing it makes every stored ciphertext unreadable.
	cipherKeyInfo = "credx/field-cipher/v1"
)

// Environment variable names
const (
	// EnvMasterKey holds the master key, raw or prefixed with "base64:".
	EnvMasterKey = "CREDX_MASTER_KEY"

	// EnvMasterKeyFile points to a file holding the master key.
	EnvMasterKeyFile = "CREDX_MASTER_KEY_FILE"

	// EnvDBPath is the path of the SQLite record database.
	// Default: .credx/records.db
	EnvDBPath = "CREDX_DB_PATH"

	// EnvCacheTTL enables the elevated-credential cache when set to a positive duration.
	EnvCacheTTL = "CREDX_CACHE_TTL"

	// EnvCallTimeout overrides the per-call remote timeout.
	EnvCallTimeout = "CREDX_CALL_TIMEOUT"

	// EnvTransport selects the remote transport: "sigv4" or "sdk".
	EnvTransport = "CREDX_TRANSPORT"

	// EnvLogLevel and EnvLogFormat configure the CLI logger.
	EnvLogLevel  = "CREDX_LOG_LEVEL"
	EnvLogFormat = "CREDX_LOG_FORMAT"
)

// Default values
const (
	// DefaultDBPath is the default location of the SQLite record database.
	DefaultDBPath = ".credx/records.db"

	// DefaultRoleSessionName is used when an assumable record carries no session name.
	DefaultRoleSessionName = "credx"

	// DefaultTransport is the transport selected when none is configured.
	DefaultTransport = TransportSigV4
)

// Transport kinds accepted by Config.Transport.
const (
	TransportSigV4 = "sigv4"
	TransportSDK   = "sdk"
)

// Remote services and actions
const (
	ServiceSTS            = "sts"
	ServiceSecretsManager = "secretsmanager"

	ActionAssumeRole     = "AssumeRole"
	ActionGetSecretValue = "GetSecretValue"
	ActionPutSecretValue = "PutSecretValue"

	// STSAPIVersion is the query protocol version sent with AssumeRole.
	STSAPIVersion = "2011-06-15"
)
