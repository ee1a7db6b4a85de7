package credx

import "context"

// RecordStore is the scoped record store the broker reads from.
//
// The broker never writes through this interface. Implementations:
//   - In memory: credx.MemoryStore (tests and embedding)
//   - SQLite: github.com/hengadev/credx/providers/sqlite.Store
type RecordStore interface {
	// FindSecrets returns every SecretRecord whose name, tenant and caller
	// exactly equal the scope. It returns an empty slice, not an error, when
	// nothing matches. Returning more than one record is reported by the
	// registry as a data integrity violation.
	FindSecrets(ctx context.Context, scope Scope) ([]SecretRecord, error)

	// LoadAccessKey returns the access-key record with the given reference,
	// or an error matching ErrRecordNotFound.
	LoadAccessKey(ctx context.Context, ref string) (*AccessKeyRecord, error)
}

// AccessKeyWriter persists sealed access-key records. Records must come from
// SealAccessKey; implementations reject records that fail Validate.
type AccessKeyWriter interface {
	// SaveAccessKey stores rec and returns its reference. An empty rec.ID is
	// assigned by the store.
	SaveAccessKey(ctx context.Context, rec *AccessKeyRecord) (string, error)
}

// SecretWriter persists secret metadata records.
type SecretWriter interface {
	// SaveSecret stores rec and returns its ID. Saving a second record for
	// the same scope fails.
	SaveSecret(ctx context.Context, rec *SecretRecord) (string, error)
}

// AccessKeyRotator lists and replaces access-key records during master-key
// rotation.
type AccessKeyRotator interface {
	// ListAccessKeys returns every stored access-key record.
	ListAccessKeys(ctx context.Context) ([]AccessKeyRecord, error)

	// ReplaceAccessKeys overwrites the sealed fields of each record, matched
	// by ID. Either every record is replaced or none is; an unknown ID fails
	// the whole call with ErrRecordNotFound.
	ReplaceAccessKeys(ctx context.Context, recs []AccessKeyRecord) error
}

// Transport is the request-signing collaborator that carries one remote call.
//
// Implementations sign the request with req.Credentials, send it to
// req.Endpoint (or the regional default for req.Service) and return the raw
// status and body. A non-2xx status is a Response, not an error; errors are
// reserved for calls that produced no response at all.
//
// Implementations:
//   - Raw SigV4 over HTTPS: github.com/hengadev/credx/providers/aws.SigV4Transport
//   - AWS SDK clients: github.com/hengadev/credx/providers/aws.SDKTransport
//   - Canned responses: credx.StubTransport (tests)
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Resolver turns an access-key reference into credentials ready for a remote call.
type Resolver interface {
	Resolve(ctx context.Context, accessKeyRef string) (Credentials, error)
}

// MasterKeyProvider supplies the process master key from a protected store.
//
// Implementations:
//   - Environment: credx.EnvMasterKeySource
//   - File: credx.FileMasterKeySource
//   - AWS Secrets Manager: github.com/hengadev/credx/providers/aws.SecretsManagerMasterKey
//   - AWS KMS wrapped blob: github.com/hengadev/credx/providers/awskms.WrappedMasterKey
//   - HashiCorp Vault KV v2: github.com/hengadev/credx/providers/hashicorp.VaultMasterKey
type MasterKeyProvider interface {
	MasterKey(ctx context.Context) (MasterKey, error)
}

// KeyCipher encrypts and decrypts short strings of key material.
// *CipherService is the only production implementation.
type KeyCipher interface {
	Encrypt(plaintext string) (SealedValue, error)
	Decrypt(ciphertextHex string, iv []byte) (string, error)
}
