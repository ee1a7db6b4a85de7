package credx

import (
	"fmt"
	"strings"
	"time"

	"github.com/hengadev/errsx"
	"go.uber.org/zap/zapcore"
)

// Scope identifies a secret as seen by one calling application of one tenant.
// All three fields are required and matched exactly.
type Scope struct {
	Name     string
	TenantID string
	CallerID string
}

// Validate reports every missing field at once.
func (s Scope) Validate() error {
	var errs errsx.Map
	if strings.TrimSpace(s.Name) == "" {
		errs.Set("name", "is required")
	}
	if strings.TrimSpace(s.TenantID) == "" {
		errs.Set("tenant", "is required")
	}
	if strings.TrimSpace(s.CallerID) == "" {
		errs.Set("caller", "is required")
	}
	if errs.IsEmpty() {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidScope, errs.AsError())
}

func (s Scope) String() string {
	return fmt.Sprintf("%s@%s/%s", s.Name, s.TenantID, s.CallerID)
}

// MarshalLogObject renders the scope as zap fields.
func (s Scope) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("name", s.Name)
	enc.AddString("tenant", s.TenantID)
	enc.AddString("caller", s.CallerID)
	return nil
}

// SecretRecord maps a scoped logical name to a remote secret and to the
// access-key record used to reach it.
type SecretRecord struct {
	ID             string
	Name           string
	TenantID       string
	CallerID       string
	AccessKeyRef   string
	RemoteSecretID string
	// EndpointURL may be empty, in which case the transport derives the
	// regional endpoint.
	EndpointURL string
}

func (r SecretRecord) Scope() Scope {
	return Scope{Name: r.Name, TenantID: r.TenantID, CallerID: r.CallerID}
}

func (r SecretRecord) Validate() error {
	var errs errsx.Map
	if err := r.Scope().Validate(); err != nil {
		errs.Set("scope", err)
	}
	if r.AccessKeyRef == "" {
		errs.Set("access_key_ref", "is required")
	}
	if r.RemoteSecretID == "" {
		errs.Set("remote_secret_id", "is required")
	}
	return errs.AsError()
}

// SealedValue is a ciphertext together with the IV it was sealed under.
// The two are only ever produced together by CipherService.Encrypt.
type SealedValue struct {
	// Ciphertext is hex encoded and includes the authentication tag.
	Ciphertext string
	IV         []byte
}

func (v SealedValue) IsZero() bool {
	return v.Ciphertext == "" && len(v.IV) == 0
}

// CredentialMode tells the resolver whether the long-lived key pair is used
// directly or exchanged for an elevated session. It is either
// DirectCredential or AssumableCredential.
type CredentialMode interface {
	credentialMode()
}

// DirectCredential uses the decrypted long-lived pair as is.
type DirectCredential struct{}

// AssumableCredential exchanges the long-lived pair for temporary credentials
// of RoleARN. The long-lived pair never reaches the remote secrets store.
type AssumableCredential struct {
	RoleARN     string
	SessionName string
}

func (DirectCredential) credentialMode()    {}
func (AssumableCredential) credentialMode() {}

// RoleSessionName returns SessionName or DefaultRoleSessionName.
func (a AssumableCredential) RoleSessionName() string {
	if a.SessionName == "" {
		return DefaultRoleSessionName
	}
	return a.SessionName
}

// NewCredentialMode builds the variant matching a stored role ARN: an empty
// ARN means direct use.
func NewCredentialMode(roleARN, sessionName string) CredentialMode {
	if strings.TrimSpace(roleARN) == "" {
		return DirectCredential{}
	}
	return AssumableCredential{RoleARN: strings.TrimSpace(roleARN), SessionName: sessionName}
}

// AccessKeyRecord holds a long-lived key pair encrypted at rest.
type AccessKeyRecord struct {
	ID        string
	AccessKey SealedValue
	SecretKey SealedValue
	Region    string
	Mode      CredentialMode
}

// Validate checks that the record is usable by the resolver. It never
// inspects plaintext since a record holds none.
func (r *AccessKeyRecord) Validate() error {
	var errs errsx.Map
	if r.AccessKey.Ciphertext == "" || len(r.AccessKey.IV) == 0 {
		errs.Set("access_key", "ciphertext and iv are required")
	}
	if r.SecretKey.Ciphertext == "" || len(r.SecretKey.IV) == 0 {
		errs.Set("secret_key", "ciphertext and iv are required")
	}
	if strings.TrimSpace(r.Region) == "" {
		errs.Set("region", "is required")
	}
	switch m := r.Mode.(type) {
	case DirectCredential:
	case AssumableCredential:
		if strings.TrimSpace(m.RoleARN) == "" {
			errs.Set("role_arn", "is required for an assumable credential")
		}
	case nil:
		errs.Set("mode", "credential mode is not set")
	default:
		errs.Set("mode", fmt.Sprintf("unsupported credential mode %T", m))
	}
	return errs.AsError()
}

// PlainAccessKey is the administrator-supplied input to SealAccessKey. It
// exists only on the write path and is never persisted.
type PlainAccessKey struct {
	AccessKey   string
	SecretKey   string
	Region      string
	RoleARN     string
	SessionName string
}

func (p PlainAccessKey) Validate() error {
	var errs errsx.Map
	if p.AccessKey == "" {
		errs.Set("access_key", "is required")
	}
	if p.SecretKey == "" {
		errs.Set("secret_key", "is required")
	}
	if strings.TrimSpace(p.Region) == "" {
		errs.Set("region", "is required")
	}
	return errs.AsError()
}

func (p PlainAccessKey) String() string {
	return fmt.Sprintf("PlainAccessKey{AccessKey: %s, SecretKey: [REDACTED], Region: %s, RoleARN: %s}",
		maskKeyID(p.AccessKey), p.Region, p.RoleARN)
}

// Credentials are resolved credentials for one broker operation. They live in
// memory only; Elevated credentials may be cached until Expires.
type Credentials struct {
	AccessKey    string
	SecretKey    string
	SessionToken string
	Region       string
	// Expires is zero for long-lived credentials.
	Expires time.Time
}

// Elevated reports whether the credentials came from a role assumption.
func (c Credentials) Elevated() bool {
	return c.SessionToken != ""
}

func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{AccessKey: %s, SecretKey: [REDACTED], Elevated: %t, Region: %s}",
		maskKeyID(c.AccessKey), c.Elevated(), c.Region)
}

// MarshalLogObject never emits the secret key or session token.
func (c Credentials) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("access_key", maskKeyID(c.AccessKey))
	enc.AddBool("elevated", c.Elevated())
	enc.AddString("region", c.Region)
	if !c.Expires.IsZero() {
		enc.AddTime("expires", c.Expires)
	}
	return nil
}

func maskKeyID(id string) string {
	if len(id) <= 4 {
		return "****"
	}
	return id[:4] + "****"
}
