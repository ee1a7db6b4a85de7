package hashicorp

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/vault/api"

	"github.com/hengadev/credx"
)

// DefaultField is the KV v2 data field holding the master key.
const DefaultField = "value"

// VaultMasterKey implements credx.MasterKeyProvider using the HashiCorp
// Vault KV v2 engine. The field value is parsed with credx.ParseMasterKey,
// so it is either raw text or "base64:" followed by standard base64.
type VaultMasterKey struct {
	client *api.Client
	path   string
	field  string
}

// NewVaultMasterKey creates a provider reading path, which may be given with
// or without the KV v2 "data/" segment ("secret/credx/master" and
// "secret/data/credx/master" are the same secret).
//
// The service uses environment variables for configuration (VAULT_ADDR plus VAULT_TOKEN or an AppRole; see settings).
//
// The KV v2 engine must be enabled in Vault before use:
//
//	vault secrets enable -path=secret kv-v2
func NewVaultMasterKey(ctx context.Context, path string) (*VaultMasterKey, error) {
	if strings.Trim(path, "/") == "" {
		return nil, fmt.Errorf("%w: Vault secret path is required", credx.ErrInvalidConfiguration)
	}
	client, err := settingsFromEnv().connect(ctx)
	if err != nil {
		return nil, err
	}
	return NewVaultMasterKeyWithClient(client, path), nil
}

// NewVaultMasterKeyWithClient uses an already authenticated client.
func NewVaultMasterKeyWithClient(client *api.Client, path string) *VaultMasterKey {
	return &VaultMasterKey{client: client, path: dataPath(path), field: DefaultField}
}

// Path returns the KV v2 API path read by the provider.
func (v *VaultMasterKey) Path() string {
	return v.path
}

func (v *VaultMasterKey) MasterKey(ctx context.Context) (credx.MasterKey, error) {
	secret, err := v.client.Logical().ReadWithContext(ctx, v.path)
	if err != nil {
		return credx.MasterKey{}, fmt.Errorf("%w: failed to read master key from Vault KV: %w",
			credx.ErrMasterKeyUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return credx.MasterKey{}, fmt.Errorf("%w: master key not found at %s", credx.ErrMasterKeyUnavailable, v.path)
	}

	// KV v2 wraps the actual data in a "data" key
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return credx.MasterKey{}, fmt.Errorf("%w: invalid KV v2 secret format at %s", credx.ErrMasterKeyUnavailable, v.path)
	}
	value, ok := data[v.field].(string)
	if !ok {
		return credx.MasterKey{}, fmt.Errorf("%w: field %q not found or not a string at %s",
			credx.ErrMasterKeyUnavailable, v.field, v.path)
	}
	return credx.ParseMasterKey(value)
}

// Store writes an encoded master key as a new KV v2 version. The value is
// validated before it leaves the process.
func (v *VaultMasterKey) Store(ctx context.Context, encoded string) error {
	if _, err := credx.ParseMasterKey(encoded); err != nil {
		return err
	}
	_, err := v.client.Logical().WriteWithContext(ctx, v.path, map[string]interface{}{
		"data": map[string]interface{}{
			v.field: encoded,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: failed to store master key in Vault KV: %w", credx.ErrMasterKeyUnavailable, err)
	}
	return nil
}

// dataPath inserts "data/" after the mount when missing.
func dataPath(path string) string {
	path = strings.Trim(path, "/")
	mount, rest, found := strings.Cut(path, "/")
	if !found || strings.HasPrefix(rest, "data/") {
		return path
	}
	return mount + "/data/" + rest
}
