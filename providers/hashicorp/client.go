package hashicorp

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/vault/api"

	"github.com/hengadev/credx"
)

// settings are the connection parameters read from the VAULT_* variables:
//
//	VAULT_ADDR           server address, required
//	VAULT_NAMESPACE      enterprise/HCP namespace
//	VAULT_TOKEN          static token, preferred when set
//	VAULT_ROLE_ID        AppRole role id, with VAULT_SECRET_ID
//	VAULT_SECRET_ID      AppRole secret id
//	VAULT_APPROLE_MOUNT  AppRole mount path, default "approle"
type settings struct {
	addr         string
	namespace    string
	token        string
	roleID       string
	secretID     string
	appRoleMount string
}

func settingsFromEnv() settings {
	s := settings{
		addr:         os.Getenv("VAULT_ADDR"),
		namespace:    os.Getenv("VAULT_NAMESPACE"),
		token:        os.Getenv("VAULT_TOKEN"),
		roleID:       os.Getenv("VAULT_ROLE_ID"),
		secretID:     os.Getenv("VAULT_SECRET_ID"),
		appRoleMount: strings.Trim(os.Getenv("VAULT_APPROLE_MOUNT"), "/"),
	}
	if s.appRoleMount == "" {
		s.appRoleMount = "approle"
	}
	return s
}

// connect returns an authenticated client over a pooled transport.
func (s settings) connect(ctx context.Context) (*api.Client, error) {
	if s.addr == "" {
		return nil, fmt.Errorf("%w: VAULT_ADDR environment variable is required", credx.ErrInvalidConfiguration)
	}

	cfg := api.DefaultConfig()
	cfg.Address = s.addr
	cfg.HttpClient.Transport = cleanhttp.DefaultPooledTransport()

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: create Vault client: %w", credx.ErrMasterKeyUnavailable, err)
	}
	if s.namespace != "" {
		client.SetNamespace(s.namespace)
	}

	switch {
	case s.token != "":
		client.SetToken(s.token)
	case s.roleID != "" && s.secretID != "":
		token, err := s.appRoleLogin(ctx, client)
		if err != nil {
			return nil, err
		}
		client.SetToken(token)
	default:
		return nil, fmt.Errorf("%w: no Vault authentication configured (set VAULT_TOKEN or VAULT_ROLE_ID and VAULT_SECRET_ID)",
			credx.ErrInvalidConfiguration)
	}
	return client, nil
}

func (s settings) appRoleLogin(ctx context.Context, client *api.Client) (string, error) {
	resp, err := client.Logical().WriteWithContext(ctx, "auth/"+s.appRoleMount+"/login", map[string]any{
		"role_id":   s.roleID,
		"secret_id": s.secretID,
	})
	if err != nil {
		return "", fmt.Errorf("%w: AppRole login: %w", credx.ErrMasterKeyUnavailable, err)
	}
	if resp == nil || resp.Auth == nil || resp.Auth.ClientToken == "" {
		return "", fmt.Errorf("%w: AppRole login returned no token", credx.ErrMasterKeyUnavailable)
	}
	return resp.Auth.ClientToken, nil
}
