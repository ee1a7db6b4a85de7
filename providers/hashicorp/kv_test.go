package hashicorp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/credx"
)

var testKey = "base64:" + base64.StdEncoding.EncodeToString([]byte(strings.Repeat("v", 32)))

// mockVaultServer creates a mock Vault server holding one KV v2 secret.
func mockVaultServer(t *testing.T) (*httptest.Server, *string) {
	t.Helper()
	stored := testKey
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/auth/approle/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"auth": {"client_token": "approle-token"}}`))
	})

	mux.HandleFunc("/v1/secret/data/credx/master", func(w http.ResponseWriter, r *http.Request) {
		if tok := r.Header.Get("X-Vault-Token"); tok != "test-token" && tok != "approle-token" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"errors": ["permission denied"]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"data": map[string]any{"value": stored}},
			})
		case http.MethodPut, http.MethodPost:
			b, _ := io.ReadAll(r.Body)
			var body struct {
				Data map[string]string `json:"data"`
			}
			require.NoError(t, json.Unmarshal(b, &body))
			stored = body.Data["value"]
			w.Write([]byte(`{"data": {"version": 2}}`))
		}
	})

	mux.HandleFunc("/v1/secret/data/credx/malformed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"data": {"other": 1}}}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &stored
}

func newTestClient(t *testing.T, addr string) *api.Client {
	t.Helper()
	cfg := api.DefaultConfig()
	cfg.Address = addr
	client, err := api.NewClient(cfg)
	require.NoError(t, err)
	client.SetToken("test-token")
	return client
}

func TestVaultMasterKey_MasterKey(t *testing.T) {
	srv, _ := mockVaultServer(t)
	client := newTestClient(t, srv.URL)
	ctx := context.Background()

	key, err := NewVaultMasterKeyWithClient(client, "secret/credx/master").MasterKey(ctx)
	require.NoError(t, err)
	assert.False(t, key.IsZero())

	_, err = NewVaultMasterKeyWithClient(client, "secret/credx/malformed").MasterKey(ctx)
	assert.ErrorIs(t, err, credx.ErrMasterKeyUnavailable)

	_, err = NewVaultMasterKeyWithClient(client, "secret/credx/missing").MasterKey(ctx)
	assert.ErrorIs(t, err, credx.ErrMasterKeyUnavailable)

	client.SetToken("wrong")
	_, err = NewVaultMasterKeyWithClient(client, "secret/credx/master").MasterKey(ctx)
	assert.ErrorIs(t, err, credx.ErrMasterKeyUnavailable)
}

func TestVaultMasterKey_Store(t *testing.T) {
	srv, stored := mockVaultServer(t)
	v := NewVaultMasterKeyWithClient(newTestClient(t, srv.URL), "secret/credx/master")
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "correct-horse-battery-staple"))
	assert.Equal(t, "correct-horse-battery-staple", *stored)

	assert.ErrorIs(t, v.Store(ctx, "short"), credx.ErrMasterKeyUnavailable)
	assert.Equal(t, "correct-horse-battery-staple", *stored)
}

func TestNewVaultMasterKey_Environment(t *testing.T) {
	srv, _ := mockVaultServer(t)
	ctx := context.Background()

	t.Run("token", func(t *testing.T) {
		t.Setenv("VAULT_ADDR", srv.URL)
		t.Setenv("VAULT_TOKEN", "test-token")
		v, err := NewVaultMasterKey(ctx, "secret/credx/master")
		require.NoError(t, err)
		_, err = v.MasterKey(ctx)
		assert.NoError(t, err)
	})

	t.Run("approle", func(t *testing.T) {
		t.Setenv("VAULT_ADDR", srv.URL)
		t.Setenv("VAULT_TOKEN", "")
		t.Setenv("VAULT_ROLE_ID", "role")
		t.Setenv("VAULT_SECRET_ID", "secret")
		v, err := NewVaultMasterKey(ctx, "secret/credx/master")
		require.NoError(t, err)
		_, err = v.MasterKey(ctx)
		assert.NoError(t, err)
	})

	t.Run("no auth", func(t *testing.T) {
		t.Setenv("VAULT_ADDR", srv.URL)
		t.Setenv("VAULT_TOKEN", "")
		t.Setenv("VAULT_ROLE_ID", "")
		t.Setenv("VAULT_SECRET_ID", "")
		_, err := NewVaultMasterKey(ctx, "secret/credx/master")
		assert.ErrorIs(t, err, credx.ErrInvalidConfiguration)
	})

	t.Run("no path", func(t *testing.T) {
		_, err := NewVaultMasterKey(ctx, "/")
		assert.ErrorIs(t, err, credx.ErrInvalidConfiguration)
	})
}

func TestDataPath(t *testing.T) {
	assert.Equal(t, "secret/data/credx/master", dataPath("secret/credx/master"))
	assert.Equal(t, "secret/data/credx/master", dataPath("/secret/data/credx/master/"))
	assert.Equal(t, "secret", dataPath("secret"))
}
