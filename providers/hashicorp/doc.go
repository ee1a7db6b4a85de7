// Package hashicorp reads the credx master key from HashiCorp Vault.
//
// VaultMasterKey implements credx.MasterKeyProvider on top of the KV v2
// secrets engine. The key is stored in a single field ("value") of a KV
// secret and read once when the broker starts.
//
// # Configuration
//
//	VAULT_ADDR       Vault server address (required)
//	VAULT_NAMESPACE  Namespace for HCP Vault (optional)
//	VAULT_TOKEN      Token authentication
//	VAULT_ROLE_ID    AppRole authentication, together with VAULT_SECRET_ID
//	VAULT_SECRET_ID
//
// # Policy
//
//	path "secret/data/credx/*" {
//	  capabilities = ["read"]
//	}
//
// Add "create" and "update" for the tokens that call Store.
//
// # Usage Example
//
//	provider, err := hashicorp.NewVaultMasterKey(ctx, "secret/credx/master")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	broker, err := credx.New(ctx, credx.WithMasterKeyProvider(provider), ...)
package hashicorp
