// Package credx is a credential broker: it resolves a logical secret name,
// scoped to a tenant and a calling application, into the live value of a
// remote secret.
//
// A credx deployment stores two kinds of records. A SecretRecord maps a scope
// (name, tenant, caller) to a remote secret id and to an access-key record.
// An AccessKeyRecord holds a long-lived AWS key pair encrypted at rest with
// AES-256-GCM under a key derived from the process master key, plus an
// optional role to assume before any remote call is made.
//
// # Key Features
//
//   - Exact scoped lookup that refuses ambiguous or mismatched records
//   - Encryption at rest of stored key pairs, hex ciphertext with its own IV
//   - Optional role assumption (fixed 900s session) that always takes precedence over the stored pair
//   - GetSecretValue and PutSecretValue through a pluggable signing transport
//   - Optional single-flight cache of elevated credentials
//   - Typed errors that name the stage an operation failed at
//
// # Quick Start
//
//	store, err := sqlite.Open(ctx, ".credx/records.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	broker, err := credx.New(ctx,
//	    credx.WithRecordStore(store),
//	    credx.WithTransport(aws.NewSigV4Transport()),
//	    credx.WithMasterKeyProvider(credx.EnvMasterKeySource{}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	value, err := broker.GetSecret(ctx, credx.Scope{
//	    Name:     "billing-db",
//	    TenantID: "acme",
//	    CallerID: "invoice-job",
//	})
//
// # Registering records
//
// Plaintext keys only exist on the write path. RegisterAccessKey seals them
// with SealAccessKey before they reach the store:
//
//	ref, err := broker.RegisterAccessKey(ctx, credx.PlainAccessKey{
//	    AccessKey: "AKIA...",
//	    SecretKey: "...",
//	    Region:    "us-east-1",
//	    RoleARN:   "arn:aws:iam::123456789012:role/secrets-reader",
//	})
//	_, err = broker.RegisterSecret(ctx, credx.SecretRecord{
//	    Name:           "billing-db",
//	    TenantID:       "acme",
//	    CallerID:       "invoice-job",
//	    AccessKeyRef:   ref,
//	    RemoteSecretID: "prod/billing/db",
//	})
//
// # Rotating the master key
//
// KeyRotation re-seals every stored access key under a new master key. The
// store must implement AccessKeyRotator; nothing is written unless every
// record opens under the old key:
//
//	n, err := credx.KeyRotation{Store: store, From: oldCipher, To: newCipher}.Run(ctx)
//
// # Errors
//
// Every failure of GetSecret and UpdateSecret is an *OperationError carrying
// the operation, the scope and the Stage. It unwraps to one of
// *SecretNotFoundError, *DataIntegrityError, *RecordLoadError,
// *DecryptionError, *RoleAssumptionError or *RemoteProtocolError, each
// matching its sentinel through errors.Is:
//
//	_, err := broker.GetSecret(ctx, scope)
//	switch {
//	case credx.IsNotFound(err):
//	    // nothing registered for this scope
//	case credx.IsAuthError(err):
//	    // role assumption refused
//	}
//
// # Testing
//
// MemoryStore and StubTransport are in-memory collaborators for tests:
//
//	store := credx.NewMemoryStore()
//	transport := credx.NewStubTransport().
//	    Respond(credx.ServiceSecretsManager, credx.ActionGetSecretValue, 200, `{"SecretString":"pw123"}`)
package credx
