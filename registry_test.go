package credx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRecordStore struct {
	findFn func(ctx context.Context, scope Scope) ([]SecretRecord, error)
	calls  int
}

func (s *stubRecordStore) FindSecrets(ctx context.Context, scope Scope) ([]SecretRecord, error) {
	s.calls++
	return s.findFn(ctx, scope)
}

func (s *stubRecordStore) LoadAccessKey(ctx context.Context, ref string) (*AccessKeyRecord, error) {
	return nil, ErrRecordNotFound
}

func TestRegistry_Lookup(t *testing.T) {
	store := NewMemoryStore()
	scope := Scope{Name: "X", TenantID: "T1", CallerID: "C1"}
	_, err := store.SaveSecret(context.Background(), &SecretRecord{
		Name: "X", TenantID: "T1", CallerID: "C1",
		AccessKeyRef: "ak-1", RemoteSecretID: "prod/x",
	})
	require.NoError(t, err)

	registry := NewRegistry(store)

	t.Run("exact match", func(t *testing.T) {
		rec, err := registry.Lookup(context.Background(), scope)
		require.NoError(t, err)
		assert.Equal(t, "ak-1", rec.AccessKeyRef)
		assert.Equal(t, "prod/x", rec.RemoteSecretID)
	})

	scoping := []struct {
		name  string
		scope Scope
	}{
		{"other tenant", Scope{Name: "X", TenantID: "T2", CallerID: "C1"}},
		{"other caller", Scope{Name: "X", TenantID: "T1", CallerID: "C2"}},
		{"other name", Scope{Name: "Y", TenantID: "T1", CallerID: "C1"}},
	}
	for _, tt := range scoping {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.Lookup(context.Background(), tt.scope)
			assert.ErrorIs(t, err, ErrSecretNotFound)

			var nf *SecretNotFoundError
			require.ErrorAs(t, err, &nf)
			assert.Equal(t, tt.scope, nf.Scope)
		})
	}
}

func TestRegistry_LookupNotFoundMessage(t *testing.T) {
	registry := NewRegistry(NewMemoryStore())

	_, err := registry.Lookup(context.Background(), Scope{Name: "db", TenantID: "acme", CallerID: "job"})
	require.Error(t, err)
	assert.Equal(t, `no secret found with name "db" that is available to caller "job" and tenant "acme"`, err.Error())
	assert.True(t, IsNotFound(err))
}

func TestRegistry_LookupInvalidScope(t *testing.T) {
	store := &stubRecordStore{findFn: func(context.Context, Scope) ([]SecretRecord, error) {
		t.Fatal("store must not be queried for an invalid scope")
		return nil, nil
	}}
	registry := NewRegistry(store)

	tests := []struct {
		name  string
		scope Scope
	}{
		{"empty", Scope{}},
		{"missing tenant", Scope{Name: "X", CallerID: "C"}},
		{"missing caller", Scope{Name: "X", TenantID: "T"}},
		{"blank name", Scope{Name: "  ", TenantID: "T", CallerID: "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.Lookup(context.Background(), tt.scope)
			assert.ErrorIs(t, err, ErrInvalidScope)
		})
	}
	assert.Zero(t, store.calls)
}

func TestRegistry_LookupIntegrity(t *testing.T) {
	scope := Scope{Name: "X", TenantID: "T1", CallerID: "C1"}
	good := SecretRecord{Name: "X", TenantID: "T1", CallerID: "C1", AccessKeyRef: "ak", RemoteSecretID: "s"}

	tests := []struct {
		name    string
		records []SecretRecord
		matches int
	}{
		{"duplicates", []SecretRecord{good, good}, 2},
		{"record outside scope", []SecretRecord{{Name: "X", TenantID: "T2", CallerID: "C1", AccessKeyRef: "ak", RemoteSecretID: "s"}}, 1},
		{"missing access key ref", []SecretRecord{{Name: "X", TenantID: "T1", CallerID: "C1", RemoteSecretID: "s"}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &stubRecordStore{findFn: func(context.Context, Scope) ([]SecretRecord, error) {
				return tt.records, nil
			}}
			_, err := NewRegistry(store).Lookup(context.Background(), scope)
			assert.ErrorIs(t, err, ErrDataIntegrity)

			var die *DataIntegrityError
			require.ErrorAs(t, err, &die)
			assert.Equal(t, tt.matches, die.Matches)
			assert.True(t, IsIntegrityError(err))
		})
	}
}

func TestRegistry_LookupStoreFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	store := &stubRecordStore{findFn: func(context.Context, Scope) ([]SecretRecord, error) {
		return nil, boom
	}}

	_, err := NewRegistry(store).Lookup(context.Background(), testScope)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, boom)
}
