package credx

import (
	"context"
	"fmt"
)

// Registry resolves a scoped secret name to its metadata record.
type Registry struct {
	store RecordStore
}

func NewRegistry(store RecordStore) *Registry {
	return &Registry{store: store}
}

// Lookup returns the single record matching scope exactly. It never picks
// among several candidates.
func (r *Registry) Lookup(ctx context.Context, scope Scope) (*SecretRecord, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	records, err := r.store.FindSecrets(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("%w: find secrets: %w", ErrStoreUnavailable, err)
	}

	switch len(records) {
	case 0:
		return nil, &SecretNotFoundError{Scope: scope}
	case 1:
	default:
		return nil, &DataIntegrityError{
			Scope:   scope,
			Matches: len(records),
			Reason:  fmt.Sprintf("%d records share the same scope", len(records)),
		}
	}

	rec := records[0]
	if rec.Scope() != scope {
		return nil, &DataIntegrityError{
			Scope:   scope,
			Matches: 1,
			Reason:  fmt.Sprintf("store returned a record outside the requested scope (%s)", rec.Scope()),
		}
	}
	if rec.AccessKeyRef == "" || rec.RemoteSecretID == "" {
		return nil, &DataIntegrityError{
			Scope:   scope,
			Matches: 1,
			Reason:  "record is missing its access key reference or remote secret id",
		}
	}
	return &rec, nil
}
