package credx

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// OpRotateMasterKey names master-key rotation in logs, metrics and hooks.
const OpRotateMasterKey = "rotate_master_key"

// KeyRotation re-seals every stored access key from one master key to
// another. Each record is opened with From and sealed again with To; the
// region and credential mode are kept, and the record keeps its reference so
// secret records stay valid.
//
// Nothing is written unless every record opens under From. The store then
// replaces the records in a single step.
type KeyRotation struct {
	Store  AccessKeyRotator
	From   KeyCipher
	To     KeyCipher
	Logger *zap.Logger
	Hook   ObservabilityHook
}

// Run performs the rotation and returns the number of re-sealed records.
func (r KeyRotation) Run(ctx context.Context) (n int, err error) {
	if r.Store == nil || r.From == nil || r.To == nil {
		return 0, fmt.Errorf("%w: rotation needs a store and both ciphers", ErrInvalidConfiguration)
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hook := r.Hook
	if hook == nil {
		hook = &NoOpObservabilityHook{}
	}

	start := time.Now()
	metadata := map[string]any{"operation": OpRotateMasterKey}
	hook.OnOperationStart(ctx, OpRotateMasterKey, metadata)
	defer func() {
		if err != nil {
			hook.OnError(ctx, OpRotateMasterKey, err, metadata)
		}
		hook.OnOperationComplete(ctx, OpRotateMasterKey, time.Since(start), err, metadata)
	}()

	records, err := r.Store.ListAccessKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list access keys: %w", err)
	}

	resealed := make([]AccessKeyRecord, 0, len(records))
	for _, rec := range records {
		next, err := reseal(r.From, r.To, rec)
		if err != nil {
			return 0, &RecordLoadError{Ref: rec.ID, Err: err}
		}
		resealed = append(resealed, next)
	}

	if err := r.Store.ReplaceAccessKeys(ctx, resealed); err != nil {
		return 0, fmt.Errorf("replace access keys: %w", err)
	}

	logger.Info("master key rotated",
		zap.Int("access_keys", len(resealed)),
		zap.Duration("duration", time.Since(start)),
	)
	return len(resealed), nil
}

func reseal(from, to KeyCipher, rec AccessKeyRecord) (AccessKeyRecord, error) {
	accessKey, err := decryptField(from, "access_key", rec.AccessKey)
	if err != nil {
		return AccessKeyRecord{}, err
	}
	secretKey, err := decryptField(from, "secret_key", rec.SecretKey)
	if err != nil {
		return AccessKeyRecord{}, err
	}

	out := rec
	if out.AccessKey, err = to.Encrypt(accessKey); err != nil {
		return AccessKeyRecord{}, fmt.Errorf("seal access key: %w", err)
	}
	if out.SecretKey, err = to.Encrypt(secretKey); err != nil {
		return AccessKeyRecord{}, fmt.Errorf("seal secret key: %w", err)
	}
	return out, nil
}
