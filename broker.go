package credx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hengadev/errsx"
	"go.uber.org/zap"
)

// Broker is the entry point of the package. It wires the cipher service,
// the registry, the credential resolver and the secrets proxy.
type Broker struct {
	cipher   *CipherService
	store    RecordStore
	registry *Registry
	resolver *CredentialResolver
	cache    *CachingResolver
	proxy    *SecretsProxy
	logger   *zap.Logger
}

// New builds a Broker. A record store, a transport and a master key (direct
// or through a provider) are required.
//
// Example:
//
//	store, _ := sqlite.Open(ctx, "/var/lib/credx/records.db")
//	broker, err := credx.New(ctx,
//	    credx.WithRecordStore(store),
//	    credx.WithTransport(aws.NewSigV4Transport()),
//	    credx.WithMasterKeyProvider(credx.EnvMasterKeySource{}),
//	    credx.WithLogger(logger),
//	)
func New(ctx context.Context, opts ...Option) (*Broker, error) {
	o := &options{
		logger:      zap.NewNop(),
		metrics:     &NoOpMetricsCollector{},
		hook:        &NoOpObservabilityHook{},
		callTimeout: DefaultCallTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
	}

	var errs errsx.Map
	if o.store == nil {
		errs.Set("record store", "is required, use WithRecordStore")
	}
	if o.transport == nil {
		errs.Set("transport", "is required, use WithTransport")
	}
	if o.masterKey.IsZero() && o.keyProvider == nil {
		errs.Set("master key", "is required, use WithMasterKey or WithMasterKeyProvider")
	}
	if !errs.IsEmpty() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, errs.AsError())
	}

	key := o.masterKey
	if key.IsZero() {
		loaded, err := o.keyProvider.MasterKey(ctx)
		if err != nil {
			if errors.Is(err, ErrMasterKeyUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", ErrMasterKeyUnavailable, err)
		}
		key = loaded
	}

	cipher, err := NewCipherService(key)
	if err != nil {
		return nil, err
	}

	resolver := NewCredentialResolver(o.store, cipher, o.transport)
	resolver.callTimeout = o.callTimeout
	resolver.now = o.now
	resolver.logger = o.logger.Named("resolver")
	resolver.metrics = o.metrics

	b := &Broker{
		cipher:   cipher,
		store:    o.store,
		registry: NewRegistry(o.store),
		resolver: resolver,
		logger:   o.logger,
	}

	var active Resolver = resolver
	if o.cacheTTL > 0 {
		b.cache = NewCachingResolver(resolver, o.cacheTTL)
		b.cache.now = o.now
		active = b.cache
	}

	b.proxy = NewSecretsProxy(b.registry, active, o.transport)
	b.proxy.callTimeout = o.callTimeout
	b.proxy.now = o.now
	b.proxy.logger = o.logger.Named("proxy")
	b.proxy.metrics = o.metrics
	b.proxy.hook = o.hook

	return b, nil
}

// GetSecret returns the current value of the secret visible to scope.
func (b *Broker) GetSecret(ctx context.Context, scope Scope) (string, error) {
	return b.proxy.GetSecret(ctx, scope)
}

// UpdateSecret replaces the secret visible to scope with content and returns
// the new remote version id.
func (b *Broker) UpdateSecret(ctx context.Context, scope Scope, content map[string]string) (string, error) {
	return b.proxy.UpdateSecret(ctx, scope, content)
}

// RegisterAccessKey seals plain and persists it. The record store must
// implement AccessKeyWriter.
func (b *Broker) RegisterAccessKey(ctx context.Context, plain PlainAccessKey) (string, error) {
	writer, ok := b.store.(AccessKeyWriter)
	if !ok {
		return "", fmt.Errorf("%w: record store %T cannot save access keys", ErrInvalidConfiguration, b.store)
	}

	rec, err := SealAccessKey(b.cipher, plain)
	if err != nil {
		return "", err
	}
	ref, err := writer.SaveAccessKey(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("save access key: %w", err)
	}

	b.logger.Info("access key registered",
		zap.String("access_key_ref", ref),
		zap.String("region", rec.Region),
		zap.Bool("assumable", isAssumable(rec.Mode)),
	)
	return ref, nil
}

// RegisterSecret persists a secret record after checking that its access
// key exists. The record store must implement SecretWriter.
func (b *Broker) RegisterSecret(ctx context.Context, rec SecretRecord) (string, error) {
	writer, ok := b.store.(SecretWriter)
	if !ok {
		return "", fmt.Errorf("%w: record store %T cannot save secrets", ErrInvalidConfiguration, b.store)
	}
	if err := rec.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	if _, err := b.store.LoadAccessKey(ctx, rec.AccessKeyRef); err != nil {
		return "", &RecordLoadError{Ref: rec.AccessKeyRef, Err: err}
	}

	id, err := writer.SaveSecret(ctx, &rec)
	if err != nil {
		return "", fmt.Errorf("save secret: %w", err)
	}

	b.logger.Info("secret registered",
		zap.String("secret_id", id),
		zap.Object("scope", rec.Scope()),
	)
	return id, nil
}

// Cipher exposes the cipher service, for write paths outside the broker.
func (b *Broker) Cipher() *CipherService {
	return b.cipher
}

// Resolver returns the resolver used by secret operations, which is the
// caching resolver when a cache TTL is configured.
func (b *Broker) Resolver() Resolver {
	if b.cache != nil {
		return b.cache
	}
	return b.resolver
}

func isAssumable(mode CredentialMode) bool {
	_, ok := mode.(AssumableCredential)
	return ok
}
