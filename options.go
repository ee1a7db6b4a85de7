package credx

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Option configures a Broker.
type Option func(o *options) error

type options struct {
	store       RecordStore
	transport   Transport
	masterKey   MasterKey
	keyProvider MasterKeyProvider
	logger      *zap.Logger
	metrics     MetricsCollector
	hook        ObservabilityHook
	cacheTTL    time.Duration
	callTimeout time.Duration
	now         func() time.Time
}

// WithRecordStore sets the scoped record store. Required.
func WithRecordStore(store RecordStore) Option {
	return func(o *options) error {
		if store == nil {
			return fmt.Errorf("record store cannot be nil")
		}
		o.store = store
		return nil
	}
}

// WithTransport sets the request-signing transport. Required.
func WithTransport(transport Transport) Option {
	return func(o *options) error {
		if transport == nil {
			return fmt.Errorf("transport cannot be nil")
		}
		o.transport = transport
		return nil
	}
}

// WithMasterKey injects an already loaded master key.
func WithMasterKey(key MasterKey) Option {
	return func(o *options) error {
		if key.IsZero() {
			return fmt.Errorf("master key cannot be empty")
		}
		o.masterKey = key
		return nil
	}
}

// WithMasterKeyProvider loads the master key once, when the Broker is built.
func WithMasterKeyProvider(provider MasterKeyProvider) Option {
	return func(o *options) error {
		if provider == nil {
			return fmt.Errorf("master key provider cannot be nil")
		}
		o.keyProvider = provider
		return nil
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		o.logger = logger
		return nil
	}
}

func WithMetricsCollector(metrics MetricsCollector) Option {
	return func(o *options) error {
		if metrics == nil {
			return fmt.Errorf("metrics collector cannot be nil")
		}
		o.metrics = metrics
		return nil
	}
}

func WithObservabilityHook(hook ObservabilityHook) Option {
	return func(o *options) error {
		if hook == nil {
			return fmt.Errorf("observability hook cannot be nil")
		}
		o.hook = hook
		return nil
	}
}

// WithCacheTTL enables the elevated-credential cache. Zero disables it.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) error {
		if ttl < 0 {
			return fmt.Errorf("cache TTL must not be negative, got %s", ttl)
		}
		o.cacheTTL = ttl
		return nil
	}
}

// WithCallTimeout bounds each remote call.
func WithCallTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout <= 0 {
			return fmt.Errorf("call timeout must be positive, got %s", timeout)
		}
		o.callTimeout = timeout
		return nil
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		if now == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		o.now = now
		return nil
	}
}

// WithConfig applies the broker-relevant fields of a validated Config.
func WithConfig(cfg Config) Option {
	return func(o *options) error {
		if cfg.CacheTTL < 0 {
			return fmt.Errorf("cache TTL must not be negative, got %s", cfg.CacheTTL)
		}
		o.cacheTTL = cfg.CacheTTL
		if cfg.CallTimeout > 0 {
			o.callTimeout = cfg.CallTimeout
		}
		return nil
	}
}
