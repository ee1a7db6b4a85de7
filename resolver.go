package credx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hengadev/credx/internal/wire"
	"go.uber.org/zap"
)

// CredentialResolver loads an access-key record, decrypts its long-lived
// pair and, for assumable records, exchanges the pair for an elevated session.
type CredentialResolver struct {
	store       RecordStore
	cipher      KeyCipher
	transport   Transport
	callTimeout time.Duration
	now         func() time.Time
	logger      *zap.Logger
	metrics     MetricsCollector
}

// NewCredentialResolver returns a resolver with DefaultCallTimeout, a no-op
// logger and no metrics. The Broker overrides these from its options.
func NewCredentialResolver(store RecordStore, cipher KeyCipher, transport Transport) *CredentialResolver {
	return &CredentialResolver{
		store:       store,
		cipher:      cipher,
		transport:   transport,
		callTimeout: DefaultCallTimeout,
		now:         time.Now,
		logger:      zap.NewNop(),
		metrics:     &NoOpMetricsCollector{},
	}
}

// Resolve returns the credentials for accessKeyRef. For an assumable record
// the result is always the assumed-role session and never the stored pair.
func (r *CredentialResolver) Resolve(ctx context.Context, accessKeyRef string) (Credentials, error) {
	rec, err := r.store.LoadAccessKey(ctx, accessKeyRef)
	if err != nil {
		return Credentials{}, &RecordLoadError{Ref: accessKeyRef, Err: err}
	}
	if rec == nil {
		return Credentials{}, &RecordLoadError{Ref: accessKeyRef, Err: ErrRecordNotFound}
	}
	if err := rec.Validate(); err != nil {
		return Credentials{}, &RecordLoadError{Ref: accessKeyRef, Err: err}
	}

	accessKey, err := decryptField(r.cipher, "access_key", rec.AccessKey)
	if err != nil {
		return Credentials{}, err
	}
	secretKey, err := decryptField(r.cipher, "secret_key", rec.SecretKey)
	if err != nil {
		return Credentials{}, err
	}
	longLived := Credentials{AccessKey: accessKey, SecretKey: secretKey, Region: rec.Region}

	switch mode := rec.Mode.(type) {
	case DirectCredential:
		return longLived, nil
	case AssumableCredential:
		return r.assumeRole(ctx, longLived, mode)
	default:
		return Credentials{}, &RecordLoadError{Ref: accessKeyRef, Err: fmt.Errorf("unsupported credential mode %T", mode)}
	}
}

func (r *CredentialResolver) assumeRole(ctx context.Context, longLived Credentials, mode AssumableCredential) (Credentials, error) {
	start := r.now()
	creds, err := r.sendAssumeRole(ctx, longLived, mode)

	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.IncrementCounter(MetricRoleAssumption, map[string]string{"status": status})
	r.logger.Debug("role assumption finished",
		zap.String("role_arn", mode.RoleARN),
		zap.String("status", status),
		zap.Duration("duration", r.now().Sub(start)),
	)
	return creds, err
}

func (r *CredentialResolver) sendAssumeRole(ctx context.Context, longLived Credentials, mode AssumableCredential) (Credentials, error) {
	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	resp, err := r.transport.Send(ctx, &Request{
		Service:     ServiceSTS,
		Action:      ActionAssumeRole,
		Region:      longLived.Region,
		Credentials: longLived,
		Payload:     assumeRolePayload(mode),
	})
	if err != nil {
		return Credentials{}, &RoleAssumptionError{RoleARN: mode.RoleARN, Err: err}
	}
	if resp == nil {
		return Credentials{}, &RoleAssumptionError{RoleARN: mode.RoleARN, Reason: "transport returned no response"}
	}
	if !resp.OK() {
		code, message := wire.ParseError(resp.Body)
		return Credentials{}, &RoleAssumptionError{
			RoleARN:    mode.RoleARN,
			StatusCode: resp.StatusCode,
			Code:       code,
			Reason:     message,
		}
	}

	var env wire.AssumeRoleEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return Credentials{}, &RoleAssumptionError{
			RoleARN:    mode.RoleARN,
			StatusCode: resp.StatusCode,
			Reason:     "undecodable response body",
			Err:        err,
		}
	}
	if env.AssumeRoleResponse == nil ||
		env.AssumeRoleResponse.AssumeRoleResult == nil ||
		env.AssumeRoleResponse.AssumeRoleResult.Credentials == nil {
		return Credentials{}, &RoleAssumptionError{
			RoleARN:    mode.RoleARN,
			StatusCode: resp.StatusCode,
			Reason:     "response is missing AssumeRoleResult.Credentials",
		}
	}

	c := env.AssumeRoleResponse.AssumeRoleResult.Credentials
	if c.AccessKeyID == "" || c.SecretAccessKey == "" || c.SessionToken == "" {
		return Credentials{}, &RoleAssumptionError{
			RoleARN:    mode.RoleARN,
			StatusCode: resp.StatusCode,
			Reason:     "response credentials are incomplete",
		}
	}
	expires, err := c.ExpiresAt()
	if err != nil {
		return Credentials{}, &RoleAssumptionError{
			RoleARN:    mode.RoleARN,
			StatusCode: resp.StatusCode,
			Reason:     "invalid expiration",
			Err:        err,
		}
	}
	if expires.IsZero() {
		expires = r.now().Add(AssumeRoleDuration)
	}

	return Credentials{
		AccessKey:    c.AccessKeyID,
		SecretKey:    c.SecretAccessKey,
		SessionToken: c.SessionToken,
		Region:       longLived.Region,
		Expires:      expires,
	}, nil
}
