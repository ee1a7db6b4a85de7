package credx

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hengadev/credx/internal/wire"
	"go.uber.org/zap"
)

// Operation names used in logs, metrics and OperationError.
const (
	OpGetSecret    = "get_secret"
	OpUpdateSecret = "update_secret"
)

// SecretsProxy runs GetSecretValue and PutSecretValue against the remote
// secrets store on behalf of a scope. Each operation is lookup, then
// resolve, then one remote call; nothing is retried.
type SecretsProxy struct {
	registry    *Registry
	resolver    Resolver
	transport   Transport
	callTimeout time.Duration
	now         func() time.Time
	newToken    func() string
	logger      *zap.Logger
	metrics     MetricsCollector
	hook        ObservabilityHook
}

func NewSecretsProxy(registry *Registry, resolver Resolver, transport Transport) *SecretsProxy {
	return &SecretsProxy{
		registry:    registry,
		resolver:    resolver,
		transport:   transport,
		callTimeout: DefaultCallTimeout,
		now:         time.Now,
		newToken:    uuid.NewString,
		logger:      zap.NewNop(),
		metrics:     &NoOpMetricsCollector{},
		hook:        &NoOpObservabilityHook{},
	}
}

// GetSecret returns the SecretString of the remote secret scope points to.
func (p *SecretsProxy) GetSecret(ctx context.Context, scope Scope) (string, error) {
	var value string
	err := p.run(ctx, OpGetSecret, scope, func(ctx context.Context, rec *SecretRecord, creds Credentials) error {
		v, err := p.getSecretValue(ctx, rec, creds)
		value = v
		return err
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

// UpdateSecret stores content, serialized as a JSON object with sorted keys,
// as the new SecretString and returns the remote version id.
func (p *SecretsProxy) UpdateSecret(ctx context.Context, scope Scope, content map[string]string) (string, error) {
	var versionID string
	err := p.run(ctx, OpUpdateSecret, scope, func(ctx context.Context, rec *SecretRecord, creds Credentials) error {
		v, err := p.putSecretValue(ctx, rec, creds, content)
		versionID = v
		return err
	})
	if err != nil {
		return "", err
	}
	return versionID, nil
}

type remoteCall func(ctx context.Context, rec *SecretRecord, creds Credentials) error

func (p *SecretsProxy) run(ctx context.Context, op string, scope Scope, call remoteCall) error {
	start := p.now()
	requestID := uuid.NewString()
	logger := p.logger.With(
		zap.String("op", op),
		zap.String("request_id", requestID),
		zap.String("name", scope.Name),
		zap.String("tenant", scope.TenantID),
		zap.String("caller", scope.CallerID),
	)
	metadata := map[string]any{
		"request_id": requestID,
		"name":       scope.Name,
		"tenant":     scope.TenantID,
		"caller":     scope.CallerID,
	}

	logger.Debug("operation started")
	p.metrics.IncrementCounter(MetricOperationStarted, map[string]string{"op": op})
	p.hook.OnOperationStart(ctx, op, metadata)

	err := p.execute(ctx, op, scope, metadata, call)

	duration := p.now().Sub(start)
	tags := map[string]string{"op": op}
	if err != nil {
		stage := StageOf(err)
		tags["stage"] = stage.String()
		metadata["stage"] = stage.String()
		p.metrics.IncrementCounter(MetricOperationFailed, tags)
		p.hook.OnError(ctx, op, err, metadata)
		logger.Warn("operation failed",
			zap.String("stage", stage.String()),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
	} else {
		p.metrics.IncrementCounter(MetricOperationCompleted, tags)
		logger.Info("operation completed", zap.Duration("duration", duration))
	}
	// One label set per timing series; stage is empty on success.
	p.metrics.RecordTiming(MetricOperationDuration, duration, map[string]string{"op": op, "stage": tags["stage"]})
	p.hook.OnOperationComplete(ctx, op, duration, err, metadata)
	return err
}

func (p *SecretsProxy) execute(ctx context.Context, op string, scope Scope, metadata map[string]any, call remoteCall) error {
	rec, err := p.registry.Lookup(ctx, scope)
	if err != nil {
		return newOperationError(op, scope, StageLookup, err)
	}

	creds, err := p.resolver.Resolve(ctx, rec.AccessKeyRef)
	if err != nil {
		return newOperationError(op, scope, StageLoad, err)
	}
	p.hook.OnCredentialsResolved(ctx, rec.AccessKeyRef, creds.Elevated(), metadata)

	if err := call(ctx, rec, creds); err != nil {
		return newOperationError(op, scope, StageRemote, err)
	}
	return nil
}

func (p *SecretsProxy) getSecretValue(ctx context.Context, rec *SecretRecord, creds Credentials) (string, error) {
	payload, err := marshalJSON(wire.GetSecretValueInput{SecretID: rec.RemoteSecretID})
	if err != nil {
		return "", &RemoteProtocolError{Action: ActionGetSecretValue, SecretID: rec.RemoteSecretID, Err: err}
	}

	body, err := p.send(ctx, ActionGetSecretValue, rec, creds, payload)
	if err != nil {
		return "", err
	}

	var out wire.GetSecretValueOutput
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &RemoteProtocolError{
			Action:   ActionGetSecretValue,
			SecretID: rec.RemoteSecretID,
			Reason:   "undecodable response body",
			Err:      err,
		}
	}
	if out.SecretString == nil {
		return "", &RemoteProtocolError{
			Action:   ActionGetSecretValue,
			SecretID: rec.RemoteSecretID,
			Reason:   "response has no SecretString",
		}
	}
	return *out.SecretString, nil
}

func (p *SecretsProxy) putSecretValue(ctx context.Context, rec *SecretRecord, creds Credentials, content map[string]string) (string, error) {
	if content == nil {
		content = map[string]string{}
	}
	secretString, err := marshalJSON(content)
	if err != nil {
		return "", &RemoteProtocolError{Action: ActionPutSecretValue, SecretID: rec.RemoteSecretID, Err: err}
	}
	payload, err := marshalJSON(wire.PutSecretValueInput{
		SecretID:           rec.RemoteSecretID,
		SecretString:       string(secretString),
		ClientRequestToken: p.newToken(),
	})
	if err != nil {
		return "", &RemoteProtocolError{Action: ActionPutSecretValue, SecretID: rec.RemoteSecretID, Err: err}
	}

	body, err := p.send(ctx, ActionPutSecretValue, rec, creds, payload)
	if err != nil {
		return "", err
	}

	var out wire.PutSecretValueOutput
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &RemoteProtocolError{
			Action:   ActionPutSecretValue,
			SecretID: rec.RemoteSecretID,
			Reason:   "undecodable response body",
			Err:      err,
		}
	}
	if out.VersionID == "" {
		return "", &RemoteProtocolError{
			Action:   ActionPutSecretValue,
			SecretID: rec.RemoteSecretID,
			Reason:   "response has no VersionId",
		}
	}
	return out.VersionID, nil
}

// send performs one bounded remote call and returns the body of a 2xx response.
func (p *SecretsProxy) send(ctx context.Context, action string, rec *SecretRecord, creds Credentials, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	resp, err := p.transport.Send(ctx, &Request{
		Service:     ServiceSecretsManager,
		Action:      action,
		Endpoint:    rec.EndpointURL,
		Region:      creds.Region,
		Credentials: creds,
		Payload:     payload,
	})
	if err != nil {
		return nil, &RemoteProtocolError{Action: action, SecretID: rec.RemoteSecretID, Err: err}
	}
	if resp == nil {
		return nil, &RemoteProtocolError{Action: action, SecretID: rec.RemoteSecretID, Reason: "transport returned no response"}
	}
	if !resp.OK() {
		code, message := wire.ParseError(resp.Body)
		return nil, &RemoteProtocolError{
			Action:     action,
			SecretID:   rec.RemoteSecretID,
			StatusCode: resp.StatusCode,
			Code:       code,
			Reason:     message,
		}
	}
	return resp.Body, nil
}

// marshalJSON encodes v without HTML escaping. Map keys come out sorted.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
