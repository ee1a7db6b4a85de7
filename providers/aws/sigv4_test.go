package aws

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/credx"
)

type capturedRequest struct {
	header http.Header
	body   string
	path   string
}

func newCaptureServer(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		captured.header = r.Header.Clone()
		captured.body = string(b)
		captured.path = r.URL.Path
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestSigV4Transport_SecretsManager(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK, `{"SecretString":"s3cr3t"}`)
	transport := NewSigV4Transport(WithSigningClock(fixedClock))

	resp, err := transport.Send(context.Background(), &credx.Request{
		Service:  credx.ServiceSecretsManager,
		Action:   credx.ActionGetSecretValue,
		Endpoint: srv.URL,
		Region:   "eu-west-1",
		Credentials: credx.Credentials{
			AccessKey:    "ASIAEXAMPLE",
			SecretKey:    "secret",
			SessionToken: "token",
		},
		Payload: []byte(`{"SecretId":"prod/db"}`),
	})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, `{"SecretString":"s3cr3t"}`, string(resp.Body))

	assert.Equal(t, `{"SecretId":"prod/db"}`, captured.body)
	assert.Equal(t, "application/x-amz-json-1.1", captured.header.Get("Content-Type"))
	assert.Equal(t, "secretsmanager.GetSecretValue", captured.header.Get("X-Amz-Target"))
	assert.Equal(t, "token", captured.header.Get("X-Amz-Security-Token"))
	assert.Equal(t, "20240301T120000Z", captured.header.Get("X-Amz-Date"))

	auth := captured.header.Get("Authorization")
	assert.True(t, strings.HasPrefix(auth, "AWS4-HMAC-SHA256 Credential=ASIAEXAMPLE/20240301/eu-west-1/secretsmanager/aws4_request"), auth)
	assert.NotContains(t, auth, "secret")
}

func TestSigV4Transport_STS(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusForbidden, `{"Error":{"Code":"AccessDenied","Message":"no"}}`)
	transport := NewSigV4Transport(WithSigningClock(fixedClock))

	resp, err := transport.Send(context.Background(), &credx.Request{
		Service:     credx.ServiceSTS,
		Action:      credx.ActionAssumeRole,
		Endpoint:    srv.URL,
		Credentials: credx.Credentials{AccessKey: "AKIAEXAMPLE", SecretKey: "secret"},
		Payload:     []byte("Action=AssumeRole&Version=2011-06-15"),
	})
	require.NoError(t, err, "a non-2xx status is a response, not an error")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.False(t, resp.OK())

	assert.Equal(t, "application/json", captured.header.Get("Accept"))
	assert.Contains(t, captured.header.Get("Content-Type"), "application/x-www-form-urlencoded")
	assert.Empty(t, captured.header.Get("X-Amz-Security-Token"))
	assert.Contains(t, captured.header.Get("Authorization"), "/us-east-1/sts/aws4_request")
}

func TestSigV4Transport_Errors(t *testing.T) {
	transport := NewSigV4Transport()
	ctx := context.Background()

	_, err := transport.Send(ctx, &credx.Request{Service: "s3", Action: "GetObject", Endpoint: "https://example.invalid"})
	assert.Error(t, err)

	_, err = transport.Send(ctx, &credx.Request{Service: credx.ServiceSecretsManager, Action: credx.ActionGetSecretValue})
	assert.Error(t, err, "no endpoint and no region")

	srv, _ := newCaptureServer(t, http.StatusOK, "{}")
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = transport.Send(cancelled, &credx.Request{
		Service:  credx.ServiceSecretsManager,
		Action:   credx.ActionGetSecretValue,
		Endpoint: srv.URL,
		Region:   "us-east-1",
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultEndpoint(t *testing.T) {
	ep, err := DefaultEndpoint("secretsmanager", "us-west-2")
	require.NoError(t, err)
	assert.Equal(t, "https://secretsmanager.us-west-2.amazonaws.com", ep)

	ep, err = DefaultEndpoint("sts", "")
	require.NoError(t, err)
	assert.Equal(t, "https://sts.amazonaws.com", ep)

	_, err = DefaultEndpoint("secretsmanager", "")
	assert.Error(t, err)
}
