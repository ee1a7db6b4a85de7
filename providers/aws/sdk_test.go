package aws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/credx"
	"github.com/hengadev/credx/internal/wire"
)

type mockSTSClient struct {
	input *sts.AssumeRoleInput
	out   *sts.AssumeRoleOutput
	err   error
}

func (m *mockSTSClient) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	m.input = params
	return m.out, m.err
}

type mockSecretsClient struct {
	getInput *secretsmanager.GetSecretValueInput
	putInput *secretsmanager.PutSecretValueInput
	getOut   *secretsmanager.GetSecretValueOutput
	putOut   *secretsmanager.PutSecretValueOutput
	err      error
}

func (m *mockSecretsClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	m.getInput = params
	return m.getOut, m.err
}

func (m *mockSecretsClient) PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	m.putInput = params
	return m.putOut, m.err
}

type clientConfig struct {
	cfg      aws.Config
	endpoint string
}

func newMockSDKTransport(stsMock *mockSTSClient, secretsMock *mockSecretsClient) (*SDKTransport, *clientConfig) {
	seen := &clientConfig{}
	t := NewSDKTransport()
	t.newSTS = func(cfg aws.Config, endpoint string) stsClient {
		seen.cfg, seen.endpoint = cfg, endpoint
		return stsMock
	}
	t.newSecrets = func(cfg aws.Config, endpoint string) secretsClient {
		seen.cfg, seen.endpoint = cfg, endpoint
		return secretsMock
	}
	return t, seen
}

func TestSDKTransport_AssumeRole(t *testing.T) {
	expires := time.Date(2024, 3, 1, 12, 15, 0, 0, time.UTC)
	stsMock := &mockSTSClient{out: &sts.AssumeRoleOutput{
		Credentials: &ststypes.Credentials{
			AccessKeyId:     aws.String("ASIATEMP"),
			SecretAccessKey: aws.String("temp-secret"),
			SessionToken:    aws.String("temp-token"),
			Expiration:      aws.Time(expires),
		},
	}}
	transport, seen := newMockSDKTransport(stsMock, nil)

	resp, err := transport.Send(context.Background(), &credx.Request{
		Service:     credx.ServiceSTS,
		Action:      credx.ActionAssumeRole,
		Region:      "eu-west-1",
		Credentials: credx.Credentials{AccessKey: "AKIALONG", SecretKey: "long-secret"},
		Payload:     []byte("Action=AssumeRole&DurationSeconds=900&RoleArn=arn%3Aaws%3Aiam%3A%3A123%3Arole%2FX&RoleSessionName=credx&Version=2011-06-15"),
	})
	require.NoError(t, err)
	require.True(t, resp.OK())

	assert.Equal(t, "arn:aws:iam::123:role/X", aws.ToString(stsMock.input.RoleArn))
	assert.Equal(t, "credx", aws.ToString(stsMock.input.RoleSessionName))
	assert.Equal(t, int32(900), aws.ToInt32(stsMock.input.DurationSeconds))
	assert.Equal(t, "eu-west-1", seen.cfg.Region)

	creds, err := seen.cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIALONG", creds.AccessKeyID)

	var env wire.AssumeRoleEnvelope
	require.NoError(t, json.Unmarshal(resp.Body, &env))
	got := env.AssumeRoleResponse.AssumeRoleResult.Credentials
	assert.Equal(t, "ASIATEMP", got.AccessKeyID)
	assert.Equal(t, "temp-token", got.SessionToken)
	at, err := got.ExpiresAt()
	require.NoError(t, err)
	assert.True(t, expires.Equal(at))
}

func TestSDKTransport_AssumeRoleDenied(t *testing.T) {
	stsMock := &mockSTSClient{err: &smithy.GenericAPIError{Code: "AccessDenied", Message: "not authorized", Fault: smithy.FaultClient}}
	transport, _ := newMockSDKTransport(stsMock, nil)

	resp, err := transport.Send(context.Background(), &credx.Request{
		Service: credx.ServiceSTS,
		Action:  credx.ActionAssumeRole,
		Payload: []byte("RoleArn=x&RoleSessionName=y"),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	code, message := wire.ParseError(resp.Body)
	assert.Equal(t, "AccessDenied", code)
	assert.Equal(t, "not authorized", message)
}

func TestSDKTransport_GetSecretValue(t *testing.T) {
	secretsMock := &mockSecretsClient{getOut: &secretsmanager.GetSecretValueOutput{
		Name:         aws.String("prod/db"),
		VersionId:    aws.String("v1"),
		SecretString: aws.String(`{"password":"x"}`),
	}}
	transport, seen := newMockSDKTransport(nil, secretsMock)

	resp, err := transport.Send(context.Background(), &credx.Request{
		Service:     credx.ServiceSecretsManager,
		Action:      credx.ActionGetSecretValue,
		Endpoint:    "https://vpce.example.com",
		Region:      "us-east-1",
		Credentials: credx.Credentials{AccessKey: "ASIATEMP", SecretKey: "s", SessionToken: "t"},
		Payload:     []byte(`{"SecretId":"prod/db"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "prod/db", aws.ToString(secretsMock.getInput.SecretId))
	assert.Equal(t, "https://vpce.example.com", seen.endpoint)

	var out wire.GetSecretValueOutput
	require.NoError(t, json.Unmarshal(resp.Body, &out))
	require.NotNil(t, out.SecretString)
	assert.Equal(t, `{"password":"x"}`, *out.SecretString)
}

func TestSDKTransport_PutSecretValue(t *testing.T) {
	secretsMock := &mockSecretsClient{putOut: &secretsmanager.PutSecretValueOutput{VersionId: aws.String("v2")}}
	transport, _ := newMockSDKTransport(nil, secretsMock)

	resp, err := transport.Send(context.Background(), &credx.Request{
		Service: credx.ServiceSecretsManager,
		Action:  credx.ActionPutSecretValue,
		Region:  "us-east-1",
		Payload: []byte(`{"SecretId":"prod/db","SecretString":"{}","ClientRequestToken":"tok-1"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "{}", aws.ToString(secretsMock.putInput.SecretString))
	assert.Equal(t, "tok-1", aws.ToString(secretsMock.putInput.ClientRequestToken))

	var out wire.PutSecretValueOutput
	require.NoError(t, json.Unmarshal(resp.Body, &out))
	assert.Equal(t, "v2", out.VersionID)
}

func TestSDKTransport_Errors(t *testing.T) {
	ctx := context.Background()

	secretsMock := &mockSecretsClient{err: &smtypes.ResourceNotFoundException{Message: aws.String("gone")}}
	transport, _ := newMockSDKTransport(nil, secretsMock)
	resp, err := transport.Send(ctx, &credx.Request{
		Service: credx.ServiceSecretsManager,
		Action:  credx.ActionGetSecretValue,
		Payload: []byte(`{"SecretId":"x"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	code, _ := wire.ParseError(resp.Body)
	assert.Equal(t, "ResourceNotFoundException", code)

	network := errors.New("dial tcp: connection refused")
	transport, _ = newMockSDKTransport(nil, &mockSecretsClient{err: network})
	_, err = transport.Send(ctx, &credx.Request{
		Service: credx.ServiceSecretsManager,
		Action:  credx.ActionGetSecretValue,
		Payload: []byte(`{"SecretId":"x"}`),
	})
	assert.ErrorIs(t, err, network)

	_, err = transport.Send(ctx, &credx.Request{Service: credx.ServiceSecretsManager, Action: "DeleteSecret"})
	assert.Error(t, err)

	_, err = transport.Send(ctx, &credx.Request{
		Service: credx.ServiceSecretsManager,
		Action:  credx.ActionGetSecretValue,
		Payload: []byte(`not json`),
	})
	assert.Error(t, err)
}
