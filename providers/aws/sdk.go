package aws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/hengadev/credx"
	"github.com/hengadev/credx/internal/wire"
)

// stsClient interface for AWS STS operations (allows mocking)
type stsClient interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// secretsClient interface for AWS Secrets Manager operations (allows mocking)
type secretsClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
}

// SDKTransport carries credx requests through the AWS SDK clients. A client
// is built per request from the request's own credentials, never from the
// ambient credential chain. Results are rendered back into the JSON shapes
// the broker parses, and API errors become non-2xx responses.
type SDKTransport struct {
	httpClient aws.HTTPClient
	newSTS     func(aws.Config, string) stsClient
	newSecrets func(aws.Config, string) secretsClient
}

func NewSDKTransport() *SDKTransport {
	return &SDKTransport{
		httpClient: cleanhttp.DefaultPooledClient(),
		newSTS: func(cfg aws.Config, endpoint string) stsClient {
			return sts.NewFromConfig(cfg, func(o *sts.Options) {
				if endpoint != "" {
					o.BaseEndpoint = aws.String(endpoint)
				}
			})
		},
		newSecrets: func(cfg aws.Config, endpoint string) secretsClient {
			return secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
				if endpoint != "" {
					o.BaseEndpoint = aws.String(endpoint)
				}
			})
		},
	}
}

func (t *SDKTransport) Send(ctx context.Context, req *credx.Request) (*credx.Response, error) {
	cfg := aws.Config{
		Region: signingRegion(req.Region),
		Credentials: credentials.NewStaticCredentialsProvider(
			req.Credentials.AccessKey,
			req.Credentials.SecretKey,
			req.Credentials.SessionToken,
		),
		HTTPClient: t.httpClient,
	}

	switch {
	case req.Service == credx.ServiceSTS && req.Action == credx.ActionAssumeRole:
		return t.assumeRole(ctx, t.newSTS(cfg, req.Endpoint), req.Payload)
	case req.Service == credx.ServiceSecretsManager && req.Action == credx.ActionGetSecretValue:
		return t.getSecretValue(ctx, t.newSecrets(cfg, req.Endpoint), req.Payload)
	case req.Service == credx.ServiceSecretsManager && req.Action == credx.ActionPutSecretValue:
		return t.putSecretValue(ctx, t.newSecrets(cfg, req.Endpoint), req.Payload)
	default:
		return nil, fmt.Errorf("unsupported action %s:%s", req.Service, req.Action)
	}
}

func (t *SDKTransport) assumeRole(ctx context.Context, client stsClient, payload []byte) (*credx.Response, error) {
	form, err := url.ParseQuery(string(payload))
	if err != nil {
		return nil, fmt.Errorf("decode AssumeRole payload: %w", err)
	}
	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(form.Get("RoleArn")),
		RoleSessionName: aws.String(form.Get("RoleSessionName")),
	}
	if d := form.Get("DurationSeconds"); d != "" {
		secs, err := strconv.ParseInt(d, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("decode AssumeRole payload: DurationSeconds: %w", err)
		}
		input.DurationSeconds = aws.Int32(int32(secs))
	}

	out, err := client.AssumeRole(ctx, input)
	if err != nil {
		return queryErrorResponse(err)
	}

	result := &wire.AssumeRoleResult{}
	if c := out.Credentials; c != nil {
		result.Credentials = &wire.STSCredentials{
			AccessKeyID:     aws.ToString(c.AccessKeyId),
			SecretAccessKey: aws.ToString(c.SecretAccessKey),
			SessionToken:    aws.ToString(c.SessionToken),
			Expiration:      wire.EpochExpiration(aws.ToTime(c.Expiration)),
		}
	}
	if u := out.AssumedRoleUser; u != nil {
		result.AssumedRoleUser = &wire.AssumedRoleUser{
			Arn:           aws.ToString(u.Arn),
			AssumedRoleID: aws.ToString(u.AssumedRoleId),
		}
	}
	return jsonResponse(wire.AssumeRoleEnvelope{
		AssumeRoleResponse: &wire.AssumeRoleResponse{AssumeRoleResult: result},
	})
}

func (t *SDKTransport) getSecretValue(ctx context.Context, client secretsClient, payload []byte) (*credx.Response, error) {
	var in wire.GetSecretValueInput
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, fmt.Errorf("decode GetSecretValue payload: %w", err)
	}

	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(in.SecretID),
	})
	if err != nil {
		return jsonErrorResponse(err)
	}
	return jsonResponse(wire.GetSecretValueOutput{
		ARN:          aws.ToString(out.ARN),
		Name:         aws.ToString(out.Name),
		VersionID:    aws.ToString(out.VersionId),
		SecretString: out.SecretString,
	})
}

func (t *SDKTransport) putSecretValue(ctx context.Context, client secretsClient, payload []byte) (*credx.Response, error) {
	var in wire.PutSecretValueInput
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, fmt.Errorf("decode PutSecretValue payload: %w", err)
	}

	input := &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(in.SecretID),
		SecretString: aws.String(in.SecretString),
	}
	if in.ClientRequestToken != "" {
		input.ClientRequestToken = aws.String(in.ClientRequestToken)
	}

	out, err := client.PutSecretValue(ctx, input)
	if err != nil {
		return jsonErrorResponse(err)
	}
	return jsonResponse(wire.PutSecretValueOutput{
		ARN:       aws.ToString(out.ARN),
		Name:      aws.ToString(out.Name),
		VersionID: aws.ToString(out.VersionId),
	})
}

func jsonResponse(v any) (*credx.Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &credx.Response{StatusCode: http.StatusOK, Body: body}, nil
}

// jsonErrorResponse renders an API error the way the JSON 1.1 endpoint does.
// Errors without an API error code produced no response and are returned.
func jsonErrorResponse(err error) (*credx.Response, error) {
	status, apiErr, ok := apiFailure(err)
	if !ok {
		return nil, err
	}
	body, mErr := json.Marshal(wire.ErrorBody{Type: apiErr.ErrorCode(), Message: apiErr.ErrorMessage()})
	if mErr != nil {
		return nil, mErr
	}
	return &credx.Response{StatusCode: status, Body: body}, nil
}

// queryErrorResponse renders an API error the way the STS query endpoint does.
func queryErrorResponse(err error) (*credx.Response, error) {
	status, apiErr, ok := apiFailure(err)
	if !ok {
		return nil, err
	}
	fault := "Sender"
	if apiErr.ErrorFault() == smithy.FaultServer {
		fault = "Receiver"
	}
	body, mErr := json.Marshal(wire.ErrorBody{Error: &wire.QueryError{
		Type:    fault,
		Code:    apiErr.ErrorCode(),
		Message: apiErr.ErrorMessage(),
	}})
	if mErr != nil {
		return nil, mErr
	}
	return &credx.Response{StatusCode: status, Body: body}, nil
}

func apiFailure(err error) (int, smithy.APIError, bool) {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return 0, nil, false
	}
	status := http.StatusBadRequest
	if apiErr.ErrorFault() == smithy.FaultServer {
		status = http.StatusInternalServerError
	}
	var withStatus interface{ HTTPStatusCode() int }
	if errors.As(err, &withStatus) && withStatus.HTTPStatusCode() != 0 {
		status = withStatus.HTTPStatusCode()
	}
	return status, apiErr, true
}
