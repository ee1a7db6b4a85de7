package aws

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/hengadev/credx"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

// SigV4Transport sends credx requests as raw HTTPS calls signed with AWS
// Signature Version 4. STS calls use the query protocol with a JSON
// response; Secrets Manager calls use the JSON 1.1 protocol.
type SigV4Transport struct {
	client *http.Client
	signer *v4.Signer
	now    func() time.Time
}

type SigV4Option func(*SigV4Transport)

// WithHTTPClient replaces the pooled cleanhttp client.
func WithHTTPClient(client *http.Client) SigV4Option {
	return func(t *SigV4Transport) {
		t.client = client
	}
}

// WithSigningClock sets the clock used for the signing timestamp.
func WithSigningClock(now func() time.Time) SigV4Option {
	return func(t *SigV4Transport) {
		t.now = now
	}
}

func NewSigV4Transport(opts ...SigV4Option) *SigV4Transport {
	t := &SigV4Transport{
		client: cleanhttp.DefaultPooledClient(),
		signer: v4.NewSigner(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *SigV4Transport) Send(ctx context.Context, req *credx.Request) (*credx.Response, error) {
	endpoint := req.Endpoint
	if endpoint == "" {
		var err error
		if endpoint, err = DefaultEndpoint(req.Service, req.Region); err != nil {
			return nil, err
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(req.Payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", req.Action, err)
	}

	switch req.Service {
	case credx.ServiceSTS:
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
		httpReq.Header.Set("Accept", "application/json")
	case credx.ServiceSecretsManager:
		httpReq.Header.Set("Content-Type", "application/x-amz-json-1.1")
		httpReq.Header.Set("X-Amz-Target", "secretsmanager."+req.Action)
	default:
		return nil, fmt.Errorf("unsupported service %q", req.Service)
	}

	sum := sha256.Sum256(req.Payload)
	creds := aws.Credentials{
		AccessKeyID:     req.Credentials.AccessKey,
		SecretAccessKey: req.Credentials.SecretKey,
		SessionToken:    req.Credentials.SessionToken,
	}
	if err := t.signer.SignHTTP(ctx, creds, httpReq, hex.EncodeToString(sum[:]),
		req.Service, signingRegion(req.Region), t.now().UTC()); err != nil {
		return nil, fmt.Errorf("sign %s request: %w", req.Action, err)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", req.Action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", req.Action, err)
	}
	return &credx.Response{StatusCode: resp.StatusCode, Body: body}, nil
}
