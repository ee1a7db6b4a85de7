// Package s3bucket uploads record-store snapshots to Amazon S3.
//
// Snapshots hold only sealed access keys, and every object is additionally
// written with server-side encryption: SSE-KMS when a KMS key is configured,
// SSE-S3 otherwise.
package s3bucket

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hengadev/credx"
)

// Uploader is the subset of the S3 client used for uploads.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds the destination of snapshot uploads.
type Config struct {
	// Region is the AWS region. If empty, the default credential chain decides.
	Region string

	// AWSConfig is an optional pre-configured AWS config.
	// If provided, Region is ignored.
	AWSConfig *aws.Config

	Bucket string

	// Prefix is prepended to generated object keys, e.g. "backups/credx".
	Prefix string

	// KMSKeyID selects SSE-KMS with this key.
	KMSKeyID string
}

// Backup uploads snapshots to one bucket.
type Backup struct {
	client   Uploader
	bucket   string
	prefix   string
	kmsKeyID string
	now      func() time.Time
}

// New creates a Backup using the default AWS credential chain.
func New(ctx context.Context, cfg Config) (*Backup, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: S3 bucket is required", credx.ErrInvalidConfiguration)
	}

	var awsConfig aws.Config
	if cfg.AWSConfig != nil {
		awsConfig = *cfg.AWSConfig
	} else {
		opts := []func(*config.LoadOptions) error{}
		if cfg.Region != "" {
			opts = append(opts, config.WithRegion(cfg.Region))
		}
		var err error
		awsConfig, err = config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
	}

	return NewWithClient(s3.NewFromConfig(awsConfig), cfg), nil
}

// NewWithClient creates a Backup around an existing client.
func NewWithClient(client Uploader, cfg Config) *Backup {
	return &Backup{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		kmsKeyID: cfg.KMSKeyID,
		now:      time.Now,
	}
}

// ObjectKey returns the key a snapshot taken now is stored under.
func (b *Backup) ObjectKey() string {
	name := "credx-" + b.now().UTC().Format("20060102T150405Z") + ".db"
	if b.prefix == "" {
		return name
	}
	return path.Join(b.prefix, name)
}

// Upload stores body under key and returns the s3:// location. body must be
// seekable so the request can be signed and retried by the SDK.
func (b *Backup) Upload(ctx context.Context, key string, body io.ReadSeeker) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: object key is required", credx.ErrInvalidConfiguration)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("application/vnd.sqlite3"),
	}
	if b.kmsKeyID != "" {
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		input.SSEKMSKeyId = aws.String(b.kmsKeyID)
	} else {
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	}

	if _, err := b.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("upload s3://%s/%s: %w", b.bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", b.bucket, key), nil
}
