package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// Config holds configuration for the services in this package that talk to
// AWS with the ambient credential chain rather than per-request credentials.
type Config struct {
	// Region is the AWS region (e.g., "us-east-1")
	// If empty, uses AWS_REGION environment variable or AWS config file
	Region string

	// AWSConfig is an optional pre-configured AWS config
	// If provided, Region is ignored
	AWSConfig *aws.Config
}

func (c Config) load(ctx context.Context) (aws.Config, error) {
	if c.AWSConfig != nil {
		return *c.AWSConfig, nil
	}

	opts := []func(*config.LoadOptions) error{}
	if c.Region != "" {
		opts = append(opts, config.WithRegion(c.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsConfig, nil
}

// DefaultEndpoint returns the public regional endpoint for service. STS
// falls back to the global endpoint when region is empty.
func DefaultEndpoint(service, region string) (string, error) {
	switch {
	case region != "":
		return fmt.Sprintf("https://%s.%s.amazonaws.com", service, region), nil
	case service == "sts":
		return "https://sts.amazonaws.com", nil
	default:
		return "", fmt.Errorf("no region to derive the %s endpoint from", service)
	}
}

// signingRegion is the region requests are signed for. The global STS
// endpoint signs as us-east-1.
func signingRegion(region string) string {
	if region == "" {
		return "us-east-1"
	}
	return region
}
