// Package mainconfig holds AWS SDK setup shared by the api and worker
// binaries.
package mainconfig

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/shadowspark/support-ai-platform/internal/config"
)

// LoadAWSConfig builds the AWS client config both binaries share.
// Static credentials and the endpoint override exist for LocalStack;
// in real deployments the default chain and endpoints apply.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	if override := strings.TrimSpace(cfg.AWSEndpointOverride); override != "" {
		awsCfg.EndpointResolverWithOptions = overrideEndpoints(override, cfg.AWSRegion)
	}
	return awsCfg, nil
}

// overrideEndpoints routes the services this platform uses (SQS jobs,
// SES alerts) at the override URL and lets everything else fall back
// to the SDK defaults.
func overrideEndpoints(url, region string) aws.EndpointResolverWithOptionsFunc {
	return func(service, _ string, _ ...interface{}) (aws.Endpoint, error) {
		switch service {
		case sqs.ServiceID, sesv2.ServiceID:
			return aws.Endpoint{URL: url, PartitionID: "aws", SigningRegion: region}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	}
}
