// Package mainconfig loads the AWS SDK configuration shared by cmd/api and
// cmd/llmtest.
package mainconfig

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	appconfig "github.com/wolfman30/incident-response-ai/internal/config"
)

// overriddenServices are the AWS APIs this service calls: Bedrock Runtime for
// the bedrock provider and SES v2 for incident email delivery.
var overriddenServices = map[string]bool{
	bedrockruntime.ServiceID: true,
	sesv2.ServiceID:          true,
}

// LoadAWSConfig builds the SDK config from the region and optional static keys.
//
// AWS_ENDPOINT_OVERRIDE (e.g. a LocalStack URL) redirects only Bedrock Runtime
// and SES v2 calls; every other service resolves to its normal endpoint.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}
	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		awsCfg.EndpointResolverWithOptions = endpointOverride(endpoint, cfg.AWSRegion)
	}
	return awsCfg, nil
}

// endpointOverride signs with the requested region, or fallbackRegion when
// the client did not set one.
func endpointOverride(endpoint, fallbackRegion string) aws.EndpointResolverWithOptions {
	return aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
		if !overriddenServices[service] {
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		}
		if region == "" {
			region = fallbackRegion
		}
		return aws.Endpoint{
			URL:           endpoint,
			PartitionID:   "aws",
			SigningRegion: region,
		}, nil
	})
}
