package mainconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	appconfig "github.com/wolfman30/incident-response-ai/internal/config"
)

func TestLoadAWSConfigStaticCredentials(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		AWSRegion:          "eu-west-2",
		AWSAccessKeyID:     "AKIATEST",
		AWSSecretAccessKey: "secret",
	}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if awsCfg.Region != "eu-west-2" {
		t.Fatalf("expected region eu-west-2, got %s", awsCfg.Region)
	}
	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve credentials: %v", err)
	}
	if creds.AccessKeyID != "AKIATEST" {
		t.Fatalf("expected static access key, got %s", creds.AccessKeyID)
	}
	if awsCfg.EndpointResolverWithOptions != nil {
		t.Fatalf("expected no endpoint override")
	}
}

func TestLoadAWSConfigEndpointOverride(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		AWSRegion:           "us-east-1",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "test",
		AWSEndpointOverride: "http://localhost:4566",
	}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resolver := awsCfg.EndpointResolverWithOptions
	if resolver == nil {
		t.Fatalf("expected endpoint resolver")
	}

	for _, service := range []string{bedrockruntime.ServiceID, sesv2.ServiceID} {
		endpoint, err := resolver.ResolveEndpoint(service, "us-east-1")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", service, err)
		}
		if endpoint.URL != "http://localhost:4566" {
			t.Fatalf("%s: expected override url, got %s", service, endpoint.URL)
		}
	}

	_, err = resolver.ResolveEndpoint("S3", "us-east-1")
	var notFound *aws.EndpointNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected EndpointNotFoundError for other services, got %v", err)
	}
}

func TestEndpointOverrideSigningRegion(t *testing.T) {
	resolver := endpointOverride("http://localhost:4566", "eu-west-2")

	endpoint, err := resolver.ResolveEndpoint(bedrockruntime.ServiceID, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if endpoint.SigningRegion != "eu-west-2" {
		t.Fatalf("expected fallback signing region, got %s", endpoint.SigningRegion)
	}

	endpoint, err = resolver.ResolveEndpoint(sesv2.ServiceID, "us-west-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if endpoint.SigningRegion != "us-west-2" {
		t.Fatalf("expected requested signing region, got %s", endpoint.SigningRegion)
	}
}
