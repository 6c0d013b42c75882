package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// secretsManagerAPI is the slice of the Secrets Manager client we use.
type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecrets resolves secrets from AWS Secrets Manager under a namespace
// prefix, so one account can hold secrets for several deployments.
type AWSSecrets struct {
	client    secretsManagerAPI
	namespace string
}

func NewAWSSecrets(client secretsManagerAPI, namespace string) *AWSSecrets {
	return &AWSSecrets{
		client:    client,
		namespace: strings.TrimSuffix(namespace, "/"),
	}
}

// NewAWSSecretsFromEnv builds a client from the default AWS credential chain.
func NewAWSSecretsFromEnv(ctx context.Context, region, namespace string) (*AWSSecrets, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return NewAWSSecrets(secretsmanager.NewFromConfig(cfg), namespace), nil
}

func (s *AWSSecrets) Get(ctx context.Context, key Key) (string, error) {
	fullID := s.namespace + "/" + strings.TrimPrefix(string(key), "/")

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(fullID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to retrieve secret %s: %w", fullID, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", fullID)
	}
	return *out.SecretString, nil
}
