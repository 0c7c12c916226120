// Package aws implements the cloudjack service domains on the AWS SDK for Go v2.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

// Configuration fields accepted by the AWS provider.
const (
	FieldAccessKeyID     = "aws_access_key_id"
	FieldSecretAccessKey = "aws_secret_access_key"
	FieldRegion          = "region_name"
)

// Schema returns the AWS configuration schema. The key pair is optional
// as a whole: when both halves are absent the SDK default credential
// chain applies.
func Schema() cloudjack.ConfigSchema {
	return cloudjack.ConfigSchema{
		Provider: cloudjack.ProviderAWS,
		Fields: []cloudjack.FieldSpec{
			{Name: FieldAccessKeyID, Env: []string{"AWS_ACCESS_KEY_ID"}, Sensitive: true},
			{Name: FieldSecretAccessKey, Env: []string{"AWS_SECRET_ACCESS_KEY"}, Sensitive: true},
			{Name: FieldRegion, Env: []string{"AWS_DEFAULT_REGION", "AWS_REGION"}},
		},
		Check: checkKeyPair,
	}
}

func checkKeyPair(_ context.Context, cfg *cloudjack.Config) error {
	_, hasID := cfg.Lookup(FieldAccessKeyID)
	_, hasSecret := cfg.Lookup(FieldSecretAccessKey)
	if hasID != hasSecret {
		return cloudjack.Errorf(cloudjack.KindConfig,
			"aws config: %s and %s must be set together", FieldAccessKeyID, FieldSecretAccessKey)
	}
	return nil
}

// Registration returns the AWS entry of the provider table.
func Registration() cloudjack.Registration {
	return cloudjack.Registration{
		Provider: cloudjack.ProviderAWS,
		Schema:   Schema(),
		Classify: Classify,
		Errors:   Errors,
		Services: map[cloudjack.ServiceName]cloudjack.ServiceBinding{
			cloudjack.ServiceSecrets: cloudjack.NewServiceBinding(
				newClient(func(c aws.Config) *secretsmanager.Client { return secretsmanager.NewFromConfig(c) }),
				func(c *secretsmanager.Client, _ *cloudjack.Config) cloudjack.Secrets { return NewSecrets(c) },
				SecretsErrors,
			),
			cloudjack.ServiceStorage: cloudjack.NewServiceBinding(
				newClient(func(c aws.Config) *s3.Client { return s3.NewFromConfig(c) }),
				func(c *s3.Client, cfg *cloudjack.Config) cloudjack.Storage {
					return NewStorage(c, s3.NewPresignClient(c), cfg.Get(FieldRegion))
				},
				StorageErrors,
			),
			cloudjack.ServiceQueue: cloudjack.NewServiceBinding(
				newClient(func(c aws.Config) *sqs.Client { return sqs.NewFromConfig(c) }),
				func(c *sqs.Client, _ *cloudjack.Config) cloudjack.Queue { return NewQueue(c) },
				QueueErrors,
			),
			cloudjack.ServiceCompute: cloudjack.NewServiceBinding(
				newClient(func(c aws.Config) *ec2.Client { return ec2.NewFromConfig(c) }),
				func(c *ec2.Client, _ *cloudjack.Config) cloudjack.Compute { return NewCompute(c) },
				ComputeErrors,
			),
			cloudjack.ServiceDNS: cloudjack.NewServiceBinding(
				newClient(func(c aws.Config) *route53.Client { return route53.NewFromConfig(c) }),
				func(c *route53.Client, _ *cloudjack.Config) cloudjack.DNS { return NewDNS(c) },
				DNSErrors,
			),
			cloudjack.ServiceIAM: cloudjack.NewServiceBinding(
				newClient(func(c aws.Config) *iam.Client { return iam.NewFromConfig(c) }),
				func(c *iam.Client, _ *cloudjack.Config) cloudjack.IAM { return NewIAM(c) },
				IAMErrors,
			),
			cloudjack.ServiceLogging: cloudjack.NewServiceBinding(
				newClient(func(c aws.Config) *cloudwatchlogs.Client { return cloudwatchlogs.NewFromConfig(c) }),
				func(c *cloudwatchlogs.Client, _ *cloudjack.Config) cloudjack.Logging { return NewLogging(c) },
				LoggingErrors,
			),
		},
	}
}

// newClient adapts an SDK constructor to a cloudjack client constructor.
func newClient[C any](build func(aws.Config) C) func(context.Context, *cloudjack.Config) (C, error) {
	return func(ctx context.Context, cfg *cloudjack.Config) (C, error) {
		var zero C
		awsCfg, err := LoadConfig(ctx, cfg)
		if err != nil {
			return zero, err
		}
		return build(awsCfg), nil
	}
}

// LoadConfig builds the SDK configuration for cfg. The SDK's own retryer
// is disabled; cloudjack's retry policy owns retries.
func LoadConfig(ctx context.Context, cfg *cloudjack.Config) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}
	if region := cfg.Get(FieldRegion); region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	id, secret := cfg.Get(FieldAccessKeyID), cfg.Get(FieldSecretAccessKey)
	if id != "" && secret != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(id, secret, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, cloudjack.Errorf(cloudjack.KindConfig, "aws config: %v", err)
	}
	return awsCfg, nil
}
