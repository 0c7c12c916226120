package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/juju/errors"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

// SecretsAPI is the subset of the Secrets Manager client used by Secrets.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	CreateSecret(ctx context.Context, in *secretsmanager.CreateSecretInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, in *secretsmanager.PutSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	DeleteSecret(ctx context.Context, in *secretsmanager.DeleteSecretInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error)
	secretsmanager.ListSecretsAPIClient
}

// Secrets implements cloudjack.Secrets on Secrets Manager.
type Secrets struct {
	api SecretsAPI
}

var _ cloudjack.Secrets = (*Secrets)(nil)

// NewSecrets returns a Secrets backed by api.
func NewSecrets(api SecretsAPI) *Secrets {
	return &Secrets{api: api}
}

func (s *Secrets) Domain() cloudjack.ServiceName { return cloudjack.ServiceSecrets }

// GetSecret returns the current string value. Binary secrets are returned
// as their raw bytes.
func (s *Secrets) GetSecret(ctx context.Context, name string) (string, error) {
	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", errors.Trace(err)
	}
	if out.SecretString != nil {
		return *out.SecretString, nil
	}
	return string(out.SecretBinary), nil
}

func (s *Secrets) CreateSecret(ctx context.Context, name, value string) error {
	_, err := s.api.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(value),
	})
	return errors.Trace(err)
}

// UpdateSecret stores value as the new current version.
func (s *Secrets) UpdateSecret(ctx context.Context, name, value string) error {
	_, err := s.api.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(value),
	})
	return errors.Trace(err)
}

// DeleteSecret deletes without a recovery window.
func (s *Secrets) DeleteSecret(ctx context.Context, name string) error {
	_, err := s.api.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   aws.String(name),
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	return errors.Trace(err)
}

func (s *Secrets) ListSecrets(ctx context.Context) ([]string, error) {
	var names []string
	p := secretsmanager.NewListSecretsPaginator(s.api, &secretsmanager.ListSecretsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, e := range page.SecretList {
			names = append(names, aws.ToString(e.Name))
		}
	}
	return names, nil
}
