package gcp

import (
	"context"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/juju/errors"
	"google.golang.org/api/iterator"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

// SecretManagerAPI is the subset of the Secret Manager client used by
// Secrets.
type SecretManagerAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error)
	AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.SecretVersion, error)
	DeleteSecret(ctx context.Context, req *secretmanagerpb.DeleteSecretRequest, opts ...gax.CallOption) error
	ListSecrets(ctx context.Context, req *secretmanagerpb.ListSecretsRequest, opts ...gax.CallOption) *secretmanager.SecretIterator
}

// Secrets implements cloudjack.Secrets on Secret Manager. Every update
// adds a version; reads return the latest one.
type Secrets struct {
	api     SecretManagerAPI
	project string
}

var _ cloudjack.Secrets = (*Secrets)(nil)

// NewSecrets returns a Secrets backed by api for project.
func NewSecrets(api SecretManagerAPI, project string) *Secrets {
	return &Secrets{api: api, project: project}
}

func (s *Secrets) Domain() cloudjack.ServiceName { return cloudjack.ServiceSecrets }

func (s *Secrets) parent() string {
	return "projects/" + s.project
}

func (s *Secrets) secretName(name string) string {
	return s.parent() + "/secrets/" + name
}

func (s *Secrets) GetSecret(ctx context.Context, name string) (string, error) {
	resp, err := s.api.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: s.secretName(name) + "/versions/latest",
	})
	if err != nil {
		return "", errors.Trace(err)
	}
	return string(resp.GetPayload().GetData()), nil
}

// CreateSecret creates the secret with automatic replication and stores
// value as its first version.
func (s *Secrets) CreateSecret(ctx context.Context, name, value string) error {
	secret, err := s.api.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
		Parent:   s.parent(),
		SecretId: name,
		Secret: &secretmanagerpb.Secret{
			Replication: &secretmanagerpb.Replication{
				Replication: &secretmanagerpb.Replication_Automatic_{
					Automatic: &secretmanagerpb.Replication_Automatic{},
				},
			},
		},
	})
	if err != nil {
		return errors.Trace(err)
	}
	return s.addVersion(ctx, secret.GetName(), value)
}

func (s *Secrets) UpdateSecret(ctx context.Context, name, value string) error {
	return s.addVersion(ctx, s.secretName(name), value)
}

func (s *Secrets) addVersion(ctx context.Context, secret, value string) error {
	_, err := s.api.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  secret,
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	})
	return errors.Trace(err)
}

func (s *Secrets) DeleteSecret(ctx context.Context, name string) error {
	err := s.api.DeleteSecret(ctx, &secretmanagerpb.DeleteSecretRequest{Name: s.secretName(name)})
	return errors.Trace(err)
}

// ListSecrets returns short secret names.
func (s *Secrets) ListSecrets(ctx context.Context) ([]string, error) {
	it := s.api.ListSecrets(ctx, &secretmanagerpb.ListSecretsRequest{Parent: s.parent()})
	var names []string
	for {
		secret, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return names, nil
		}
		if err != nil {
			return nil, errors.Trace(err)
		}
		names = append(names, lastSegment(secret.GetName()))
	}
}
