// Package gcp implements the cloudjack service domains on the Google Cloud
// client libraries.
package gcp

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	compute "cloud.google.com/go/compute/apiv1"
	"cloud.google.com/go/logging"
	"cloud.google.com/go/logging/logadmin"
	pubsub "cloud.google.com/go/pubsub/apiv1"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/storage"
	"github.com/juju/errors"
	"google.golang.org/api/cloudresourcemanager/v1"
	dns "google.golang.org/api/dns/v1"
	iam "google.golang.org/api/iam/v1"
	"google.golang.org/api/option"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

// Configuration fields accepted by the GCP provider.
const (
	FieldProjectID       = "project_id"
	FieldCredentialsPath = "credentials_path"
	FieldZone            = "zone"
)

// DefaultZone is the compute zone used when none is configured.
const DefaultZone = "us-central1-a"

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// detectCredentials is swapped out in tests.
var detectCredentials = credentials.DetectDefault

// Schema returns the GCP configuration schema. Credentials are loaded
// eagerly so that a bad key file fails validation rather than the first
// call.
func Schema() cloudjack.ConfigSchema {
	return cloudjack.ConfigSchema{
		Provider: cloudjack.ProviderGCP,
		Fields: []cloudjack.FieldSpec{
			{Name: FieldProjectID, Env: []string{"GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT"}, Required: true},
			{Name: FieldCredentialsPath, Env: []string{"GOOGLE_APPLICATION_CREDENTIALS"}},
			{Name: FieldZone, Env: []string{"CLOUDSDK_COMPUTE_ZONE"}},
		},
		Check: checkCredentials,
	}
}

func checkCredentials(_ context.Context, cfg *cloudjack.Config) error {
	if path := cfg.Get(FieldCredentialsPath); path != "" {
		if _, err := os.Stat(path); err != nil {
			return cloudjack.Errorf(cloudjack.KindConfig, "gcp config: credentials file %q: %v", path, err)
		}
	}
	if _, err := loadCredentials(cfg); err != nil {
		return err
	}
	return nil
}

func loadCredentials(cfg *cloudjack.Config) (*auth.Credentials, error) {
	creds, err := detectCredentials(&credentials.DetectOptions{
		Scopes:          []string{cloudPlatformScope},
		CredentialsFile: cfg.Get(FieldCredentialsPath),
	})
	if err != nil {
		return nil, cloudjack.Errorf(cloudjack.KindConfig, "gcp config: loading credentials: %v", err)
	}
	return creds, nil
}

// ClientOptions returns the client options for cfg.
func ClientOptions(cfg *cloudjack.Config) ([]option.ClientOption, error) {
	creds, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}
	return []option.ClientOption{option.WithAuthCredentials(creds)}, nil
}

// lastSegment returns the part of a resource name after the final slash.
func lastSegment(name string) string {
	return name[strings.LastIndex(name, "/")+1:]
}

func zoneOf(cfg *cloudjack.Config) string {
	if z := cfg.Get(FieldZone); z != "" {
		return z
	}
	return DefaultZone
}

// Registration returns the GCP entry of the provider table.
func Registration() cloudjack.Registration {
	return cloudjack.Registration{
		Provider: cloudjack.ProviderGCP,
		Schema:   Schema(),
		Classify: Classify,
		Errors:   Errors,
		Services: map[cloudjack.ServiceName]cloudjack.ServiceBinding{
			cloudjack.ServiceSecrets: cloudjack.NewServiceBinding(
				newClient(func(ctx context.Context, _ *cloudjack.Config, opts []option.ClientOption) (*secretmanager.Client, error) {
					return secretmanager.NewClient(ctx, opts...)
				}),
				func(c *secretmanager.Client, cfg *cloudjack.Config) cloudjack.Secrets {
					return NewSecrets(c, cfg.Get(FieldProjectID))
				},
				SecretsErrors,
			),
			cloudjack.ServiceStorage: cloudjack.NewServiceBinding(
				newClient(func(ctx context.Context, _ *cloudjack.Config, opts []option.ClientOption) (*storage.Client, error) {
					return storage.NewClient(ctx, opts...)
				}),
				func(c *storage.Client, cfg *cloudjack.Config) cloudjack.Storage {
					return NewStorage(c, cfg.Get(FieldProjectID))
				},
				StorageErrors,
			),
			cloudjack.ServiceQueue: cloudjack.NewServiceBinding(
				newClient(newPubSubClients),
				func(c *PubSubClients, cfg *cloudjack.Config) cloudjack.Queue {
					return NewQueue(c.Publisher, c.Subscriber, cfg.Get(FieldProjectID))
				},
				QueueErrors,
			),
			cloudjack.ServiceCompute: cloudjack.NewServiceBinding(
				newClient(func(ctx context.Context, _ *cloudjack.Config, opts []option.ClientOption) (*compute.InstancesClient, error) {
					return compute.NewInstancesRESTClient(ctx, opts...)
				}),
				func(c *compute.InstancesClient, cfg *cloudjack.Config) cloudjack.Compute {
					return NewCompute(c, cfg.Get(FieldProjectID), zoneOf(cfg))
				},
				ComputeErrors,
			),
			cloudjack.ServiceDNS: cloudjack.NewServiceBinding(
				newClient(func(ctx context.Context, _ *cloudjack.Config, opts []option.ClientOption) (*dns.Service, error) {
					return dns.NewService(ctx, opts...)
				}),
				func(c *dns.Service, cfg *cloudjack.Config) cloudjack.DNS {
					return NewDNS(c, cfg.Get(FieldProjectID))
				},
				DNSErrors,
			),
			cloudjack.ServiceIAM: cloudjack.NewServiceBinding(
				newClient(newIAMClients),
				func(c *IAMClients, cfg *cloudjack.Config) cloudjack.IAM {
					return NewIAM(c.Roles, c.Projects, cfg.Get(FieldProjectID))
				},
				IAMErrors,
			),
			cloudjack.ServiceLogging: cloudjack.NewServiceBinding(
				newClient(newLoggingClients),
				func(c *LoggingClients, cfg *cloudjack.Config) cloudjack.Logging {
					return NewLogging(c.Writer, c.Admin, cfg.Get(FieldProjectID))
				},
				LoggingErrors,
			),
		},
	}
}

// newClient adapts a client library constructor to a cloudjack client
// constructor.
func newClient[C any](build func(context.Context, *cloudjack.Config, []option.ClientOption) (C, error)) func(context.Context, *cloudjack.Config) (C, error) {
	return func(ctx context.Context, cfg *cloudjack.Config) (C, error) {
		var zero C
		opts, err := ClientOptions(cfg)
		if err != nil {
			return zero, err
		}
		c, err := build(ctx, cfg, opts)
		if err != nil {
			return zero, errors.Trace(err)
		}
		return c, nil
	}
}

// PubSubClients is the cached client pair behind Queue.
type PubSubClients struct {
	Publisher  *pubsub.PublisherClient
	Subscriber *pubsub.SubscriberClient
}

func newPubSubClients(ctx context.Context, _ *cloudjack.Config, opts []option.ClientOption) (*PubSubClients, error) {
	pub, err := pubsub.NewPublisherClient(ctx, opts...)
	if err != nil {
		return nil, errors.Annotate(err, "publisher client")
	}
	sub, err := pubsub.NewSubscriberClient(ctx, opts...)
	if err != nil {
		_ = pub.Close()
		return nil, errors.Annotate(err, "subscriber client")
	}
	return &PubSubClients{Publisher: pub, Subscriber: sub}, nil
}

// Close closes both clients.
func (c *PubSubClients) Close() error {
	return closeAll(c.Publisher.Close, c.Subscriber.Close)
}

// IAMClients is the cached client pair behind IAM: the IAM API for custom
// roles and Resource Manager for the project policy.
type IAMClients struct {
	Roles    *iam.Service
	Projects *cloudresourcemanager.Service
}

func newIAMClients(ctx context.Context, _ *cloudjack.Config, opts []option.ClientOption) (*IAMClients, error) {
	roles, err := iam.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Annotate(err, "iam service")
	}
	projects, err := cloudresourcemanager.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Annotate(err, "resource manager service")
	}
	return &IAMClients{Roles: roles, Projects: projects}, nil
}

// LoggingClients is the cached client pair behind Logging.
type LoggingClients struct {
	Writer *logging.Client
	Admin  *logadmin.Client
}

func newLoggingClients(ctx context.Context, cfg *cloudjack.Config, opts []option.ClientOption) (*LoggingClients, error) {
	project := cfg.Get(FieldProjectID)
	w, err := logging.NewClient(ctx, "projects/"+project, opts...)
	if err != nil {
		return nil, errors.Annotate(err, "logging client")
	}
	a, err := logadmin.NewClient(ctx, project, opts...)
	if err != nil {
		_ = w.Close()
		return nil, errors.Annotate(err, "logadmin client")
	}
	return &LoggingClients{Writer: w, Admin: a}, nil
}

// Close flushes and closes both clients.
func (c *LoggingClients) Close() error {
	return closeAll(c.Writer.Close, c.Admin.Close)
}

func closeAll(fns ...func() error) error {
	var errs []error
	for _, fn := range fns {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
