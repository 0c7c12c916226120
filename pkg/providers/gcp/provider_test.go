package gcp

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
)

func stubCredentials(t *testing.T, err error) *[]*credentials.DetectOptions {
	t.Helper()
	var seen []*credentials.DetectOptions
	orig := detectCredentials
	detectCredentials = func(opts *credentials.DetectOptions) (*auth.Credentials, error) {
		seen = append(seen, opts)
		if err != nil {
			return nil, err
		}
		return auth.NewCredentials(&auth.CredentialsOptions{}), nil
	}
	t.Cleanup(func() { detectCredentials = orig })
	return &seen
}

func schemaWithEnv(env map[string]string) cloudjack.ConfigSchema {
	s := Schema()
	s.LookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	return s
}

func TestSchemaProjectFromEnv(t *testing.T) {
	stubCredentials(t, nil)

	cfg, err := schemaWithEnv(map[string]string{"GCLOUD_PROJECT": "legacy"}).Validate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.Get(FieldProjectID))

	cfg, err = schemaWithEnv(map[string]string{
		"GOOGLE_CLOUD_PROJECT": "current",
		"GCLOUD_PROJECT":       "legacy",
	}).Validate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "current", cfg.Get(FieldProjectID))
}

func TestSchemaProjectRequired(t *testing.T) {
	seen := stubCredentials(t, nil)

	_, err := schemaWithEnv(nil).Validate(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, cloudjack.ErrConfig))
	assert.Contains(t, err.Error(), "GOOGLE_CLOUD_PROJECT")
	assert.Empty(t, *seen, "credentials are not loaded for an incomplete config")
}

func TestSchemaCredentialsFile(t *testing.T) {
	seen := stubCredentials(t, nil)
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"service_account"}`), 0o600))

	cfg, err := schemaWithEnv(nil).Validate(context.Background(), map[string]string{
		FieldProjectID:       "p",
		FieldCredentialsPath: path,
	})
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Get(FieldCredentialsPath))
	require.Len(t, *seen, 1)
	assert.Equal(t, path, (*seen)[0].CredentialsFile)
	assert.Equal(t, []string{cloudPlatformScope}, (*seen)[0].Scopes)
}

func TestSchemaMissingCredentialsFile(t *testing.T) {
	stubCredentials(t, nil)

	_, err := schemaWithEnv(nil).Validate(context.Background(), map[string]string{
		FieldProjectID:       "p",
		FieldCredentialsPath: filepath.Join(t.TempDir(), "absent.json"),
	})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, cloudjack.ErrConfig))
	assert.Contains(t, err.Error(), "absent.json")
}

func TestSchemaUndetectableCredentials(t *testing.T) {
	native := &url.Error{Op: "Get", URL: "http://metadata.google.internal", Err: stderrors.New("could not find default credentials")}
	stubCredentials(t, native)

	_, err := schemaWithEnv(nil).Validate(context.Background(), map[string]string{FieldProjectID: "p"})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, cloudjack.ErrConfig))
	assert.Contains(t, err.Error(), "could not find default credentials")

	var urlErr *url.Error
	assert.False(t, stderrors.As(err, &urlErr))
}

func TestRegistrationCoversEveryDomain(t *testing.T) {
	reg := Registration()
	assert.Equal(t, cloudjack.ProviderGCP, reg.Provider)
	for _, svc := range cloudjack.ServiceNames() {
		assert.Contains(t, reg.Services, svc)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		signal  string
		message string
		ok      bool
	}{{
		name:    "googleapi status",
		err:     &googleapi.Error{Code: 404, Message: "zone missing"},
		signal:  "http:404",
		message: "zone missing",
		ok:      true,
	}, {
		name: "googleapi known reason",
		err: &googleapi.Error{Code: 403, Message: "slow down", Errors: []googleapi.ErrorItem{
			{Reason: "rateLimitExceeded"},
		}},
		signal:  "rateLimitExceeded",
		message: "slow down",
		ok:      true,
	}, {
		name: "googleapi unknown reason",
		err: &googleapi.Error{Code: 403, Message: "no", Errors: []googleapi.ErrorItem{
			{Reason: "somethingNew"},
		}},
		signal:  "http:403",
		message: "no",
		ok:      true,
	}, {
		name:    "grpc status",
		err:     status.Error(codes.NotFound, "secret missing"),
		signal:  "grpc:NotFound",
		message: "secret missing",
		ok:      true,
	}, {
		name:   "wrapped grpc status",
		err:    fmt.Errorf("access: %w", status.Error(codes.ResourceExhausted, "quota")),
		signal: "grpc:ResourceExhausted",
		ok:     true,
	}, {
		name:    "storage sentinel",
		err:     fmt.Errorf("reading: %w", storage.ErrObjectNotExist),
		signal:  signalObjectNotExist,
		message: storage.ErrObjectNotExist.Error(),
		ok:      true,
	}, {
		name:   "network",
		err:    &url.Error{Op: "Get", URL: "https://dns.googleapis.com", Err: stderrors.New("connection refused")},
		signal: signalNetwork,
		ok:     true,
	}, {
		name: "plain",
		err:  stderrors.New("plain"),
	}}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			signal, message, ok := Classify(test.err)
			assert.Equal(t, test.ok, ok)
			assert.Equal(t, test.signal, signal)
			if test.message != "" {
				assert.Equal(t, test.message, message)
			}
		})
	}
}

func TestTranslateClientErrors(t *testing.T) {
	reg := Registration()
	tests := []struct {
		service cloudjack.ServiceName
		scope   cloudjack.ResourceKind
		err     error
		want    *cloudjack.Error
	}{
		{cloudjack.ServiceStorage, cloudjack.ResourceBucket, storage.ErrObjectNotExist, cloudjack.ErrObjectNotFound},
		{cloudjack.ServiceStorage, cloudjack.ResourceObject, storage.ErrBucketNotExist, cloudjack.ErrBucketNotFound},
		{cloudjack.ServiceStorage, cloudjack.ResourceBucket, &googleapi.Error{Code: 409}, cloudjack.ErrBucketAlreadyExists},
		{cloudjack.ServiceSecrets, cloudjack.ResourceSecret, status.Error(codes.NotFound, "x"), cloudjack.ErrSecretNotFound},
		{cloudjack.ServiceSecrets, cloudjack.ResourceSecret, status.Error(codes.AlreadyExists, "x"), cloudjack.ErrSecretAlreadyExists},
		{cloudjack.ServiceQueue, cloudjack.ResourceMessage, status.Error(codes.NotFound, "x"), cloudjack.ErrQueueNotFound},
		{cloudjack.ServiceQueue, cloudjack.ResourceQueue, status.Error(codes.Unavailable, "x"), cloudjack.ErrUnavailable},
		{cloudjack.ServiceCompute, cloudjack.ResourceInstance, &googleapi.Error{Code: 404}, cloudjack.ErrInstanceNotFound},
		{cloudjack.ServiceCompute, cloudjack.ResourceInstance, &googleapi.Error{Code: 503, Errors: []googleapi.ErrorItem{{Reason: "ZONE_RESOURCE_POOL_EXHAUSTED"}}}, cloudjack.ErrUnavailable},
		{cloudjack.ServiceDNS, cloudjack.ResourceZone, &googleapi.Error{Code: 409, Errors: []googleapi.ErrorItem{{Reason: "alreadyExists"}}}, cloudjack.ErrZoneAlreadyExists},
		{cloudjack.ServiceDNS, cloudjack.ResourceRecord, &googleapi.Error{Code: 404, Errors: []googleapi.ErrorItem{{Reason: "notFound"}}}, cloudjack.ErrRecordNotFound},
		{cloudjack.ServiceIAM, cloudjack.ResourceRole, &googleapi.Error{Code: 409, Errors: []googleapi.ErrorItem{{Reason: "aborted"}}}, cloudjack.ErrUnavailable},
		{cloudjack.ServiceIAM, cloudjack.ResourceRole, &googleapi.Error{Code: 403}, cloudjack.ErrPermissionDenied},
		{cloudjack.ServiceLogging, cloudjack.ResourceLogGroup, status.Error(codes.NotFound, "x"), cloudjack.ErrLogGroupNotFound},
		{cloudjack.ServiceLogging, cloudjack.ResourceLogGroup, status.Error(codes.ResourceExhausted, "x"), cloudjack.ErrThrottled},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s/%v", test.service, test.err), func(t *testing.T) {
			tr := cloudjack.Translator{
				Classify: reg.Classify,
				Table:    reg.Errors.Merge(reg.Services[test.service].Errors),
			}
			got := tr.Translate(test.err, cloudjack.Scope{Domain: test.service, Operation: "op", Resource: test.scope})
			assert.True(t, stderrors.Is(got, test.want), "got %v", got)
			assert.Nil(t, got.Cause)
		})
	}
}
