package cloudjack

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSharesClientAcrossFieldOrder(t *testing.T) {
	p := newTestProvider()
	f := p.factory()
	ctx := context.Background()

	first := map[string]string{}
	first["region"] = "r1"
	first["endpoint"] = "e"
	second := map[string]string{}
	second["endpoint"] = "e"
	second["region"] = "r1"

	h1, err := f.Resolve(ctx, "x", ServiceStorage, first)
	require.NoError(t, err)
	h2, err := f.Resolve(ctx, "x", ServiceStorage, second)
	require.NoError(t, err)

	assert.Same(t, h1.Entry, h2.Entry)
	assert.EqualValues(t, 1, p.constructs.Load())

	h3, err := f.Resolve(ctx, "x", ServiceStorage, map[string]string{"region": "r2"})
	require.NoError(t, err)
	assert.NotSame(t, h1.Entry, h3.Entry)
	assert.EqualValues(t, 2, p.constructs.Load())
}

func TestResolveUnregisteredProvider(t *testing.T) {
	p := newTestProvider()
	f := p.factory()

	_, err := f.Resolve(context.Background(), "y", ServiceStorage, map[string]string{"bogus": "field"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedProvider))
	assert.Zero(t, p.checks.Load(), "configuration must not be validated")
	assert.Zero(t, p.constructs.Load(), "no client must be constructed")
}

func TestResolveUnsupportedService(t *testing.T) {
	p := newTestProvider()
	f := p.factory()

	_, err := f.Resolve(context.Background(), "x", ServiceDNS, nil)
	assert.True(t, errors.Is(err, ErrUnsupportedService))

	_, err = f.Secrets(context.Background(), "x", nil)
	assert.True(t, errors.Is(err, ErrUnsupportedService))
	assert.Zero(t, p.constructs.Load())
}

func TestResolveInvalidConfig(t *testing.T) {
	p := newTestProvider()
	f := p.factory()

	_, err := f.Storage(context.Background(), "x", map[string]string{"colour": "blue"})
	require.Error(t, err)
	assert.True(t, IsConfig(err))
	assert.Zero(t, p.constructs.Load())
}

func TestResolveConstructorFailureIsTranslated(t *testing.T) {
	p := newTestProvider()
	p.constructErr = &nativeError{code: "AccessDenied", msg: "bad credentials"}
	f := p.factory()

	_, err := f.Storage(context.Background(), "x", nil)
	require.Error(t, err)
	assert.True(t, IsPermissionDenied(err))

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "connect", e.Operation)

	_, err = f.Storage(context.Background(), "x", nil)
	require.Error(t, err)
	assert.EqualValues(t, 2, p.constructs.Load(), "failures are not cached")
}

func TestGuardedServiceRetriesAndTranslates(t *testing.T) {
	p := newTestProvider()
	f := p.factory()
	ctx := context.Background()

	store, err := f.Storage(ctx, "x", nil)
	require.NoError(t, err)

	p.store.fail = func(op string, call int) error {
		if op == "create_bucket" && call < 3 {
			return &nativeError{code: "SlowDown", msg: "reduce request rate"}
		}
		return nil
	}
	require.NoError(t, store.CreateBucket(ctx, "photos"))
	assert.Equal(t, 3, p.store.callCount("create_bucket"))

	p.store.fail = nil
	err = store.CreateBucket(ctx, "photos")
	assert.True(t, errors.Is(err, ErrBucketAlreadyExists))
	assert.Equal(t, 4, p.store.callCount("create_bucket"), "already-exists is not retried")

	_, err = store.GetObject(ctx, "photos", "missing.jpg")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrObjectNotFound))
	assert.True(t, errors.Is(err, ErrNotFound))

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, ServiceStorage, e.Domain)
	assert.Equal(t, "get_object", e.Operation)
	assert.Equal(t, "missing.jpg", e.ProviderMessage)
}

func TestHandleInvoke(t *testing.T) {
	p := newTestProvider()
	f := p.factory()
	ctx := context.Background()

	h, err := f.Resolve(ctx, "x", ServiceStorage, nil)
	require.NoError(t, err)
	assert.Contains(t, h.Operations(), "generate_signed_url")

	_, err = h.Invoke(ctx, "create_bucket", Args{Positional: []string{"b"}})
	require.NoError(t, err)
	_, err = h.Invoke(ctx, "put_object", Args{Positional: []string{"b", "k", "hello"}})
	require.NoError(t, err)

	got, err := h.Invoke(ctx, "get_object", Args{Keyword: map[string]any{"bucket": "b", "key": "k"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	_, err = h.Invoke(ctx, "launch_rocket", Args{})
	assert.True(t, IsKind(err, KindInvalidArgument))
}

func TestClearCacheKeepsHandlesUsable(t *testing.T) {
	p := newTestProvider()
	f := p.factory()
	ctx := context.Background()

	h1, err := f.Resolve(ctx, "x", ServiceStorage, nil)
	require.NoError(t, err)
	f.ClearCache()
	h2, err := f.Resolve(ctx, "x", ServiceStorage, nil)
	require.NoError(t, err)

	assert.NotSame(t, h1.Entry, h2.Entry)
	_, err = h1.Impl().(Storage).ListBuckets(ctx)
	assert.NoError(t, err)
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	p := newTestProvider()
	_, err := NewRegistry(p.registration(), p.registration())
	assert.Error(t, err)
}

func TestRegistryListings(t *testing.T) {
	r := MustNewRegistry(newTestProvider().registration())
	assert.Equal(t, []CloudProvider{"x"}, r.Providers())

	services, err := r.Services("x")
	require.NoError(t, err)
	assert.Equal(t, []ServiceName{ServiceStorage}, services)

	_, err = r.Services("y")
	assert.True(t, errors.Is(err, ErrUnsupportedProvider))
}
