package cloudjack

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nativeError stands in for a provider SDK error.
type nativeError struct {
	code string
	msg  string
}

func (e *nativeError) Error() string {
	return fmt.Sprintf("api error %s: %s", e.code, e.msg)
}

func classifyNative(err error) (string, string, bool) {
	var n *nativeError
	if errors.As(err, &n) {
		return n.code, n.msg, true
	}
	return "", "", false
}

var nativeTable = ErrorTable{
	"NoSuchBucket":  {Kind: KindNotFound, Resource: ResourceBucket},
	"NoSuchKey":     {Kind: KindNotFound, Resource: ResourceObject},
	"SlowDown":      {Kind: KindThrottled},
	"AccessDenied":  {Kind: KindPermissionDenied},
	"InternalError": {Kind: KindUnavailable},
}

func testTranslator() Translator {
	return Translator{Classify: classifyNative, Table: nativeTable}
}

func TestTranslateTableHit(t *testing.T) {
	err := testTranslator().Translate(
		&nativeError{code: "NoSuchKey", msg: "The specified key does not exist."},
		Scope{Domain: ServiceStorage, Operation: "get_object", Resource: ResourceBucket, ResourceID: "photos"},
	)
	require.NotNil(t, err)
	assert.Equal(t, KindNotFound, err.Kind)
	assert.Equal(t, ResourceObject, err.Resource)
	assert.Equal(t, ServiceStorage, err.Domain)
	assert.Equal(t, "get_object", err.Operation)
	assert.Equal(t, "The specified key does not exist.", err.ProviderMessage)
	assert.True(t, errors.Is(err, ErrObjectNotFound))
	assert.False(t, errors.Is(err, ErrBucketNotFound))
}

func TestTranslateDoesNotRetainNativeError(t *testing.T) {
	native := &nativeError{code: "AccessDenied", msg: "denied"}
	err := testTranslator().Translate(native, Scope{Operation: "list_buckets"})

	var n *nativeError
	assert.False(t, errors.As(err, &n))
	assert.Nil(t, err.Cause)
	assert.NotContains(t, err.Error(), "api error")
}

// deadlineError is a native error wrapping an expired deadline, the way
// an SDK surfaces an HTTP client timeout.
type deadlineError struct{ err error }

func (e *deadlineError) Error() string { return "operation error S3: GetObject, " + e.err.Error() }
func (e *deadlineError) Unwrap() error { return e.err }

func TestTranslateContextErrorDropsNativeChain(t *testing.T) {
	tr := testTranslator()
	for _, sentinel := range []error{context.DeadlineExceeded, context.Canceled} {
		native := &deadlineError{err: sentinel}
		err := tr.Translate(native, Scope{Operation: "get_object"})
		require.NotNil(t, err)

		var d *deadlineError
		assert.False(t, errors.As(err, &d))
		assert.Equal(t, sentinel, err.Cause)
		assert.True(t, errors.Is(err, sentinel))
		assert.Equal(t, native.Error(), err.ProviderMessage)
	}

	bare := tr.Translate(context.Canceled, Scope{Operation: "get_object"})
	assert.Empty(t, bare.ProviderMessage)
}

func TestTranslateUnknown(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "unrecognized shape", err: errors.New("socket closed")},
		{name: "unmapped code", err: &nativeError{code: "Teapot", msg: "short and stout"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := testTranslator().Translate(tt.err, Scope{Operation: "put_object"})
			require.NotNil(t, err)
			assert.Equal(t, KindUnknown, err.Kind)
			assert.NotEmpty(t, err.ProviderMessage)
		})
	}
}

func TestTranslatePassthrough(t *testing.T) {
	orig := NewError(KindInvalidArgument, "bad method").WithResource(ResourceObject, "")
	err := testTranslator().Translate(fmt.Errorf("wrapped: %w", orig), Scope{Domain: ServiceStorage, Operation: "generate_signed_url"})

	assert.Equal(t, KindInvalidArgument, err.Kind)
	assert.Equal(t, ResourceObject, err.Resource)
	assert.Equal(t, "generate_signed_url", err.Operation)
	assert.Empty(t, orig.Operation, "original error must not be mutated")
}

func TestTranslateContextErrors(t *testing.T) {
	tr := testTranslator()

	cancelled := tr.Translate(context.Canceled, Scope{Operation: "get_secret"})
	assert.Equal(t, KindCancelled, cancelled.Kind)
	assert.True(t, errors.Is(cancelled, context.Canceled))

	expired := tr.Translate(fmt.Errorf("dial: %w", context.DeadlineExceeded), Scope{Operation: "get_secret"})
	assert.Equal(t, KindUnavailable, expired.Kind)
}

func TestTranslateRecoversFromClassifierPanic(t *testing.T) {
	tr := Translator{
		Classify: func(error) (string, string, bool) { panic("malformed payload") },
		Table:    nativeTable,
	}
	err := tr.Translate(errors.New("x"), Scope{Operation: "list_queues"})
	require.NotNil(t, err)
	assert.Equal(t, KindUnknown, err.Kind)
	assert.Contains(t, err.ProviderMessage, "malformed payload")
}

func TestTranslateNil(t *testing.T) {
	assert.Nil(t, testTranslator().Translate(nil, Scope{}))
}

func TestHTTPStatusErrors(t *testing.T) {
	tr := Translator{
		Classify: func(err error) (string, string, bool) { return HTTPSignal(503), "", true },
		Table:    HTTPStatusErrors,
	}
	err := tr.Translate(errors.New("service unavailable"), Scope{})
	assert.Equal(t, KindUnavailable, err.Kind)
	assert.Equal(t, "service unavailable", err.ProviderMessage)
}

func TestErrorTableMerge(t *testing.T) {
	base := ErrorTable{"a": {Kind: KindNotFound}, "b": {Kind: KindUnknown}}
	merged := base.Merge(ErrorTable{"b": {Kind: KindThrottled}})

	assert.Equal(t, KindThrottled, merged["b"].Kind)
	assert.Equal(t, KindNotFound, merged["a"].Kind)
	assert.Equal(t, KindUnknown, base["b"].Kind)
}
