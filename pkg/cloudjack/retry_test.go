package cloudjack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    4 * time.Millisecond,
	}
}

func translateNative(err error) *Error {
	return testTranslator().Translate(err, Scope{Operation: "test"})
}

func TestRetryDelay(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{12, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestRetryThrottledThenSucceeds(t *testing.T) {
	calls := 0
	state, err := fastPolicy().Run(context.Background(), "put_object", translateNative, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &nativeError{code: "SlowDown", msg: "reduce your request rate"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, state.Attempts)
	assert.Equal(t, KindThrottled, state.LastKind)
	for i := 1; i < len(state.Delays); i++ {
		assert.GreaterOrEqual(t, state.Delays[i], state.Delays[i-1])
	}
}

func TestRetryNonRetryableFailsOnce(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{name: "not found", err: &nativeError{code: "NoSuchBucket"}, kind: KindNotFound},
		{name: "permission denied", err: &nativeError{code: "AccessDenied"}, kind: KindPermissionDenied},
		{name: "unknown", err: errors.New("mystery"), kind: KindUnknown},
		{name: "config", err: NewError(KindConfig, "bad"), kind: KindConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := fastPolicy().Run(context.Background(), "op", translateNative, func(ctx context.Context) error {
				return tt.err
			})
			require.Error(t, err)
			assert.Equal(t, 1, state.Attempts)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Empty(t, state.Delays)
		})
	}
}

func TestRetryUnknownOptIn(t *testing.T) {
	p := fastPolicy()
	p.RetryUnknown = true
	state, err := p.Run(context.Background(), "op", translateNative, func(ctx context.Context) error {
		return errors.New("mystery")
	})
	require.Error(t, err)
	assert.Equal(t, 3, state.Attempts)
	assert.Equal(t, KindUnknown, KindOf(err))
}

func TestRetryExhaustionReturnsLastError(t *testing.T) {
	calls := 0
	state, err := fastPolicy().Run(context.Background(), "op", translateNative, func(ctx context.Context) error {
		calls++
		if calls == 3 {
			return &nativeError{code: "InternalError", msg: "third"}
		}
		return &nativeError{code: "SlowDown", msg: "first two"}
	})
	require.Error(t, err)
	assert.Equal(t, 3, state.Attempts)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, KindUnavailable, e.Kind)
	assert.Equal(t, "third", e.ProviderMessage)
}

func TestRetryAttemptTimeout(t *testing.T) {
	p := fastPolicy()
	p.AttemptTimeout = 5 * time.Millisecond
	state, err := p.Run(context.Background(), "op", translateNative, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.Equal(t, 3, state.Attempts)
}

func TestRetryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	state, err := fastPolicy().Run(ctx, "op", translateNative, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.Zero(t, calls)
	assert.Zero(t, state.Attempts)
}

func TestRetryCancelledDuringAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state, err := fastPolicy().Run(ctx, "op", translateNative, func(ctx context.Context) error {
		cancel()
		return &nativeError{code: "SlowDown"}
	})
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, state.Attempts)
}

func TestCall(t *testing.T) {
	calls := 0
	v, err := Call(context.Background(), fastPolicy(), "get", translateNative, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &nativeError{code: "SlowDown"}
		}
		return "value", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "value", v)
	assert.Equal(t, 2, calls)
}
