package cloudjack

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"go.uber.org/zap"
)

// RetryPolicy is a bounded retry policy with exponential backoff.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the second attempt.
	BaseDelay time.Duration

	// MaxDelay caps the computed delay before jitter is added.
	MaxDelay time.Duration

	// AttemptTimeout bounds each attempt. An attempt that runs past it
	// fails as KindUnavailable. Zero means no per-attempt bound.
	AttemptTimeout time.Duration

	// Jitter is the fraction of the computed delay added at random, in [0, 1].
	Jitter float64

	// Retryable decides whether a kind may be retried. Defaults to
	// DefaultRetryable.
	Retryable func(ErrorKind) bool

	// RetryUnknown opts unclassified failures into retrying.
	RetryUnknown bool

	// Clock drives backoff sleeps. Defaults to clock.WallClock.
	Clock clock.Clock

	// Logger receives per-attempt diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      0.1,
	}
}

// DefaultRetryable retries throttling and transient failures only.
func DefaultRetryable(kind ErrorKind) bool {
	return kind == KindThrottled || kind == KindUnavailable
}

// RetryState is the call-local record of one Run.
type RetryState struct {
	// Attempts is the number of times the operation was invoked.
	Attempts int
	// Delays are the backoff delays slept between attempts.
	Delays []time.Duration
	// Elapsed is the total backoff time.
	Elapsed time.Duration
	// LastKind is the kind of the most recent failure.
	LastKind ErrorKind
}

// TranslateFunc converts a native failure into a taxonomy error.
type TranslateFunc func(err error) *Error

// Delay returns the backoff before attempt+1, without jitter:
// min(BaseDelay * 2^(attempt-1), MaxDelay).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Millisecond
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Jitter > 1 {
		p.Jitter = 1
	}
	if p.Retryable == nil {
		p.Retryable = DefaultRetryable
	}
	if p.Clock == nil {
		p.Clock = clock.WallClock
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return p
}

func (p RetryPolicy) retryable(kind ErrorKind) bool {
	if kind == KindUnknown {
		return p.RetryUnknown
	}
	switch kind {
	case KindConfig, KindUnsupportedProvider, KindUnsupportedService, KindCancelled:
		return false
	}
	return p.Retryable(kind)
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.Delay(attempt)
	if p.Jitter > 0 {
		d += time.Duration(rand.Float64() * p.Jitter * float64(d))
	}
	return d
}

// Execute runs fn under the policy and returns nil or the final
// translated error.
func (p RetryPolicy) Execute(ctx context.Context, name string, translate TranslateFunc, fn func(context.Context) error) error {
	_, err := p.Run(ctx, name, translate, fn)
	return err
}

// Run runs fn under the policy. Each failure is translated; kinds the
// policy rejects fail immediately, retryable kinds are retried until the
// attempt budget is spent, and the last translated error is returned.
// The backoff sleep stops early when ctx is done.
func (p RetryPolicy) Run(ctx context.Context, name string, translate TranslateFunc, fn func(context.Context) error) (RetryState, error) {
	p = p.withDefaults()
	var state RetryState
	var last *Error

	if err := ctx.Err(); err != nil {
		last = cancelled(translate, err)
		state.LastKind = last.Kind
		return state, last
	}

	err := retry.Call(retry.CallArgs{
		Func: func() error {
			state.Attempts++
			err := p.attempt(ctx, fn)
			if err == nil {
				return nil
			}
			if cerr := ctx.Err(); cerr != nil {
				last = cancelled(translate, cerr)
			} else {
				last = translate(err)
			}
			state.LastKind = last.Kind
			return last
		},
		IsFatalError: func(err error) bool {
			return !p.retryable(KindOf(err))
		},
		NotifyFunc: func(err error, attempt int) {
			p.Logger.Debug("operation attempt failed",
				zap.String("operation", name),
				zap.Int("attempt", attempt),
				zap.String("kind", string(KindOf(err))),
				zap.Error(err),
			)
		},
		Attempts: p.MaxAttempts,
		Delay:    p.BaseDelay,
		BackoffFunc: func(_ time.Duration, attempt int) time.Duration {
			d := p.backoff(attempt)
			state.Delays = append(state.Delays, d)
			state.Elapsed += d
			return d
		},
		Clock: p.Clock,
		Stop:  ctx.Done(),
	})
	if err == nil {
		return state, nil
	}
	if last == nil {
		last = translate(err)
	}
	if retry.IsRetryStopped(err) {
		last = cancelled(translate, ctx.Err())
		state.LastKind = last.Kind
		return state, last
	}
	if retry.IsAttemptsExceeded(err) {
		p.Logger.Warn("operation retries exhausted",
			zap.String("operation", name),
			zap.Int("attempts", state.Attempts),
			zap.String("kind", string(last.Kind)),
		)
	}
	return state, last
}

// cancelled reports a caller-side cancellation or deadline as KindCancelled.
func cancelled(translate TranslateFunc, cause error) *Error {
	e := translate(context.Canceled)
	if cause != nil {
		e.Cause = cause
	}
	return e
}

func (p RetryPolicy) attempt(ctx context.Context, fn func(context.Context) error) error {
	if p.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	err := fn(actx)
	if err == nil {
		return nil
	}
	if actx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return context.DeadlineExceeded
	}
	return err
}

// Call runs fn under p and returns its value.
func Call[T any](ctx context.Context, p RetryPolicy, name string, translate TranslateFunc, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := p.Execute(ctx, name, translate, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
