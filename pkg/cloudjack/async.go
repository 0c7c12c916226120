package cloudjack

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/tomb.v2"
)

// DefaultWorkers is the worker pool size used when none is configured.
const DefaultWorkers = 8

// Executor runs blocking operations on a fixed pool of workers.
//
// Submissions are independent: two tasks submitted back to back may run
// in either order or concurrently. A caller that needs ordering waits on
// the first result before submitting the second.
type Executor struct {
	tomb    tomb.Tomb
	dying   context.Context
	workers int
	logger  *zap.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*task
	closed bool
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithWorkers sets the number of workers.
func WithWorkers(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithSettings sizes the pool from s.
func WithSettings(s Settings) ExecutorOption {
	return WithWorkers(s.Workers)
}

// WithExecutorLogger sets the logger.
func WithExecutorLogger(l *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = l
	}
}

// NewExecutor starts an executor. Stop it with Close.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		workers: DefaultWorkers,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cond = sync.NewCond(&e.mu)
	e.dying = e.tomb.Context(context.Background())
	for i := 0; i < e.workers; i++ {
		e.tomb.Go(e.loop)
	}
	return e
}

// Workers returns the pool size.
func (e *Executor) Workers() int {
	return e.workers
}

// Close stops the executor. Queued tasks complete as cancelled, running
// tasks have their context cancelled, and Close waits for the workers.
func (e *Executor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return e.tomb.Wait()
	}
	e.closed = true
	queued := e.queue
	e.queue = nil
	e.cond.Broadcast()
	e.mu.Unlock()

	for _, t := range queued {
		t.abandon()
	}
	e.tomb.Kill(nil)
	return e.tomb.Wait()
}

func (e *Executor) loop() error {
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if e.closed {
			e.mu.Unlock()
			return nil
		}
		t := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()

		t.run()
	}
}

func (e *Executor) enqueue(t *task) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.queue = append(e.queue, t)
	e.cond.Signal()
	return true
}

type task struct {
	run     func()
	abandon func()
}

// Pending is the eventual result of a submitted task.
type Pending[T any] struct {
	id     string
	done   chan struct{}
	once   sync.Once
	cancel context.CancelFunc

	value T
	err   error
}

func (p *Pending[T]) complete(v T, err error) bool {
	completed := false
	p.once.Do(func() {
		p.value, p.err = v, err
		close(p.done)
		completed = true
	})
	return completed
}

// ID identifies the task in logs.
func (p *Pending[T]) ID() string {
	return p.id
}

// Done is closed once the result is available.
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the result is available or ctx is done. Giving up
// on the wait does not cancel the task.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, Errorf(KindCancelled, "wait for task %s abandoned", p.id).WithCause(ctx.Err())
	}
}

// Cancel abandons the task. The result becomes a KindCancelled error
// immediately. A task that has not started is skipped; a running task
// has its context cancelled, but the provider call may still complete.
// Cancel after completion has no effect.
func (p *Pending[T]) Cancel() {
	var zero T
	p.complete(zero, Errorf(KindCancelled, "task %s cancelled", p.id).WithCause(context.Canceled))
	p.cancel()
}

// Submit schedules fn on the executor and returns at once. The task's
// context is derived from ctx and is also cancelled when the executor
// closes.
func Submit[T any](ctx context.Context, e *Executor, fn func(context.Context) (T, error)) *Pending[T] {
	tctx, cancelTask := context.WithCancel(ctx)
	stop := context.AfterFunc(e.dying, cancelTask)
	cancel := func() {
		stop()
		cancelTask()
	}
	p := &Pending[T]{
		id:     uuid.NewString(),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	var zero T

	t := &task{}
	t.run = func() {
		defer cancel()
		select {
		case <-p.done:
			return
		default:
		}
		if err := tctx.Err(); err != nil {
			p.complete(zero, Errorf(KindCancelled, "task %s cancelled before start", p.id).WithCause(err))
			return
		}
		v, err := safeCall(tctx, fn)
		if !p.complete(v, err) {
			e.logger.Debug("cancelled task finished", zap.String("task", p.id), zap.Error(err))
		}
	}
	t.abandon = func() {
		defer cancel()
		p.complete(zero, Errorf(KindCancelled, "task %s abandoned: executor closed", p.id))
	}

	if !e.enqueue(t) {
		t.abandon()
	}
	return p
}

func safeCall[T any](ctx context.Context, fn func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v, err = zero, Errorf(KindUnknown, "task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// InvokeAsync runs the named operation of h on e.
func InvokeAsync(ctx context.Context, e *Executor, h *Handle, name string, args Args) *Pending[any] {
	return Submit(ctx, e, func(ctx context.Context) (any, error) {
		return h.Invoke(ctx, name, args)
	})
}

// String implements fmt.Stringer.
func (e *Executor) String() string {
	return fmt.Sprintf("executor(workers=%d)", e.workers)
}
