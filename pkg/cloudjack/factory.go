package cloudjack

import (
	"context"

	"github.com/juju/clock"
	"go.uber.org/zap"
)

// Handle is a resolved service: the shared client entry it is bound to
// and the retry-wrapped, error-normalized implementation.
type Handle struct {
	Provider CloudProvider
	Service  ServiceName
	Entry    *ClientEntry

	impl Service
}

// Impl returns the wrapped domain implementation. Assert it to the
// domain interface, e.g. h.Impl().(cloudjack.Storage).
func (h *Handle) Impl() Service {
	return h.impl
}

// Operations returns the names of the operations the handle exposes.
func (h *Handle) Operations() []string {
	return OperationNames(h.Service)
}

// Invoke runs the named operation synchronously.
func (h *Handle) Invoke(ctx context.Context, name string, args Args) (any, error) {
	op, err := LookupOperation(h.Service, name)
	if err != nil {
		return nil, err
	}
	return op.Invoke(ctx, h.impl, args)
}

// Factory resolves (provider, service, config) to service handles.
type Factory struct {
	registry *Registry
	cache    *ClientCache
	policy   RetryPolicy
	clock    clock.Clock
	logger   *zap.Logger
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithCache sets the client cache. The caller owns its lifecycle.
func WithCache(c *ClientCache) FactoryOption {
	return func(f *Factory) {
		f.cache = c
	}
}

// WithRetryPolicy sets the retry policy applied to every operation.
func WithRetryPolicy(p RetryPolicy) FactoryOption {
	return func(f *Factory) {
		f.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = l
	}
}

// WithClock sets the clock used by retries and the default cache.
func WithClock(c clock.Clock) FactoryOption {
	return func(f *Factory) {
		f.clock = c
	}
}

// NewFactory creates a factory over registry.
func NewFactory(registry *Registry, opts ...FactoryOption) *Factory {
	f := &Factory{
		registry: registry,
		policy:   DefaultRetryPolicy(),
		clock:    clock.WallClock,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.cache == nil {
		f.cache = NewClientCache(WithCacheClock(f.clock), WithCacheLogger(f.logger))
	}
	if f.policy.Clock == nil {
		f.policy.Clock = f.clock
	}
	if f.policy.Logger == nil {
		f.policy.Logger = f.logger
	}
	return f
}

// Registry returns the registration table.
func (f *Factory) Registry() *Registry {
	return f.registry
}

// Cache returns the client cache.
func (f *Factory) Cache() *ClientCache {
	return f.cache
}

// Providers returns the registered providers.
func (f *Factory) Providers() []CloudProvider {
	return f.registry.Providers()
}

// Services returns the services registered for provider.
func (f *Factory) Services(provider CloudProvider) ([]ServiceName, error) {
	return f.registry.Services(provider)
}

// ClearCache evicts every cached client.
func (f *Factory) ClearCache() {
	f.cache.Clear()
}

// Resolve returns a handle for service of provider configured by raw.
//
// The provider is checked first, then the service, then the
// configuration, so an unknown provider fails without validating
// anything or constructing a client.
func (f *Factory) Resolve(ctx context.Context, provider CloudProvider, service ServiceName, raw map[string]string) (*Handle, error) {
	reg, binding, err := f.registry.Lookup(provider, service)
	if err != nil {
		return nil, err
	}

	cfg, err := reg.Schema.Validate(ctx, raw)
	if err != nil {
		return nil, err
	}

	key := NewCacheKey(provider, service, cfg)
	tr := reg.translator(service)
	entry, err := f.cache.GetOrCreate(ctx, key, func(ctx context.Context) (any, error) {
		f.logger.Debug("constructing client",
			zap.String("provider", string(provider)),
			zap.String("service", string(service)),
		)
		return binding.NewClient(ctx, cfg)
	})
	if err != nil {
		return nil, tr.Translate(err, Scope{Domain: service, Operation: "connect"})
	}

	impl, err := binding.Bind(entry.Client, cfg)
	if err != nil {
		return nil, tr.Translate(err, Scope{Domain: service, Operation: "bind"})
	}

	wrapped, err := wrapService(service, impl, guard{domain: service, policy: f.policy, translator: tr})
	if err != nil {
		return nil, err
	}
	return &Handle{Provider: provider, Service: service, Entry: entry, impl: wrapped}, nil
}

func resolveAs[S Service](ctx context.Context, f *Factory, provider CloudProvider, service ServiceName, raw map[string]string) (S, error) {
	var zero S
	h, err := f.Resolve(ctx, provider, service, raw)
	if err != nil {
		return zero, err
	}
	s, ok := h.impl.(S)
	if !ok {
		return zero, Errorf(KindUnsupportedService, "service %q has unexpected implementation %T", service, h.impl)
	}
	return s, nil
}

// Secrets resolves the secrets service.
func (f *Factory) Secrets(ctx context.Context, provider CloudProvider, raw map[string]string) (Secrets, error) {
	return resolveAs[Secrets](ctx, f, provider, ServiceSecrets, raw)
}

// Storage resolves the storage service.
func (f *Factory) Storage(ctx context.Context, provider CloudProvider, raw map[string]string) (Storage, error) {
	return resolveAs[Storage](ctx, f, provider, ServiceStorage, raw)
}

// Queue resolves the queue service.
func (f *Factory) Queue(ctx context.Context, provider CloudProvider, raw map[string]string) (Queue, error) {
	return resolveAs[Queue](ctx, f, provider, ServiceQueue, raw)
}

// Compute resolves the compute service.
func (f *Factory) Compute(ctx context.Context, provider CloudProvider, raw map[string]string) (Compute, error) {
	return resolveAs[Compute](ctx, f, provider, ServiceCompute, raw)
}

// DNS resolves the DNS service.
func (f *Factory) DNS(ctx context.Context, provider CloudProvider, raw map[string]string) (DNS, error) {
	return resolveAs[DNS](ctx, f, provider, ServiceDNS, raw)
}

// IAM resolves the IAM service.
func (f *Factory) IAM(ctx context.Context, provider CloudProvider, raw map[string]string) (IAM, error) {
	return resolveAs[IAM](ctx, f, provider, ServiceIAM, raw)
}

// Logging resolves the logging service.
func (f *Factory) Logging(ctx context.Context, provider CloudProvider, raw map[string]string) (Logging, error) {
	return resolveAs[Logging](ctx, f, provider, ServiceLogging, raw)
}
