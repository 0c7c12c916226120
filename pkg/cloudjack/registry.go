package cloudjack

import (
	"context"
	"fmt"
	"sort"
)

// ServiceBinding is the registration of one service for one provider: how
// to build its client and how to bind a client into the domain service.
type ServiceBinding struct {
	// NewClient builds the provider-native client handle.
	NewClient func(ctx context.Context, cfg *Config) (any, error)

	// Bind wraps a client into the domain implementation.
	Bind func(client any, cfg *Config) (Service, error)

	// Errors are service-specific signals, overlaid on the provider table.
	Errors ErrorTable
}

// NewServiceBinding builds a type-safe ServiceBinding.
func NewServiceBinding[C any, S Service](
	newClient func(ctx context.Context, cfg *Config) (C, error),
	bind func(client C, cfg *Config) S,
	errs ErrorTable,
) ServiceBinding {
	return ServiceBinding{
		NewClient: func(ctx context.Context, cfg *Config) (any, error) {
			return newClient(ctx, cfg)
		},
		Bind: func(client any, cfg *Config) (Service, error) {
			c, ok := client.(C)
			if !ok {
				return nil, Errorf(KindUnknown, "cached client has type %T, want %T", client, *new(C))
			}
			return bind(c, cfg), nil
		},
		Errors: errs,
	}
}

// Registration is everything a provider contributes to the registry.
type Registration struct {
	// Provider is the provider identifier.
	Provider CloudProvider

	// Schema validates the provider's configuration.
	Schema ConfigSchema

	// Classify extracts signals from the provider's native errors.
	Classify Classifier

	// Errors is the provider-wide signal table.
	Errors ErrorTable

	// Services are the services the provider implements.
	Services map[ServiceName]ServiceBinding
}

// translator returns the translator for one of the provider's services.
func (r Registration) translator(service ServiceName) Translator {
	table := r.Errors
	if b, ok := r.Services[service]; ok && len(b.Errors) > 0 {
		table = table.Merge(b.Errors)
	}
	return Translator{Classify: r.Classify, Table: table}
}

// Registry is the static table of providers and their services. It is
// built once and read-only afterwards.
type Registry struct {
	providers map[CloudProvider]Registration
}

// NewRegistry builds a registry from registrations.
func NewRegistry(regs ...Registration) (*Registry, error) {
	r := &Registry{providers: make(map[CloudProvider]Registration, len(regs))}
	for _, reg := range regs {
		if reg.Provider == "" {
			return nil, fmt.Errorf("registration without a provider")
		}
		if _, exists := r.providers[reg.Provider]; exists {
			return nil, fmt.Errorf("provider already registered: %s", reg.Provider)
		}
		for name, b := range reg.Services {
			if b.NewClient == nil || b.Bind == nil {
				return nil, fmt.Errorf("provider %s: service %s is missing a constructor", reg.Provider, name)
			}
		}
		if reg.Schema.Provider == "" {
			reg.Schema.Provider = reg.Provider
		}
		r.providers[reg.Provider] = reg
	}
	return r, nil
}

// MustNewRegistry is like NewRegistry but panics on an invalid table.
func MustNewRegistry(regs ...Registration) *Registry {
	r, err := NewRegistry(regs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Providers returns the registered providers, sorted.
func (r *Registry) Providers() []CloudProvider {
	out := make([]CloudProvider, 0, len(r.providers))
	for p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Services returns the services registered for provider, sorted.
func (r *Registry) Services(provider CloudProvider) ([]ServiceName, error) {
	reg, err := r.provider(provider)
	if err != nil {
		return nil, err
	}
	out := make([]ServiceName, 0, len(reg.Services))
	for s := range reg.Services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Lookup resolves a provider and a service. The provider is checked first.
func (r *Registry) Lookup(provider CloudProvider, service ServiceName) (Registration, ServiceBinding, error) {
	reg, err := r.provider(provider)
	if err != nil {
		return Registration{}, ServiceBinding{}, err
	}
	b, ok := reg.Services[service]
	if !ok {
		return Registration{}, ServiceBinding{}, Errorf(KindUnsupportedService,
			"service %q is not supported for provider %q", service, provider).WithDomain(service)
	}
	return reg, b, nil
}

// ValidateConfig validates raw configuration for provider.
func (r *Registry) ValidateConfig(ctx context.Context, provider CloudProvider, raw map[string]string) (*Config, error) {
	reg, err := r.provider(provider)
	if err != nil {
		return nil, err
	}
	return reg.Schema.Validate(ctx, raw)
}

// Translate maps a native error of provider onto the taxonomy using the
// provider-wide table.
func (r *Registry) Translate(provider CloudProvider, err error) *Error {
	reg, lookupErr := r.provider(provider)
	if lookupErr != nil {
		return Translator{}.Translate(err, Scope{})
	}
	return Translator{Classify: reg.Classify, Table: reg.Errors}.Translate(err, Scope{})
}

func (r *Registry) provider(p CloudProvider) (Registration, error) {
	reg, ok := r.providers[p]
	if !ok {
		return Registration{}, Errorf(KindUnsupportedProvider, "provider %q is not supported", p)
	}
	return reg, nil
}
