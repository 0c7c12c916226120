// Package cloudjack provides one interface over the native SDKs of several
// cloud providers.
//
// # Overview
//
// Each service domain (secrets, storage, queue, compute, DNS, IAM,
// logging) is a Go interface with a fixed operation set. Providers
// implement those interfaces and register them in a static table; the
// Factory resolves a (provider, service, configuration) triple to a
// handle whose every operation is retried and error-normalized.
//
// # Core Concepts
//
// ## Configuration
//
// A ConfigSchema lists the closed set of fields a provider accepts.
// Validate resolves each field from the explicit value, then from an
// ordered list of environment variables, and fails with a ConfigError on
// unknown fields, missing required fields or unloadable credentials.
// Validation happens once, before any client is constructed.
//
// ## Client cache
//
// ClientCache holds one live client per CacheKey. The key is derived from
// the provider, the service and a digest of the canonical configuration,
// so equal configurations share a client regardless of field order.
// Concurrent misses for one key perform a single construction. Entries
// are kept until Clear or Close; there is no eviction policy.
//
// ## Errors
//
// Every wrapped operation fails with a *Error. Its Kind is one of a
// closed set (KindNotFound, KindThrottled, ...) and its Resource names
// the domain detail, so errors.Is(err, ErrBucketNotFound) and
// errors.Is(err, ErrNotFound) both hold for a missing bucket. Provider
// identity never reaches the error contract; the native message is kept
// in ProviderMessage.
//
// ## Retries
//
// RetryPolicy retries KindThrottled and KindUnavailable with exponential
// backoff, min(BaseDelay*2^(attempt-1), MaxDelay) plus jitter. Every
// other kind fails after one attempt. KindUnknown is retried only when
// RetryUnknown is set.
//
// ## Async execution
//
// Executor runs operations on a fixed worker pool. Submit and
// InvokeAsync return a Pending result without blocking the caller.
//
// # Usage
//
//	factory := cloudjack.NewFactory(all.Registry())
//
//	store, err := factory.Storage(ctx, cloudjack.ProviderAWS, map[string]string{
//	    "region_name": "us-east-1",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := store.CreateBucket(ctx, "my-bucket"); errors.Is(err, cloudjack.ErrBucketAlreadyExists) {
//	    // already there
//	}
//
// Name-addressed invocation, used by the command-line tool:
//
//	h, err := factory.Resolve(ctx, cloudjack.ProviderGCP, cloudjack.ServiceSecrets, cfg)
//	if err != nil {
//	    return err
//	}
//	value, err := h.Invoke(ctx, "get_secret", cloudjack.Args{Positional: []string{"db-password"}})
//
// Asynchronously:
//
//	exec := cloudjack.NewExecutor(cloudjack.WithWorkers(4))
//	defer exec.Close()
//
//	pending := cloudjack.InvokeAsync(ctx, exec, h, "list_secrets", cloudjack.Args{})
//	names, err := pending.Wait(ctx)
package cloudjack
