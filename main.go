// Package main is the entry point for the cloudjack CLI.
//
// The CLI resolves one service of one provider through the Factory and
// invokes a single named operation on it:
//
//	cloudjack --provider aws --service storage list_buckets
//	cloudjack --provider gcp --service secret_manager get_secret db-password --config '{"project_id":"p"}'
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/anirudhbiyani/cloudjack/pkg/cloudjack"
	"github.com/anirudhbiyani/cloudjack/pkg/providers/all"
)

const (
	exitOK          = 0
	exitError       = 1
	exitConfigError = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	provider string
	service  string
	config   string
	kwargs   string
	debug    bool
	timeout  time.Duration
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := gnuflag.NewFlagSet("cloudjack", gnuflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.provider, "provider", "", "cloud provider (aws, gcp)")
	fs.StringVar(&opts.provider, "p", "", "")
	fs.StringVar(&opts.service, "service", "", "service domain (secret_manager, storage, queue, compute, dns, iam, logging)")
	fs.StringVar(&opts.service, "s", "", "")
	fs.StringVar(&opts.config, "config", "", "provider configuration as a JSON object")
	fs.StringVar(&opts.kwargs, "kwargs", "", "keyword arguments as a JSON object")
	fs.BoolVar(&opts.debug, "debug", false, "log at debug level")
	fs.DurationVar(&opts.timeout, "timeout", 0, "overall deadline, e.g. 30s (0 means none)")
	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(true, args); err != nil {
		if errors.Is(err, gnuflag.ErrHelp) {
			return exitOK
		}
		return exitConfigError
	}
	rest := fs.Args()

	switch {
	case len(rest) > 0 && rest[0] == "providers":
		return report(stderr, cmdProviders(stdout))
	case len(rest) > 0 && rest[0] == "operations":
		return report(stderr, cmdOperations(stdout, rest[1:]))
	case len(rest) > 0 && rest[0] == "help":
		printUsage(stdout, fs)
		return exitOK
	}

	logger, err := newLogger(opts.debug)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	defer func() { _ = logger.Sync() }()

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}
	return report(stderr, invoke(ctx, logger, opts, rest, stdout))
}

func printUsage(w io.Writer, fs *gnuflag.FlagSet) {
	fmt.Fprint(w, `cloudjack - one interface over several cloud providers

Usage:
  cloudjack --provider <id> --service <name> <operation> [args...] [--config json] [--kwargs json]
  cloudjack providers
  cloudjack operations [service]

Options:
`)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Retry and worker defaults are read from %s, %s, %s,
%s, %s and %s.
`, cloudjack.EnvMaxAttempts, cloudjack.EnvBaseDelay, cloudjack.EnvMaxDelay,
		cloudjack.EnvAttemptTimeout, cloudjack.EnvWorkers, cloudjack.EnvRetryUnknown)
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// report prints err and maps it to an exit code.
func report(stderr io.Writer, err error) int {
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, cloudjack.ErrConfig),
		errors.Is(err, cloudjack.ErrUnsupportedProvider),
		errors.Is(err, cloudjack.ErrUnsupportedService):
		return exitConfigError
	}
	return exitError
}

func invoke(ctx context.Context, logger *zap.Logger, opts options, rest []string, stdout io.Writer) error {
	if opts.provider == "" || opts.service == "" {
		return cloudjack.Errorf(cloudjack.KindConfig, "--provider and --service are required")
	}
	if len(rest) == 0 {
		return cloudjack.Errorf(cloudjack.KindConfig, "no operation given for service %q", opts.service)
	}

	raw, err := parseConfig(opts.config)
	if err != nil {
		return err
	}
	kwargs, err := parseKwargs(opts.kwargs)
	if err != nil {
		return err
	}
	settings, err := cloudjack.LoadSettings(nil)
	if err != nil {
		return err
	}

	factory := cloudjack.NewFactory(all.Registry(),
		cloudjack.WithLogger(logger),
		cloudjack.WithRetryPolicy(settings.Retry),
	)
	defer func() {
		if err := factory.Cache().Close(); err != nil {
			logger.Warn("closing clients", zap.Error(err))
		}
	}()

	provider := cloudjack.CloudProvider(strings.ToLower(opts.provider))
	service := cloudjack.ServiceName(strings.ToLower(opts.service))
	h, err := factory.Resolve(ctx, provider, service, raw)
	if err != nil {
		return err
	}

	operation := rest[0]
	logger.Debug("invoking",
		zap.String("provider", string(provider)),
		zap.String("service", string(service)),
		zap.String("operation", operation),
	)
	executor := cloudjack.NewExecutor(cloudjack.WithSettings(settings), cloudjack.WithExecutorLogger(logger))
	defer func() { _ = executor.Close() }()

	pending := cloudjack.InvokeAsync(ctx, executor, h, operation, cloudjack.Args{Positional: rest[1:], Keyword: kwargs})
	result, err := pending.Wait(ctx)
	if err != nil {
		pending.Cancel()
		return err
	}
	return printResult(stdout, result)
}

// parseConfig decodes a JSON object into configuration values. Non-string
// scalars are accepted and rendered as JSON.
func parseConfig(s string) (map[string]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return nil, cloudjack.Errorf(cloudjack.KindConfig, "--config must be a JSON object: %v", err)
	}
	raw := make(map[string]string, len(decoded))
	for k, v := range decoded {
		switch v := v.(type) {
		case string:
			raw[k] = v
		case nil:
		case map[string]any, []any:
			return nil, cloudjack.Errorf(cloudjack.KindConfig, "--config field %q must be a scalar", k)
		default:
			b, _ := json.Marshal(v)
			raw[k] = string(b)
		}
	}
	return raw, nil
}

func parseKwargs(s string) (map[string]any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var kwargs map[string]any
	if err := json.Unmarshal([]byte(s), &kwargs); err != nil {
		return nil, cloudjack.Errorf(cloudjack.KindInvalidArgument, "--kwargs must be a JSON object: %v", err)
	}
	return kwargs, nil
}

func printResult(w io.Writer, result any) error {
	switch v := result.(type) {
	case nil:
		_, err := fmt.Fprintln(w, "OK")
		return err
	case []byte:
		_, err := w.Write(v)
		return err
	case string:
		_, err := fmt.Fprintln(w, v)
		return err
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errors.Annotate(err, "encoding result")
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func cmdProviders(w io.Writer) error {
	reg := all.Registry()
	fmt.Fprintf(w, "%-10s %s\n", "PROVIDER", "SERVICES")
	for _, p := range reg.Providers() {
		services, err := reg.Services(p)
		if err != nil {
			return err
		}
		names := make([]string, len(services))
		for i, s := range services {
			names[i] = string(s)
		}
		fmt.Fprintf(w, "%-10s %s\n", p, strings.Join(names, ", "))
	}
	return nil
}

func cmdOperations(w io.Writer, args []string) error {
	services := cloudjack.ServiceNames()
	if len(args) > 0 {
		services = []cloudjack.ServiceName{cloudjack.ServiceName(strings.ToLower(args[0]))}
	}
	for _, svc := range services {
		names := cloudjack.OperationNames(svc)
		if len(names) == 0 {
			return cloudjack.Errorf(cloudjack.KindUnsupportedService, "unknown service %q", svc)
		}
		fmt.Fprintf(w, "%s:\n", svc)
		for _, n := range names {
			fmt.Fprintf(w, "  %s\n", n)
		}
	}
	return nil
}
