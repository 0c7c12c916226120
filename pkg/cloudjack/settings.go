package cloudjack

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by LoadSettings.
const (
	EnvMaxAttempts    = "CLOUDJACK_MAX_ATTEMPTS"
	EnvBaseDelay      = "CLOUDJACK_BASE_DELAY"
	EnvMaxDelay       = "CLOUDJACK_MAX_DELAY"
	EnvAttemptTimeout = "CLOUDJACK_ATTEMPT_TIMEOUT"
	EnvWorkers        = "CLOUDJACK_WORKERS"
	EnvRetryUnknown   = "CLOUDJACK_RETRY_UNKNOWN"
)

// Settings are process-level defaults for retries and async execution.
type Settings struct {
	Retry   RetryPolicy
	Workers int
}

// LoadSettings reads settings from the environment. Unset variables keep
// their defaults; malformed ones fail with a ConfigError.
func LoadSettings(lookup func(string) (string, bool)) (Settings, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	s := Settings{Retry: DefaultRetryPolicy(), Workers: DefaultWorkers}

	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvMaxAttempts); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return s, Errorf(KindConfig, "%s must be a positive integer, got %q", EnvMaxAttempts, v)
		}
		s.Retry.MaxAttempts = n
	}
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{EnvBaseDelay, &s.Retry.BaseDelay},
		{EnvMaxDelay, &s.Retry.MaxDelay},
		{EnvAttemptTimeout, &s.Retry.AttemptTimeout},
	}
	for _, d := range durations {
		v, ok := get(d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed < 0 {
			return s, Errorf(KindConfig, "%s must be a non-negative duration, got %q", d.key, v)
		}
		*d.dst = parsed
	}
	if v, ok := get(EnvWorkers); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return s, Errorf(KindConfig, "%s must be a positive integer, got %q", EnvWorkers, v)
		}
		s.Workers = n
	}
	if v, ok := get(EnvRetryUnknown); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return s, Errorf(KindConfig, "%s must be a boolean, got %q", EnvRetryUnknown, v)
		}
		s.Retry.RetryUnknown = b
	}
	return s, nil
}
