package cloudjack

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// FieldSpec describes one recognized configuration field.
type FieldSpec struct {
	// Name is the field key accepted in raw configuration.
	Name string

	// Env lists environment variables consulted, in order, when the field
	// is not given explicitly.
	Env []string

	// Required fields must resolve to a non-empty value.
	Required bool

	// Sensitive fields are redacted by Config.String.
	Sensitive bool
}

// ConfigSchema is the closed set of fields a provider accepts.
type ConfigSchema struct {
	// Provider is the provider the schema belongs to.
	Provider CloudProvider

	// Fields are the recognized fields.
	Fields []FieldSpec

	// Check runs after fields are resolved. It performs eager checks such
	// as loading a credentials file. Any error becomes a ConfigError.
	Check func(ctx context.Context, cfg *Config) error

	// LookupEnv resolves environment variables. Defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

// Config is a validated, immutable provider configuration. It is safe for
// concurrent use.
type Config struct {
	provider  CloudProvider
	values    map[string]string
	sensitive map[string]bool
}

// Validate builds a Config from raw fields. Resolution order per field is
// explicit value, then each environment variable in order. Unknown keys,
// missing required fields and failed checks all fail with a ConfigError.
func (s ConfigSchema) Validate(ctx context.Context, raw map[string]string) (*Config, error) {
	known := make(map[string]FieldSpec, len(s.Fields))
	for _, f := range s.Fields {
		known[f.Name] = f
	}

	var unknown []string
	for k := range raw {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, Errorf(KindConfig, "%s config: unknown field(s): %s", s.Provider, strings.Join(unknown, ", "))
	}

	lookup := s.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := &Config{
		provider:  s.Provider,
		values:    make(map[string]string, len(s.Fields)),
		sensitive: make(map[string]bool),
	}
	for _, f := range s.Fields {
		v := strings.TrimSpace(raw[f.Name])
		if v == "" {
			for _, env := range f.Env {
				if ev, ok := lookup(env); ok && strings.TrimSpace(ev) != "" {
					v = strings.TrimSpace(ev)
					break
				}
			}
		}
		if v == "" && f.Required {
			return nil, Errorf(KindConfig, "%s config: %s is required%s", s.Provider, f.Name, envHint(f.Env))
		}
		if v != "" {
			cfg.values[f.Name] = v
		}
		if f.Sensitive {
			cfg.sensitive[f.Name] = true
		}
	}

	if s.Check != nil {
		if err := s.Check(ctx, cfg); err != nil {
			if IsConfig(err) {
				return nil, err
			}
			return nil, Errorf(KindConfig, "%s config: %v", s.Provider, err)
		}
	}
	return cfg, nil
}

func envHint(env []string) string {
	if len(env) == 0 {
		return ""
	}
	return fmt.Sprintf(" (set it explicitly or via %s)", strings.Join(env, " / "))
}

// Provider returns the provider the configuration is for.
func (c *Config) Provider() CloudProvider {
	return c.provider
}

// Get returns the value of a field, or "" if unset.
func (c *Config) Get(name string) string {
	return c.values[name]
}

// Lookup returns the value of a field and whether it is set.
func (c *Config) Lookup(name string) (string, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Fields returns a copy of the resolved fields.
func (c *Config) Fields() map[string]string {
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// String renders the configuration with sensitive fields redacted.
func (c *Config) String() string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := c.values[k]
		if c.sensitive[k] {
			v = "***"
		}
		parts = append(parts, k+"="+v)
	}
	return fmt.Sprintf("%s{%s}", c.provider, strings.Join(parts, " "))
}

// canonical is the insertion-order independent serialization of the
// resolved fields. encoding/json sorts map keys.
func (c *Config) canonical() []byte {
	b, _ := json.Marshal(c.values)
	return b
}
