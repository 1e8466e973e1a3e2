package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bdubs00/pscale-context-server/internal/catalog"
)

// Default returns the configuration used when no file is given: the stub
// backend and no policy.
func Default() *Config {
	return &Config{
		Version: "1",
		Backend: Backend{Kind: BackendStub},
	}
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides organization and database defaults from
// PLANETSCALE_ORG and PLANETSCALE_DATABASE.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup("PLANETSCALE_ORG"); ok && v != "" {
		cfg.Organization = v
	}
	if v, ok := lookup("PLANETSCALE_DATABASE"); ok && v != "" {
		cfg.Database = v
	}
}

// Validate checks that a Config has all required fields and valid values.
func Validate(cfg *Config) error {
	if cfg.Version == "" {
		return fmt.Errorf("missing required field: version")
	}

	switch cfg.Backend.Kind {
	case BackendStub, BackendCLI:
	default:
		return fmt.Errorf("backend: kind must be %q or %q, got %q", BackendStub, BackendCLI, cfg.Backend.Kind)
	}
	if cfg.Backend.Timeout < 0 {
		return fmt.Errorf("backend: timeout must not be negative")
	}
	if cfg.Backend.RateLimit < 0 {
		return fmt.Errorf("backend: rate_limit must not be negative")
	}

	if cfg.Secrets != nil {
		for name, ref := range cfg.Secrets.Env {
			if strings.HasPrefix(ref, "vault:") && cfg.Vault == nil {
				return fmt.Errorf("secrets: %s references vault but no vault block is configured", name)
			}
		}
	}

	if cfg.Vault != nil {
		if cfg.Vault.Address == "" {
			return fmt.Errorf("vault: missing required field: address")
		}
		if m := cfg.Vault.Auth.Method; m != "token" && m != "approle" {
			return fmt.Errorf("vault: auth method must be \"token\" or \"approle\", got %q", m)
		}
	}

	if p := cfg.Policy; p != nil {
		if p.Default != "deny" && p.Default != "allow" {
			return fmt.Errorf("policy: default must be \"deny\" or \"allow\", got %q", p.Default)
		}
		for i, rule := range p.Rules {
			if rule.Function == "" {
				return fmt.Errorf("policy: rule %d: missing required field: function", i)
			}
			if _, ok := catalog.Lookup(rule.Function); !ok {
				return fmt.Errorf("policy: rule %d: unknown function %q", i, rule.Function)
			}
		}
	}
	return nil
}
