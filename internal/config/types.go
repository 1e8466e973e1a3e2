package config

import "time"

// Config is the top-level pscale-context-server YAML structure.
type Config struct {
	Version      string         `yaml:"version"`
	Name         string         `yaml:"name,omitempty"`
	Description  string         `yaml:"description,omitempty"`
	Organization string         `yaml:"organization,omitempty"`
	Database     string         `yaml:"database,omitempty"`
	Backend      Backend        `yaml:"backend"`
	Vault        *VaultConfig   `yaml:"vault,omitempty"`
	Secrets      *SecretsConfig `yaml:"secrets,omitempty"`
	Policy       *Policy        `yaml:"policy,omitempty"`
	Audit        AuditConfig    `yaml:"audit,omitempty"`
}

// Backend selects and tunes the data source behind the operations.
type Backend struct {
	Kind      string        `yaml:"kind"`
	Binary    string        `yaml:"binary,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	RateLimit float64       `yaml:"rate_limit,omitempty"`
	Burst     int           `yaml:"burst,omitempty"`
}

// VaultConfig holds Vault connection and auth settings.
type VaultConfig struct {
	Address string     `yaml:"address"`
	TLS     TLSConfig  `yaml:"tls,omitempty"`
	Auth    AuthConfig `yaml:"auth"`
}

type TLSConfig struct {
	CACert     string `yaml:"ca_cert,omitempty"`
	SkipVerify bool   `yaml:"skip_verify,omitempty"`
}

type AuthConfig struct {
	Method       string `yaml:"method"`
	RoleIDPath   string `yaml:"role_id_path,omitempty"`
	SecretIDPath string `yaml:"secret_id_path,omitempty"`
}

// SecretsConfig maps child environment variable names to secret references
// such as "env:PS_TOKEN" or "vault:secret/pscale#token".
type SecretsConfig struct {
	Env map[string]string `yaml:"env,omitempty"`
}

// Policy restricts which operations may run.
type Policy struct {
	Default string `yaml:"default"`
	Rules   []Rule `yaml:"rules,omitempty"`
}

// Rule defines a single policy rule for an operation.
type Rule struct {
	Function string            `yaml:"function"`
	Allow    bool              `yaml:"allow"`
	When     map[string]string `yaml:"when,omitempty"`
}

// AuditConfig lists argument keys whose values are redacted in audit records.
type AuditConfig struct {
	Redact []string `yaml:"redact,omitempty"`
}

const (
	BackendStub = "stub"
	BackendCLI  = "cli"
)
