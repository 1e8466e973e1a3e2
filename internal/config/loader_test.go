package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadValidConfig(t *testing.T) {
	yaml := `
version: "1"
organization: acme
backend:
  kind: cli
  binary: /usr/local/bin/pscale
  timeout: 45s
  rate_limit: 2
  burst: 3
vault:
  address: https://vault.internal:8200
  auth:
    method: token
secrets:
  env:
    PLANETSCALE_SERVICE_TOKEN: "vault:secret/pscale#token"
    PLANETSCALE_SERVICE_TOKEN_ID: "env:PS_TOKEN_ID"
policy:
  default: allow
  rules:
    - function: run_query
      allow: false
      when:
        database: "prod-*"
audit:
  redact: [query]
`
	path := writeTempFile(t, yaml)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, "acme", cfg.Organization)
	assert.Equal(t, BackendCLI, cfg.Backend.Kind)
	assert.Equal(t, "/usr/local/bin/pscale", cfg.Backend.Binary)
	assert.Equal(t, 45*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 2.0, cfg.Backend.RateLimit)
	assert.Equal(t, 3, cfg.Backend.Burst)
	require.NotNil(t, cfg.Vault)
	assert.Equal(t, "token", cfg.Vault.Auth.Method)
	assert.Equal(t, "vault:secret/pscale#token", cfg.Secrets.Env["PLANETSCALE_SERVICE_TOKEN"])
	require.NotNil(t, cfg.Policy)
	require.Len(t, cfg.Policy.Rules, 1)
	assert.Equal(t, "prod-*", cfg.Policy.Rules[0].When["database"])
	assert.Equal(t, []string{"query"}, cfg.Audit.Redact)
}

func TestLoadKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeTempFile(t, `version: "1"`))
	require.NoError(t, err)
	assert.Equal(t, BackendStub, cfg.Backend.Kind)
	assert.Nil(t, cfg.Policy)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeTempFile(t, "{{invalid yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	cfg.Organization = "from-file"
	env := map[string]string{"PLANETSCALE_ORG": "from-env", "PLANETSCALE_DATABASE": "shop"}

	ApplyEnv(cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.Equal(t, "from-env", cfg.Organization)
	assert.Equal(t, "shop", cfg.Database)

	ApplyEnv(cfg, func(string) (string, bool) { return "", false })
	assert.Equal(t, "from-env", cfg.Organization)
}

func TestValidateConfig(t *testing.T) {
	stub := Backend{Kind: BackendStub}
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg:  Config{Version: "1", Backend: stub},
		},
		{
			name:    "missing version",
			cfg:     Config{Backend: stub},
			wantErr: true,
		},
		{
			name:    "unknown backend",
			cfg:     Config{Version: "1", Backend: Backend{Kind: "http"}},
			wantErr: true,
		},
		{
			name:    "negative timeout",
			cfg:     Config{Version: "1", Backend: Backend{Kind: BackendCLI, Timeout: -time.Second}},
			wantErr: true,
		},
		{
			name:    "negative rate limit",
			cfg:     Config{Version: "1", Backend: Backend{Kind: BackendCLI, RateLimit: -1}},
			wantErr: true,
		},
		{
			name: "vault secret without vault",
			cfg: Config{
				Version: "1",
				Backend: stub,
				Secrets: &SecretsConfig{Env: map[string]string{"T": "vault:secret/x#y"}},
			},
			wantErr: true,
		},
		{
			name: "vault without address",
			cfg: Config{
				Version: "1",
				Backend: stub,
				Vault:   &VaultConfig{Auth: AuthConfig{Method: "token"}},
			},
			wantErr: true,
		},
		{
			name: "vault bad auth method",
			cfg: Config{
				Version: "1",
				Backend: stub,
				Vault:   &VaultConfig{Address: "http://v", Auth: AuthConfig{Method: "ldap"}},
			},
			wantErr: true,
		},
		{
			name: "invalid policy default",
			cfg: Config{
				Version: "1",
				Backend: stub,
				Policy:  &Policy{Default: "maybe"},
			},
			wantErr: true,
		},
		{
			name: "rule without function",
			cfg: Config{
				Version: "1",
				Backend: stub,
				Policy:  &Policy{Default: "deny", Rules: []Rule{{Allow: true}}},
			},
			wantErr: true,
		},
		{
			name: "rule with unknown function",
			cfg: Config{
				Version: "1",
				Backend: stub,
				Policy:  &Policy{Default: "deny", Rules: []Rule{{Function: "drop_database", Allow: true}}},
			},
			wantErr: true,
		},
		{
			name: "valid policy",
			cfg: Config{
				Version: "1",
				Backend: stub,
				Policy:  &Policy{Default: "deny", Rules: []Rule{{Function: "list_databases", Allow: true}}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
