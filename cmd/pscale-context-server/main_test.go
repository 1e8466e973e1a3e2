package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdubs00/pscale-context-server/internal/backend"
	"github.com/bdubs00/pscale-context-server/internal/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PLANETSCALE_ORG", "acme")
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.BackendStub, cfg.Backend.Kind)
	assert.Equal(t, "acme", cfg.Organization)
}

func TestBuildBackend(t *testing.T) {
	b, err := buildBackend(context.Background(), config.Default(), nil)
	require.NoError(t, err)
	assert.IsType(t, &backend.Stub{}, b)

	t.Setenv("PS_TOKEN", "tok")
	cfg := config.Default()
	cfg.Backend.Kind = config.BackendCLI
	cfg.Secrets = &config.SecretsConfig{Env: map[string]string{"PLANETSCALE_SERVICE_TOKEN": "env:PS_TOKEN"}}
	b, err = buildBackend(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &backend.CLI{}, b)

	cfg.Secrets.Env["OTHER"] = "env:DEFINITELY_UNSET_FOR_TEST"
	_, err = buildBackend(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestBuildBackendInjectsVaultSecret(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	vault := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/secret/pscale" || r.Header.Get("X-Vault-Token") != "s.root" {
			w.WriteHeader(http.StatusForbidden)
			io.WriteString(w, `{"errors":["permission denied"]}`)
			return
		}
		io.WriteString(w, `{"data":{"data":{"service_token":"pscale_tkn_vault"},"metadata":{"version":1}}}`)
	}))
	defer vault.Close()
	t.Setenv("VAULT_TOKEN", "s.root")

	bin := filepath.Join(t.TempDir(), "pscale")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\nprintf '{\"token\":\"%s\"}\\n' \"$PLANETSCALE_SERVICE_TOKEN\"\n"), 0755))

	cfg := config.Default()
	cfg.Backend.Kind = config.BackendCLI
	cfg.Backend.Binary = bin
	cfg.Vault = &config.VaultConfig{Address: vault.URL, Auth: config.AuthConfig{Method: "token"}}
	cfg.Secrets = &config.SecretsConfig{Env: map[string]string{
		"PLANETSCALE_SERVICE_TOKEN": "vault:secret/pscale#service_token",
	}}

	b, err := buildBackend(context.Background(), cfg, nil)
	require.NoError(t, err)

	result, err := b.Execute(context.Background(), "list_databases", nil)
	require.NoError(t, err)
	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"pscale_tkn_vault"}`, string(data))
}

func TestFunctionsCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: "1"
name: Acme
policy:
  default: deny
  rules:
    - function: list_databases
      allow: true
`), 0644))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"functions", "--config", path})
	require.NoError(t, root.Execute())

	var caps struct {
		Name      string `json:"name"`
		Functions []struct {
			Name string `json:"name"`
		} `json:"functions"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &caps))
	assert.Equal(t, "Acme", caps.Name)
	require.Len(t, caps.Functions, 1)
	assert.Equal(t, "list_databases", caps.Functions[0].Name)
}

func TestValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"1\"\nbackend:\n  kind: ftp\n"), 0644))

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"validate", "--config", path})
	assert.Error(t, root.Execute())
}

func TestCommandsDoNotShareFlagState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: "1"
policy:
  default: deny
  rules:
    - function: list_databases
      allow: true
`), 0644))

	countFunctions := func(args ...string) int {
		var out bytes.Buffer
		root := newRootCmd()
		root.SetOut(&out)
		root.SetArgs(args)
		require.NoError(t, root.Execute())

		var caps struct {
			Functions []json.RawMessage `json:"functions"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &caps))
		return len(caps.Functions)
	}

	assert.Equal(t, 1, countFunctions("functions", "--config", path))
	assert.Equal(t, 4, countFunctions("functions"), "--config from a previous command must not carry over")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"validate", "--config", path})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), path+": ok")

	root = newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"validate"})
	assert.Error(t, root.Execute(), "validate requires its own --config")
}
