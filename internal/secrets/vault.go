package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	vaultapi "github.com/hashicorp/vault/api"
	approle "github.com/hashicorp/vault/api/auth/approle"
	"go.uber.org/zap"

	"github.com/bdubs00/pscale-context-server/internal/config"
)

// VaultProvider fetches secrets such as a PlanetScale service token from
// HashiCorp Vault.
type VaultProvider struct {
	client *vaultapi.Client
	login  *vaultapi.Secret // approle login response, nil with token auth
	logger *zap.Logger
}

// NewVaultProvider connects to cfg.Address and logs in with cfg.Auth.
func NewVaultProvider(ctx context.Context, cfg config.VaultConfig, logger *zap.Logger) (*VaultProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("vault")

	vaultCfg := vaultapi.DefaultConfig()
	if vaultCfg.Error != nil {
		return nil, fmt.Errorf("vault client config: %w", vaultCfg.Error)
	}
	vaultCfg.Address = cfg.Address

	if cfg.TLS.CACert != "" || cfg.TLS.SkipVerify {
		if cfg.TLS.SkipVerify {
			logger.Warn("vault TLS verification disabled")
		}
		err := vaultCfg.ConfigureTLS(&vaultapi.TLSConfig{
			CACert:   cfg.TLS.CACert,
			Insecure: cfg.TLS.SkipVerify,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring vault TLS: %w", err)
		}
	}

	client, err := vaultapi.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("creating vault client: %w", err)
	}

	p := &VaultProvider{client: client, logger: logger}
	if err := p.authenticate(ctx, cfg.Auth); err != nil {
		return nil, fmt.Errorf("vault authentication: %w", err)
	}
	return p, nil
}

func (p *VaultProvider) authenticate(ctx context.Context, auth config.AuthConfig) error {
	switch auth.Method {
	case "token":
		// The client picks VAULT_TOKEN up from the environment.
		if p.client.Token() == "" {
			return errors.New("token auth requires VAULT_TOKEN to be set")
		}
		return nil

	case "approle":
		roleID, err := os.ReadFile(auth.RoleIDPath)
		if err != nil {
			return fmt.Errorf("reading role_id: %w", err)
		}
		method, err := approle.NewAppRoleAuth(
			strings.TrimSpace(string(roleID)),
			&approle.SecretID{FromFile: auth.SecretIDPath},
		)
		if err != nil {
			return fmt.Errorf("creating approle auth: %w", err)
		}
		login, err := p.client.Auth().Login(ctx, method)
		if err != nil {
			return fmt.Errorf("approle login: %w", err)
		}
		p.login = login
		p.logger.Debug("approle login succeeded",
			zap.Bool("renewable", login.Auth.Renewable),
			zap.Int("lease_seconds", login.Auth.LeaseDuration),
		)
		return nil

	default:
		return fmt.Errorf("unsupported auth method: %q", auth.Method)
	}
}

// splitVaultReference splits "secret/pscale#token" into path and field.
func splitVaultReference(reference string) (path, field string, err error) {
	path, field, ok := strings.Cut(reference, "#")
	if !ok || path == "" || field == "" {
		return "", "", fmt.Errorf("invalid vault reference %q: expected path#field", reference)
	}
	return path, field, nil
}

// Fetch resolves a reference like "secret/pscale#service_token". Both KV
// v1 and KV v2 mounts are understood.
func (p *VaultProvider) Fetch(ctx context.Context, reference string) (string, error) {
	path, field, err := splitVaultReference(reference)
	if err != nil {
		return "", err
	}

	secret, err := p.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if secret == nil {
		return "", fmt.Errorf("no secret at %s", path)
	}

	val, ok := secretFields(secret)[field]
	if !ok || val == nil {
		return "", fmt.Errorf("secret at %s has no field %q", path, field)
	}
	s, err := scalarString(val)
	if err != nil {
		return "", fmt.Errorf("secret at %s field %q: %w", path, field, err)
	}
	return s, nil
}

// secretFields returns the key/value pairs of a read. KV v2 nests them
// under "data" next to a "metadata" object.
func secretFields(secret *vaultapi.Secret) map[string]any {
	inner, nested := secret.Data["data"].(map[string]any)
	if _, versioned := secret.Data["metadata"]; nested && versioned {
		return inner
	}
	return secret.Data
}

// scalarString renders a secret value as an environment variable value.
func scalarString(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("value of type %T cannot be used as an environment variable", v)
	}
}

// StartRenewal keeps a renewable approle token alive until ctx is done.
// A VAULT_TOKEN belongs to whoever issued it and is left alone.
func (p *VaultProvider) StartRenewal(ctx context.Context) {
	if p.login == nil || p.login.Auth == nil || !p.login.Auth.Renewable {
		p.logger.Debug("vault token is not renewable, skipping renewal")
		return
	}

	watcher, err := p.client.NewLifetimeWatcher(&vaultapi.LifetimeWatcherInput{Secret: p.login})
	if err != nil {
		p.logger.Warn("failed to start token renewal", zap.Error(err))
		return
	}
	go watcher.Start()

	go func() {
		defer watcher.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-watcher.DoneCh():
				if err != nil {
					p.logger.Warn("token renewal stopped", zap.Error(err))
				}
				return
			case renewal := <-watcher.RenewCh():
				p.logger.Debug("token renewed", zap.Time("at", renewal.RenewedAt))
			}
		}
	}()
}
