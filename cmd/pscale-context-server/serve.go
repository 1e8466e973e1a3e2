package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bdubs00/pscale-context-server/internal/audit"
	"github.com/bdubs00/pscale-context-server/internal/backend"
	"github.com/bdubs00/pscale-context-server/internal/config"
	"github.com/bdubs00/pscale-context-server/internal/logging"
	"github.com/bdubs00/pscale-context-server/internal/policy"
	"github.com/bdubs00/pscale-context-server/internal/secrets"
	"github.com/bdubs00/pscale-context-server/internal/server"
)

// serveOptions holds the flags of the serve command.
type serveOptions struct {
	configPath  string
	backendKind string
	auditLog    string
	logLevel    string
	dryRun      bool
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	logger, err := logging.New(opts.logLevel, os.Stderr)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.backendKind != "" {
		cfg.Backend.Kind = opts.backendKind
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}

	var auditOut io.Writer = os.Stderr
	if opts.auditLog != "" {
		f, err := os.OpenFile(opts.auditLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer f.Close()
		auditOut = f
	}

	session := uuid.NewString()
	logger = logger.With(zap.String("session", session))
	auditLogger := audit.New(auditOut, session, cfg.Audit.Redact)

	ctx := cmd.Context()
	b, err := buildBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv := server.New(b, server.Options{
		Name:        cfg.Name,
		Description: cfg.Description,
		Engine:      policy.NewEngine(cfg.Policy),
		Audit:       auditLogger,
		Logger:      logger,
		DryRun:      opts.dryRun,
	})

	auditLogger.LogStartup(cfg.Backend.Kind, opts.configPath)
	logger.Info("serving", zap.String("backend", cfg.Backend.Kind))

	err = srv.Serve(ctx, os.Stdin, os.Stdout)
	auditLogger.LogShutdown(srv.Calls())
	if err != nil {
		logger.Error("server stopped", zap.Error(err))
		return err
	}
	return nil
}

// loadConfig reads path, or the built-in defaults when path is empty, and
// applies environment overrides.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.ApplyEnv(cfg, os.LookupEnv)
	return cfg, nil
}

// buildBackend constructs the configured backend, resolving secrets for
// the pscale child environment.
func buildBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (backend.Backend, error) {
	switch cfg.Backend.Kind {
	case config.BackendStub:
		return backend.NewStub(), nil
	case config.BackendCLI:
		env, err := resolveSecrets(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return backend.NewCLI(backend.CLIConfig{
			Binary:       cfg.Backend.Binary,
			Organization: cfg.Organization,
			Database:     cfg.Database,
			Timeout:      cfg.Backend.Timeout,
			RateLimit:    cfg.Backend.RateLimit,
			Burst:        cfg.Backend.Burst,
			Env:          env,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend.Kind)
	}
}

func resolveSecrets(ctx context.Context, cfg *config.Config, logger *zap.Logger) (map[string]string, error) {
	if cfg.Secrets == nil || len(cfg.Secrets.Env) == 0 {
		return nil, nil
	}

	providers := map[string]secrets.Provider{
		"env": secrets.NewEnvProvider(),
	}
	if cfg.Vault != nil {
		vp, err := secrets.NewVaultProvider(ctx, *cfg.Vault, logger)
		if err != nil {
			return nil, err
		}
		vp.StartRenewal(ctx)
		providers["vault"] = vp
	}

	env, err := secrets.Resolve(ctx, cfg.Secrets.Env, providers)
	if err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}
	return env, nil
}
