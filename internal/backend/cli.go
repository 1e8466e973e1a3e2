package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bdubs00/pscale-context-server/internal/catalog"
)

const (
	DefaultBinary  = "pscale"
	DefaultTimeout = 30 * time.Second

	// waitDelay bounds how long a killed child may hold its pipes open.
	waitDelay = 2 * time.Second
)

// CLIConfig configures the pscale command-line backend.
type CLIConfig struct {
	Binary       string
	Organization string
	Database     string
	Timeout      time.Duration
	RateLimit    float64 // calls per second, 0 disables limiting
	Burst        int
	Env          map[string]string // extra child environment, e.g. resolved secrets
}

// CLI runs one pscale process per call.
type CLI struct {
	cfg     CLIConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// TextOutput wraps command output that is not JSON.
type TextOutput struct {
	Output string `json:"output"`
}

// NewCLI creates a backend that shells out to cfg.Binary.
func NewCLI(cfg CLIConfig, logger *zap.Logger) *CLI {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &CLI{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.Named("pscale"),
	}
}

type invocation struct {
	subcommand string
	args       []string
	stdin      string
}

func invocationFor(op string, args catalog.Arguments) (invocation, error) {
	switch op {
	case catalog.ListDatabases:
		return invocation{
			subcommand: "database list",
			args:       []string{"database", "list", "--format", "json"},
		}, nil
	case catalog.ListBranches:
		return invocation{
			subcommand: "branch list",
			args:       []string{"branch", "list", args["database"], "--format", "json"},
		}, nil
	case catalog.GetSchema:
		return invocation{
			subcommand: "branch schema",
			args:       []string{"branch", "schema", args["database"], args["branch"], "--format", "json"},
		}, nil
	case catalog.RunQuery:
		return invocation{
			subcommand: "shell",
			args:       []string{"shell", args["database"], args["branch"]},
			stdin:      args["query"],
		}, nil
	default:
		return invocation{}, &UnsupportedOperationError{Op: op}
	}
}

// Execute runs the pscale subcommand mapped to op.
func (c *CLI) Execute(ctx context.Context, op string, args catalog.Arguments) (any, error) {
	inv, err := invocationFor(op, args)
	if err != nil {
		return nil, err
	}
	return c.run(ctx, inv)
}

func (c *CLI) run(ctx context.Context, inv invocation) (any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	argv := inv.args
	if c.cfg.Organization != "" {
		argv = append(argv, "--org", c.cfg.Organization)
	}

	cmd := exec.CommandContext(ctx, c.cfg.Binary, argv...)
	cmd.Env = c.environ()
	cmd.WaitDelay = waitDelay
	if inv.stdin != "" {
		cmd.Stdin = strings.NewReader(inv.stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	c.logger.Debug("command finished",
		zap.String("subcommand", inv.subcommand),
		zap.Duration("duration", time.Since(start)),
		zap.Error(runErr),
	)
	if runErr != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			runErr = fmt.Errorf("timed out after %s", c.cfg.Timeout)
		}
		return nil, &ExecError{
			Binary:     filepath.Base(c.cfg.Binary),
			Subcommand: inv.subcommand,
			Stderr:     strings.TrimSpace(stderr.String()),
			Err:        runErr,
		}
	}
	return parseOutput(stdout.Bytes()), nil
}

// environ is the parent environment plus organization/database defaults
// and extra variables in sorted order.
func (c *CLI) environ() []string {
	env := os.Environ()
	if c.cfg.Organization != "" {
		env = append(env, "PLANETSCALE_ORG="+c.cfg.Organization)
	}
	if c.cfg.Database != "" {
		env = append(env, "PLANETSCALE_DATABASE="+c.cfg.Database)
	}
	keys := make([]string, 0, len(c.cfg.Env))
	for k := range c.cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, c.cfg.Env[k]))
	}
	return env
}

func parseOutput(out []byte) any {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return json.RawMessage(bytes.Clone(trimmed))
	}
	return TextOutput{Output: string(trimmed)}
}

// ExecError reports a failed pscale invocation.
type ExecError struct {
	Binary     string
	Subcommand string
	Stderr     string
	Err        error
}

func (e *ExecError) Error() string {
	detail := e.Stderr
	if detail == "" {
		detail = e.Err.Error()
	}
	return fmt.Sprintf("%s %s failed: %s", e.Binary, e.Subcommand, detail)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
