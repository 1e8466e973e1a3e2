package secrets

import (
	"context"
	"fmt"
	"os"
)

// EnvProvider resolves "env:" references from the server's own environment.
type EnvProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvProvider creates a provider that reads environment variables.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{lookup: os.LookupEnv}
}

// Fetch reads the named environment variable.
func (p *EnvProvider) Fetch(_ context.Context, name string) (string, error) {
	val, ok := p.lookup(name)
	if !ok {
		return "", fmt.Errorf("environment variable %q not set", name)
	}
	return val, nil
}
