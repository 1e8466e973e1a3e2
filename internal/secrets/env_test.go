package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvProviderFromEnv(t *testing.T) {
	t.Setenv("TEST_SECRET_VALUE", "hunter2")

	val, err := NewEnvProvider().Fetch(context.Background(), "TEST_SECRET_VALUE")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", val)
}

func TestEnvProviderMissing(t *testing.T) {
	p := &EnvProvider{lookup: func(string) (string, bool) { return "", false }}
	_, err := p.Fetch(context.Background(), "NONEXISTENT_VAR")
	assert.Error(t, err)
}

func TestResolveWithProviders(t *testing.T) {
	t.Setenv("PS_TOKEN", "abc123")

	providers := map[string]Provider{"env": NewEnvProvider()}
	refs := map[string]string{"PLANETSCALE_SERVICE_TOKEN": "env:PS_TOKEN"}

	resolved, err := Resolve(context.Background(), refs, providers)
	require.NoError(t, err)
	assert.Equal(t, "abc123", resolved["PLANETSCALE_SERVICE_TOKEN"])
}

func TestResolveUnknownProvider(t *testing.T) {
	refs := map[string]string{"SECRET": "unknown:something"}
	_, err := Resolve(context.Background(), refs, map[string]Provider{})

	var unknown *UnknownProviderError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "unknown", unknown.Prefix)
}

func TestResolveNoPrefix(t *testing.T) {
	_, err := Resolve(context.Background(), map[string]string{"S": "plain"}, map[string]Provider{"env": NewEnvProvider()})

	var unknown *UnknownProviderError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "", unknown.Prefix)
}

type failingProvider struct{ err error }

func (f failingProvider) Fetch(context.Context, string) (string, error) { return "", f.err }

func TestResolveWrapsFetchError(t *testing.T) {
	sentinel := errors.New("sealed")
	_, err := Resolve(context.Background(),
		map[string]string{"S": "vault:secret/x#y"},
		map[string]Provider{"vault": failingProvider{err: sentinel}})

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "vault:secret/x#y", fetchErr.Reference)
	assert.ErrorIs(t, err, sentinel)
}
