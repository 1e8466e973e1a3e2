// Package secrets resolves secret references into environment variables
// for the pscale child process.
package secrets

import (
	"context"
	"sort"
	"strings"
)

// Provider resolves secret references to their actual values.
type Provider interface {
	// Fetch resolves the part of a reference after its "prefix:".
	Fetch(ctx context.Context, reference string) (string, error)
}

// Resolve processes a map of env var names to secret references such as
// "env:PS_TOKEN" or "vault:secret/pscale#token", resolving each through
// the provider registered for its prefix.
func Resolve(ctx context.Context, refs map[string]string, providers map[string]Provider) (map[string]string, error) {
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)

	resolved := make(map[string]string, len(refs))
	for _, envName := range names {
		ref := refs[envName]
		prefix, remainder := parseReference(ref)
		provider, ok := providers[prefix]
		if !ok {
			return nil, &UnknownProviderError{Prefix: prefix, Reference: ref}
		}
		val, err := provider.Fetch(ctx, remainder)
		if err != nil {
			return nil, &FetchError{Reference: ref, Err: err}
		}
		resolved[envName] = val
	}
	return resolved, nil
}

// parseReference splits "vault:secret/pscale#token" into ("vault", "secret/pscale#token").
func parseReference(ref string) (prefix string, remainder string) {
	prefix, remainder, ok := strings.Cut(ref, ":")
	if !ok {
		return "", ref
	}
	return prefix, remainder
}

// UnknownProviderError is returned when a secret reference uses an unregistered prefix.
type UnknownProviderError struct {
	Prefix    string
	Reference string
}

func (e *UnknownProviderError) Error() string {
	return "unknown secrets provider \"" + e.Prefix + "\" in reference \"" + e.Reference + "\""
}

// FetchError wraps an error from a secrets provider.
type FetchError struct {
	Reference string
	Err       error
}

func (e *FetchError) Error() string {
	return "fetching secret \"" + e.Reference + "\": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
