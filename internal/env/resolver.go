// Package env maps the runtime context onto one of the three printstack
// environments and derives the key namespace used by the storage layer.
package env

import (
	"net"
	"os"
	"strings"
)

// Environment labels one of the three isolated datasets.
type Environment string

// Recognized environments. Ambiguous contexts resolve to production.
const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Namespace prefixes, one per environment. These must stay injective: two
// environments sharing a namespace would silently merge datasets.
const (
	namespaceDevelopment = "printstack_dev"
	namespaceStaging     = "printstack_staging"
	namespaceProduction  = "printstack_prod"

	// legacyPrefix marks keys written before namespacing existed.
	legacyPrefix = "printstack_"
)

var namespaces = map[Environment]string{
	Development: namespaceDevelopment,
	Staging:     namespaceStaging,
	Production:  namespaceProduction,
}

// Resolve determines the environment from the host string and an optional
// explicit marker. Rules, in order: explicit marker wins; staging host
// patterns; development host patterns; default production (fail-safe).
func Resolve(host, marker string) Environment {
	switch Environment(strings.ToLower(strings.TrimSpace(marker))) {
	case Development:
		return Development
	case Staging:
		return Staging
	case Production:
		return Production
	}

	h := strings.ToLower(strings.TrimSpace(host))
	if bare, _, err := net.SplitHostPort(h); err == nil {
		h = bare
	}
	if h == "" {
		return Production
	}
	if strings.Contains(h, "staging") {
		return Staging
	}
	switch {
	case h == "localhost", h == "127.0.0.1", h == "::1", h == "0.0.0.0":
		return Development
	case strings.HasSuffix(h, ".local"):
		return Development
	case strings.Contains(h, "development"), strings.Contains(h, "dev"),
		strings.Contains(h, "test"):
		return Development
	}
	return Production
}

// Resolver holds a resolved environment and answers namespace queries.
// The namespace is stable for the resolver's lifetime.
type Resolver struct {
	env Environment
}

// NewResolver constructs a resolver pinned to the given environment.
// Unknown environments are coerced to production.
func NewResolver(environment Environment) *Resolver {
	if _, ok := namespaces[environment]; !ok {
		environment = Production
	}
	return &Resolver{env: environment}
}

// FromOS resolves the environment from process environment variables:
// PRINTSTACK_ENV as the explicit marker, PRINTSTACK_HOST as the host
// context.
func FromOS() *Resolver {
	return NewResolver(Resolve(os.Getenv("PRINTSTACK_HOST"), os.Getenv("PRINTSTACK_ENV")))
}

// Environment returns the resolved environment label.
func (r *Resolver) Environment() Environment { return r.env }

// Namespace returns the key prefix for the resolved environment.
func (r *Resolver) Namespace() string { return namespaces[r.env] }

// NamespacedKey rewrites key into the current namespace. Already-namespaced
// keys pass through unchanged regardless of their environment, so the
// operation is idempotent and never crosses namespaces. Legacy
// "printstack_" keys are re-homed under the current namespace; anything
// else is prefixed.
func (r *Resolver) NamespacedKey(key string) string {
	for _, ns := range namespaces {
		if key == ns || strings.HasPrefix(key, ns+"_") {
			return key
		}
	}
	if strings.HasPrefix(key, legacyPrefix) {
		return r.Namespace() + "_" + strings.TrimPrefix(key, legacyPrefix)
	}
	return r.Namespace() + "_" + key
}

// IsLegacyKey reports whether key carries the pre-namespace prefix without
// an environment segment.
func IsLegacyKey(key string) bool {
	if !strings.HasPrefix(key, legacyPrefix) {
		return false
	}
	for _, ns := range namespaces {
		if key == ns || strings.HasPrefix(key, ns+"_") {
			return false
		}
	}
	return true
}
