package service

import (
	"os"
	"strings"

	"ecom-admin-proxy/internal/config"
)

// OriginResolver picks the backend origin. Resolution runs on every call so a
// changed environment takes effect without a restart.
type OriginResolver struct {
	envNames []string
	fallback string
	lookup   func(string) string
}

// NewOriginResolver creates an OriginResolver reading the process environment.
func NewOriginResolver(cfg *config.Config) *OriginResolver {
	return newOriginResolver(cfg.Backend.URLEnv, cfg.Backend.DefaultURL, os.Getenv)
}

func newOriginResolver(envNames []string, fallback string, lookup func(string) string) *OriginResolver {
	return &OriginResolver{
		envNames: envNames,
		fallback: fallback,
		lookup:   lookup,
	}
}

// Origin returns the first non-empty of: each configured environment
// variable, the configured default URL, the built-in default.
func (r *OriginResolver) Origin() string {
	for _, name := range r.envNames {
		if v := strings.TrimSpace(r.lookup(name)); v != "" {
			return strings.TrimRight(v, "/")
		}
	}
	if v := strings.TrimSpace(r.fallback); v != "" {
		return strings.TrimRight(v, "/")
	}
	return config.DefaultBackendURL
}
