package tenant

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Context identifies the school portal the client is talking to. It is
// resolved once per engine lifetime from the hostname and every
// authenticated user must belong to it.
type Context struct {
	TenantID    string
	Subdomain   string
	DisplayName string
}

// Directory looks up tenant display metadata by subdomain. The network
// implementation lives in httpapi; tests and local development use
// [MemoryDirectory].
type Directory interface {
	TenantBySubdomain(ctx context.Context, subdomain string) (Context, error)
}

// Development is the fixed tenant used for loopback hostnames, so local
// development never depends on DNS or the metadata service being up.
var Development = Context{
	TenantID:    "dev",
	Subdomain:   "dev",
	DisplayName: "Development",
}

// Resolver derives tenant identity from a hostname and caches directory
// lookups. Lookup failures degrade to a minimal context instead of
// blocking login; only the display metadata goes generic.
type Resolver struct {
	dir Directory
	log *zap.Logger

	mu    sync.Mutex
	cache map[string]Context
}

// NewResolver creates a resolver over the given directory. A nil logger
// falls back to a no-op logger; a nil directory means every non-loopback
// hostname resolves to the fallback context.
func NewResolver(dir Directory, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		dir:   dir,
		log:   log,
		cache: make(map[string]Context),
	}
}

// Subdomain extracts the tenant subdomain candidate from a hostname: the
// port is stripped and the leading label before the first dot wins. A
// hostname without dots is its own candidate, which keeps bare container
// hostnames usable in development.
func Subdomain(hostname string) string {
	host := strings.ToLower(strings.TrimSpace(hostname))
	if i := strings.IndexByte(host, ':'); i > 0 {
		host = host[:i]
	}
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i]
	}
	return host
}

// IsLoopback reports whether the hostname is a local development host
// that bypasses directory resolution entirely.
func IsLoopback(hostname string) bool {
	host := strings.ToLower(strings.TrimSpace(hostname))
	if i := strings.IndexByte(host, ':'); i > 0 {
		host = host[:i]
	}
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// Resolve maps a hostname to its tenant context. Loopback hostnames short-
// circuit to [Development]; everything else goes through the directory,
// with successful lookups cached per subdomain and failures degraded to
// {subdomain, displayName: subdomain}.
func (r *Resolver) Resolve(ctx context.Context, hostname string) Context {
	if IsLoopback(hostname) {
		return Development
	}

	sub := Subdomain(hostname)
	fallback := Context{Subdomain: sub, DisplayName: sub}
	if sub == "" {
		return fallback
	}

	r.mu.Lock()
	cached, ok := r.cache[sub]
	r.mu.Unlock()
	if ok {
		return cached
	}

	if r.dir == nil {
		return fallback
	}

	resolved, err := r.dir.TenantBySubdomain(ctx, sub)
	if err != nil {
		// Degraded, not cached: the next resolve retries the directory.
		r.log.Warn("tenant lookup failed, using fallback context",
			zap.String("subdomain", sub),
			zap.Error(err))
		return fallback
	}
	if resolved.Subdomain == "" {
		resolved.Subdomain = sub
	}

	r.mu.Lock()
	r.cache[sub] = resolved
	r.mu.Unlock()
	return resolved
}
