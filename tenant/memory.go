package tenant

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by directories when no tenant matches the
// subdomain.
var ErrNotFound = errors.New("tenant not found")

// MemoryDirectory is a seedable in-memory [Directory] for tests and local
// development.
type MemoryDirectory struct {
	mu          sync.RWMutex
	bySubdomain map[string]Context
}

// NewMemoryDirectory creates a directory seeded with the given tenants.
func NewMemoryDirectory(seed ...Context) *MemoryDirectory {
	d := &MemoryDirectory{bySubdomain: make(map[string]Context, len(seed))}
	for _, t := range seed {
		d.bySubdomain[t.Subdomain] = t
	}
	return d
}

// Add registers or replaces a tenant.
func (d *MemoryDirectory) Add(t Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bySubdomain[t.Subdomain] = t
}

// TenantBySubdomain implements [Directory].
func (d *MemoryDirectory) TenantBySubdomain(_ context.Context, subdomain string) (Context, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if t, ok := d.bySubdomain[subdomain]; ok {
		return t, nil
	}
	return Context{}, ErrNotFound
}
