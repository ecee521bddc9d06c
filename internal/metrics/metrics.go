package metrics

import "sync/atomic"

// ID identifies one counter.
type ID uint8

const (
	// LoginSuccess counts completed logins.
	LoginSuccess ID = iota
	// LoginFailure counts rejected credentials.
	LoginFailure
	// LoginLocked counts attempts rejected by the local lockout window.
	LoginLocked
	// LoginDeduped counts duplicate submissions coalesced in flight.
	LoginDeduped
	// LoginSuperseded counts login responses discarded because a logout won.
	LoginSuperseded
	// TenantMismatch counts valid credentials rejected on the wrong portal.
	TenantMismatch
	// TenantFallback counts degraded tenant metadata lookups.
	TenantFallback
	// RefreshSuccess counts successful token refreshes.
	RefreshSuccess
	// RefreshFailure counts refreshes that forced re-login.
	RefreshFailure
	// Logout counts logouts.
	Logout
	// SessionExpired counts session expiry transitions.
	SessionExpired
	// SessionRestored counts sessions rebuilt from durable storage.
	SessionRestored
	// TokenDecodeFailure counts malformed access tokens.
	TokenDecodeFailure

	// IDCount is the number of counters; keep it last.
	IDCount
)

// Def describes a counter for exporters.
type Def struct {
	ID   ID
	Name string
	Help string
}

// Defs lists every counter in export order.
var Defs = []Def{
	{LoginSuccess, "portalauth_login_success_total", "Completed logins."},
	{LoginFailure, "portalauth_login_failure_total", "Logins rejected with invalid credentials."},
	{LoginLocked, "portalauth_login_locked_total", "Logins rejected by the local lockout window."},
	{LoginDeduped, "portalauth_login_deduped_total", "Duplicate login submissions coalesced in flight."},
	{LoginSuperseded, "portalauth_login_superseded_total", "Login responses discarded because a logout won the race."},
	{TenantMismatch, "portalauth_tenant_mismatch_total", "Valid credentials rejected on the wrong tenant portal."},
	{TenantFallback, "portalauth_tenant_fallback_total", "Tenant metadata lookups degraded to a generic context."},
	{RefreshSuccess, "portalauth_refresh_success_total", "Successful token refreshes."},
	{RefreshFailure, "portalauth_refresh_failure_total", "Refreshes that forced re-login."},
	{Logout, "portalauth_logout_total", "Logouts."},
	{SessionExpired, "portalauth_session_expired_total", "Session expiry transitions."},
	{SessionRestored, "portalauth_session_restored_total", "Sessions rebuilt from durable storage."},
	{TokenDecodeFailure, "portalauth_token_decode_failure_total", "Malformed access tokens."},
}

// Metrics is a fixed set of atomic counters. When disabled every
// operation is a no-op so the hot path costs one branch.
type Metrics struct {
	enabled  bool
	counters [IDCount]atomic.Uint64
}

// Config controls metrics collection.
type Config struct {
	Enabled bool
}

// New creates a Metrics instance.
func New(cfg Config) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id ID) {
	if m == nil || !m.enabled || id >= IDCount {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Counters map[ID]uint64
}

// Snapshot returns a deep copy of the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{Counters: make(map[ID]uint64, IDCount)}
	if m == nil || !m.enabled {
		return snap
	}
	for id := ID(0); id < IDCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
