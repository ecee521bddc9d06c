package portalauth

import (
	"context"
	"sync"
	"time"

	"github.com/classpoint/portalauth/credstore"
	"github.com/classpoint/portalauth/internal/events"
	"github.com/classpoint/portalauth/internal/metrics"
	"github.com/classpoint/portalauth/lockout"
	"github.com/classpoint/portalauth/session"
	"github.com/classpoint/portalauth/tenant"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Engine is the authentication orchestrator. It owns the composed auth
// state and coordinates the credential stores, the lockout tracker, the
// session timer and the tenant resolver around the API collaborator.
//
// All methods are safe for concurrent use. Interleaved operations are
// serialized by a generation counter: any state-destroying transition
// (logout, forced expiry) bumps the generation, and an in-flight login or
// refresh that committed against an older generation is discarded. A
// logout always wins.
type Engine struct {
	config   Config
	api      API
	log      *zap.Logger
	now      func() time.Time
	resolver *tenant.Resolver
	tracker  *lockout.Tracker
	timer    *session.Timer
	durable  credstore.Store
	memory   *credstore.Memory
	events   *events.Dispatcher
	metrics  *metrics.Metrics
	group    singleflight.Group

	mu       sync.Mutex
	gen      uint64
	phase    Phase
	user     *AuthenticatedUser
	tctx     tenant.Context
	resolved bool
	session  session.Info
	// sessionEpoch is the timer epoch backing the current session; an
	// expiry notification carrying any other epoch is stale.
	sessionEpoch uint64
	active       credstore.Store
}

// Tenant returns the tenant context for the configured hostname,
// resolving it on first use.
func (e *Engine) Tenant(ctx context.Context) tenant.Context {
	e.mu.Lock()
	if e.resolved {
		t := e.tctx
		e.mu.Unlock()
		return t
	}
	e.mu.Unlock()

	t := e.resolver.Resolve(ctx, e.config.Tenant.Hostname)
	if t.TenantID == "" {
		e.metrics.Inc(metrics.TenantFallback)
	}

	e.mu.Lock()
	if !e.resolved {
		e.tctx = t
		e.resolved = true
	}
	t = e.tctx
	e.mu.Unlock()
	return t
}

// State returns a snapshot of the composed auth state.
func (e *Engine) State() AuthState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// IsAuthenticated reports whether a session is active. A refresh in
// flight still counts as authenticated.
func (e *Engine) IsAuthenticated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase == PhaseAuthenticated || e.phase == PhaseRefreshing
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (e *Engine) CurrentUser() *AuthenticatedUser {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyUser(e.user)
}

// RemainingSession returns how long until the session expires, zero when
// none is active. Discovering an elapsed deadline here fires the same
// expiry transition the scheduled callback would.
func (e *Engine) RemainingSession() time.Duration {
	return e.timer.Remaining()
}

// Touch records user activity, pushing out the idle deadline.
func (e *Engine) Touch() {
	e.timer.Touch()
}

// HasPermission reports whether the signed-in user holds the named
// permission. Anonymous users hold nothing.
func (e *Engine) HasPermission(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.user != nil && e.user.Permissions.Has(name)
}

// HasAnyPermission reports whether the user holds at least one of the
// named permissions. An empty list grants nothing.
func (e *Engine) HasAnyPermission(names ...string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.user != nil && e.user.Permissions.HasAny(names)
}

// HasAllPermissions reports whether the user holds every named
// permission. An empty list is vacuously satisfied by any signed-in user.
func (e *Engine) HasAllPermissions(names ...string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.user != nil && e.user.Permissions.HasAll(names)
}

// Logout destroys the session. It is idempotent, never fails, and never
// blocks on the network: server-side token revocation is fired in the
// background on a best-effort basis. Any login or refresh still in flight
// is superseded and will not resurrect the session.
func (e *Engine) Logout(ctx context.Context) {
	if e == nil {
		return
	}

	e.mu.Lock()
	e.gen++
	hadSession := e.phase == PhaseAuthenticated || e.phase == PhaseRefreshing
	active := e.active
	var userID string
	if e.user != nil {
		userID = e.user.ID
	}
	e.phase = PhaseAnonymous
	e.user = nil
	e.active = nil
	e.session = session.Info{}
	e.sessionEpoch = 0
	tctx := e.tctx
	e.mu.Unlock()

	e.timer.Clear()

	var access string
	if active != nil {
		if pair, err := active.Read(ctx); err == nil && pair != nil {
			access = pair.AccessToken
		}
	}
	if err := e.memory.Clear(ctx); err != nil {
		e.log.Warn("memory credential clear failed", zap.Error(err))
	}
	if err := e.durable.Clear(ctx); err != nil {
		e.log.Warn("durable credential clear failed", zap.Error(err))
	}

	if !hadSession {
		return
	}

	if access != "" {
		// Best-effort server-side revocation, detached from the caller.
		go func() {
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.api.Logout(rctx, access); err != nil {
				e.log.Debug("server-side logout failed", zap.Error(err))
			}
		}()
	}

	e.metrics.Inc(metrics.Logout)
	e.log.Info("logged out", zap.String("user_id", userID))
	e.emit(ctx, Event{
		EventType: events.TypeLogout,
		Phase:     PhaseAnonymous.String(),
		UserID:    userID,
		Tenant:    tctx.Subdomain,
		Success:   true,
	})
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// EventsDropped returns how many events the dispatcher discarded under
// backpressure.
func (e *Engine) EventsDropped() uint64 {
	return e.events.Dropped()
}

// Close releases the engine: the session timer is stopped and the event
// dispatcher is drained. The auth state is left as is; Close is for
// shutdown, Logout is for signing out.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.timer.Clear()
	e.events.Close()
}

// stateLocked builds a snapshot. Caller holds e.mu.
func (e *Engine) stateLocked() AuthState {
	st := AuthState{
		Phase:   e.phase,
		Tenant:  e.tctx,
		Lockout: e.tracker.Snapshot(),
		Session: e.session,
	}
	st.User = copyUser(e.user)
	return st
}

// forceAnonymous drops the session unless another transition already beat
// this one to the generation counter.
func (e *Engine) forceAnonymous(gen uint64) bool {
	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return false
	}
	e.gen++
	e.phase = PhaseAnonymous
	e.user = nil
	e.active = nil
	e.session = session.Info{}
	e.sessionEpoch = 0
	e.mu.Unlock()

	e.timer.Clear()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.memory.Clear(ctx); err != nil {
		e.log.Warn("memory credential clear failed", zap.Error(err))
	}
	if err := e.durable.Clear(ctx); err != nil {
		e.log.Warn("durable credential clear failed", zap.Error(err))
	}
	return true
}

func (e *Engine) emit(ctx context.Context, ev Event) {
	if e.events == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	e.events.Emit(ctx, ev)
}

func copyUser(u *AuthenticatedUser) *AuthenticatedUser {
	if u == nil {
		return nil
	}
	cp := *u
	cp.Permissions = u.Permissions.Clone()
	return &cp
}
