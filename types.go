package portalauth

import (
	"context"

	"github.com/classpoint/portalauth/credstore"
	"github.com/classpoint/portalauth/internal/events"
	"github.com/classpoint/portalauth/internal/metrics"
	"github.com/classpoint/portalauth/lockout"
	"github.com/classpoint/portalauth/permission"
	"github.com/classpoint/portalauth/session"
	"github.com/classpoint/portalauth/tenant"
)

// Credentials is the transient login submission. It exists only for the
// duration of the Login call and is never stored.
type Credentials struct {
	Identifier string
	Secret     string
	Remember   bool
	Role       permission.RoleTag // optional portal hint, not authoritative
}

// AuthenticatedUser is the signed-in user. It is created on successful
// login, replaced wholesale on refresh, and destroyed on logout or
// session expiry.
type AuthenticatedUser struct {
	ID          string
	Email       string
	DisplayName string
	Role        permission.RoleTag
	Permissions permission.Set
}

// Phase is the orchestrator's lifecycle state.
type Phase uint8

const (
	// PhaseAnonymous means no session is held.
	PhaseAnonymous Phase = iota
	// PhaseAuthenticating means a login is in flight.
	PhaseAuthenticating
	// PhaseAuthenticated means a session is active.
	PhaseAuthenticated
	// PhaseRefreshing means a token refresh is in flight; the session
	// stays usable until the refresh resolves.
	PhaseRefreshing
)

// String returns the lowercase phase name.
func (p Phase) String() string {
	switch p {
	case PhaseAnonymous:
		return "anonymous"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// AuthState is the composed state the engine exposes to the UI layer.
// It is a snapshot; mutating it has no effect on the engine.
type AuthState struct {
	Phase   Phase
	User    *AuthenticatedUser
	Tenant  tenant.Context
	Lockout lockout.State
	Session session.Info
}

// LoginRequest is the outbound credential submission shape.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

// APIUser is the user record the authentication collaborator returns.
type APIUser struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	DisplayName     string `json:"displayName"`
	Role            string `json:"role"`
	TenantSubdomain string `json:"tenantSubdomain"`
}

// LoginResponse is the success shape of the login collaborator.
type LoginResponse struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	User         APIUser  `json:"user"`
	Permissions  []string `json:"permissions"`
}

// API is the abstract authentication collaborator the engine consumes.
// The engine never touches a transport directly; the default HTTP
// implementation lives in the httpapi package. Implementations map their
// failures onto this package's error taxonomy before returning.
type API interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*credstore.Pair, error)
	Logout(ctx context.Context, accessToken string) error
}

// Event is one observable auth state transition.
type Event = events.Event

// EventSink receives [Event] values from the engine's dispatcher.
type EventSink = events.Sink

// NoOpSink is an [EventSink] that silently discards all events.
type NoOpSink = events.NoOpSink

// ChannelSink is a buffered channel-based [EventSink].
type ChannelSink = events.ChannelSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return events.NewChannelSink(buffer)
}

// MetricID identifies one engine counter.
type MetricID = metrics.ID

const (
	// MetricLoginSuccess counts completed logins.
	MetricLoginSuccess = metrics.LoginSuccess
	// MetricLoginFailure counts rejected credentials.
	MetricLoginFailure = metrics.LoginFailure
	// MetricLoginLocked counts attempts rejected by the lockout window.
	MetricLoginLocked = metrics.LoginLocked
	// MetricLoginDeduped counts duplicate submissions coalesced in flight.
	MetricLoginDeduped = metrics.LoginDeduped
	// MetricLoginSuperseded counts login responses a logout beat to commit.
	MetricLoginSuperseded = metrics.LoginSuperseded
	// MetricTenantMismatch counts cross-tenant login rejections.
	MetricTenantMismatch = metrics.TenantMismatch
	// MetricTenantFallback counts degraded tenant metadata lookups.
	MetricTenantFallback = metrics.TenantFallback
	// MetricRefreshSuccess counts successful refreshes.
	MetricRefreshSuccess = metrics.RefreshSuccess
	// MetricRefreshFailure counts refreshes that forced re-login.
	MetricRefreshFailure = metrics.RefreshFailure
	// MetricLogout counts logouts.
	MetricLogout = metrics.Logout
	// MetricSessionExpired counts session expiry transitions.
	MetricSessionExpired = metrics.SessionExpired
	// MetricSessionRestored counts sessions rebuilt from durable storage.
	MetricSessionRestored = metrics.SessionRestored
	// MetricTokenDecodeFailure counts malformed access tokens.
	MetricTokenDecodeFailure = metrics.TokenDecodeFailure
)

// Metrics holds the engine's atomic counters.
type Metrics = metrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all counters.
type MetricsSnapshot = metrics.Snapshot
