package portalauth

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/classpoint/portalauth/credstore"
	"github.com/classpoint/portalauth/internal/events"
	"github.com/classpoint/portalauth/internal/metrics"
	"github.com/classpoint/portalauth/permission"
	"github.com/classpoint/portalauth/token"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Login authenticates the user against the configured portal.
//
// The attempt is rejected locally, without a network call, when the
// lockout window is open. Valid credentials belonging to a different
// tenant are rejected with [ErrTenantMismatch] and do not count toward
// the lockout. Identical submissions already in flight are coalesced
// into one upstream call, so a double-clicked login button costs one
// request and one lockout-relevant outcome.
func (e *Engine) Login(ctx context.Context, creds Credentials) (AuthState, error) {
	if e == nil || e.api == nil {
		return AuthState{}, ErrEngineNotReady
	}

	identifier := strings.TrimSpace(creds.Identifier)
	if identifier == "" {
		return e.State(), fmt.Errorf("%w: identifier is required", ErrValidation)
	}
	if creds.Secret == "" {
		return e.State(), fmt.Errorf("%w: secret is required", ErrValidation)
	}

	if e.tracker.Locked() {
		retry := e.tracker.RetryAfter()
		e.metrics.Inc(metrics.LoginLocked)
		e.log.Info("login rejected by open lockout window",
			zap.Duration("retry_after", retry))
		return e.State(), &LockoutError{RetryAfter: retry}
	}

	// The key carries a digest of the secret, never the plaintext. Only
	// submissions identical in every field coalesce; a resubmission with
	// a corrected password is a distinct attempt with its own outcome.
	digest := sha256.Sum256([]byte(creds.Secret))
	key := fmt.Sprintf("%s\x00%x\x00%t", identifier, digest, creds.Remember)
	v, err, shared := e.group.Do(key, func() (any, error) {
		return e.loginOnce(ctx, identifier, creds)
	})
	if shared {
		e.metrics.Inc(metrics.LoginDeduped)
	}
	if err != nil {
		return e.State(), err
	}
	return v.(AuthState), nil
}

func (e *Engine) loginOnce(ctx context.Context, identifier string, creds Credentials) (AuthState, error) {
	attemptID := uuid.NewString()

	e.mu.Lock()
	gen := e.gen
	if e.phase == PhaseAnonymous {
		e.phase = PhaseAuthenticating
	}
	e.mu.Unlock()

	tctx := e.Tenant(ctx)

	e.log.Debug("login attempt",
		zap.String("attempt_id", attemptID),
		zap.String("tenant", tctx.Subdomain),
		zap.Bool("remember", creds.Remember))

	resp, err := e.api.Login(ctx, LoginRequest{Identifier: identifier, Secret: creds.Secret})
	if err != nil {
		e.revertAuthenticating(gen)
		return e.State(), e.failLogin(ctx, attemptID, tctx.Subdomain, err)
	}

	if !strings.EqualFold(resp.User.TenantSubdomain, tctx.Subdomain) {
		// The credentials were valid, the account just lives on another
		// portal. Not a lockout-relevant failure.
		e.revertAuthenticating(gen)
		e.metrics.Inc(metrics.TenantMismatch)
		e.log.Warn("login rejected: tenant mismatch",
			zap.String("attempt_id", attemptID),
			zap.String("portal", tctx.Subdomain),
			zap.String("account_tenant", resp.User.TenantSubdomain))
		e.emit(ctx, Event{
			EventType: events.TypeLogin,
			Phase:     PhaseAnonymous.String(),
			AttemptID: attemptID,
			Tenant:    tctx.Subdomain,
			Error:     ErrTenantMismatch.Error(),
		})
		return e.State(), fmt.Errorf("%w: account belongs to portal %q",
			ErrTenantMismatch, resp.User.TenantSubdomain)
	}

	duration := e.config.Session.AccessTTL
	if claims, derr := token.Decode(resp.AccessToken); derr != nil {
		e.metrics.Inc(metrics.TokenDecodeFailure)
		e.log.Warn("access token claims unreadable, using configured session TTL",
			zap.String("attempt_id", attemptID),
			zap.Error(derr))
	} else if ttl := claims.TTL(e.now()); ttl > 0 {
		duration = ttl
	}

	user := &AuthenticatedUser{
		ID:          resp.User.ID,
		Email:       resp.User.Email,
		DisplayName: resp.User.DisplayName,
		Role:        permission.ParseRole(resp.User.Role),
		Permissions: permission.NewSet(resp.Permissions...),
	}
	pair := credstore.Pair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		// A logout beat this response to the commit point. The session
		// must not be resurrected.
		e.metrics.Inc(metrics.LoginSuperseded)
		e.log.Info("login response discarded, superseded by logout",
			zap.String("attempt_id", attemptID))
		e.emit(ctx, Event{
			EventType: events.TypeLogin,
			Phase:     PhaseAnonymous.String(),
			AttemptID: attemptID,
			UserID:    user.ID,
			Tenant:    tctx.Subdomain,
			Error:     ErrLoginSuperseded.Error(),
		})
		return AuthState{Phase: PhaseAnonymous}, ErrLoginSuperseded
	}

	store := credstore.Store(e.memory)
	if creds.Remember {
		store = e.durable
	}
	if serr := store.Save(ctx, pair); serr != nil {
		// The session continues in memory; only persistence degraded.
		e.log.Warn("credential persistence failed",
			zap.String("attempt_id", attemptID),
			zap.Error(serr))
	}
	e.active = store
	e.user = user
	e.phase = PhaseAuthenticated
	e.sessionEpoch = e.timer.Start(duration, e.config.Session.IdleTimeout)
	e.session = e.timer.Info()
	state := e.stateLocked()
	e.mu.Unlock()

	e.tracker.RecordSuccess()
	e.metrics.Inc(metrics.LoginSuccess)
	e.log.Info("login succeeded",
		zap.String("attempt_id", attemptID),
		zap.String("user_id", user.ID),
		zap.String("role", user.Role.String()),
		zap.String("tenant", tctx.Subdomain),
		zap.Duration("session", duration))
	e.emit(ctx, Event{
		EventType: events.TypeLogin,
		Phase:     PhaseAuthenticated.String(),
		AttemptID: attemptID,
		UserID:    user.ID,
		Tenant:    tctx.Subdomain,
		Success:   true,
	})
	// Lockout state changed after the snapshot was taken.
	state.Lockout = e.tracker.Snapshot()
	return state, nil
}

// failLogin normalizes a collaborator error and updates the lockout
// tracker for credential rejections.
func (e *Engine) failLogin(ctx context.Context, attemptID, tenantSub string, err error) error {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		st := e.tracker.RecordFailure()
		e.metrics.Inc(metrics.LoginFailure)
		e.log.Info("login rejected: invalid credentials",
			zap.String("attempt_id", attemptID),
			zap.Int("failed_attempts", st.FailedAttempts))
		e.emit(ctx, Event{
			EventType: events.TypeLogin,
			Phase:     PhaseAnonymous.String(),
			AttemptID: attemptID,
			Tenant:    tenantSub,
			Error:     ErrInvalidCredentials.Error(),
		})
		if !st.LockedUntil.IsZero() {
			retry := e.tracker.RetryAfter()
			e.metrics.Inc(metrics.LoginLocked)
			e.log.Warn("lockout window opened",
				zap.String("attempt_id", attemptID),
				zap.Int("failed_attempts", st.FailedAttempts),
				zap.Duration("window", retry))
			e.emit(ctx, Event{
				EventType: events.TypeLockout,
				Phase:     PhaseAnonymous.String(),
				AttemptID: attemptID,
				Tenant:    tenantSub,
				Error:     ErrAccountLocked.Error(),
			})
			return &LockoutError{RetryAfter: retry}
		}
		return err

	case errors.Is(err, ErrAccountLocked):
		// Adopt the server's window so both sides agree on when to retry.
		var le *LockoutError
		if errors.As(err, &le) && le.RetryAfter > 0 {
			e.tracker.LockFor(le.RetryAfter)
		}
		e.metrics.Inc(metrics.LoginLocked)
		e.emit(ctx, Event{
			EventType: events.TypeLockout,
			Phase:     PhaseAnonymous.String(),
			AttemptID: attemptID,
			Tenant:    tenantSub,
			Error:     ErrAccountLocked.Error(),
		})
		return err

	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrNetwork),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		e.log.Info("login failed", zap.String("attempt_id", attemptID), zap.Error(err))
		return err

	default:
		// Anything unrecognized is treated as a transport fault.
		e.log.Warn("login failed with unclassified error",
			zap.String("attempt_id", attemptID),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
}

// revertAuthenticating returns the phase to anonymous after a failed
// attempt, unless something else transitioned the engine meanwhile.
func (e *Engine) revertAuthenticating(gen uint64) {
	e.mu.Lock()
	if e.gen == gen && e.phase == PhaseAuthenticating {
		e.phase = PhaseAnonymous
	}
	e.mu.Unlock()
}
