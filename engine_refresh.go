package portalauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/classpoint/portalauth/internal/events"
	"github.com/classpoint/portalauth/internal/metrics"
	"github.com/classpoint/portalauth/permission"
	"github.com/classpoint/portalauth/token"
	"go.uber.org/zap"
)

// Refresh exchanges the held refresh token for a fresh pair. The session
// stays usable while the exchange is in flight. Any failure forces the
// engine back to anonymous and returns [ErrTokenExpired]: there is no
// retry loop, a failed refresh means the user signs in again.
func (e *Engine) Refresh(ctx context.Context) (AuthState, error) {
	if e == nil || e.api == nil {
		return AuthState{}, ErrEngineNotReady
	}

	e.mu.Lock()
	if e.phase != PhaseAuthenticated {
		st := e.stateLocked()
		e.mu.Unlock()
		return st, ErrNotAuthenticated
	}
	gen := e.gen
	active := e.active
	e.phase = PhaseRefreshing
	e.mu.Unlock()

	pair, err := active.Read(ctx)
	if err != nil || pair == nil || pair.RefreshToken == "" {
		e.metrics.Inc(metrics.RefreshFailure)
		e.log.Warn("refresh aborted: no refresh token held", zap.Error(err))
		e.forceAnonymous(gen)
		return e.State(), ErrTokenExpired
	}

	next, err := e.api.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		e.metrics.Inc(metrics.RefreshFailure)
		e.log.Info("refresh rejected, forcing re-login", zap.Error(err))
		e.forceAnonymous(gen)
		e.emit(ctx, Event{
			EventType: events.TypeRefresh,
			Phase:     PhaseAnonymous.String(),
			Error:     ErrTokenExpired.Error(),
		})
		if errors.Is(err, ErrNetwork) {
			return e.State(), fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return e.State(), ErrTokenExpired
	}

	duration := e.config.Session.AccessTTL
	var claims *token.Claims
	if c, derr := token.Decode(next.AccessToken); derr != nil {
		e.metrics.Inc(metrics.TokenDecodeFailure)
		e.log.Warn("refreshed token claims unreadable, using configured session TTL", zap.Error(derr))
	} else {
		claims = c
		if ttl := c.TTL(e.now()); ttl > 0 {
			duration = ttl
		}
	}

	e.mu.Lock()
	if e.gen != gen || e.phase != PhaseRefreshing {
		e.mu.Unlock()
		e.metrics.Inc(metrics.LoginSuperseded)
		return AuthState{Phase: PhaseAnonymous}, ErrLoginSuperseded
	}
	if serr := e.active.Save(ctx, *next); serr != nil {
		e.log.Warn("refreshed credential persistence failed", zap.Error(serr))
	}
	if claims != nil && e.user != nil {
		// The fresh claims are authoritative; the profile fields the
		// token does not carry are kept from the existing user.
		u := *e.user
		if claims.Subject != "" {
			u.ID = claims.Subject
		}
		if claims.Role != "" {
			u.Role = permission.ParseRole(claims.Role)
		}
		if claims.Permissions != nil {
			u.Permissions = permission.NewSet(claims.Permissions...)
		}
		e.user = &u
	}
	e.phase = PhaseAuthenticated
	e.sessionEpoch = e.timer.Start(duration, e.config.Session.IdleTimeout)
	e.session = e.timer.Info()
	state := e.stateLocked()
	userID := ""
	if e.user != nil {
		userID = e.user.ID
	}
	e.mu.Unlock()

	e.metrics.Inc(metrics.RefreshSuccess)
	e.log.Info("session refreshed",
		zap.String("user_id", userID),
		zap.Duration("session", duration))
	e.emit(ctx, Event{
		EventType: events.TypeRefresh,
		Phase:     PhaseAuthenticated.String(),
		UserID:    userID,
		Success:   true,
	})
	return state, nil
}

// handleExpiry is the session timer's expiry notification, carrying the
// epoch of the session that ran out. When silent refresh is enabled one
// refresh attempt is made; on failure, or with silent refresh disabled,
// the engine drops to anonymous.
func (e *Engine) handleExpiry(epoch uint64) {
	e.mu.Lock()
	if e.phase != PhaseAuthenticated || e.sessionEpoch != epoch {
		// The expired timer belongs to a session that has since been
		// replaced or torn down; a login that committed while this
		// notification was waiting for the lock must survive it.
		e.mu.Unlock()
		return
	}
	gen := e.gen
	silent := e.config.Session.SilentRefresh
	userID := ""
	if e.user != nil {
		userID = e.user.ID
	}
	e.mu.Unlock()

	e.metrics.Inc(metrics.SessionExpired)
	e.log.Info("session expired", zap.String("user_id", userID), zap.Bool("silent_refresh", silent))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	e.emit(ctx, Event{
		EventType: events.TypeSessionExpired,
		UserID:    userID,
	})

	if silent {
		// Refresh forces anonymous itself when the attempt fails.
		if _, err := e.Refresh(ctx); err != nil {
			e.log.Info("silent refresh failed, session ended", zap.Error(err))
		}
		return
	}
	e.forceAnonymous(gen)
}

// Restore rebuilds a remembered session from the durable store after a
// process restart. An expired or unreadable
// access token is exchanged via the refresh token before giving up. When
// nothing usable is stored the engine stays anonymous.
func (e *Engine) Restore(ctx context.Context) (AuthState, error) {
	if e == nil || e.api == nil {
		return AuthState{}, ErrEngineNotReady
	}

	e.mu.Lock()
	if e.phase != PhaseAnonymous {
		st := e.stateLocked()
		e.mu.Unlock()
		return st, nil
	}
	gen := e.gen
	e.mu.Unlock()

	pair, err := e.durable.Read(ctx)
	if err != nil {
		e.log.Warn("credential restore read failed", zap.Error(err))
		return e.State(), ErrNotAuthenticated
	}
	if pair == nil {
		return e.State(), ErrNotAuthenticated
	}

	now := e.now()
	claims, derr := token.Decode(pair.AccessToken)
	if derr != nil || claims.Expired(now) {
		if pair.RefreshToken == "" {
			e.clearDurable(ctx)
			return e.State(), ErrTokenExpired
		}
		next, rerr := e.api.Refresh(ctx, pair.RefreshToken)
		if rerr != nil {
			e.log.Info("stored session unrecoverable", zap.Error(rerr))
			e.clearDurable(ctx)
			return e.State(), ErrTokenExpired
		}
		pair = next
		claims, derr = token.Decode(pair.AccessToken)
		if derr != nil {
			e.clearDurable(ctx)
			return e.State(), ErrTokenExpired
		}
		now = e.now()
	}

	tctx := e.Tenant(ctx)

	user := &AuthenticatedUser{
		ID:          claims.Subject,
		Role:        permission.ParseRole(claims.Role),
		Permissions: permission.NewSet(claims.Permissions...),
	}
	if user.Permissions.Len() == 0 {
		user.Permissions = permission.Baseline(user.Role)
	}

	duration := claims.TTL(now)
	if duration <= 0 {
		duration = e.config.Session.AccessTTL
	}

	e.mu.Lock()
	if e.gen != gen || e.phase != PhaseAnonymous {
		e.mu.Unlock()
		return AuthState{Phase: PhaseAnonymous}, ErrLoginSuperseded
	}
	if serr := e.durable.Save(ctx, *pair); serr != nil {
		e.log.Warn("restored credential persistence failed", zap.Error(serr))
	}
	e.active = e.durable
	e.user = user
	e.phase = PhaseAuthenticated
	e.sessionEpoch = e.timer.Start(duration, e.config.Session.IdleTimeout)
	e.session = e.timer.Info()
	state := e.stateLocked()
	e.mu.Unlock()

	e.metrics.Inc(metrics.SessionRestored)
	e.log.Info("session restored",
		zap.String("user_id", user.ID),
		zap.String("tenant", tctx.Subdomain),
		zap.Duration("session", duration))
	e.emit(ctx, Event{
		EventType: events.TypeRestore,
		Phase:     PhaseAuthenticated.String(),
		UserID:    user.ID,
		Tenant:    tctx.Subdomain,
		Success:   true,
	})
	return state, nil
}

func (e *Engine) clearDurable(ctx context.Context) {
	if err := e.durable.Clear(ctx); err != nil {
		e.log.Warn("durable credential clear failed", zap.Error(err))
	}
}
