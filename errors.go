package portalauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/classpoint/portalauth/token"
)

var (
	// ErrValidation indicates missing or malformed input; the user should
	// be re-prompted.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates a rejected identifier/secret pair.
	// Each occurrence counts toward the lockout window.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked indicates the lockout window is open; recoverable
	// only once the window elapses.
	ErrAccountLocked = errors.New("account locked")
	// ErrTenantMismatch indicates valid credentials presented on the wrong
	// tenant's portal. The lockout counter is not incremented.
	ErrTenantMismatch = errors.New("tenant mismatch")
	// ErrTokenExpired indicates the session's tokens are no longer usable
	// and a fresh login is required.
	ErrTokenExpired = errors.New("token expired")
	// ErrForbidden indicates the server refused the operation for this
	// account.
	ErrForbidden = errors.New("forbidden")
	// ErrNetwork indicates a transport failure; the user may retry.
	ErrNetwork = errors.New("network error")
	// ErrLoginSuperseded indicates a login response arrived after a logout
	// had already won the race; the state stays anonymous.
	ErrLoginSuperseded = errors.New("login superseded by logout")
	// ErrNotAuthenticated indicates an operation that requires an active
	// session was called without one.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrEngineNotReady indicates the engine was not built correctly.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrTokenMalformed is the codec's malformed-token error, re-exported
	// so callers can match it without importing the token package. A
	// malformed stored token is handled like an expired one: the session
	// cannot be trusted and a fresh login is required.
	ErrTokenMalformed = token.ErrMalformed
)

// LockoutError wraps [ErrAccountLocked] with the remaining window, either
// computed locally or carried by a 423 response's lockoutSeconds.
type LockoutError struct {
	RetryAfter time.Duration
}

// Error implements error.
func (e *LockoutError) Error() string {
	return fmt.Sprintf("account locked, retry in %s", e.RetryAfter.Round(time.Second))
}

// Unwrap makes errors.Is(err, ErrAccountLocked) hold.
func (e *LockoutError) Unwrap() error {
	return ErrAccountLocked
}
