package lockout

import (
	"sync"
	"time"
)

const (
	// DefaultThreshold is the number of consecutive failures that triggers
	// the first lockout window.
	DefaultThreshold = 5
	// DefaultMaxWindow caps the exponential lockout window growth.
	DefaultMaxWindow = 30 * time.Minute
)

// State is a snapshot of the tracker. LockedUntil is the zero time while
// no lockout window is open.
type State struct {
	FailedAttempts int
	LockedUntil    time.Time
}

// Config holds tracker tuning. Zero values fall back to the defaults.
type Config struct {
	Threshold int
	MaxWindow time.Duration
	Now       func() time.Time
}

// Tracker counts consecutive failed login attempts and computes an
// exponentially growing lockout window: the threshold-th failure locks for
// one minute, each further failure doubles the window up to MaxWindow.
// A single slip earns a short lock; a sustained brute-force run earns the
// cap.
type Tracker struct {
	mu        sync.Mutex
	threshold int
	maxWindow time.Duration
	now       func() time.Time
	state     State
}

// NewTracker creates a tracker. The injectable Now function keeps lockout
// behavior deterministic under test.
func NewTracker(cfg Config) *Tracker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MaxWindow <= 0 {
		cfg.MaxWindow = DefaultMaxWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Tracker{
		threshold: cfg.Threshold,
		maxWindow: cfg.MaxWindow,
		now:       cfg.Now,
	}
}

// RecordFailure counts one failed attempt and opens or extends the lockout
// window once the threshold is reached. Rejecting attempts while a window
// is open is the caller's job via [Tracker.Locked]; a rejected attempt
// never reaches RecordFailure, so a locked client is not double-penalized.
func (t *Tracker) RecordFailure() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.FailedAttempts++
	if t.state.FailedAttempts >= t.threshold {
		t.state.LockedUntil = t.now().Add(t.window(t.state.FailedAttempts))
	}
	return t.state
}

// RecordSuccess resets the tracker after a successful login.
func (t *Tracker) RecordSuccess() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = State{}
	return t.state
}

// Locked reports whether a lockout window is currently open. Once the
// window has elapsed the tracker heals itself: the failure counter resets
// to zero as a side effect of the check, no manual unlock needed.
func (t *Tracker) Locked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.healLocked(now)
	return t.lockedAt(now)
}

// RetryAfter returns how long until the open window elapses, or zero when
// not locked.
func (t *Tracker) RetryAfter() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.healLocked(now)
	if !t.lockedAt(now) {
		return 0
	}
	return t.state.LockedUntil.Sub(now)
}

// LockFor opens a lockout window imposed from outside, typically the
// lockoutSeconds a 423 response carries, so the local tracker and the
// server agree. The failure counter is raised to the threshold so the
// next local failure continues the exponential progression.
func (t *Tracker) LockFor(d time.Duration) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	if d <= 0 {
		return t.state
	}
	if t.state.FailedAttempts < t.threshold {
		t.state.FailedAttempts = t.threshold
	}
	t.state.LockedUntil = t.now().Add(d)
	return t.state
}

// Snapshot returns the current state without healing or mutating it.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) lockedAt(now time.Time) bool {
	return !t.state.LockedUntil.IsZero() && now.Before(t.state.LockedUntil)
}

func (t *Tracker) healLocked(now time.Time) {
	if t.state.LockedUntil.IsZero() {
		return
	}
	if !now.Before(t.state.LockedUntil) {
		t.state = State{}
	}
}

// window computes the lockout duration for the given failure count:
// 1, 2, 4, 8, 16 minutes for failures 5..9, then the 30-minute cap.
func (t *Tracker) window(failures int) time.Duration {
	over := failures - t.threshold
	if over < 0 {
		return 0
	}
	if over > 30 {
		return t.maxWindow
	}
	d := time.Duration(1<<uint(over)) * time.Minute
	if d > t.maxWindow {
		return t.maxWindow
	}
	return d
}
