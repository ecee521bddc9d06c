package session

import (
	"sync"
	"time"
)

// TimerState is the lifecycle state of a session timer.
type TimerState uint8

const (
	// Inactive means no session is being tracked.
	Inactive TimerState = iota
	// Active means a session is running and has time remaining.
	Active
	// Expired means the session ran out; Clear returns to Inactive.
	Expired
)

// Info describes the tracked session: its absolute expiry instant and the
// idle timeout that may cut it short.
type Info struct {
	ExpiresAt   time.Time
	IdleTimeout time.Duration
}

// Scheduler schedules fn to run once after d and returns a cancel
// function. The default wraps [time.AfterFunc]; tests substitute a manual
// scheduler so expiry is deterministic without wall-clock waits.
type Scheduler func(d time.Duration, fn func()) (cancel func())

// TimerConfig wires the timer's clock, scheduler and expiry notification.
// Nil fields fall back to real time. OnExpire receives the epoch returned
// by the Start call that began the expiring session, so a notification
// that was delayed in flight can be matched against the session it
// belongs to.
type TimerConfig struct {
	Now      func() time.Time
	Schedule Scheduler
	OnExpire func(epoch uint64)
}

// Timer tracks absolute expiry and idle timeout for one authenticated
// session. A single callback is scheduled per session; starting a new
// session cancels the previous callback before scheduling the next, so no
// orphaned timers survive a re-login.
//
// Expiry is observed two ways and both must agree: the scheduled callback
// fires the transition, and an on-demand Remaining query that discovers
// the deadline has passed fires the same transition. Either way the
// OnExpire notification runs exactly once per session.
type Timer struct {
	mu       sync.Mutex
	now      func() time.Time
	schedule Scheduler
	onExpire func(epoch uint64)

	state        TimerState
	expiresAt    time.Time
	idleTimeout  time.Duration
	idleDeadline time.Time
	cancel       func()
	gen          uint64
}

// NewTimer creates a timer in the Inactive state.
func NewTimer(cfg TimerConfig) *Timer {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Schedule == nil {
		cfg.Schedule = func(d time.Duration, fn func()) func() {
			t := time.AfterFunc(d, fn)
			return func() { t.Stop() }
		}
	}
	return &Timer{
		now:      cfg.Now,
		schedule: cfg.Schedule,
		onExpire: cfg.OnExpire,
	}
}

// Start begins tracking a session that expires after duration, or earlier
// when idleTimeout elapses without a Touch. Any previously running timer
// is cancelled first. The returned epoch identifies the new session; the
// same epoch is handed to OnExpire when this session runs out.
func (t *Timer) Start(duration, idleTimeout time.Duration) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()
	now := t.now()
	t.state = Active
	t.expiresAt = now.Add(duration)
	t.idleTimeout = idleTimeout
	t.idleDeadline = time.Time{}
	if idleTimeout > 0 {
		t.idleDeadline = now.Add(idleTimeout)
	}
	t.gen++
	t.scheduleLocked(now)
	return t.gen
}

// Touch resets the idle deadline. It is a no-op unless the timer is Active
// with an idle timeout configured.
func (t *Timer) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Active || t.idleTimeout <= 0 {
		return
	}
	now := t.now()
	t.idleDeadline = now.Add(t.idleTimeout)
	t.cancelLocked()
	t.scheduleLocked(now)
}

// Clear stops tracking and returns to Inactive. Clearing an Inactive timer
// is a no-op.
func (t *Timer) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()
	t.state = Inactive
	t.expiresAt = time.Time{}
	t.idleTimeout = 0
	t.idleDeadline = time.Time{}
	t.gen++
}

// Remaining returns the time left before the session expires, clamped at
// zero. Discovering an elapsed deadline here fires the expiry transition
// if the scheduled callback has not fired it yet.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	if t.state != Active {
		t.mu.Unlock()
		return 0
	}

	rem := t.remainingLocked(t.now())
	if rem > 0 {
		t.mu.Unlock()
		return rem
	}

	cb := t.expireLocked()
	t.mu.Unlock()
	if cb != nil {
		cb()
	}
	return 0
}

// State returns the current lifecycle state.
func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Info returns a snapshot of the tracked session. The zero Info is
// returned while Inactive.
func (t *Timer) Info() Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Inactive {
		return Info{}
	}
	return Info{ExpiresAt: t.expiresAt, IdleTimeout: t.idleTimeout}
}

func (t *Timer) remainingLocked(now time.Time) time.Duration {
	deadline := t.expiresAt
	if !t.idleDeadline.IsZero() && t.idleDeadline.Before(deadline) {
		deadline = t.idleDeadline
	}
	rem := deadline.Sub(now)
	if rem < 0 {
		return 0
	}
	return rem
}

// expireLocked transitions Active -> Expired and returns the notification
// callback to run outside the lock, or nil when no transition happened.
// The callback carries the epoch of the session that expired.
func (t *Timer) expireLocked() func() {
	if t.state != Active {
		return nil
	}
	t.cancelLocked()
	t.state = Expired
	if t.onExpire == nil {
		return nil
	}
	cb, epoch := t.onExpire, t.gen
	return func() { cb(epoch) }
}

func (t *Timer) scheduleLocked(now time.Time) {
	gen := t.gen
	d := t.remainingLocked(now)
	t.cancel = t.schedule(d, func() { t.fire(gen) })
}

func (t *Timer) cancelLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

func (t *Timer) fire(gen uint64) {
	t.mu.Lock()
	if t.gen != gen || t.state != Active {
		t.mu.Unlock()
		return
	}

	now := t.now()
	if rem := t.remainingLocked(now); rem > 0 {
		// A Touch pushed the deadline out after this callback was
		// scheduled; chase the new deadline instead of expiring.
		t.scheduleLocked(now)
		t.mu.Unlock()
		return
	}

	cb := t.expireLocked()
	t.mu.Unlock()
	if cb != nil {
		cb()
	}
}
