package portalauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func badLogin(t *testing.T, f *engineFixture) error {
	t.Helper()
	_, err := f.engine.Login(context.Background(), Credentials{
		Identifier: "amina@greenwood.edu",
		Secret:     "wrong",
	})
	if err == nil {
		t.Fatal("bad credentials accepted")
	}
	return err
}

func TestLockoutOpensAtThreshold(t *testing.T) {
	f := newFixture(t)

	for i := 1; i <= 4; i++ {
		err := badLogin(t, f)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: err = %v, want invalid credentials", i, err)
		}
		if errors.Is(err, ErrAccountLocked) {
			t.Fatalf("attempt %d opened the window early", i)
		}
	}

	err := badLogin(t, f)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("threshold attempt: err = %v, want account locked", err)
	}
	var le *LockoutError
	if !errors.As(err, &le) {
		t.Fatalf("threshold attempt: err = %T, want *LockoutError", err)
	}
	if le.RetryAfter != time.Minute {
		t.Fatalf("first window = %v, want 1m", le.RetryAfter)
	}
	if n := f.api.loginCalls.Load(); n != 5 {
		t.Fatalf("upstream calls = %d, want 5", n)
	}
}

func TestLockedAttemptNeverReachesTheNetwork(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		badLogin(t, f)
	}
	before := f.api.loginCalls.Load()

	// Even correct credentials are rejected locally while the window is
	// open.
	_, err := f.engine.Login(context.Background(), Credentials{
		Identifier: "amina@greenwood.edu",
		Secret:     "correct-horse",
	})
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("err = %v, want account locked", err)
	}
	if n := f.api.loginCalls.Load(); n != before {
		t.Fatalf("locked attempt reached the network: %d -> %d calls", before, n)
	}
}

func TestHealedWindowResetsCounter(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		badLogin(t, f)
	}

	// Healing on the open-window check wipes the slate; the next failure
	// starts a fresh count instead of continuing the progression.
	f.clock.Advance(time.Minute + time.Second)
	err := badLogin(t, f)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("post-heal attempt: err = %v", err)
	}
	if got := f.engine.State().Lockout.FailedAttempts; got != 1 {
		t.Fatalf("failed attempts after heal = %d, want 1", got)
	}
}

func TestLockoutSelfHealsAfterWindow(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		badLogin(t, f)
	}
	f.clock.Advance(time.Minute + time.Second)

	state := f.login(t, false)
	if state.Phase != PhaseAuthenticated {
		t.Fatalf("phase = %v after window elapsed", state.Phase)
	}
	if state.Lockout.FailedAttempts != 0 {
		t.Fatalf("lockout state not reset: %+v", state.Lockout)
	}
}

func TestServerImposedLockoutIsAdopted(t *testing.T) {
	f := newFixture(t)
	f.api.setLogin(func(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
		return nil, &LockoutError{RetryAfter: 300 * time.Second}
	})

	err := badLogin(t, f)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("err = %v, want account locked", err)
	}

	// The server's window now gates local attempts without a round trip.
	before := f.api.loginCalls.Load()
	err = badLogin(t, f)
	var le *LockoutError
	if !errors.As(err, &le) {
		t.Fatalf("err = %T, want *LockoutError", err)
	}
	if le.RetryAfter > 300*time.Second || le.RetryAfter <= 0 {
		t.Fatalf("retry after = %v", le.RetryAfter)
	}
	if n := f.api.loginCalls.Load(); n != before {
		t.Fatal("locked attempt reached the network")
	}

	f.clock.Advance(301 * time.Second)
	f.api.setLogin(func(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
		return greenwoodResponse(f.clock.Now(), 15*time.Minute), nil
	})
	if _, err := f.engine.Login(context.Background(), Credentials{
		Identifier: "amina@greenwood.edu",
		Secret:     "correct-horse",
	}); err != nil {
		t.Fatalf("login after server window elapsed: %v", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		badLogin(t, f)
	}
	f.login(t, false)

	if got := f.engine.State().Lockout.FailedAttempts; got != 0 {
		t.Fatalf("failed attempts after success = %d", got)
	}

	// The slate is clean: four more failures stay under the threshold.
	f.engine.Logout(context.Background())
	for i := 0; i < 4; i++ {
		err := badLogin(t, f)
		if errors.Is(err, ErrAccountLocked) {
			t.Fatalf("attempt %d after reset opened the window", i+1)
		}
	}
}
