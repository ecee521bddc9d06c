package portalauth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/classpoint/portalauth/credstore"
)

// blockingLogin holds every login call until release is closed, and
// signals arrival on entered.
func blockingLogin(f *engineFixture, entered chan<- struct{}, release <-chan struct{}) {
	f.api.setLogin(func(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return greenwoodResponse(f.clock.Now(), 15*time.Minute), nil
	})
}

func TestLogoutSupersedesInFlightLogin(t *testing.T) {
	f := newFixture(t)
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	blockingLogin(f, entered, release)

	errc := make(chan error, 1)
	go func() {
		_, err := f.engine.Login(context.Background(), Credentials{
			Identifier: "amina@greenwood.edu",
			Secret:     "correct-horse",
			Remember:   true,
		})
		errc <- err
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("login never reached the backend")
	}

	// The user clicks logout while the login response is still in flight.
	f.engine.Logout(context.Background())
	close(release)

	select {
	case err := <-errc:
		if !errors.Is(err, ErrLoginSuperseded) {
			t.Fatalf("login err = %v, want superseded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("login never returned")
	}

	if f.engine.IsAuthenticated() {
		t.Fatal("superseded login resurrected the session")
	}
	if pair, _ := f.durable.Read(context.Background()); pair != nil {
		t.Fatal("superseded login persisted tokens")
	}
	if got := f.engine.MetricsSnapshot().Counters[MetricLoginSuperseded]; got != 1 {
		t.Fatalf("superseded counted %d times", got)
	}
}

func TestDuplicateLoginsCoalesce(t *testing.T) {
	f := newFixture(t)
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	blockingLogin(f, entered, release)

	creds := Credentials{Identifier: "amina@greenwood.edu", Secret: "correct-horse"}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.engine.Login(context.Background(), creds)
		errs <- err
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first login never reached the backend")
	}

	// The double click: a second identical submission while the first is
	// in flight.
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(20 * time.Millisecond)
		_, err := f.engine.Login(context.Background(), creds)
		errs <- err
	}()

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("coalesced login failed: %v", err)
		}
	}
	if n := f.api.loginCalls.Load(); n != 1 {
		t.Fatalf("upstream calls = %d, want 1", n)
	}
	if !f.engine.IsAuthenticated() {
		t.Fatal("coalesced login did not authenticate")
	}
}

// parkingStore holds every Save until release is closed, signalling
// arrival on entered. It parks a login commit mid-flight.
type parkingStore struct {
	credstore.Store
	entered chan struct{}
	release chan struct{}
}

func (p *parkingStore) Save(ctx context.Context, pair credstore.Pair) error {
	select {
	case p.entered <- struct{}{}:
	default:
	}
	<-p.release
	return p.Store.Save(ctx, pair)
}

func TestStaleExpiryDoesNotDestroyFreshLogin(t *testing.T) {
	f := newFixture(t)
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	f.engine.durable = &parkingStore{Store: f.durable, entered: entered, release: release}

	// The first session runs out without anyone observing it.
	f.login(t, false)
	f.clock.Advance(16 * time.Minute)

	// A second login commits while the first session's deadline has
	// already passed; its persistence call parks the commit under the
	// engine lock.
	errc := make(chan error, 1)
	go func() {
		_, err := f.engine.Login(context.Background(), Credentials{
			Identifier: "amina@greenwood.edu",
			Secret:     "correct-horse",
			Remember:   true,
		})
		errc <- err
	}()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("login never reached the credential store")
	}

	// The elapsed deadline is discovered while the commit holds the lock,
	// so the expiry transition queues up behind it.
	remc := make(chan time.Duration, 1)
	go func() { remc <- f.engine.RemainingSession() }()
	time.Sleep(50 * time.Millisecond)
	close(release)

	if err := <-errc; err != nil {
		t.Fatalf("login: %v", err)
	}
	<-remc

	if !f.engine.IsAuthenticated() {
		t.Fatal("fresh session destroyed by the previous session's expiry")
	}
	if got := f.engine.RemainingSession(); got != 15*time.Minute {
		t.Fatalf("remaining = %v, want 15m", got)
	}
	if pair, _ := f.durable.Read(context.Background()); pair == nil {
		t.Fatal("fresh credentials were cleared")
	}
}

func TestCorrectedPasswordIsNotCoalesced(t *testing.T) {
	f := newFixture(t)
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	f.api.setLogin(func(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
		if req.Secret != "correct-horse" {
			select {
			case entered <- struct{}{}:
			default:
			}
			<-release
			return nil, ErrInvalidCredentials
		}
		return greenwoodResponse(f.clock.Now(), 15*time.Minute), nil
	})

	wrongc := make(chan error, 1)
	go func() {
		_, err := f.engine.Login(context.Background(), Credentials{
			Identifier: "amina@greenwood.edu",
			Secret:     "correct-hosre",
		})
		wrongc <- err
	}()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("mistyped login never reached the backend")
	}

	// The user notices the typo and resubmits while the first attempt is
	// still in flight. It must not share the mistyped attempt's outcome.
	state, err := f.engine.Login(context.Background(), Credentials{
		Identifier: "amina@greenwood.edu",
		Secret:     "correct-horse",
	})
	if err != nil {
		t.Fatalf("corrected login: %v", err)
	}
	if state.Phase != PhaseAuthenticated {
		t.Fatalf("phase = %v, want authenticated", state.Phase)
	}

	close(release)
	if err := <-wrongc; !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("mistyped login err = %v, want invalid credentials", err)
	}
	if n := f.api.loginCalls.Load(); n != 2 {
		t.Fatalf("upstream calls = %d, want 2", n)
	}
	if got := f.engine.MetricsSnapshot().Counters[MetricLoginDeduped]; got != 0 {
		t.Fatalf("distinct attempts counted as duplicates: %d", got)
	}
}

func TestConcurrentReadsDuringTransitions(t *testing.T) {
	f := newFixture(t)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = f.engine.State()
					_ = f.engine.IsAuthenticated()
					_ = f.engine.CurrentUser()
					_ = f.engine.HasPermission("view_grade")
					_ = f.engine.RemainingSession()
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		f.login(t, i%2 == 0)
		f.engine.Logout(context.Background())
	}

	close(stop)
	wg.Wait()
}
