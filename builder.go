package portalauth

import (
	"errors"
	"time"

	"github.com/classpoint/portalauth/credstore"
	"github.com/classpoint/portalauth/internal/events"
	"github.com/classpoint/portalauth/internal/metrics"
	"github.com/classpoint/portalauth/lockout"
	"github.com/classpoint/portalauth/session"
	"github.com/classpoint/portalauth/tenant"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. Builders are one-shot: Build may be
// called once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	api       API
	store     credstore.Store
	directory tenant.Directory
	sink      EventSink
	logger    *zap.Logger
	now       func() time.Time
	schedule  session.Scheduler

	built bool
}

// New creates a builder with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithAPI sets the authentication collaborator. Required.
func (b *Builder) WithAPI(api API) *Builder {
	b.api = api
	return b
}

// WithRedis selects a Redis-backed durable credential store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore overrides the durable credential store backend.
// Takes precedence over WithRedis and Credentials.FilePath.
func (b *Builder) WithCredentialStore(store credstore.Store) *Builder {
	b.store = store
	return b
}

// WithTenantDirectory sets the tenant metadata lookup. When unset and the
// API implementation also serves tenant metadata, it is used directly.
func (b *Builder) WithTenantDirectory(dir tenant.Directory) *Builder {
	b.directory = dir
	return b
}

// WithEventSink sets the observer for auth state transitions.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.sink = sink
	return b
}

// WithLogger sets the structured logger. Default is a no-op logger.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.logger = log
	return b
}

// WithClock injects the time source, making lockout and session expiry
// deterministic under test.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithScheduler injects the timer scheduler used for session expiry.
func (b *Builder) WithScheduler(schedule session.Scheduler) *Builder {
	b.schedule = schedule
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the wiring and assembles the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.api == nil {
		return nil, errors.New("API collaborator required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := b.logger
	if log == nil {
		log = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	origin := cfg.Credentials.Origin
	if origin == "" {
		origin = cfg.Tenant.Hostname
	}

	// -------- DURABLE CREDENTIAL STORE --------
	durable := b.store
	if durable == nil && b.redis != nil {
		store, err := credstore.NewRedis(b.redis, origin, cfg.Credentials.TTL)
		if err != nil {
			return nil, err
		}
		durable = store
	}
	if durable == nil && cfg.Credentials.FilePath != "" {
		store, err := credstore.NewFile(cfg.Credentials.FilePath)
		if err != nil {
			return nil, err
		}
		durable = store
	}
	if durable == nil {
		// Remembered sessions degrade to process lifetime.
		log.Warn("no durable credential backend configured, remember-me sessions will not survive a restart")
		durable = credstore.NewMemory()
	}

	// -------- TENANT RESOLUTION --------
	directory := b.directory
	if directory == nil {
		if dir, ok := b.api.(tenant.Directory); ok {
			directory = dir
		}
	}

	engine := &Engine{
		config:   cfg,
		api:      b.api,
		log:      log,
		now:      now,
		resolver: tenant.NewResolver(directory, log),
		tracker: lockout.NewTracker(lockout.Config{
			Threshold: cfg.Lockout.Threshold,
			MaxWindow: cfg.Lockout.MaxWindow,
			Now:       now,
		}),
		durable: durable,
		memory:  credstore.NewMemory(),
		metrics: metrics.New(metrics.Config{Enabled: cfg.Metrics.Enabled}),
		events: events.NewDispatcher(events.Config{
			Enabled:    cfg.Events.Enabled,
			BufferSize: cfg.Events.BufferSize,
			DropIfFull: cfg.Events.DropIfFull,
		}, b.sink),
		phase: PhaseAnonymous,
	}
	engine.timer = session.NewTimer(session.TimerConfig{
		Now:      now,
		Schedule: b.schedule,
		OnExpire: engine.handleExpiry,
	})

	b.built = true

	return engine, nil
}
