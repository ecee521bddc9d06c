package portalauth

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config defines engine behavior. Configure it during initialization and
// treat it as immutable afterwards; Build clones it.
type Config struct {
	Lockout     LockoutConfig
	Session     SessionConfig
	Tenant      TenantConfig
	Credentials CredentialsConfig
	Transport   TransportConfig
	Metrics     MetricsConfig
	Events      EventsConfig
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig tunes the progressive lockout tracker.
type LockoutConfig struct {
	Threshold int           // consecutive failures before the first window
	MaxWindow time.Duration // cap on the exponential window growth
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes session lifetime tracking.
type SessionConfig struct {
	// AccessTTL is the fallback session duration used when the access
	// token carries no usable exp claim.
	AccessTTL time.Duration
	// IdleTimeout ends the session early when no activity is recorded.
	// Zero disables idle tracking.
	IdleTimeout time.Duration
	// SilentRefresh makes the engine attempt one token refresh when the
	// session expires before dropping to anonymous.
	SilentRefresh bool
}

/*
====================================
TENANT CONFIG
====================================
*/

// TenantConfig fixes the portal hostname the engine serves.
type TenantConfig struct {
	// Hostname is the portal hostname the tenant context is resolved
	// from, once per engine lifetime.
	Hostname string
}

/*
====================================
CREDENTIALS CONFIG
====================================
*/

// CredentialsConfig selects the durable token store backend used for
// "remember me" sessions. Redis wins when a client is supplied to the
// builder; otherwise FilePath is used; with neither, remembered sessions
// degrade to memory-only.
type CredentialsConfig struct {
	// Origin scopes durable keys so portals sharing a backend stay
	// isolated. Defaults to the tenant hostname.
	Origin string
	// FilePath locates the file-backed store.
	FilePath string
	// TTL bounds how long a durable pair may sit untouched (redis only).
	TTL time.Duration
}

/*
====================================
TRANSPORT CONFIG
====================================
*/

// TransportConfig is consumed by the httpapi client constructor; the
// engine itself never opens a connection.
type TransportConfig struct {
	BaseURL string
	Timeout time.Duration
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// EventsConfig controls the state-change event dispatcher.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

func defaultConfig() Config {
	return Config{
		Lockout: LockoutConfig{
			Threshold: 5,
			MaxWindow: 30 * time.Minute,
		},
		Session: SessionConfig{
			AccessTTL:     15 * time.Minute,
			IdleTimeout:   30 * time.Minute,
			SilentRefresh: true,
		},
		Transport: TransportConfig{
			Timeout: 10 * time.Second,
		},
		Credentials: CredentialsConfig{
			TTL: 30 * 24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 64,
			DropIfFull: true,
		},
	}
}

// DevelopmentConfig is a preset for local development: loopback tenant,
// short sessions, metrics on.
func DevelopmentConfig() Config {
	cfg := defaultConfig()
	cfg.Tenant.Hostname = "localhost"
	cfg.Transport.BaseURL = "http://localhost:8000"
	return cfg
}

// ProductionConfig is a preset for a deployed portal; the caller fills in
// the hostname and base URL.
func ProductionConfig() Config {
	cfg := defaultConfig()
	cfg.Session.IdleTimeout = 15 * time.Minute
	return cfg
}

func cloneConfig(cfg Config) Config {
	// All fields are value types; a shallow copy is a deep copy.
	return cfg
}

// Validate checks the configuration for values the engine cannot run
// with.
func (c *Config) Validate() error {
	if c.Lockout.Threshold < 0 {
		return errors.New("Lockout.Threshold cannot be negative")
	}
	if c.Lockout.MaxWindow < 0 {
		return errors.New("Lockout.MaxWindow cannot be negative")
	}
	if c.Session.AccessTTL <= 0 {
		return errors.New("Session.AccessTTL must be positive")
	}
	if c.Session.IdleTimeout < 0 {
		return errors.New("Session.IdleTimeout cannot be negative")
	}
	if c.Tenant.Hostname == "" {
		return errors.New("Tenant.Hostname is required")
	}
	if c.Events.Enabled && c.Events.BufferSize < 0 {
		return errors.New("Events.BufferSize cannot be negative")
	}
	return nil
}

/*
====================================
LOADERS
====================================
*/

// LoadEnv builds a config from environment variables, loading a .env file
// first when one exists. Unset variables keep their defaults.
func LoadEnv() Config {
	_ = godotenv.Load()
	cfg := defaultConfig()

	cfg.Tenant.Hostname = envString("PORTALAUTH_HOSTNAME", cfg.Tenant.Hostname)
	cfg.Transport.BaseURL = envString("PORTALAUTH_API_URL", cfg.Transport.BaseURL)
	cfg.Transport.Timeout = envDuration("PORTALAUTH_API_TIMEOUT", cfg.Transport.Timeout)
	cfg.Credentials.Origin = envString("PORTALAUTH_ORIGIN", cfg.Credentials.Origin)
	cfg.Credentials.FilePath = envString("PORTALAUTH_CRED_FILE", cfg.Credentials.FilePath)
	cfg.Lockout.Threshold = envInt("PORTALAUTH_LOCKOUT_THRESHOLD", cfg.Lockout.Threshold)
	cfg.Lockout.MaxWindow = envDuration("PORTALAUTH_LOCKOUT_MAX_WINDOW", cfg.Lockout.MaxWindow)
	cfg.Session.AccessTTL = envDuration("PORTALAUTH_SESSION_TTL", cfg.Session.AccessTTL)
	cfg.Session.IdleTimeout = envDuration("PORTALAUTH_IDLE_TIMEOUT", cfg.Session.IdleTimeout)
	cfg.Session.SilentRefresh = envBool("PORTALAUTH_SILENT_REFRESH", cfg.Session.SilentRefresh)
	cfg.Metrics.Enabled = envBool("PORTALAUTH_METRICS", cfg.Metrics.Enabled)

	return cfg
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// fileConfig is the YAML document schema; durations are strings in
// time.ParseDuration form.
type fileConfig struct {
	Lockout struct {
		Threshold *int   `yaml:"threshold"`
		MaxWindow string `yaml:"maxWindow"`
	} `yaml:"lockout"`
	Session struct {
		AccessTTL     string `yaml:"accessTTL"`
		IdleTimeout   string `yaml:"idleTimeout"`
		SilentRefresh *bool  `yaml:"silentRefresh"`
	} `yaml:"session"`
	Tenant struct {
		Hostname string `yaml:"hostname"`
	} `yaml:"tenant"`
	Credentials struct {
		Origin   string `yaml:"origin"`
		FilePath string `yaml:"filePath"`
		TTL      string `yaml:"ttl"`
	} `yaml:"credentials"`
	Transport struct {
		BaseURL string `yaml:"baseURL"`
		Timeout string `yaml:"timeout"`
	} `yaml:"transport"`
	Metrics struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

// LoadConfigFile reads a YAML config file over the defaults. Missing keys
// keep their defaults; malformed durations are errors.
func LoadConfigFile(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if fc.Lockout.Threshold != nil {
		cfg.Lockout.Threshold = *fc.Lockout.Threshold
	}
	if err := setDuration(&cfg.Lockout.MaxWindow, fc.Lockout.MaxWindow); err != nil {
		return cfg, fmt.Errorf("config: lockout.maxWindow: %w", err)
	}
	if err := setDuration(&cfg.Session.AccessTTL, fc.Session.AccessTTL); err != nil {
		return cfg, fmt.Errorf("config: session.accessTTL: %w", err)
	}
	if err := setDuration(&cfg.Session.IdleTimeout, fc.Session.IdleTimeout); err != nil {
		return cfg, fmt.Errorf("config: session.idleTimeout: %w", err)
	}
	if fc.Session.SilentRefresh != nil {
		cfg.Session.SilentRefresh = *fc.Session.SilentRefresh
	}
	if fc.Tenant.Hostname != "" {
		cfg.Tenant.Hostname = fc.Tenant.Hostname
	}
	if fc.Credentials.Origin != "" {
		cfg.Credentials.Origin = fc.Credentials.Origin
	}
	if fc.Credentials.FilePath != "" {
		cfg.Credentials.FilePath = fc.Credentials.FilePath
	}
	if err := setDuration(&cfg.Credentials.TTL, fc.Credentials.TTL); err != nil {
		return cfg, fmt.Errorf("config: credentials.ttl: %w", err)
	}
	if fc.Transport.BaseURL != "" {
		cfg.Transport.BaseURL = fc.Transport.BaseURL
	}
	if err := setDuration(&cfg.Transport.Timeout, fc.Transport.Timeout); err != nil {
		return cfg, fmt.Errorf("config: transport.timeout: %w", err)
	}
	if fc.Metrics.Enabled != nil {
		cfg.Metrics.Enabled = *fc.Metrics.Enabled
	}

	return cfg, nil
}

func setDuration(dst *time.Duration, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
