package portalauth

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Lockout.Threshold != 5 {
		t.Fatalf("lockout threshold = %d", cfg.Lockout.Threshold)
	}
	if cfg.Lockout.MaxWindow != 30*time.Minute {
		t.Fatalf("lockout max window = %v", cfg.Lockout.MaxWindow)
	}
	if cfg.Session.AccessTTL != 15*time.Minute {
		t.Fatalf("access ttl = %v", cfg.Session.AccessTTL)
	}
	if !cfg.Session.SilentRefresh {
		t.Fatal("silent refresh disabled by default")
	}
	if !cfg.Metrics.Enabled || !cfg.Events.Enabled {
		t.Fatal("observability disabled by default")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid development preset", func(c *Config) {}, true},
		{"missing hostname", func(c *Config) { c.Tenant.Hostname = "" }, false},
		{"negative threshold", func(c *Config) { c.Lockout.Threshold = -1 }, false},
		{"negative max window", func(c *Config) { c.Lockout.MaxWindow = -time.Minute }, false},
		{"zero access ttl", func(c *Config) { c.Session.AccessTTL = 0 }, false},
		{"negative idle timeout", func(c *Config) { c.Session.IdleTimeout = -time.Second }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DevelopmentConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestPresets(t *testing.T) {
	dev := DevelopmentConfig()
	if dev.Tenant.Hostname != "localhost" {
		t.Fatalf("dev hostname = %q", dev.Tenant.Hostname)
	}
	if dev.Transport.BaseURL == "" {
		t.Fatal("dev preset has no base URL")
	}

	prod := ProductionConfig()
	if prod.Session.IdleTimeout != 15*time.Minute {
		t.Fatalf("prod idle timeout = %v", prod.Session.IdleTimeout)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portalauth.yaml")
	doc := []byte(`
lockout:
  threshold: 3
  maxWindow: 10m
session:
  accessTTL: 20m
  silentRefresh: false
tenant:
  hostname: greenwood.classpoint.app
transport:
  baseURL: https://api.classpoint.app
  timeout: 5s
metrics:
  enabled: false
`)
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Lockout.Threshold != 3 || cfg.Lockout.MaxWindow != 10*time.Minute {
		t.Fatalf("lockout = %+v", cfg.Lockout)
	}
	if cfg.Session.AccessTTL != 20*time.Minute || cfg.Session.SilentRefresh {
		t.Fatalf("session = %+v", cfg.Session)
	}
	if cfg.Tenant.Hostname != "greenwood.classpoint.app" {
		t.Fatalf("hostname = %q", cfg.Tenant.Hostname)
	}
	if cfg.Transport.Timeout != 5*time.Second {
		t.Fatalf("timeout = %v", cfg.Transport.Timeout)
	}
	if cfg.Metrics.Enabled {
		t.Fatal("metrics should be disabled")
	}
	// Keys the file does not set keep their defaults.
	if cfg.Session.IdleTimeout != 30*time.Minute {
		t.Fatalf("idle timeout = %v", cfg.Session.IdleTimeout)
	}
}

func TestLoadConfigFileRejectsBadDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portalauth.yaml")
	if err := os.WriteFile(path, []byte("session:\n  accessTTL: soon\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfigFile(path); err == nil {
		t.Fatal("expected duration parse error")
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("PORTALAUTH_HOSTNAME", "lakeside.classpoint.app")
	t.Setenv("PORTALAUTH_LOCKOUT_THRESHOLD", "7")
	t.Setenv("PORTALAUTH_SESSION_TTL", "45m")
	t.Setenv("PORTALAUTH_SILENT_REFRESH", "false")

	cfg := LoadEnv()
	if cfg.Tenant.Hostname != "lakeside.classpoint.app" {
		t.Fatalf("hostname = %q", cfg.Tenant.Hostname)
	}
	if cfg.Lockout.Threshold != 7 {
		t.Fatalf("threshold = %d", cfg.Lockout.Threshold)
	}
	if cfg.Session.AccessTTL != 45*time.Minute {
		t.Fatalf("access ttl = %v", cfg.Session.AccessTTL)
	}
	if cfg.Session.SilentRefresh {
		t.Fatal("silent refresh not overridden")
	}
	// Unset variables keep defaults.
	if cfg.Lockout.MaxWindow != 30*time.Minute {
		t.Fatalf("max window = %v", cfg.Lockout.MaxWindow)
	}
}
