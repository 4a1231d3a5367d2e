package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when JWT_SECRET is empty")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cache.TTL != 60*time.Second {
		t.Fatalf("expected default cache ttl 60s, got %s", cfg.Cache.TTL)
	}
	if cfg.Cache.SweepInterval != 0 {
		t.Fatalf("expected periodic cache sweep disabled by default, got %s", cfg.Cache.SweepInterval)
	}
	if cfg.RateLimit.Limit != 5 || cfg.RateLimit.Window != time.Minute {
		t.Fatalf("expected 5 per 60s default policy, got %d per %s", cfg.RateLimit.Limit, cfg.RateLimit.Window)
	}
	if cfg.Email.Enabled() {
		t.Fatalf("expected email disabled without resend settings")
	}
	if got := cfg.Server.Addr(); got != "0.0.0.0:9090" {
		t.Fatalf("unexpected addr %q", got)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CACHE_TTL_SECONDS", "5")
	t.Setenv("RATE_LIMIT_LOGIN", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cache.TTL != 5*time.Second {
		t.Fatalf("expected cache ttl 5s, got %s", cfg.Cache.TTL)
	}
	if cfg.RateLimit.LoginLimit != 3 {
		t.Fatalf("expected login limit 3, got %d", cfg.RateLimit.LoginLimit)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", cfg.Server.AllowedOrigins)
	}
}

func TestLoad_RejectsInvalidNumbers(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "-1")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for negative window")
	}
}
