package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults With Required Tokens", func(t *testing.T) {
		t.Setenv("OPERATOR_TOKEN", "op")
		t.Setenv("ADMIN_TOKEN", "adm")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.ServerAddr != ":8080" {
			t.Errorf("expected default server addr, got %q", cfg.ServerAddr)
		}
		if cfg.RetentionDays != 30 {
			t.Errorf("expected 30 day retention, got %d", cfg.RetentionDays)
		}
		if cfg.SweepInterval != time.Hour {
			t.Errorf("expected 1h sweep interval, got %v", cfg.SweepInterval)
		}
		if cfg.MaxQueryLimit != 10000 {
			t.Errorf("expected max query limit 10000, got %d", cfg.MaxQueryLimit)
		}
	})

	t.Run("Environment Overrides", func(t *testing.T) {
		t.Setenv("OPERATOR_TOKEN", "op")
		t.Setenv("ADMIN_TOKEN", "adm")
		t.Setenv("SERVER_ADDR", ":9999")
		t.Setenv("RETENTION_DAYS", "7")
		t.Setenv("API_KEY_CACHE_TTL", "90s")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.ServerAddr != ":9999" {
			t.Errorf("expected :9999, got %q", cfg.ServerAddr)
		}
		if cfg.RetentionDays != 7 {
			t.Errorf("expected 7, got %d", cfg.RetentionDays)
		}
		if cfg.APIKeyCacheTTL != 90*time.Second {
			t.Errorf("expected 90s, got %v", cfg.APIKeyCacheTTL)
		}
	})

	t.Run("Missing Required Token Fails", func(t *testing.T) {
		// t.Setenv registers the restore; the vars must be absent, not
		// merely empty, for the required check to trip.
		t.Setenv("OPERATOR_TOKEN", "x")
		t.Setenv("ADMIN_TOKEN", "x")
		os.Unsetenv("OPERATOR_TOKEN")
		os.Unsetenv("ADMIN_TOKEN")

		if _, err := Load(); err == nil {
			t.Fatal("expected an error for missing required tokens")
		}
	})
}
