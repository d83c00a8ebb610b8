package config

import (
	"testing"
	"time"

	"clinic-queue-api/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "QUEUE_SCOPE", "SERVICE_MINUTES", "NOTIFY_WINDOW",
		"OPENING_HOUR", "SESSION_TTL", "SESSION_STORE",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty (in-memory mode)", cfg.DatabaseURL)
	}
	if cfg.ScopeMode != model.ScopeByDoctor {
		t.Errorf("ScopeMode = %q, want doctor", cfg.ScopeMode)
	}
	if cfg.ServiceMinutes != 15 {
		t.Errorf("ServiceMinutes = %d, want 15", cfg.ServiceMinutes)
	}
	if cfg.NotifyWindow != 2 {
		t.Errorf("NotifyWindow = %d, want 2", cfg.NotifyWindow)
	}
	if cfg.SessionTTL != time.Hour {
		t.Errorf("SessionTTL = %s, want 1h", cfg.SessionTTL)
	}
	if cfg.SessionStore != "memory" {
		t.Errorf("SessionStore = %q, want memory", cfg.SessionStore)
	}
}

func TestLoadRejectsBadScope(t *testing.T) {
	t.Setenv("QUEUE_SCOPE", "ward")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown scope mode")
	}
}
