package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"API_ADDR", "POKER_STORE", "POKER_SESSION_TTL_SECONDS", "POKER_INACTIVITY_SECONDS", "POKER_SWEEP_INTERVAL_SECONDS", "POKER_ADMIN_PASSWORD_HASH"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.Store != StoreRedis {
		t.Errorf("Store = %q", cfg.Store)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.InactivityThreshold != 5*time.Minute {
		t.Errorf("InactivityThreshold = %v", cfg.InactivityThreshold)
	}
	if cfg.SweepInterval != 30*time.Minute {
		t.Errorf("SweepInterval = %v", cfg.SweepInterval)
	}
	if cfg.AdminPasswordHash != "" {
		t.Errorf("AdminPasswordHash = %q", cfg.AdminPasswordHash)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POKER_STORE", StorePostgres)
	t.Setenv("POKER_SESSION_TTL_SECONDS", "60")
	t.Setenv("POKER_INACTIVITY_SECONDS", "not-a-number")

	cfg := Load()
	if cfg.Store != StorePostgres {
		t.Errorf("Store = %q", cfg.Store)
	}
	if cfg.SessionTTL != time.Minute {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.InactivityThreshold != 5*time.Minute {
		t.Errorf("invalid int should fall back, got %v", cfg.InactivityThreshold)
	}
}
