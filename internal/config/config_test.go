package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SYNC_INTERVAL", "")
	t.Setenv("SYNC_COMPANY_IDS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.SyncInterval != 5*time.Minute {
		t.Fatalf("expected 5m sync interval, got %s", cfg.SyncInterval)
	}
	if cfg.SyncMinInterval != 5*time.Minute {
		t.Fatalf("expected 5m cache gate, got %s", cfg.SyncMinInterval)
	}
	if cfg.LeadsPageSize != 25 {
		t.Fatalf("expected default page size 25, got %d", cfg.LeadsPageSize)
	}
	if cfg.ProfileMaxAttempts != 5 {
		t.Fatalf("expected 5 profile attempts, got %d", cfg.ProfileMaxAttempts)
	}
	if len(cfg.SyncCompanyIDs) != 0 {
		t.Fatalf("expected no preconfigured companies, got %v", cfg.SyncCompanyIDs)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("SYNC_INTERVAL", "90s")
	t.Setenv("SYNC_COMPANY_IDS", "co-1, co-2,,")
	t.Setenv("CONVERSATIONS_RATE_PER_SEC", "2.5")
	t.Setenv("CONVERSATIONS_MAX_RETRIES", "3")
	t.Setenv("EMAIL_PROVIDER", " SES ")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com")
	t.Setenv("DEFAULT_PHONE_REGION", "gb")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.SyncInterval != 90*time.Second {
		t.Fatalf("expected 90s interval, got %s", cfg.SyncInterval)
	}
	if len(cfg.SyncCompanyIDs) != 2 || cfg.SyncCompanyIDs[1] != "co-2" {
		t.Fatalf("unexpected company ids %v", cfg.SyncCompanyIDs)
	}
	if cfg.ConversationsRatePerSec != 2.5 {
		t.Fatalf("expected rate override, got %v", cfg.ConversationsRatePerSec)
	}
	if cfg.ConversationsMaxRetries != 3 {
		t.Fatalf("expected retries override, got %d", cfg.ConversationsMaxRetries)
	}
	if cfg.EmailProvider != "ses" {
		t.Fatalf("expected normalized email provider, got %q", cfg.EmailProvider)
	}
	if len(cfg.CORSAllowedOrigins) != 1 {
		t.Fatalf("expected one origin, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.DefaultPhoneRegion != "GB" {
		t.Fatalf("expected upper-cased region, got %s", cfg.DefaultPhoneRegion)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SYNC_SESSION_IDLE", "soon")
	t.Setenv("LEADS_PAGE_SIZE", "many")
	t.Setenv("REDIS_TLS", "maybe")
	cfg := Load()
	if cfg.SyncSessionIdle != 30*time.Minute {
		t.Fatalf("expected fallback idle, got %s", cfg.SyncSessionIdle)
	}
	if cfg.LeadsPageSize != 25 {
		t.Fatalf("expected fallback page size, got %d", cfg.LeadsPageSize)
	}
	if cfg.RedisTLS {
		t.Fatal("expected fallback redis tls false")
	}
}
