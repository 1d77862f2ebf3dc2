package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Session.MaxConcurrent != 2 {
		t.Errorf("Expected default max concurrent 2, got %d", cfg.Session.MaxConcurrent)
	}
	if cfg.Session.Mode != "per-task" {
		t.Errorf("Expected default per-task mode, got %q", cfg.Session.Mode)
	}
	if cfg.Tracking.BatchSize != 5 {
		t.Errorf("Expected default batch size 5, got %d", cfg.Tracking.BatchSize)
	}
	if cfg.Tracking.CacheTTL != 30*time.Minute {
		t.Errorf("Expected default cache TTL 30m, got %v", cfg.Tracking.CacheTTL)
	}
	if len(cfg.Tracking.TransitKeywords) == 0 {
		t.Error("Expected default transit keywords")
	}
	if cfg.Address() != "localhost:8080" {
		t.Errorf("Expected localhost:8080, got %q", cfg.Address())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ORDER_TRACKER_SERVER_PORT", "9090")
	t.Setenv("ORDER_TRACKER_SESSION_MODE", "shared")
	t.Setenv("ORDER_TRACKER_TRACKING_BATCH_SIZE", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %q", cfg.Server.Port)
	}
	if cfg.Session.Mode != "shared" {
		t.Errorf("Expected shared mode, got %q", cfg.Session.Mode)
	}
	if cfg.Tracking.BatchSize != 3 {
		t.Errorf("Expected batch size 3, got %d", cfg.Tracking.BatchSize)
	}
}

func TestLoadLegacyEnvNames(t *testing.T) {
	t.Setenv("SHOPIFY_STORE_URL", "example.myshopify.com")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Shopify.StoreURL != "example.myshopify.com" {
		t.Errorf("Expected legacy store URL binding, got %q", cfg.Shopify.StoreURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected legacy log level binding, got %q", cfg.Logging.Level)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"invalid port", "ORDER_TRACKER_SERVER_PORT", "not-a-port"},
		{"invalid log level", "ORDER_TRACKER_LOG_LEVEL", "verbose"},
		{"invalid session mode", "ORDER_TRACKER_SESSION_MODE", "pooled"},
		{"zero max concurrent", "ORDER_TRACKER_SESSION_MAX_CONCURRENT", "0"},
		{"zero batch size", "ORDER_TRACKER_TRACKING_BATCH_SIZE", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Expected validation error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestEmailValidation(t *testing.T) {
	t.Setenv("ORDER_TRACKER_EMAIL_ENABLED", "true")
	if _, err := Load(); err == nil {
		t.Error("Expected error when email enabled without SMTP host")
	}

	t.Setenv("ORDER_TRACKER_EMAIL_SMTP_HOST", "smtp.example.com")
	t.Setenv("ORDER_TRACKER_EMAIL_FROM", "alerts@example.com")
	t.Setenv("ORDER_TRACKER_EMAIL_TO", "ops@example.com")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected valid email config, got %v", err)
	}
	if !cfg.Email.Enabled || cfg.Email.SMTPHost != "smtp.example.com" {
		t.Errorf("Unexpected email config: %+v", cfg.Email)
	}
}
