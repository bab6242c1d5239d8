package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.NameAttempts != 5 {
		t.Fatalf("NameAttempts = %d, want 5", cfg.NameAttempts)
	}
	if cfg.SweepInterval != 50*time.Millisecond {
		t.Fatalf("SweepInterval = %v, want 50ms", cfg.SweepInterval)
	}
	if cfg.NameRetrySleep != 50*time.Millisecond {
		t.Fatalf("NameRetrySleep = %v, want 50ms", cfg.NameRetrySleep)
	}
	if cfg.MetricsNamespace != "overseer" {
		t.Fatalf("MetricsNamespace = %q, want %q", cfg.MetricsNamespace, "overseer")
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL = %q, want empty default", cfg.DatabaseURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_NAME_ATTEMPTS", "9")
	t.Setenv("APP_SWEEP_INTERVAL", "250ms")
	t.Setenv("APP_NAME_RETRY_SLEEP", "5ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.NameAttempts != 9 {
		t.Fatalf("NameAttempts = %d, want 9", cfg.NameAttempts)
	}
	if cfg.SweepInterval != 250*time.Millisecond {
		t.Fatalf("SweepInterval = %v, want 250ms", cfg.SweepInterval)
	}
	if cfg.NameRetrySleep != 5*time.Millisecond {
		t.Fatalf("NameRetrySleep = %v, want 5ms", cfg.NameRetrySleep)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_NAME_ATTEMPTS", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want error for zero name attempts")
	}

	setCoreEnvEmpty(t)
	t.Setenv("APP_SWEEP_INTERVAL", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want parse error")
	}

	setCoreEnvEmpty(t)
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "maybe")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want bool parse error")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_NAME_ATTEMPTS",
		"APP_SWEEP_INTERVAL",
		"APP_NAME_RETRY_SLEEP",
		"APP_ALLOW_ANY_ORIGIN",
		"DATABASE_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
