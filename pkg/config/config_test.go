package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PAYFLOW_APP_ENV", "dev")
	t.Setenv("PAYFLOW_APP_PORT", "8080")
	t.Setenv("PAYFLOW_DB_DSN", "host=localhost port=5432 user=payflow dbname=payflow sslmode=disable")
	t.Setenv("PAYFLOW_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PAYFLOW_RAIL_BASE_URL", "https://rail.example.com")
	t.Setenv("PAYFLOW_RAIL_API_KEY", "test-key")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Scheduler.TickInterval != time.Minute {
		t.Fatalf("unexpected tick interval %s", cfg.Scheduler.TickInterval)
	}
	if cfg.Scheduler.BatchSize != 50 {
		t.Fatalf("unexpected batch size %d", cfg.Scheduler.BatchSize)
	}
	if cfg.Scheduler.MaxConcurrent != 10 {
		t.Fatalf("unexpected max concurrent %d", cfg.Scheduler.MaxConcurrent)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Fatalf("unexpected max retries %d", cfg.Retry.MaxRetries)
	}
	if cfg.Rail.RequestTimeout != 30*time.Second {
		t.Fatalf("unexpected rail timeout %s", cfg.Rail.RequestTimeout)
	}
	if cfg.Health.FailureRateThreshold != 0.05 {
		t.Fatalf("unexpected failure rate threshold %f", cfg.Health.FailureRateThreshold)
	}
	if !cfg.App.IsDev() || cfg.App.IsProd() {
		t.Fatal("expected dev environment")
	}
}

func TestLoadComposesDSNFromParts(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PAYFLOW_DB_DSN", "")
	t.Setenv("PAYFLOW_DB_HOST", "db.internal")
	t.Setenv("PAYFLOW_DB_USER", "payflow")
	t.Setenv("PAYFLOW_DB_NAME", "payouts")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := "host=db.internal port=5432 user=payflow password= dbname=payouts sslmode=disable"
	if cfg.DB.DSN != want {
		t.Fatalf("unexpected DSN %q", cfg.DB.DSN)
	}
}

func TestLoadRejectsInvalidCommissionRate(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PAYFLOW_COMMISSION_BASE_RATE", "seventy")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid commission rate")
	}
}

func TestFeeConfigDecimals(t *testing.T) {
	fees := FeeConfig{
		StandardPercent:  "0.25",
		StandardFixed:    "0.25",
		ExpeditedPercent: "1.0",
		ExpeditedFixed:   "0",
	}
	if got := fees.StandardRate().String(); got != "0.0025" {
		t.Fatalf("unexpected standard rate %s", got)
	}
	if got := fees.ExpeditedRate().String(); got != "0.01" {
		t.Fatalf("unexpected expedited rate %s", got)
	}
}
