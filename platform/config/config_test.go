package config

import (
	"testing"
	"time"
)

func TestLoadThreadsTunablesThrough(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/leadline_test")
	t.Setenv("WEBHOOK_SIGNING_SECRET", "secret")
	t.Setenv("DELIVERY_STEP_TIMEOUT", "7s")
	t.Setenv("DEFAULT_PHONE_REGION", "KE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if got := cfg.GetDeliveryStepTimeout(); got != 7*time.Second {
		t.Errorf("GetDeliveryStepTimeout = %v, want 7s", got)
	}
	if got := cfg.GetDefaultPhoneRegion(); got != "KE" {
		t.Errorf("GetDefaultPhoneRegion = %q, want KE", got)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("WEBHOOK_SIGNING_SECRET", "secret")

	if _, err := Load(); err == nil {
		t.Fatal("Load should fail without DATABASE_URL")
	}
}
