package instance

import "testing"

func TestGetIDPrefersEnv(t *testing.T) {
	t.Setenv("STOREFRONT_INSTANCE_ID", "cron-7")
	if got := GetID(); got != "cron-7" {
		t.Fatalf("expected env id, got %q", got)
	}
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv("STOREFRONT_INSTANCE_ID", "")
	if GetID() == "" {
		t.Fatal("expected a fallback id")
	}
}
