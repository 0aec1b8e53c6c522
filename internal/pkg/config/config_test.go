package config_test

import (
	"strings"
	"testing"

	"github.com/samirrijal/miniguide/internal/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("miniguide-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Search.Debounce().Milliseconds() != 200 {
		t.Errorf("expected 200ms debounce, got %s", cfg.Search.Debounce())
	}
	if cfg.Cache.Driver != "memory" {
		t.Errorf("expected memory cache, got %s", cfg.Cache.Driver)
	}
	if cfg.Telemetry.ServiceName != "miniguide-test" {
		t.Errorf("expected service name from argument, got %s", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MINIGUIDE_ROUTING_STYLE", "query")
	t.Setenv("MINIGUIDE_SEARCH_DEBOUNCE_MS", "350")

	cfg, err := config.Load("miniguide-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Routing.Style != "query" {
		t.Errorf("expected style query, got %s", cfg.Routing.Style)
	}
	if cfg.Search.DebounceMS != 350 {
		t.Errorf("expected debounce 350, got %d", cfg.Search.DebounceMS)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg, err := config.Load("miniguide-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Server.Port = 0
	cfg.Cache.Driver = "redis"
	cfg.Routing.Style = "graphhopper"

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.port", "cache.driver", "routing.style"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in error, got:\n%s", want, err)
		}
	}
}

func TestValidate_DatabaseOnlyWhenEnabled(t *testing.T) {
	cfg, err := config.Load("miniguide-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Database.Host = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled database must not be validated: %v", err)
	}

	cfg.Database.Enabled = true
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "database.host") {
		t.Fatalf("expected database.host error, got %v", err)
	}
}

func TestLoad_TrackerDefaults(t *testing.T) {
	t.Setenv("MINIGUIDE_TRACKER_DEVICE", "phone-1")

	cfg, err := config.Load("miniguide-tracker")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Tracker.Device != "phone-1" {
		t.Errorf("expected device from env, got %q", cfg.Tracker.Device)
	}
	if cfg.Tracker.DesktopID != "miniguide" || cfg.Tracker.Accuracy != 8 {
		t.Errorf("unexpected tracker defaults: %+v", cfg.Tracker)
	}
}
