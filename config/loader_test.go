package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Routing.MinTransfer != 5*time.Minute {
		t.Fatalf("minTransfer = %v, want 5m", cfg.Routing.MinTransfer)
	}
	if cfg.Routing.MaxResults != 3 || cfg.Routing.WaitPenaltyFactor != 1.5 || cfg.Routing.HubMaxBonusMin != 5 {
		t.Fatalf("routing defaults = %+v", cfg.Routing)
	}
	if cfg.Live.FreshnessWindow != 5*time.Minute || cfg.Live.PublishInterval != 30*time.Second {
		t.Fatalf("live defaults = %+v", cfg.Live)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("log level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_FeedDefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
feeds:
  - name: rail-live
    url: "https://feeds.example.net/live.json"
  - name: bus-live
    url: "https://feeds.example.net/bus.json"
    pollInterval: 15s
    ratePerMin: 60
routing:
  hubScoreThreshold: 12
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Feeds[0].PollInterval != 30*time.Second || cfg.Feeds[0].RatePerMin != 30 {
		t.Fatalf("feed defaults = %+v", cfg.Feeds[0])
	}
	if cfg.Feeds[1].PollInterval != 15*time.Second || cfg.Feeds[1].RatePerMin != 60 {
		t.Fatalf("feed overrides = %+v", cfg.Feeds[1])
	}
	if cfg.Routing.HubScoreThreshold != 12 {
		t.Fatalf("hub threshold = %v, want 12", cfg.Routing.HubScoreThreshold)
	}
}

func TestLoad_EnvironmentOverridesDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://router:secret@db/transit")
	path := writeConfig(t, "server:\n  port: 8080\ndatabase:\n  dsn: \"postgres://file\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.DSN != "postgres://router:secret@db/transit" {
		t.Fatalf("dsn = %q, want the environment value", cfg.Database.DSN)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	cases := []struct {
		name     string
		contents string
	}{
		{"negative port", "server:\n  port: -1\n"},
		{"feed without name", "server:\n  port: 8080\nfeeds:\n  - url: \"https://feeds.example.net/x\"\n"},
		{"bad url", "server:\n  port: 8080\nfeeds:\n  - name: x\n    url: \"not a url\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.contents)
			if _, err := Load(path); err == nil {
				t.Fatal("invalid configuration accepted")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 8080 || cfg.Routing.QueryTimeout != 5*time.Second {
		t.Fatalf("defaults = %+v", cfg)
	}
}
