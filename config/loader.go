package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads and validates the application configuration. A .env file, if
// present, is merged into the environment first so secrets (database DSN,
// NATS URL) stay out of the YAML file.
func Load(paths ...string) (AppConfig, error) {
	_ = godotenv.Load()

	if len(paths) == 0 {
		paths = []string{"config.yml", "./deploy/config.yml"}
	}
	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return AppConfig{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Default returns a configuration with every tunable at its documented
// default. Used by tests and as the base for partial YAML files.
func Default() AppConfig {
	cfg := AppConfig{Server: ServerConfig{Port: 8080}}
	cfg.applyDefaults()
	return cfg
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Routing.MinTransfer == 0 {
		c.Routing.MinTransfer = 5 * time.Minute
	}
	if c.Routing.HubMinTransfer == 0 {
		c.Routing.HubMinTransfer = 2 * time.Minute
	}
	if c.Routing.HubScoreThreshold == 0 {
		c.Routing.HubScoreThreshold = 8
	}
	if c.Routing.HubMaxBonusMin == 0 {
		c.Routing.HubMaxBonusMin = 5
	}
	if c.Routing.MaxResults == 0 {
		c.Routing.MaxResults = 3
	}
	if c.Routing.QueryTimeout == 0 {
		c.Routing.QueryTimeout = 5 * time.Second
	}
	if c.Routing.WaitPenaltyFactor == 0 {
		c.Routing.WaitPenaltyFactor = 1.5
	}
	if c.Routing.MinorPenaltyMin == 0 {
		c.Routing.MinorPenaltyMin = 5
	}
	if c.Routing.ModeratePenaltyMin == 0 {
		c.Routing.ModeratePenaltyMin = 12
	}
	if c.Routing.SeverePenaltyMin == 0 {
		c.Routing.SeverePenaltyMin = 25
	}
	if c.Live.FreshnessWindow == 0 {
		c.Live.FreshnessWindow = 5 * time.Minute
	}
	if c.Live.PublishInterval == 0 {
		c.Live.PublishInterval = 30 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	for i := range c.Feeds {
		if c.Feeds[i].PollInterval == 0 {
			c.Feeds[i].PollInterval = 30 * time.Second
		}
		if c.Feeds[i].RatePerMin == 0 {
			c.Feeds[i].RatePerMin = 30
		}
	}
}

func (c *AppConfig) applyEnv() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		c.NATS.URL = url
	}
}
