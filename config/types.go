package config

import "time"

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port int `yaml:"port" validate:"gt=0"`
}

// DatabaseConfig points at the reference-data database (stops, routes,
// timetable, walking connections). The DSN normally comes from the
// DATABASE_URL environment variable rather than the YAML file.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// FeedConfig describes one operator live-feed source. A source either
// polls an HTTP endpoint or subscribes to a NATS subject.
type FeedConfig struct {
	Name         string        `yaml:"name" validate:"required"`
	URL          string        `yaml:"url" validate:"omitempty,url"`
	NATSSubject  string        `yaml:"natsSubject"`
	PollInterval time.Duration `yaml:"pollInterval"`
	// RatePerMin caps outgoing requests so the aggregate stays under the
	// endpoint's documented limit.
	RatePerMin int `yaml:"ratePerMin"`
}

// NATSConfig holds the optional NATS connection for push-style feeds.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// RoutingConfig exposes the engine tunables. The hub threshold and the
// transfer buffers are heuristics, so they are configuration rather
// than hard constants.
type RoutingConfig struct {
	MinTransfer       time.Duration `yaml:"minTransfer"`
	HubMinTransfer    time.Duration `yaml:"hubMinTransfer"`
	HubScoreThreshold float64       `yaml:"hubScoreThreshold"`
	// HubMaxBonusMin is how many equivalent minutes the busiest hub is
	// preferred over an unserved stop when comparing candidate edges.
	HubMaxBonusMin float64 `yaml:"hubMaxBonusMin"`
	MaxResults        int           `yaml:"maxResults" validate:"gte=0"`
	QueryTimeout      time.Duration `yaml:"queryTimeout"`
	WaitPenaltyFactor float64       `yaml:"waitPenaltyFactor"`
	// Added minutes per disruption severity.
	MinorPenaltyMin    float64 `yaml:"minorPenaltyMin"`
	ModeratePenaltyMin float64 `yaml:"moderatePenaltyMin"`
	SeverePenaltyMin   float64 `yaml:"severePenaltyMin"`
}

// LiveConfig controls freshness classification and snapshot cadence.
type LiveConfig struct {
	FreshnessWindow time.Duration `yaml:"freshnessWindow"`
	PublishInterval time.Duration `yaml:"publishInterval"`
}

// LoggingConfig controls the zerolog output.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Console  bool   `yaml:"console"`
	FilePath string `yaml:"filePath"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server   ServerConfig   `yaml:"server" validate:"required"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	Feeds    []FeedConfig   `yaml:"feeds" validate:"dive"`
	Routing  RoutingConfig  `yaml:"routing"`
	Live     LiveConfig     `yaml:"live"`
	Logging  LoggingConfig  `yaml:"logging"`
}
