package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Protocol   ProtocolConfig   `yaml:"protocol"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// ProtocolConfig holds the presence protocol parameters. The defaults must
// match what deployed devices and receivers were built with; changing the
// slot duration invalidates every token in flight.
type ProtocolConfig struct {
	SlotDurationSeconds    int           `yaml:"slot_duration_seconds"`
	SlotDuration           time.Duration `yaml:"-"` // derived
	SlotTolerance          int           `yaml:"slot_tolerance"`
	ClockSkewBudgetSeconds int           `yaml:"clock_skew_budget_seconds"`
	ClockSkewBudget        time.Duration `yaml:"-"` // derived
	ReplayRetentionSlots   int           `yaml:"replay_retention_slots"`
	ReplayRetention        time.Duration `yaml:"-"` // derived
}

// DatabaseConfig holds the database connection configuration. A DSN with a
// "sqlite:" prefix selects the embedded driver, anything else is treated as
// a Postgres DSN.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// PushConfig holds the VAPID keys for operator alert notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the alert worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path and applies defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values with protocol and server defaults and
// derives the duration fields.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 50
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 15
	}

	if cfg.Protocol.SlotDurationSeconds <= 0 {
		cfg.Protocol.SlotDurationSeconds = 15
	}
	cfg.Protocol.SlotDuration = time.Duration(cfg.Protocol.SlotDurationSeconds) * time.Second

	if cfg.Protocol.SlotTolerance <= 0 {
		cfg.Protocol.SlotTolerance = 1
	}
	if cfg.Protocol.ClockSkewBudgetSeconds <= 0 {
		cfg.Protocol.ClockSkewBudgetSeconds = 30
	}
	cfg.Protocol.ClockSkewBudget = time.Duration(cfg.Protocol.ClockSkewBudgetSeconds) * time.Second

	if cfg.Protocol.ReplayRetentionSlots <= 0 {
		cfg.Protocol.ReplayRetentionSlots = 6
	}
	cfg.Protocol.ReplayRetention = time.Duration(cfg.Protocol.ReplayRetentionSlots) * cfg.Protocol.SlotDuration

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
