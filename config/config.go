package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"roomstatus-backend/internal/parse"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Rooms      RoomsConfig      `yaml:"rooms"`
	Remote     RemoteConfig     `yaml:"remote"`
	Sync       SyncConfig       `yaml:"sync"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the HTTP API configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the local database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// RoomsConfig describes the property layout and the scheduled-room sweep.
type RoomsConfig struct {
	MinFloor             int           `yaml:"min_floor"`
	MaxFloor             int           `yaml:"max_floor"`
	MinUnit              int           `yaml:"min_unit"`
	MaxUnit              int           `yaml:"max_unit"`
	Timezone             string        `yaml:"timezone"`
	SweepIntervalSeconds int           `yaml:"sweep_interval_seconds"`
	SweepInterval        time.Duration `yaml:"-"` // Ignored by YAML parser
}

// Ranges converts the layout bounds to the parser's form.
func (r *RoomsConfig) Ranges() parse.Ranges {
	return parse.Ranges{MinFloor: r.MinFloor, MaxFloor: r.MaxFloor, MinUnit: r.MinUnit, MaxUnit: r.MaxUnit}
}

// RemoteConfig holds the remote document store connection details.
type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"`
	UserID         string `yaml:"user_id"`
	DeviceID       string `yaml:"device_id"`
	DeviceName     string `yaml:"device_name"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// SyncConfig tunes the sync engine timers.
type SyncConfig struct {
	DebounceMillis      int           `yaml:"debounce_millis"`
	Debounce            time.Duration `yaml:"-"`
	PollIntervalSeconds int           `yaml:"poll_interval_seconds"`
	PollInterval        time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path.
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

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "roomstatus.db"
	}

	if cfg.Rooms.MaxFloor <= 0 {
		cfg.Rooms.MinFloor = 1
		cfg.Rooms.MaxFloor = 6
	}
	if cfg.Rooms.MaxUnit <= 0 {
		cfg.Rooms.MinUnit = 1
		cfg.Rooms.MaxUnit = 30
	}
	if cfg.Rooms.Timezone == "" {
		cfg.Rooms.Timezone = "UTC"
	}
	if cfg.Rooms.SweepIntervalSeconds <= 0 {
		cfg.Rooms.SweepIntervalSeconds = 15
	}
	cfg.Rooms.SweepInterval = time.Duration(cfg.Rooms.SweepIntervalSeconds) * time.Second

	if cfg.Remote.TimeoutSeconds <= 0 {
		cfg.Remote.TimeoutSeconds = 30
	}
	if cfg.Remote.DeviceID == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "unknown-device"
		}
		cfg.Remote.DeviceID = host
	}
	if cfg.Remote.DeviceName == "" {
		cfg.Remote.DeviceName = cfg.Remote.DeviceID
	}

	if cfg.Sync.DebounceMillis <= 0 {
		cfg.Sync.DebounceMillis = 1000
	}
	cfg.Sync.Debounce = time.Duration(cfg.Sync.DebounceMillis) * time.Millisecond
	if cfg.Sync.PollIntervalSeconds <= 0 {
		cfg.Sync.PollIntervalSeconds = 10
	}
	cfg.Sync.PollInterval = time.Duration(cfg.Sync.PollIntervalSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
