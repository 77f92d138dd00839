package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate. See .env.example.
type Config struct {
	// DatabaseURL is either a postgres:// URL or a SQLite file path.
	DatabaseURL string

	ListenAddr string

	// DeviceKey, if set, is registered at startup as the bearer token of
	// the bootstrap device named DeviceName.
	DeviceKey  string
	DeviceName string

	// RetentionDays bounds how long raw gait records are kept. Zero keeps
	// them forever. Hourly and coarser series are never pruned.
	RetentionDays int

	// Workers is the number of batch processing goroutines.
	Workers int

	Gait Gait
}

// Gait tunes the signal pipeline and the sample collector. It can be
// overridden from the YAML file named by APP_CONFIG_FILE.
type Gait struct {
	WalkingRMSThreshold float64       `yaml:"walking_rms_threshold"`
	MaxLag              int           `yaml:"max_lag"`
	BlockDuration       time.Duration `yaml:"block_duration"`
	BufferCapacity      int           `yaml:"buffer_capacity"`
	// FullLengthRMS scores walking RMS against the whole autocorrelation
	// length, the scale the default threshold was tuned on.
	FullLengthRMS bool `yaml:"full_length_rms"`
}

// Load reads configuration from environment variables and applies
// the optional YAML overlay. Environment values win over the file.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: getenv("APP_DATABASE_URL", "strideminder.db"),
		ListenAddr:  getenv("APP_LISTEN_ADDR", ":8080"),
		DeviceKey:   os.Getenv("APP_DEVICE_KEY"),
		DeviceName:  getenv("APP_DEVICE_NAME", "default"),
		Workers:     2,
		Gait: Gait{
			WalkingRMSThreshold: 0.25,
			BlockDuration:       10 * time.Second,
			BufferCapacity:      1500,
		},
	}

	if path := os.Getenv("APP_CONFIG_FILE"); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("APP_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days >= 0 {
			cfg.RetentionDays = days
		}
	}
	if v := os.Getenv("APP_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("GAIT_WALKING_RMS_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Gait.WalkingRMSThreshold = f
		}
	}
	if v := os.Getenv("GAIT_MAX_LAG"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Gait.MaxLag = n
		}
	}
	if v := os.Getenv("GAIT_FULL_LENGTH_RMS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Gait.FullLengthRMS = b
		}
	}
	if v := os.Getenv("GAIT_BLOCK_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Gait.BlockDuration = d
		}
	}
	if v := os.Getenv("GAIT_BUFFER_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			cfg.Gait.BufferCapacity = n
		}
	}

	return cfg, nil
}

type fileConfig struct {
	RetentionDays *int  `yaml:"retention_days"`
	Workers       *int  `yaml:"workers"`
	Gait          *Gait `yaml:"gait"`
}

func (c *Config) overlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if fc.RetentionDays != nil && *fc.RetentionDays >= 0 {
		c.RetentionDays = *fc.RetentionDays
	}
	if fc.Workers != nil && *fc.Workers > 0 {
		c.Workers = *fc.Workers
	}
	if g := fc.Gait; g != nil {
		if g.WalkingRMSThreshold > 0 {
			c.Gait.WalkingRMSThreshold = g.WalkingRMSThreshold
		}
		if g.MaxLag > 0 {
			c.Gait.MaxLag = g.MaxLag
		}
		if g.BlockDuration > 0 {
			c.Gait.BlockDuration = g.BlockDuration
		}
		if g.BufferCapacity > 1 {
			c.Gait.BufferCapacity = g.BufferCapacity
		}
		if g.FullLengthRMS {
			c.Gait.FullLengthRMS = true
		}
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
