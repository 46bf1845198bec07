package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the engine's top-level configuration.
type Config struct {
	Log     LogConfig     `json:"log"`
	Session SessionConfig `json:"session"`
	Bundle  BundleConfig  `json:"bundle"`
	Badger  BadgerConfig  `json:"badger"`
	Engine  EngineConfig  `json:"engine"`
	Store   StoreConfig   `json:"store"`
}

// LogConfig controls the leveled logger.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // json or text
}

// SessionConfig governs the UserAttributes cache's GC behavior.
type SessionConfig struct {
	MaxAge     time.Duration `json:"max_age"`
	GCInterval time.Duration `json:"gc_interval"`
}

// BundleConfig sizes the bundle audit ring buffer.
type BundleConfig struct {
	AuditLogSize int `json:"audit_log_size"`
}

// BadgerConfig configures the embedded cache-warm-start store.
type BadgerConfig struct {
	Dir      string `json:"dir"`
	InMemory bool   `json:"in_memory"`
}

// StoreConfig points at the gorm/sqlite structural-metadata store a
// host loads at boot (internal/storedoc).
type StoreConfig struct {
	Path string `json:"path"`
}

// EngineConfig holds engine-wide behavior switches.
type EngineConfig struct {
	// RecoveryMode, when true, suppresses RuleCollection.ruleError
	// from blocking UserResolver so a broken rule set can be repaired
	// instead of locking every session out (§4.4 step 4).
	RecoveryMode bool `json:"recovery_mode"`
}

// DefaultConfig returns the engine's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Session: SessionConfig{
			MaxAge:     24 * time.Hour,
			GCInterval: 1 * time.Minute,
		},
		Bundle: BundleConfig{
			AuditLogSize: 256,
		},
		Badger: BadgerConfig{
			Dir:      "./data/userattr-cache",
			InMemory: false,
		},
		Engine: EngineConfig{
			RecoveryMode: false,
		},
		Store: StoreConfig{
			Path: "./data/gacengine.sqlite",
		},
	}
}

// LoadConfig loads configuration from a JSON file, falling back to
// defaults for any field the file omits.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadConfigOrDefault tries the GACENGINE_CONFIG env var and a few
// common locations before falling back to defaults.
func LoadConfigOrDefault() *Config {
	if envPath := os.Getenv("GACENGINE_CONFIG"); envPath != "" {
		if cfg, err := LoadConfig(envPath); err == nil {
			return cfg
		}
	}

	possiblePaths := []string{
		"config.json",
		"./config/config.json",
		"/etc/gacengine/config.json",
	}
	for _, path := range possiblePaths {
		if absPath, err := filepath.Abs(path); err == nil {
			if cfg, err := LoadConfig(absPath); err == nil {
				return cfg
			}
		}
	}

	return DefaultConfig()
}

func validateConfig(cfg *Config) error {
	if cfg.Session.MaxAge <= 0 {
		return fmt.Errorf("session max age must be positive")
	}
	if cfg.Session.GCInterval <= 0 {
		return fmt.Errorf("session gc interval must be positive")
	}
	if cfg.Bundle.AuditLogSize < 1 {
		return fmt.Errorf("bundle audit log size must be at least 1")
	}
	return nil
}
