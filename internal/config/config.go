package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
)

// CurrentSchemaVersion is the current config schema version.
const CurrentSchemaVersion = 1

// Environment variable names for config overrides.
// Priority: Environment > Config File > Default
const (
	EnvPort               = "LOGTRAIL_PORT"
	EnvLanEnabled         = "LOGTRAIL_LAN_ENABLED"
	EnvDBPath             = "LOGTRAIL_DB_PATH"
	EnvNotifyBatchSec     = "LOGTRAIL_NOTIFY_BATCH_SEC"
	EnvNotifyOnConnect    = "LOGTRAIL_NOTIFY_ON_CONNECT"
	EnvNotifyOnDisconnect = "LOGTRAIL_NOTIFY_ON_DISCONNECT"
	EnvLookupEnabled      = "LOGTRAIL_LOOKUP_ENABLED"
	EnvStrictCorrelation  = "LOGTRAIL_STRICT_CORRELATION"
	EnvPendingTTLSec      = "LOGTRAIL_PENDING_TTL_SEC"
)

// Config holds non-sensitive application configuration.
type Config struct {
	SchemaVersion      int    `json:"schema_version"`
	Port               int    `json:"port"`
	LanEnabled         bool   `json:"lan_enabled"`
	DBPath             string `json:"db_path"`
	NotifyBatchSec     int    `json:"notify_batch_sec"`
	NotifyOnConnect    bool   `json:"notify_on_connect"`
	NotifyOnDisconnect bool   `json:"notify_on_disconnect"`
	LookupEnabled      bool   `json:"lookup_enabled"`
	StrictCorrelation  bool   `json:"strict_correlation"`
	PendingTTLSec      int    `json:"pending_ttl_sec"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SchemaVersion:      CurrentSchemaVersion,
		Port:               8080,
		LanEnabled:         false,
		DBPath:             "", // data directory default
		NotifyBatchSec:     3,
		NotifyOnConnect:    true,
		NotifyOnDisconnect: true,
		LookupEnabled:      true,
		StrictCorrelation:  false,
		PendingTTLSec:      600,
	}
}

// LoadConfig reads config from disk. If the file doesn't exist or is corrupt,
// it returns DefaultConfig with a warning logged (non-fatal).
func LoadConfig() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}

	return LoadConfigFrom(path)
}

// LoadConfigFrom reads config from the specified path.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// File doesn't exist, use defaults (not an error)
			return cfg, nil
		}
		log.Printf("Warning: failed to read config file: %v, using defaults", err)
		return cfg, nil
	}

	// Try to parse JSON
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&cfg); err != nil {
		log.Printf("Warning: config file is corrupt: %v, using defaults", err)
		return DefaultConfig(), nil
	}

	// Check schema version
	if cfg.SchemaVersion != CurrentSchemaVersion {
		log.Printf("Warning: config schema version mismatch (got %d, expected %d), using defaults",
			cfg.SchemaVersion, CurrentSchemaVersion)
		return DefaultConfig(), nil
	}

	// Normalize/validate values
	cfg = normalizeConfig(cfg)

	return cfg, nil
}

// normalizeConfig validates and normalizes config values.
func normalizeConfig(cfg Config) Config {
	defaults := DefaultConfig()

	// Ensure schema version
	cfg.SchemaVersion = CurrentSchemaVersion

	// Validate port
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = defaults.Port
	}

	// Validate batch seconds
	if cfg.NotifyBatchSec < 0 {
		cfg.NotifyBatchSec = defaults.NotifyBatchSec
	}

	// Validate pending TTL
	if cfg.PendingTTLSec <= 0 {
		cfg.PendingTTLSec = defaults.PendingTTLSec
	}

	return cfg
}

// SaveConfig writes config to disk atomically.
func SaveConfig(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	return SaveConfigTo(cfg, path)
}

// SaveConfigTo writes config to the specified path atomically.
func SaveConfigTo(cfg Config, path string) error {
	// Ensure schema version is set
	cfg.SchemaVersion = CurrentSchemaVersion

	return writeJSONAtomic(path, cfg)
}

// ApplyEnvOverrides applies environment variable overrides to the config.
// Environment variables take highest priority over config file values.
func ApplyEnvOverrides(cfg Config) Config {
	// Port
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 && port <= 65535 {
			cfg.Port = port
		}
	}

	// LAN enabled
	if v := os.Getenv(EnvLanEnabled); v != "" {
		cfg.LanEnabled = parseBool(v)
	}

	// Database path
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}

	// Notification batch seconds
	if v := os.Getenv(EnvNotifyBatchSec); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec >= 0 {
			cfg.NotifyBatchSec = sec
		}
	}

	// Notify on connect
	if v := os.Getenv(EnvNotifyOnConnect); v != "" {
		cfg.NotifyOnConnect = parseBool(v)
	}

	// Notify on disconnect
	if v := os.Getenv(EnvNotifyOnDisconnect); v != "" {
		cfg.NotifyOnDisconnect = parseBool(v)
	}

	// Name lookup
	if v := os.Getenv(EnvLookupEnabled); v != "" {
		cfg.LookupEnabled = parseBool(v)
	}

	// Strict correlation
	if v := os.Getenv(EnvStrictCorrelation); v != "" {
		cfg.StrictCorrelation = parseBool(v)
	}

	// Pending TTL seconds
	if v := os.Getenv(EnvPendingTTLSec); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			cfg.PendingTTLSec = sec
		}
	}

	return cfg
}

// parseBool parses a boolean from various string representations.
// Accepts: "true", "1", "yes", "on" (case-insensitive) as true.
// All other values are treated as false.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
