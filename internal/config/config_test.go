package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFrom_NotExist(t *testing.T) {
	// Load from non-existent file should return defaults
	cfg, err := LoadConfigFrom("/nonexistent/path/config.json")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.Port != defaults.Port {
		t.Errorf("expected port %d, got %d", defaults.Port, cfg.Port)
	}
	if cfg.SchemaVersion != defaults.SchemaVersion {
		t.Errorf("expected schema version %d, got %d", defaults.SchemaVersion, cfg.SchemaVersion)
	}
}

func TestLoadConfigFrom_Corrupt(t *testing.T) {
	// Create temp file with corrupt JSON
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(path, []byte("not valid json{{{"), 0600); err != nil {
		t.Fatal(err)
	}

	// Load should return defaults (with warning logged)
	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.Port != defaults.Port {
		t.Errorf("expected default port %d, got %d", defaults.Port, cfg.Port)
	}
}

func TestLoadConfigFrom_InvalidVersion(t *testing.T) {
	// Create temp file with wrong schema version
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	content := `{"schema_version": 999, "port": 9999}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	// Load should return defaults due to version mismatch
	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.Port != defaults.Port {
		t.Errorf("expected default port %d, got %d", defaults.Port, cfg.Port)
	}
}

func TestSaveLoadConfig_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	// Create custom config
	original := Config{
		SchemaVersion:      CurrentSchemaVersion,
		Port:               9000,
		LanEnabled:         true,
		DBPath:             "/custom/path/db.sqlite",
		NotifyBatchSec:     5,
		NotifyOnConnect:    false,
		NotifyOnDisconnect: true,
		LookupEnabled:      false,
		StrictCorrelation:  true,
		PendingTTLSec:      120,
	}

	// Save
	if err := SaveConfigTo(original, path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	// Load
	loaded, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Compare
	if loaded.Port != original.Port {
		t.Errorf("port mismatch: expected %d, got %d", original.Port, loaded.Port)
	}
	if loaded.LanEnabled != original.LanEnabled {
		t.Errorf("lan_enabled mismatch: expected %v, got %v", original.LanEnabled, loaded.LanEnabled)
	}
	if loaded.DBPath != original.DBPath {
		t.Errorf("db_path mismatch: expected %s, got %s", original.DBPath, loaded.DBPath)
	}
	if loaded.NotifyBatchSec != original.NotifyBatchSec {
		t.Errorf("notify_batch_sec mismatch: expected %d, got %d", original.NotifyBatchSec, loaded.NotifyBatchSec)
	}
	if loaded.NotifyOnConnect != original.NotifyOnConnect {
		t.Errorf("notify_on_connect mismatch: expected %v, got %v", original.NotifyOnConnect, loaded.NotifyOnConnect)
	}
	if loaded.StrictCorrelation != original.StrictCorrelation {
		t.Errorf("strict_correlation mismatch: expected %v, got %v", original.StrictCorrelation, loaded.StrictCorrelation)
	}
	if loaded.PendingTTLSec != original.PendingTTLSec {
		t.Errorf("pending_ttl_sec mismatch: expected %d, got %d", original.PendingTTLSec, loaded.PendingTTLSec)
	}
}

func TestLoadConfigFrom_NormalizesInvalidPort(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	// Create config with invalid port
	content := `{"schema_version": 1, "port": -1}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.Port != defaults.Port {
		t.Errorf("expected normalized port %d, got %d", defaults.Port, cfg.Port)
	}
}

func TestLoadConfigFrom_NormalizesInvalidTTL(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	content := `{"schema_version": 1, "pending_ttl_sec": 0}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.PendingTTLSec != defaults.PendingTTLSec {
		t.Errorf("expected normalized pending TTL %d, got %d", defaults.PendingTTLSec, cfg.PendingTTLSec)
	}
}

func TestSecret_StringMasking(t *testing.T) {
	secret := Secret("my-super-secret-password")

	// String() should return [REDACTED]
	if s := secret.String(); s != "[REDACTED]" {
		t.Errorf("String() should return [REDACTED], got %s", s)
	}

	// GoString() should return [REDACTED]
	if s := secret.GoString(); s != "[REDACTED]" {
		t.Errorf("GoString() should return [REDACTED], got %s", s)
	}

	// Value() should return the actual value
	if v := secret.Value(); v != "my-super-secret-password" {
		t.Errorf("Value() should return actual value, got %s", v)
	}

	// fmt.Sprintf with %s should use String()
	formatted := fmt.Sprintf("%s", secret)
	if formatted != "[REDACTED]" {
		t.Errorf("%%s formatting should return [REDACTED], got %s", formatted)
	}

	// fmt.Sprintf with %v should use String()
	formatted = fmt.Sprintf("%v", secret)
	if formatted != "[REDACTED]" {
		t.Errorf("%%v formatting should return [REDACTED], got %s", formatted)
	}
}

func TestSecret_IsEmpty(t *testing.T) {
	empty := Secret("")
	if !empty.IsEmpty() {
		t.Error("empty secret should return IsEmpty() = true")
	}

	nonEmpty := Secret("value")
	if nonEmpty.IsEmpty() {
		t.Error("non-empty secret should return IsEmpty() = false")
	}
}

func TestApplyEnvOverrides_Port(t *testing.T) {
	cfg := DefaultConfig()

	// Set env var
	os.Setenv(EnvPort, "9999")
	defer os.Unsetenv(EnvPort)

	cfg = ApplyEnvOverrides(cfg)

	if cfg.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Port)
	}
}

func TestApplyEnvOverrides_LanEnabled(t *testing.T) {
	tests := []struct {
		envValue string
		expected bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"on", true},
		{"false", false},
		{"0", false},
		{"no", false},
		{"off", false},
		{"invalid", false},
	}

	for _, tt := range tests {
		t.Run(tt.envValue, func(t *testing.T) {
			cfg := DefaultConfig()
			os.Setenv(EnvLanEnabled, tt.envValue)
			defer os.Unsetenv(EnvLanEnabled)

			cfg = ApplyEnvOverrides(cfg)

			if cfg.LanEnabled != tt.expected {
				t.Errorf("for %q: expected LanEnabled=%v, got %v", tt.envValue, tt.expected, cfg.LanEnabled)
			}
		})
	}
}

func TestApplyEnvOverrides_InvalidPort(t *testing.T) {
	cfg := DefaultConfig()
	originalPort := cfg.Port

	// Set invalid port
	os.Setenv(EnvPort, "not-a-number")
	defer os.Unsetenv(EnvPort)

	cfg = ApplyEnvOverrides(cfg)

	// Should keep original value
	if cfg.Port != originalPort {
		t.Errorf("expected port to remain %d with invalid env, got %d", originalPort, cfg.Port)
	}
}

func TestApplyEnvOverrides_DBPath(t *testing.T) {
	cfg := DefaultConfig()

	os.Setenv(EnvDBPath, "/custom/db/path.sqlite")
	defer os.Unsetenv(EnvDBPath)

	cfg = ApplyEnvOverrides(cfg)

	if cfg.DBPath != "/custom/db/path.sqlite" {
		t.Errorf("expected db path '/custom/db/path.sqlite', got '%s'", cfg.DBPath)
	}
}

func TestApplyEnvOverrides_AllBooleans(t *testing.T) {
	cfg := DefaultConfig()

	// Set all boolean env vars
	os.Setenv(EnvNotifyOnConnect, "false")
	os.Setenv(EnvNotifyOnDisconnect, "1")
	os.Setenv(EnvLookupEnabled, "no")
	os.Setenv(EnvStrictCorrelation, "true")
	defer func() {
		os.Unsetenv(EnvNotifyOnConnect)
		os.Unsetenv(EnvNotifyOnDisconnect)
		os.Unsetenv(EnvLookupEnabled)
		os.Unsetenv(EnvStrictCorrelation)
	}()

	cfg = ApplyEnvOverrides(cfg)

	if cfg.NotifyOnConnect {
		t.Error("NotifyOnConnect should be false")
	}
	if !cfg.NotifyOnDisconnect {
		t.Error("NotifyOnDisconnect should be true")
	}
	if cfg.LookupEnabled {
		t.Error("LookupEnabled should be false")
	}
	if !cfg.StrictCorrelation {
		t.Error("StrictCorrelation should be true")
	}
}

func TestApplyEnvOverrides_PendingTTL(t *testing.T) {
	cfg := DefaultConfig()

	os.Setenv(EnvPendingTTLSec, "45")
	defer os.Unsetenv(EnvPendingTTLSec)

	cfg = ApplyEnvOverrides(cfg)

	if cfg.PendingTTLSec != 45 {
		t.Errorf("expected pending TTL 45, got %d", cfg.PendingTTLSec)
	}
}

func TestParseBool(t *testing.T) {
	trueValues := []string{"true", "TRUE", "True", "1", "yes", "YES", "on", "ON", " true ", " 1 "}
	for _, v := range trueValues {
		if !parseBool(v) {
			t.Errorf("parseBool(%q) should be true", v)
		}
	}

	falseValues := []string{"false", "FALSE", "0", "no", "off", "", "invalid", "anything"}
	for _, v := range falseValues {
		if parseBool(v) {
			t.Errorf("parseBool(%q) should be false", v)
		}
	}
}

func TestSaveLoadSecrets_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "secrets.json")

	// Create custom secrets
	original := Secrets{
		SchemaVersion:     CurrentSchemaVersion,
		DiscordWebhookURL: Secret("https://discord.com/api/webhooks/xxx"),
		BasicAuthPassword: Secret("super-secret"),
	}

	// Save
	if err := SaveSecretsTo(original, path); err != nil {
		t.Fatalf("failed to save secrets: %v", err)
	}

	// Load
	loaded, status, err := LoadSecretsFrom(path)
	if err != nil {
		t.Fatalf("failed to load secrets: %v", err)
	}
	if status != SecretsLoaded {
		t.Errorf("expected status SecretsLoaded, got %v", status)
	}

	// Compare (using Value() to get actual values)
	if loaded.DiscordWebhookURL.Value() != original.DiscordWebhookURL.Value() {
		t.Errorf("discord_webhook_url mismatch")
	}
	if loaded.BasicAuthPassword.Value() != original.BasicAuthPassword.Value() {
		t.Errorf("basic_auth_password mismatch")
	}
}
