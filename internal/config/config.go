// Package config loads and validates the daemon's YAML configuration file.
// Defaults are applied for every tunable so a minimal file only needs the
// fields the operator wants to change.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultListen             = ":8080"
	DefaultDatabasePath       = "/var/lib/netmand/netmand.db"
	DefaultPollIntervalSec    = 10
	DefaultGracePeriodSec     = 30
	DefaultErrorBackoff       = 3
	DefaultWiredTimeoutSec    = 45
	DefaultWirelessTimeoutSec = 60
	DefaultTunnelTimeoutSec   = 30
	DefaultAdminUsername      = "admin"
)

// Config holds all daemon settings.
type Config struct {
	Listen       string `yaml:"listen"`        // HTTP listen address for the management API
	DatabasePath string `yaml:"database_path"` // SQLite database file path
	JWTSecret    string `yaml:"jwt_secret"`    // Secret for signing API tokens

	// Bootstrap credentials, used once when the users table is empty.
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`

	Supervisor SupervisorConfig `yaml:"supervisor"`
	Timeouts   TimeoutConfig    `yaml:"timeouts"`
}

// SupervisorConfig tunes the health-check and reconnection loop.
type SupervisorConfig struct {
	PollIntervalSec    int   `yaml:"poll_interval_sec"`    // Seconds between health-check polls
	GracePeriodSec     int   `yaml:"grace_period_sec"`     // Connected age required before a drop triggers reconnection
	ErrorBackoff       int   `yaml:"error_backoff"`        // Poll interval multiplier after a whole-poll failure
	StartupAutoConnect *bool `yaml:"startup_auto_connect"` // Run the initial auto-connect pass (default true)
}

// TimeoutConfig bounds link driver invocations per connection kind.
type TimeoutConfig struct {
	WiredSec    int `yaml:"wired_sec"`    // Wired driver timeout in seconds
	WirelessSec int `yaml:"wireless_sec"` // Wireless driver timeout in seconds
	TunnelSec   int `yaml:"tunnel_sec"`   // Tunnel driver timeout in seconds
}

// Load reads and parses a YAML config file, applying defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	ApplyDefaults(&cfg)
	return cfg, nil
}

// Init writes a fresh default configuration to path, generating a random
// JWT secret, and returns it. Called on first boot when no config file
// exists yet; the operator still has to set a bootstrap admin password
// before the API has any account to log into.
func Init(path string) (Config, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return Config{}, fmt.Errorf("failed to generate jwt secret: %w", err)
	}

	cfg := Config{JWTSecret: hex.EncodeToString(secret)}
	ApplyDefaults(&cfg)

	if err := Save(path, cfg); err != nil {
		return Config{}, fmt.Errorf("failed to write initial config: %w", err)
	}
	return cfg, nil
}

// Save writes a YAML config file to disk with restrictive permissions,
// since the file may carry the JWT secret and bootstrap credentials.
func Save(path string, cfg Config) error {
	ApplyDefaults(&cfg)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate performs minimal validation for required fields.
func Validate(cfg Config) error {
	if cfg.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if cfg.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	return nil
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = DefaultDatabasePath
	}
	if cfg.AdminUsername == "" {
		cfg.AdminUsername = DefaultAdminUsername
	}
	if cfg.Supervisor.PollIntervalSec == 0 {
		cfg.Supervisor.PollIntervalSec = DefaultPollIntervalSec
	}
	if cfg.Supervisor.GracePeriodSec == 0 {
		cfg.Supervisor.GracePeriodSec = DefaultGracePeriodSec
	}
	if cfg.Supervisor.ErrorBackoff == 0 {
		cfg.Supervisor.ErrorBackoff = DefaultErrorBackoff
	}
	if cfg.Supervisor.StartupAutoConnect == nil {
		enabled := true
		cfg.Supervisor.StartupAutoConnect = &enabled
	}
	if cfg.Timeouts.WiredSec == 0 {
		cfg.Timeouts.WiredSec = DefaultWiredTimeoutSec
	}
	if cfg.Timeouts.WirelessSec == 0 {
		cfg.Timeouts.WirelessSec = DefaultWirelessTimeoutSec
	}
	if cfg.Timeouts.TunnelSec == 0 {
		cfg.Timeouts.TunnelSec = DefaultTunnelTimeoutSec
	}
}

// PollInterval returns the supervisor poll interval as a duration.
func (c SupervisorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// GracePeriod returns the drop-detection grace period as a duration.
func (c SupervisorConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSec) * time.Second
}

// Wired returns the wired driver timeout as a duration.
func (c TimeoutConfig) Wired() time.Duration {
	return time.Duration(c.WiredSec) * time.Second
}

// Wireless returns the wireless driver timeout as a duration.
func (c TimeoutConfig) Wireless() time.Duration {
	return time.Duration(c.WirelessSec) * time.Second
}

// Tunnel returns the tunnel driver timeout as a duration.
func (c TimeoutConfig) Tunnel() time.Duration {
	return time.Duration(c.TunnelSec) * time.Second
}
