package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the casewire server configuration
type Config struct {
	// ListenAddr is the host:port the HTTP/WebSocket server binds to
	ListenAddr string `json:"listen_addr"`

	// AuthSecret is the shared HS256 key used to verify bearer credentials.
	// Token issuance happens in the surrounding application; casewire only
	// verifies.
	AuthSecret string `json:"auth_secret"`

	// MaxConnections limits concurrent transport connections (0 = default)
	MaxConnections int `json:"max_connections"`

	// ACLDBPath points at the sqlite case-membership database. Empty means
	// the in-memory authorizer is used instead.
	ACLDBPath string `json:"acl_db_path,omitempty"`

	// AllowAllCases makes the in-memory authorizer accept every join.
	// Only honored when ACLDBPath is empty; meant for development.
	AllowAllCases bool `json:"allow_all_cases,omitempty"`

	// AnalysisBaseURL is the base URL of the AI-analysis streaming endpoint
	// consumed by casewire-tail
	AnalysisBaseURL string `json:"analysis_base_url,omitempty"`

	LogLevel string `json:"log_level"` // debug, info, warn, error, none
	LogPath  string `json:"log_path,omitempty"`
}

// Default returns a Config populated with default values
func Default() *Config {
	return &Config{
		ListenAddr:     "localhost:8732",
		MaxConnections: 256,
		LogLevel:       "info",
	}
}

// GetConfigPath returns the config file location, honoring CASEWIRE_CONFIG
func GetConfigPath() string {
	if path := os.Getenv("CASEWIRE_CONFIG"); path != "" {
		return path
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "casewire.json"
	}
	return filepath.Join(configDir, "casewire", "config.json")
}

// Load reads configuration from the given path. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// Save writes the configuration as indented JSON
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// applyEnv lets environment variables override file values
func (c *Config) applyEnv() {
	if v := os.Getenv("CASEWIRE_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("CASEWIRE_AUTH_SECRET"); v != "" {
		c.AuthSecret = v
	}
	if v := os.Getenv("CASEWIRE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("CASEWIRE_LOG_PATH"); v != "" {
		c.LogPath = v
	}
}

// Validate checks settings that would prevent the server from starting
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.AuthSecret == "" {
		return fmt.Errorf("auth_secret must be configured (or set CASEWIRE_AUTH_SECRET)")
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("max_connections must not be negative")
	}
	return nil
}
