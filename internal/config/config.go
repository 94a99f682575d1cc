package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the chat client.
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	SocketURL      string        `yaml:"socket_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	BridgeAddr     string        `yaml:"bridge_addr"`
	Env            string        `yaml:"env"`
	LogLevel       string        `yaml:"log_level"`

	// Substrings that mark a room as a group when the backend sends no explicit type.
	GroupNameMarkers []string `yaml:"group_name_markers"`

	// Pre-issued session, mostly for CLI use.
	Token  string `yaml:"token"`
	UserID string `yaml:"user_id"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		BaseURL:          "http://localhost:5000",
		RequestTimeout:   10 * time.Second,
		BridgeAddr:       "127.0.0.1:3000",
		Env:              "development",
		LogLevel:         "info",
		GroupNameMarkers: []string{"Nhóm"},
	}
}

// Load reads configuration from an optional YAML file and then from
// environment variables. A .env file is loaded first if present.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("PELUSA_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.BaseURL = getEnv("PELUSA_BASE_URL", cfg.BaseURL)
	cfg.SocketURL = getEnv("PELUSA_SOCKET_URL", cfg.SocketURL)
	cfg.BridgeAddr = getEnv("PELUSA_BRIDGE_ADDR", cfg.BridgeAddr)
	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Token = getEnv("PELUSA_TOKEN", cfg.Token)
	cfg.UserID = getEnv("PELUSA_USER_ID", cfg.UserID)

	if v := os.Getenv("PELUSA_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PELUSA_REQUEST_TIMEOUT %q: %w", v, err)
		}
		cfg.RequestTimeout = d
	}

	// Comma-separated markers
	if v := os.Getenv("PELUSA_GROUP_MARKERS"); v != "" {
		cfg.GroupNameMarkers = nil
		for _, m := range strings.Split(v, ",") {
			m = strings.TrimSpace(m)
			if m != "" {
				cfg.GroupNameMarkers = append(cfg.GroupNameMarkers, m)
			}
		}
	}

	if cfg.SocketURL == "" {
		cfg.SocketURL = deriveSocketURL(cfg.BaseURL)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base url must be an http(s) url, got %q", c.BaseURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// deriveSocketURL maps http://host to ws://host/socket.
func deriveSocketURL(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/socket"
	return u.String()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
