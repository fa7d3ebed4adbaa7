package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// config is the service configuration, loaded from an optional YAML file
// and overridden by environment variables. Env wins over file, file wins
// over defaults.
type config struct {
	Addr   string `yaml:"addr"`
	DBPath string `yaml:"db_path"`

	// OCRURL is the base URL of the OCR sidecar. Empty disables OCR.
	OCRURL string `yaml:"ocr_url"`

	Discovery discoveryConfig `yaml:"discovery"`
	Queue     queueConfig     `yaml:"queue"`

	LogLevel     string `yaml:"log_level"`
	MCPTransport string `yaml:"mcp_transport"`
}

type discoveryConfig struct {
	// Provider selects the search backend: "http" or "browser".
	Provider string `yaml:"provider"`
	// RemoteChromeURL attaches the browser provider to an already running
	// Chrome instead of launching one.
	RemoteChromeURL   string `yaml:"remote_chrome_url"`
	SearchesPerMinute int    `yaml:"searches_per_minute"`
	MinScore          int    `yaml:"min_score"`
}

type queueConfig struct {
	VisibilitySec   int `yaml:"visibility_sec"`
	PollIntervalSec int `yaml:"poll_interval_sec"`
	MaxAttempts     int `yaml:"max_attempts"`
}

func defaultConfig() config {
	return config{
		Addr:     ":8090",
		DBPath:   "db/sdspipe.db",
		LogLevel: "info",
		Discovery: discoveryConfig{
			Provider: "http",
		},
	}
}

// loadConfig reads the YAML file at path when it exists, then applies
// environment overrides. A missing file is not an error; a malformed one is.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Fall through to defaults and env.
		default:
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}

	envStr(&cfg.Addr, "ADDR")
	envStr(&cfg.DBPath, "DB_PATH")
	envStr(&cfg.OCRURL, "OCR_URL")
	envStr(&cfg.Discovery.Provider, "DISCOVERY_PROVIDER")
	envStr(&cfg.Discovery.RemoteChromeURL, "REMOTE_CHROME_URL")
	envInt(&cfg.Discovery.SearchesPerMinute, "SEARCHES_PER_MINUTE")
	envInt(&cfg.Queue.MaxAttempts, "QUEUE_MAX_ATTEMPTS")
	envStr(&cfg.LogLevel, "LOG_LEVEL")
	envStr(&cfg.MCPTransport, "MCP_TRANSPORT")

	if cfg.Discovery.Provider != "http" && cfg.Discovery.Provider != "browser" {
		return cfg, fmt.Errorf("config: unknown discovery provider %q", cfg.Discovery.Provider)
	}
	return cfg, nil
}

func envStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
