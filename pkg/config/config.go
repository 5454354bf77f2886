package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSystemPrompt is the fixed per-deployment instruction handed to the
// completion service. It is configuration, not a per-call parameter.
const DefaultSystemPrompt = `You are Claude, a helpful AI assistant integrated into a chat messaging application.
You help users with various tasks including:
- Writing and editing text
- Answering questions
- Brainstorming ideas
- Explaining concepts
- Coding assistance
- General conversation

Be friendly, helpful, and conversational. Keep responses concise but informative.
When helping with code, format it properly with markdown code blocks.`

// Config is the canonical application configuration, loaded from a yaml
// file and overlaid with CHATCORE_* environment variables. Flags win over
// both for the values they cover.
type Config struct {
	Server struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
		TLS     struct {
			CertFile string `yaml:"cert_file"`
			KeyFile  string `yaml:"key_file"`
		} `yaml:"tls"`
	} `yaml:"server"`
	Storage struct {
		DBPath string `yaml:"db_path"`
		// SeedDemo loads the bundled demo profiles/conversations on first
		// start, substituting for the persistence backend.
		SeedDemo bool `yaml:"seed_demo"`
	} `yaml:"storage"`
	Assistant struct {
		// BaseURL of the completion service. Empty selects the canned
		// demo responder.
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
		// MaxTokens caps generated output. Deployment-level, not per call.
		MaxTokens int `yaml:"max_tokens"`
		// HistoryWindow bounds how many recent messages accompany each
		// completion request.
		HistoryWindow int `yaml:"history_window"`
		// TimeoutSeconds bounds a single completion roundtrip.
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		SystemPrompt   string `yaml:"system_prompt"`
	} `yaml:"assistant"`
	Security struct {
		APIKeys struct {
			Backend  []string `yaml:"backend"`
			Frontend []string `yaml:"frontend"`
		} `yaml:"api_keys"`
		RateLimit struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
		CORS struct {
			AllowedOrigins []string `yaml:"allowed_origins"`
		} `yaml:"cors"`
	} `yaml:"security"`
	Presence struct {
		Enabled bool   `yaml:"enabled"`
		Cron    string `yaml:"cron"`
		// AwayAfter/OfflineAfter are Go durations ("10m", "1h").
		AwayAfter    string `yaml:"away_after"`
		OfflineAfter string `yaml:"offline_after"`
	} `yaml:"presence"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Addr joins the configured address and port, defaulting to :8080.
func (c *Config) Addr() string {
	host := c.Server.Address
	port := c.Server.Port
	if port == 0 {
		port = 8080
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// AssistantTimeout returns the completion roundtrip bound, defaulting to 30s.
func (c *Config) AssistantTimeout() time.Duration {
	if c.Assistant.TimeoutSeconds > 0 {
		return time.Duration(c.Assistant.TimeoutSeconds) * time.Second
	}
	return 30 * time.Second
}

// ApplyDefaults fills unset assistant and presence values.
func (c *Config) ApplyDefaults() {
	if c.Assistant.MaxTokens == 0 {
		c.Assistant.MaxTokens = 1024
	}
	if c.Assistant.HistoryWindow == 0 {
		c.Assistant.HistoryWindow = 10
	}
	if c.Assistant.SystemPrompt == "" {
		c.Assistant.SystemPrompt = DefaultSystemPrompt
	}
	if c.Presence.Cron == "" {
		// every five minutes
		c.Presence.Cron = "*/5 * * * *"
	}
	if c.Presence.AwayAfter == "" {
		c.Presence.AwayAfter = "10m"
	}
	if c.Presence.OfflineAfter == "" {
		c.Presence.OfflineAfter = "1h"
	}
}

// Load reads and parses the yaml config at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &c, nil
}

// LoadEffective merges the optional yaml file with environment overrides and
// applies defaults. It reports whether any environment variable was used.
func LoadEffective(path string) (*Config, bool, error) {
	var c *Config
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, false, err
			}
			c = &Config{}
		} else {
			c = loaded
		}
	} else {
		c = &Config{}
	}
	envUsed := overlayEnv(c)
	c.ApplyDefaults()
	return c, envUsed, nil
}
