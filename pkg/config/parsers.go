package config

import (
	"flag"
	"net"
	"os"
	"strconv"
	"strings"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// ParseCommandFlags parses command-line flags and records which were
// explicitly set so they can win over file and env values.
func ParseCommandFlags() Flags {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: set}
}

// ResolveConfigPath picks the config file path: an explicit flag wins,
// otherwise CHATCORE_CONFIG, otherwise the flag default.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet {
		return flagVal
	}
	if v := os.Getenv("CHATCORE_CONFIG"); v != "" {
		return v
	}
	return flagVal
}

func parseList(v string) []string {
	if v == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

// overlayEnv applies CHATCORE_* environment variables on top of c and
// reports whether any were present.
func overlayEnv(c *Config) bool {
	used := false

	if v := os.Getenv("CHATCORE_SERVER_ADDR"); v != "" {
		used = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			c.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				c.Server.Port = pi
			}
		} else {
			c.Server.Address = v
		}
	}
	if v := os.Getenv("CHATCORE_DB_PATH"); v != "" {
		used = true
		c.Storage.DBPath = v
	}
	if v := os.Getenv("CHATCORE_SEED_DEMO"); v != "" {
		used = true
		c.Storage.SeedDemo = truthy(v)
	}
	if v := os.Getenv("CHATCORE_ASSISTANT_URL"); v != "" {
		used = true
		c.Assistant.BaseURL = v
	}
	if v := os.Getenv("CHATCORE_ASSISTANT_API_KEY"); v != "" {
		used = true
		c.Assistant.APIKey = v
	}
	if v := os.Getenv("CHATCORE_ASSISTANT_MODEL"); v != "" {
		used = true
		c.Assistant.Model = v
	}
	if v := os.Getenv("CHATCORE_ASSISTANT_MAX_TOKENS"); v != "" {
		used = true
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Assistant.MaxTokens = n
		}
	}
	if v := os.Getenv("CHATCORE_ASSISTANT_HISTORY_WINDOW"); v != "" {
		used = true
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Assistant.HistoryWindow = n
		}
	}
	if v := os.Getenv("CHATCORE_ASSISTANT_TIMEOUT_SECONDS"); v != "" {
		used = true
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Assistant.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("CHATCORE_API_KEYS_BACKEND"); v != "" {
		used = true
		c.Security.APIKeys.Backend = parseList(v)
	}
	if v := os.Getenv("CHATCORE_API_KEYS_FRONTEND"); v != "" {
		used = true
		c.Security.APIKeys.Frontend = parseList(v)
	}
	if v := os.Getenv("CHATCORE_RATE_LIMIT_RPS"); v != "" {
		used = true
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("CHATCORE_RATE_LIMIT_BURST"); v != "" {
		used = true
		if n, err := strconv.Atoi(v); err == nil {
			c.Security.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("CHATCORE_CORS_ORIGINS"); v != "" {
		used = true
		c.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("CHATCORE_PRESENCE_ENABLED"); v != "" {
		used = true
		c.Presence.Enabled = truthy(v)
	}
	if v := os.Getenv("CHATCORE_PRESENCE_CRON"); v != "" {
		used = true
		c.Presence.Cron = v
	}
	if v := os.Getenv("CHATCORE_LOG_LEVEL"); v != "" {
		used = true
		c.Logging.Level = v
	}
	return used
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
