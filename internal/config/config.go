package config

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the gateway
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Auth      AuthConfig                `yaml:"auth"`
	HTTP      HTTPConfig                `yaml:"http"`
	Logging   LoggingConfig             `yaml:"logging"`
	Database  DatabaseConfig            `yaml:"database"`
	Redis     RedisConfig               `yaml:"redis"`
	Platforms map[string]PlatformConfig `yaml:"platforms"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// TrustedProxies lists the proxy addresses or CIDRs whose
	// X-Forwarded-For header is believed. Empty trusts no one.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// AuthConfig holds the keys gateway callers present as
// "Authorization: Bearer <key>" or "X-API-Key: <key>".
type AuthConfig struct {
	APIKeys  []string `yaml:"api_keys"`
	Disabled bool     `yaml:"disabled"` // serve /api without authentication
}

// HTTPConfig tunes the outbound transport shared by all platform adapters
type HTTPConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
	MaxRetries     int `yaml:"max_retries"` // negative disables retries
}

// Timeout returns the configured timeout as a duration
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"` // defaults to true
}

// Redact reports whether email addresses are masked in logs.
func (c LoggingConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// DatabaseConfig holds the audit event store connection. An empty URL
// disables event recording.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig holds the lock backend. Without a URL the gateway falls back
// to Postgres advisory locks, and to no locking without a database either.
type RedisConfig struct {
	URL            string `yaml:"url"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

// LockTTL returns the per-contact lock TTL as a duration
func (c RedisConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// PlatformConfig configures one adapter. The map key in Config.Platforms is
// the factory name ("mailchimp", "brevo-doi", ...).
type PlatformConfig struct {
	Enabled       *bool  `yaml:"enabled"` // defaults to true
	APIKey        string `yaml:"api_key"`
	APISecret     string `yaml:"api_secret"`
	ContactListID string `yaml:"contact_list_id"`

	// mailchimp
	DC      string `yaml:"dc"`
	Pending bool   `yaml:"pending"`

	// brevo-doi / sendinblue-doi
	TemplateID     int64  `yaml:"template_id"`
	RedirectionURL string `yaml:"redirection_url"`

	// ymlp
	OverruleUnsubscribedBounced bool `yaml:"overrule_unsubscribed_bounced"`
}

// IsEnabled reports whether the platform should be served.
func (c PlatformConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// EnabledPlatforms returns the names of enabled platforms, sorted.
func (c *Config) EnabledPlatforms() []string {
	names := make([]string, 0, len(c.Platforms))
	for name, p := range c.Platforms {
		if p.IsEnabled() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.HTTP.TimeoutSeconds == 0 {
		cfg.HTTP.TimeoutSeconds = 30
	}
	if cfg.HTTP.MaxRetries == 0 {
		cfg.HTTP.MaxRetries = 3
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Redis.LockTTLSeconds == 0 {
		cfg.Redis.LockTTLSeconds = 30
	}

	// Platform names are matched case-insensitively
	platforms := make(map[string]PlatformConfig, len(cfg.Platforms))
	for name, p := range cfg.Platforms {
		platforms[strings.ToLower(strings.TrimSpace(name))] = p
	}
	cfg.Platforms = platforms

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so credentials can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GATEWAY_API_KEYS"); v != "" {
		cfg.Auth.APIKeys = nil
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				cfg.Auth.APIKeys = append(cfg.Auth.APIKeys, k)
			}
		}
	}

	// SUBSCRIBEME_<PLATFORM>_API_KEY etc. override existing platforms and
	// declare new ones.
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" || !strings.HasPrefix(key, envPrefix) {
			continue
		}
		name, field, ok := splitPlatformEnv(strings.TrimPrefix(key, envPrefix))
		if !ok {
			continue
		}
		p := cfg.Platforms[name]
		switch field {
		case "API_KEY":
			p.APIKey = value
		case "API_SECRET":
			p.APISecret = value
		case "LIST_ID":
			p.ContactListID = value
		}
		cfg.Platforms[name] = p
	}

	return cfg, nil
}

const envPrefix = "SUBSCRIBEME_"

// splitPlatformEnv turns "BREVO_DOI_API_KEY" into ("brevo-doi", "API_KEY").
func splitPlatformEnv(rest string) (string, string, bool) {
	for _, field := range []string{"API_KEY", "API_SECRET", "LIST_ID"} {
		if name, found := strings.CutSuffix(rest, "_"+field); found && name != "" {
			return strings.ToLower(strings.ReplaceAll(name, "_", "-")), field, true
		}
	}
	return "", "", false
}
