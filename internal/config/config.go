// ABOUTME: Configuration loading and parsing for potpie-slack
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file omits the corresponding field.
const (
	DefaultHTTPAddr      = "0.0.0.0:8010"
	DefaultPotpieBaseURL = "http://localhost:8001"
	DefaultSendTimeout   = 120 * time.Second
	DefaultStoreBackend  = "file"
)

// Config represents the complete potpie-slack configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Slack     SlackConfig     `yaml:"slack"`
	Potpie    PotpieConfig    `yaml:"potpie"`
	Store     StoreConfig     `yaml:"store"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	// PublicURL is the external base URL of this deployment, used to build
	// the OAuth redirect URL. Not needed when a bot_token is pinned.
	PublicURL string `yaml:"public_url"`
}

// SlackConfig holds the Slack app credentials
type SlackConfig struct {
	ClientID      string `yaml:"client_id"`
	ClientSecret  string `yaml:"client_secret"`
	SigningSecret string `yaml:"signing_secret"`
	// BotToken pins a single-workspace bot token and bypasses the
	// installation store. Leave empty for multi-workspace OAuth installs.
	BotToken    string `yaml:"bot_token"`
	StateSecret string `yaml:"state_secret"`
}

// PotpieConfig holds the Potpie API client configuration
type PotpieConfig struct {
	BaseURL string `yaml:"base_url"`

	// SendTimeout bounds the conversation message call; agent responses
	// are slow, so this is much longer than an ordinary HTTP timeout.
	SendTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	SendTimeoutRaw string `yaml:"send_timeout"`
}

// StoreConfig selects and configures the persistence backend
type StoreConfig struct {
	Backend string `yaml:"backend"` // memory, file, or sqlite
	Path    string `yaml:"path"`    // data directory for the file backend
	DBPath  string `yaml:"db_path"` // database file for the sqlite backend
}

// TailscaleConfig holds Tailscale tsnet configuration. When enabled the
// server listens on a public Funnel HTTPS endpoint instead of plain TCP,
// which is the easiest way to give Slack's Events API a reachable URL.
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in fields the config file may omit. The listener
// address is intentionally not defaulted: it stays a required field so a
// deployment binds where its operator said, not where we guessed.
func (c *Config) applyDefaults() {
	if c.Potpie.BaseURL == "" {
		c.Potpie.BaseURL = DefaultPotpieBaseURL
	}
	if c.Store.Backend == "" {
		c.Store.Backend = DefaultStoreBackend
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// A listener address is required unless Tailscale provides one
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Slack.SigningSecret == "" {
		return fmt.Errorf("slack.signing_secret is required")
	}

	// Either a pinned bot token (single workspace) or full OAuth credentials
	if c.Slack.BotToken == "" {
		if c.Slack.ClientID == "" || c.Slack.ClientSecret == "" {
			return fmt.Errorf("slack.client_id and slack.client_secret are required (or pin slack.bot_token)")
		}
		if c.Slack.StateSecret == "" {
			return fmt.Errorf("slack.state_secret is required for the OAuth install flow")
		}
	}

	switch c.Store.Backend {
	case "memory":
	case "file":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the file backend")
		}
	case "sqlite":
		if c.Store.DBPath == "" {
			return fmt.Errorf("store.db_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("store.backend must be one of memory, file, sqlite (got %q)", c.Store.Backend)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Potpie.SendTimeoutRaw == "" {
		cfg.Potpie.SendTimeout = DefaultSendTimeout
		return nil
	}

	d, err := time.ParseDuration(cfg.Potpie.SendTimeoutRaw)
	if err != nil {
		return fmt.Errorf("parsing send_timeout %q: %w", cfg.Potpie.SendTimeoutRaw, err)
	}
	cfg.Potpie.SendTimeout = d

	return nil
}
