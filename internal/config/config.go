package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/matthieugras/vidctl/internal/auth"
)

// EnvPrefix is prepended to every environment variable, e.g. VID_BASE_URL
const EnvPrefix = "VID"

// Config holds all configuration for the application
type Config struct {
	// API
	BaseURL  string `mapstructure:"base-url"`
	AuthMode string `mapstructure:"auth-mode"`
	Mode     auth.Mode

	// HTTP
	HTTPTimeout time.Duration `mapstructure:"timeout"`
	Rate        float64       `mapstructure:"rate"` // requests per second, 0 = unlimited

	// Session persistence
	CookieDB string `mapstructure:"cookie-db"`

	// Batch processing
	Workers   int    `mapstructure:"workers"`
	OutputDir string `mapstructure:"output"`
	Gzip      bool   `mapstructure:"gzip"`

	// Backoff
	BackoffInitial time.Duration `mapstructure:"backoff-initial"`
	BackoffMax     time.Duration `mapstructure:"backoff-max"`

	// Logging
	Verbose bool   `mapstructure:"verbose"`
	LogFile string `mapstructure:"log-file"`
}

// BackoffConfig holds exponential backoff settings
type BackoffConfig struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultBackoffConfig returns sensible default backoff settings
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval:     time.Second,
		MaxInterval:         60 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// SetupFlags configures persistent CLI flags on the root command and binds them to v
func SetupFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.PersistentFlags()

	flags.String("config", "", "Config file (YAML/JSON/TOML)")

	// API flags
	flags.String("base-url", "", "API base URL, e.g. http://localhost:8000/api/v1 (or set VID_BASE_URL)")
	flags.String("auth-mode", string(auth.ModeBearer), "Credential mode: bearer (token + cookies) or cookie (cookies only)")

	// HTTP flags
	flags.Duration("timeout", 30*time.Second, "HTTP timeout per request")
	flags.Float64("rate", 0, "Maximum requests per second (0 = unlimited)")

	// Session flags
	flags.String("cookie-db", defaultCookieDB(), "SQLite file holding session cookies between runs (empty disables)")

	// Batch flags
	flags.IntP("workers", "w", 4, "Number of parallel workers for batch requests")
	flags.StringP("output", "o", "", "Write batch results as JSONL into this directory")
	flags.Bool("gzip", false, "Compress JSONL output with gzip")

	// Backoff flags
	flags.Duration("backoff-initial", time.Second, "Initial cooldown after a 429/5xx response")
	flags.Duration("backoff-max", 60*time.Second, "Maximum cooldown after repeated 429/5xx responses")

	// Other flags
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.String("log-file", "", "Write a debug log to this file")

	// Bind flags to viper
	v.BindPFlags(flags)

	// Bind environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Load loads configuration from flags, environment and config file, and validates it
func Load(v *viper.Viper) (*Config, error) {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present and valid
func (c *Config) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return fmt.Errorf("base-url is required (flag --base-url or %s_BASE_URL)", EnvPrefix)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base-url must be an absolute http(s) URL, got %q", c.BaseURL)
	}

	mode, err := auth.ParseMode(c.AuthMode)
	if err != nil {
		return err
	}
	c.Mode = mode

	if c.HTTPTimeout < 0 {
		return fmt.Errorf("timeout must be >= 0")
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate must be >= 0 (0 disables rate limiting)")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.BackoffInitial <= 0 || c.BackoffMax < c.BackoffInitial {
		return fmt.Errorf("backoff-initial must be > 0 and <= backoff-max")
	}
	return nil
}

// Origin returns scheme://host of the base URL, the scope session cookies belong to
func (c *Config) Origin() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return c.BaseURL
	}
	return u.Scheme + "://" + u.Host
}

// GetBackoffConfig returns backoff configuration from the config
func (c *Config) GetBackoffConfig() BackoffConfig {
	cfg := DefaultBackoffConfig()
	cfg.InitialInterval = c.BackoffInitial
	cfg.MaxInterval = c.BackoffMax
	return cfg
}

// defaultCookieDB places the cookie database under the user's config directory
func defaultCookieDB() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "vidctl", "cookies.db")
}
