// Package config provides unified configuration loading for submitflow:
// defaults, an optional YAML file, and environment variable overrides, in
// that order of precedence (later wins).
package config

import (
	"fmt"
	"time"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	LLM       LLMConfig       `yaml:"llm"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Browser   BrowserConfig   `yaml:"browser"`
	Runner    RunnerConfig    `yaml:"runner"`
	Redis     RedisConfig     `yaml:"redis"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the operator HTTP API.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port"`
	MetricsPort     int           `yaml:"metrics_port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AuthSecret      string        `yaml:"auth_secret"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
}

// DatabaseConfig configures the persistence layer.
type DatabaseConfig struct {
	// Driver is one of "postgres", "mysql", "sqlite".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	// Migrate runs embedded SQL migrations on startup (postgres only);
	// other drivers fall back to gorm auto-migration.
	Migrate bool `yaml:"migrate"`
}

// LLMConfig configures the vision-capable decision model endpoint
// (OpenAI-chat-completions compatible).
type LLMConfig struct {
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// ResolverConfig configures the page-understanding (element grounding)
// service client and its mandatory rate limit.
type ResolverConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	APIKey     string        `yaml:"api_key"`
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
	Timeout    time.Duration `yaml:"timeout"`
}

// BrowserConfig configures the chromedp browser session.
type BrowserConfig struct {
	Headless           bool          `yaml:"headless"`
	UserDataDir        string        `yaml:"user_data_dir"`
	ScreenshotDir      string        `yaml:"screenshot_dir"`
	NavigationTimeout  time.Duration `yaml:"navigation_timeout"`
	NetworkIdleTimeout time.Duration `yaml:"network_idle_timeout"`
	SettleDelay        time.Duration `yaml:"settle_delay"`
	ActionDelay        time.Duration `yaml:"action_delay"`
}

// RunnerConfig configures the attempt loop.
type RunnerConfig struct {
	MaxSteps int `yaml:"max_steps"`
	// HistoryTokenBudget caps the token footprint of the step history fed
	// back to the model; oldest entries are evicted first. Zero disables
	// the cap.
	HistoryTokenBudget int `yaml:"history_token_budget"`
	// CredentialsFile points at a YAML map of credentials_key to login
	// credentials for directories that require an account. Optional.
	CredentialsFile string `yaml:"credentials_file"`
}

// RedisConfig configures the optional Redis event bus.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig configures zap logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// TelemetryConfig configures OpenTelemetry export. When disabled, global
// providers remain noop.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	ServiceName  string  `yaml:"service_name"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// Validate checks cross-field constraints that the loader cannot express.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres, mysql or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Resolver.RateLimit <= 0 {
		return fmt.Errorf("resolver.rate_limit must be positive")
	}
	if c.Runner.MaxSteps <= 0 {
		return fmt.Errorf("runner.max_steps must be positive")
	}
	if c.Browser.UserDataDir == "" {
		return fmt.Errorf("browser.user_data_dir is required")
	}
	return nil
}
