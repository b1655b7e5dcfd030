package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader loads configuration with the precedence: defaults, then the YAML
// file (if present), then environment variable overrides.
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("submitflow.yaml").
//	    Load()
type Loader struct {
	configPath string
	envPrefix  string
	dotenv     bool
}

// NewLoader creates a Loader with the standard env prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: "SUBMITFLOW", dotenv: true}
}

// WithConfigPath sets the YAML config file path. A missing file is not an
// error; defaults plus env overrides apply.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithoutDotenv disables .env bootstrap (used by tests).
func (l *Loader) WithoutDotenv() *Loader {
	l.dotenv = false
	return l
}

// Load resolves the final configuration and validates it.
func (l *Loader) Load() (*Config, error) {
	if l.dotenv {
		// Best-effort; a missing .env is the common case.
		_ = godotenv.Load()
	}

	cfg := Default()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", l.configPath, err)
			}
		case os.IsNotExist(err):
			// fall through to env overrides
		default:
			return nil, fmt.Errorf("read config %s: %w", l.configPath, err)
		}
	}

	l.applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) applyEnv(cfg *Config) {
	l.envString("SERVER_AUTH_SECRET", &cfg.Server.AuthSecret)
	l.envInt("SERVER_HTTP_PORT", &cfg.Server.HTTPPort)
	l.envInt("SERVER_METRICS_PORT", &cfg.Server.MetricsPort)

	l.envString("DATABASE_DRIVER", &cfg.Database.Driver)
	l.envString("DATABASE_DSN", &cfg.Database.DSN)
	l.envBool("DATABASE_MIGRATE", &cfg.Database.Migrate)

	l.envString("LLM_API_KEY", &cfg.LLM.APIKey)
	l.envString("LLM_BASE_URL", &cfg.LLM.BaseURL)
	l.envString("LLM_MODEL", &cfg.LLM.Model)
	l.envInt("LLM_MAX_TOKENS", &cfg.LLM.MaxTokens)
	l.envDuration("LLM_TIMEOUT", &cfg.LLM.Timeout)

	l.envString("RESOLVER_ENDPOINT", &cfg.Resolver.Endpoint)
	l.envString("RESOLVER_API_KEY", &cfg.Resolver.APIKey)
	l.envInt("RESOLVER_RATE_LIMIT", &cfg.Resolver.RateLimit)
	l.envDuration("RESOLVER_RATE_WINDOW", &cfg.Resolver.RateWindow)

	l.envBool("BROWSER_HEADLESS", &cfg.Browser.Headless)
	l.envString("BROWSER_USER_DATA_DIR", &cfg.Browser.UserDataDir)
	l.envString("BROWSER_SCREENSHOT_DIR", &cfg.Browser.ScreenshotDir)

	l.envInt("RUNNER_MAX_STEPS", &cfg.Runner.MaxSteps)
	l.envInt("RUNNER_HISTORY_TOKEN_BUDGET", &cfg.Runner.HistoryTokenBudget)
	l.envString("RUNNER_CREDENTIALS_FILE", &cfg.Runner.CredentialsFile)

	l.envBool("REDIS_ENABLED", &cfg.Redis.Enabled)
	l.envString("REDIS_ADDR", &cfg.Redis.Addr)
	l.envString("REDIS_PASSWORD", &cfg.Redis.Password)
	l.envInt("REDIS_DB", &cfg.Redis.DB)

	l.envString("LOG_LEVEL", &cfg.Log.Level)
	l.envString("LOG_FORMAT", &cfg.Log.Format)

	l.envBool("TELEMETRY_ENABLED", &cfg.Telemetry.Enabled)
	l.envString("TELEMETRY_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
	l.envString("TELEMETRY_SERVICE_NAME", &cfg.Telemetry.ServiceName)
}

func (l *Loader) lookup(key string) (string, bool) {
	return os.LookupEnv(l.envPrefix + "_" + key)
}

func (l *Loader) envString(key string, dst *string) {
	if v, ok := l.lookup(key); ok {
		*dst = v
	}
}

func (l *Loader) envInt(key string, dst *int) {
	if v, ok := l.lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (l *Loader) envBool(key string, dst *bool) {
	if v, ok := l.lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func (l *Loader) envDuration(key string, dst *time.Duration) {
	if v, ok := l.lookup(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
