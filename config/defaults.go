package config

import "time"

// Default returns the built-in configuration. Values mirror the service's
// production posture; anything secret is left empty and must come from the
// YAML file or environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			MetricsPort:     9090,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitRPS:    20,
			RateLimitBurst:  40,
		},
		Database: DatabaseConfig{
			Driver:  "postgres",
			DSN:     "",
			Migrate: true,
		},
		LLM: LLMConfig{
			BaseURL:   "https://api.groq.com/openai/v1",
			Model:     "meta-llama/llama-4-maverick-17b-128e-instruct",
			MaxTokens: 1024,
			Timeout:   60 * time.Second,
		},
		Resolver: ResolverConfig{
			RateLimit:  10,
			RateWindow: 60 * time.Second,
			Timeout:    30 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:           false,
			ScreenshotDir:      "./screenshots",
			NavigationTimeout:  60 * time.Second,
			NetworkIdleTimeout: 15 * time.Second,
			SettleDelay:        2 * time.Second,
			ActionDelay:        500 * time.Millisecond,
		},
		Runner: RunnerConfig{
			MaxSteps:           15,
			HistoryTokenBudget: 4096,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "submitflow",
			SampleRate:  1.0,
		},
	}
}
