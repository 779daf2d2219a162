package config

import (
	"time"
)

type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Fuzzer    FuzzerConfig    `mapstructure:"fuzzer"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Database  DatabaseConfig  `mapstructure:"database"`
}

type LoggerConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"`
}

type HTTPConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	FollowRedirects bool          `mapstructure:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"`
	UserAgent       string        `mapstructure:"user_agent"`
}

type ScannerConfig struct {
	Concurrency   int     `mapstructure:"concurrency"`
	SizeThreshold float64 `mapstructure:"size_threshold"`
	HeaderName    string  `mapstructure:"header_name"`
}

type FuzzerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

type DatabaseConfig struct {
	DSN            string        `mapstructure:"dsn"`
	MaxConnections int           `mapstructure:"max_connections"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns"`
	ConnMaxLife    time.Duration `mapstructure:"conn_max_lifetime"`
}

// ApplyDefaults fills zero values with the defaults the scanner ships with.
// Called after viper.Unmarshal so flags and env vars win.
func (c *Config) ApplyDefaults() {
	if c.Logger.Level == "" {
		c.Logger.Level = "error"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "console"
	}
	if len(c.Logger.OutputPaths) == 0 {
		c.Logger.OutputPaths = []string{"stderr"}
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = 10 * time.Second
	}
	if c.HTTP.MaxRedirects == 0 {
		c.HTTP.MaxRedirects = 5
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = "authopsy/1.0"
	}
	if c.Scanner.Concurrency == 0 {
		c.Scanner.Concurrency = 50
	}
	if c.Scanner.SizeThreshold == 0 {
		c.Scanner.SizeThreshold = 0.05
	}
	if c.Scanner.HeaderName == "" {
		c.Scanner.HeaderName = "Authorization"
	}
	if c.Fuzzer.Concurrency == 0 {
		c.Fuzzer.Concurrency = 20
	}
	if c.Database.MaxConnections == 0 {
		c.Database.MaxConnections = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 2
	}
	if c.Database.ConnMaxLife == 0 {
		c.Database.ConnMaxLife = time.Hour
	}
}
