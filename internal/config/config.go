package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Cache     CacheConfig     `yaml:"cache"`
	Macro     MacroConfig     `yaml:"macro"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Backtest  BacktestConfig  `yaml:"backtest"`
	Log       LogConfig       `yaml:"log"`
}

// AppConfig holds naming and environment settings
type AppConfig struct {
	Name           string   `yaml:"name"`
	Env            string   `yaml:"env"`
	DefaultTickers []string `yaml:"default_tickers"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	APIPrefix    string        `yaml:"api_prefix"`
	CORSOrigins  []string      `yaml:"cors_origins"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ProvidersConfig holds market data source settings
type ProvidersConfig struct {
	Yahoo ProviderConfig `yaml:"yahoo"`
	Stooq ProviderConfig `yaml:"stooq"`
}

// ProviderConfig holds individual provider settings
type ProviderConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit int           `yaml:"rate_limit"` // requests per minute, 0 = unlimited
	Breaker   BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds circuit breaker settings for one provider
type BreakerConfig struct {
	Failures uint32        `yaml:"failures"` // consecutive failures before opening, 0 disables
	Cooldown time.Duration `yaml:"cooldown"`
}

// CacheConfig holds series cache settings
type CacheConfig struct {
	TTL       time.Duration `yaml:"ttl"` // 0 = keep for the process lifetime
	SweepCron string        `yaml:"sweep_cron"`
}

// MacroConfig names the benchmark series behind the macro factor
type MacroConfig struct {
	Equity string `yaml:"equity"`
	Bond   string `yaml:"bond"`
}

// ScannerConfig holds batch scoring settings
type ScannerConfig struct {
	Workers int `yaml:"workers"`
}

// BacktestConfig holds backtest settings
type BacktestConfig struct {
	Workers       int     `yaml:"workers"`
	SellThreshold float64 `yaml:"sell_threshold"`
	BuyThreshold  float64 `yaml:"buy_threshold"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	cfg := &Config{
		App: AppConfig{
			Name: "Oraculum",
			Env:  "dev",
			DefaultTickers: []string{
				"APP", "NVDA", "MSFT", "AAPL", "META", "GOOGL", "JPM", "XOM", "LMT", "TSLA",
			},
		},
		Server: ServerConfig{
			Addr:         ":8000",
			APIPrefix:    "/api/v1",
			CORSOrigins:  []string{"*"},
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 2 * time.Minute,
		},
		Providers: ProvidersConfig{
			Yahoo: ProviderConfig{
				BaseURL:   "https://query1.finance.yahoo.com",
				Timeout:   30 * time.Second,
				RateLimit: 60,
				Breaker:   BreakerConfig{Failures: 5, Cooldown: time.Minute},
			},
			Stooq: ProviderConfig{
				BaseURL:   "https://stooq.com",
				Timeout:   10 * time.Second,
				RateLimit: 30,
				Breaker:   BreakerConfig{Failures: 5, Cooldown: time.Minute},
			},
		},
		Cache: CacheConfig{
			TTL:       12 * time.Hour,
			SweepCron: "0 */15 * * * *",
		},
		Macro: MacroConfig{
			Equity: "SPY",
			Bond:   "TLT",
		},
		Scanner: ScannerConfig{
			Workers: 4,
		},
		Backtest: BacktestConfig{
			Workers:       4,
			SellThreshold: 40,
			BuyThreshold:  70,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
	cfg.applyEnv()
	return cfg
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; environment variables override both.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("APP_NAME"); v != "" {
		c.App.Name = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		c.App.Env = v
	}
	if v := os.Getenv("API_V1_STR"); v != "" {
		c.Server.APIPrefix = v
	}
	if v := os.Getenv("BACKEND_CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("ORACULUM_PORT"); v != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := os.Getenv("ORACULUM_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if !strings.HasPrefix(c.Server.APIPrefix, "/") {
		return fmt.Errorf("server.api_prefix must start with '/'")
	}
	if c.Providers.Yahoo.BaseURL == "" || c.Providers.Stooq.BaseURL == "" {
		return fmt.Errorf("both provider base URLs are required")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if c.Cache.SweepCron != "" {
		if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).Parse(c.Cache.SweepCron); err != nil {
			return fmt.Errorf("cache.sweep_cron: %w", err)
		}
	}
	if c.Macro.Equity == "" || c.Macro.Bond == "" {
		return fmt.Errorf("macro.equity and macro.bond are required")
	}
	if c.Scanner.Workers < 1 {
		return fmt.Errorf("scanner.workers must be at least 1")
	}
	if c.Backtest.Workers < 1 {
		return fmt.Errorf("backtest.workers must be at least 1")
	}
	if c.Backtest.SellThreshold > c.Backtest.BuyThreshold {
		return fmt.Errorf("backtest.sell_threshold must not exceed buy_threshold")
	}
	return nil
}

// splitList parses either a JSON-style list or a comma separated string
func splitList(v string) []string {
	v = strings.Trim(strings.TrimSpace(v), "[]")
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"'`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
