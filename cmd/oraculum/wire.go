package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"oraculum/internal/backtest"
	"oraculum/internal/config"
	"oraculum/internal/indicator"
	"oraculum/internal/logging"
	"oraculum/internal/macro"
	"oraculum/internal/metrics"
	"oraculum/internal/provider"
	"oraculum/internal/scanner"
)

// app holds the wired components shared by every subcommand
type app struct {
	cfg      *config.Config
	metrics  *metrics.Registry
	data     *provider.MarketData
	engine   *indicator.Engine
	scanner  *scanner.Scanner
	backtest *backtest.Engine
}

func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	m := metrics.New()
	chain := provider.NewChain(m, createProviders(cfg)...)
	data := provider.NewMarketData(chain, provider.NewCache(cfg.Cache.TTL), m)

	engine := indicator.NewEngine(macro.NewProvider(data, cfg.Macro.Equity, cfg.Macro.Bond, m), m)

	btCfg := backtest.DefaultConfig()
	btCfg.Workers = cfg.Backtest.Workers

	log.Debug().
		Str("env", cfg.App.Env).
		Dur("cache_ttl", cfg.Cache.TTL).
		Int("workers", cfg.Scanner.Workers).
		Msg("components wired")

	return &app{
		cfg:      cfg,
		metrics:  m,
		data:     data,
		engine:   engine,
		scanner:  scanner.NewScanner(data, engine, cfg.Scanner.Workers, m),
		backtest: backtest.NewEngine(data, engine, btCfg, m),
	}, nil
}

// createProviders returns Yahoo (primary) then Stooq (fallback), each behind its own breaker
func createProviders(cfg *config.Config) []provider.Provider {
	y := cfg.Providers.Yahoo
	s := cfg.Providers.Stooq
	return []provider.Provider{
		provider.WithBreaker(provider.NewYahooProvider(y.BaseURL, y.Timeout, y.RateLimit), y.Breaker.Failures, y.Breaker.Cooldown),
		provider.WithBreaker(provider.NewStooqProvider(s.BaseURL, s.Timeout, s.RateLimit), s.Breaker.Failures, s.Breaker.Cooldown),
	}
}
