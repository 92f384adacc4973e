package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"signalscope/internal/analyzer"
	"signalscope/internal/report"
)

// Config represents the application configuration
type Config struct {
	Data      DataConfig      `yaml:"data"`
	API       APIConfig       `yaml:"api"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Momentum  MomentumConfig  `yaml:"momentum"`
	Engulfing EngulfingConfig `yaml:"engulfing"`
	Report    ReportConfig    `yaml:"report"`
	Screener  ScreenerConfig  `yaml:"screener"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Logging   LoggingConfig   `yaml:"logging"`
	Server    ServerConfig    `yaml:"server"`
}

// DataConfig holds the table and database locations
type DataConfig struct {
	Candles   string `yaml:"candles"`
	Reference string `yaml:"reference"`
	Momentum  string `yaml:"momentum"`
	Engulfing string `yaml:"engulfing"`
	Report    string `yaml:"report"`
	Database  string `yaml:"database"` // empty disables sqlite persistence
}

// APIConfig holds API provider configurations
type APIConfig struct {
	Yahoo        YahooConfig    `yaml:"yahoo"`
	Finnhub      ProviderConfig `yaml:"finnhub"`
	AlphaVantage ProviderConfig `yaml:"alphavantage"`
	Alpaca       AlpacaConfig   `yaml:"alpaca"`
}

// ProviderConfig holds individual provider settings
type ProviderConfig struct {
	Key       string `yaml:"key"`
	RateLimit int    `yaml:"rate_limit"` // requests per minute
}

// YahooConfig holds the keyless chart API settings
type YahooConfig struct {
	BaseURL   string `yaml:"base_url"` // empty uses the public endpoint
	RateLimit int    `yaml:"rate_limit"`
}

// AlpacaConfig holds the Alpaca market data credentials
type AlpacaConfig struct {
	Key       string `yaml:"key"`
	Secret    string `yaml:"secret"`
	RateLimit int    `yaml:"rate_limit"`
}

// ScannerConfig holds scanner settings
type ScannerConfig struct {
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"` // whole batch; 0 disables
}

// MomentumConfig holds indicator periods
type MomentumConfig struct {
	RSIPeriod      int `yaml:"rsi_period"`
	MomentumPeriod int `yaml:"momentum_period"`
	FastMA         int `yaml:"fast_ma"`
	SlowMA         int `yaml:"slow_ma"`
	MinCandles     int `yaml:"min_candles"`
	TrailingDays   int `yaml:"trailing_days"`
}

// EngulfingConfig holds engulfing detection settings
type EngulfingConfig struct {
	MinBody   float64 `yaml:"min_body"`
	Threshold string  `yaml:"threshold"` // absolute | relative
}

// ReportConfig holds merge settings
type ReportConfig struct {
	Strategy string `yaml:"strategy"` // ticker | wide
}

// ScreenerConfig holds scrape settings
type ScreenerConfig struct {
	URL       string        `yaml:"url"`
	Delay     time.Duration `yaml:"delay"`
	UserAgent string        `yaml:"user_agent"`
}

// FetchConfig holds price download settings
type FetchConfig struct {
	Days int `yaml:"days"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

// ServerConfig holds dashboard API settings
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	mom := analyzer.DefaultMomentumConfig()
	eng := analyzer.DefaultEngulfingConfig()
	return &Config{
		Data: DataConfig{
			Candles:   "data/candles.csv",
			Reference: "data/screener.csv",
			Momentum:  "data/momentum.csv",
			Engulfing: "data/engulfing.csv",
			Report:    "data/report.csv",
			Database:  "data/signalscope.db",
		},
		API: APIConfig{
			Yahoo:        YahooConfig{RateLimit: 30},
			Finnhub:      ProviderConfig{RateLimit: 60},
			AlphaVantage: ProviderConfig{RateLimit: 5},
			Alpaca:       AlpacaConfig{RateLimit: 200},
		},
		Scanner: ScannerConfig{
			Workers: 10,
			Timeout: 10 * time.Minute,
		},
		Momentum: MomentumConfig{
			RSIPeriod:      mom.RSIPeriod,
			MomentumPeriod: mom.MomentumPeriod,
			FastMA:         mom.FastMA,
			SlowMA:         mom.SlowMA,
			MinCandles:     mom.MinCandles,
			TrailingDays:   mom.TrailingDays,
		},
		Engulfing: EngulfingConfig{
			MinBody:   eng.MinBody,
			Threshold: string(eng.Mode),
		},
		Report: ReportConfig{
			Strategy: string(report.StrategyTickerOnly),
		},
		Screener: ScreenerConfig{
			URL:   "https://finviz.com/screener.ashx?v=121&f=cap_smallover,sh_relvol_o2,ta_perf_d5o&ft=4&o=-marketcap",
			Delay: time.Second,
		},
		Fetch: FetchConfig{
			Days: 90,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the defaults.
// Environment variables override credentials and the log level either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		c.API.Finnhub.Key = key
	}
	if key := os.Getenv("ALPHAVANTAGE_API_KEY"); key != "" {
		c.API.AlphaVantage.Key = key
	}
	if key := os.Getenv("APCA_API_KEY_ID"); key != "" {
		c.API.Alpaca.Key = key
	}
	if secret := os.Getenv("APCA_API_SECRET_KEY"); secret != "" {
		c.API.Alpaca.Secret = secret
	}
	if level := os.Getenv("SIGNALSCOPE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Scanner.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.Scanner.Timeout < 0 {
		return fmt.Errorf("scanner timeout must not be negative")
	}
	m := c.Momentum
	if m.RSIPeriod < 1 || m.MomentumPeriod < 1 || m.FastMA < 1 || m.SlowMA < 1 {
		return fmt.Errorf("momentum periods must be at least 1")
	}
	if m.MinCandles < 1 || m.TrailingDays < 1 {
		return fmt.Errorf("min_candles and trailing_days must be at least 1")
	}
	if c.Engulfing.MinBody < 0 {
		return fmt.Errorf("min_body must not be negative")
	}
	switch analyzer.ThresholdMode(strings.ToLower(c.Engulfing.Threshold)) {
	case analyzer.ThresholdAbsolute, analyzer.ThresholdRelative:
	default:
		return fmt.Errorf("unknown engulfing threshold mode %q", c.Engulfing.Threshold)
	}
	if _, err := report.ParseStrategy(c.Report.Strategy); err != nil {
		return err
	}
	if c.Fetch.Days < 1 {
		return fmt.Errorf("fetch days must be at least 1")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

// MomentumSettings converts the momentum section into engine settings
func (c *Config) MomentumSettings() analyzer.MomentumConfig {
	return analyzer.MomentumConfig{
		RSIPeriod:      c.Momentum.RSIPeriod,
		MomentumPeriod: c.Momentum.MomentumPeriod,
		FastMA:         c.Momentum.FastMA,
		SlowMA:         c.Momentum.SlowMA,
		MinCandles:     c.Momentum.MinCandles,
		TrailingDays:   c.Momentum.TrailingDays,
	}
}

// EngulfingSettings converts the engulfing section into detector settings
func (c *Config) EngulfingSettings() analyzer.EngulfingConfig {
	return analyzer.EngulfingConfig{
		MinBody: c.Engulfing.MinBody,
		Mode:    analyzer.ThresholdMode(strings.ToLower(c.Engulfing.Threshold)),
	}
}
