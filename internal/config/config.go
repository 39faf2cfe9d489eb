package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	DexScreener DexScreenerConfig `mapstructure:"dexscreener"`
	Filters     FiltersConfig     `mapstructure:"filters"`
	Monitor     MonitorConfig     `mapstructure:"monitor"`
	Blacklist   BlacklistConfig   `mapstructure:"blacklist"`
	RugCheck    RugCheckConfig    `mapstructure:"rugcheck"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Trading     TradingConfig     `mapstructure:"trading"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// DexScreenerConfig holds market-data API configuration
type DexScreenerConfig struct {
	APIURL       string        `mapstructure:"api_url"`
	Chains       []string      `mapstructure:"chains"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	RequestDelay time.Duration `mapstructure:"request_delay"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// FiltersConfig holds the threshold values pairs are evaluated against
type FiltersConfig struct {
	MinLiquidity   float64 `mapstructure:"min_liquidity"`
	MinVolume24h   float64 `mapstructure:"min_volume_24h"`
	MinPriceChange float64 `mapstructure:"min_price_change"`
}

// MonitorConfig holds classification and dedup behavior configuration
type MonitorConfig struct {
	FakeVolumeRatio float64       `mapstructure:"fake_volume_ratio"`
	PumpThreshold   float64       `mapstructure:"pump_threshold"`
	RugWindow       time.Duration `mapstructure:"rug_window"`
	Cooldown        time.Duration `mapstructure:"cooldown"`
	NewPairMaxAge   time.Duration `mapstructure:"new_pair_max_age"`
	Reload          bool          `mapstructure:"reload"`
}

// BlacklistConfig holds token and developer identifiers excluded from evaluation
type BlacklistConfig struct {
	Coins []string `mapstructure:"coins"`
	Devs  []string `mapstructure:"devs"`
}

// RugCheckConfig holds the optional pair trust-rating gate configuration
type RugCheckConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIURL  string        `mapstructure:"api_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// TradingConfig holds the trade-relay configuration
type TradingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	BotHandle string `mapstructure:"bot_handle"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath              string `mapstructure:"db_path"`
	MaxPairs            int    `mapstructure:"max_pairs"`
	MaxSnapshotsPerPair int    `mapstructure:"max_snapshots_per_pair"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("DEXWATCH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// DexScreener defaults
	v.SetDefault("dexscreener.api_url", "https://api.dexscreener.com/latest/dex/pairs")
	v.SetDefault("dexscreener.chains", []string{"ethereum", "bsc", "polygon"})
	v.SetDefault("dexscreener.poll_interval", "5m")
	v.SetDefault("dexscreener.request_delay", "200ms")
	v.SetDefault("dexscreener.timeout", "10s")
	v.SetDefault("dexscreener.max_retries", 3)

	// Filter defaults
	v.SetDefault("filters.min_liquidity", 1000.0)
	v.SetDefault("filters.min_volume_24h", 10000.0)
	v.SetDefault("filters.min_price_change", -1000.0)

	// Monitor defaults
	v.SetDefault("monitor.fake_volume_ratio", 10.0)
	v.SetDefault("monitor.pump_threshold", 100.0)
	v.SetDefault("monitor.rug_window", "1h")
	v.SetDefault("monitor.cooldown", "30m")
	v.SetDefault("monitor.new_pair_max_age", "24h")
	v.SetDefault("monitor.reload", false)

	// RugCheck defaults
	v.SetDefault("rugcheck.enabled", false)
	v.SetDefault("rugcheck.api_url", "https://rugcheck.xyz")
	v.SetDefault("rugcheck.timeout", "5s")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Trading defaults
	v.SetDefault("trading.enabled", false)
	v.SetDefault("trading.bot_handle", "ToxiSolanaBot")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/dexwatch.db")
	v.SetDefault("storage.max_pairs", 1000)
	v.SetDefault("storage.max_snapshots_per_pair", 100)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate DexScreener config
	if c.DexScreener.APIURL == "" {
		return fmt.Errorf("dexscreener.api_url is required")
	}
	if len(c.DexScreener.Chains) == 0 {
		return fmt.Errorf("dexscreener.chains must contain at least one chain")
	}
	if c.DexScreener.PollInterval < 1*time.Minute {
		return fmt.Errorf("dexscreener.poll_interval must be at least 1 minute")
	}
	if c.DexScreener.RequestDelay < 0 {
		return fmt.Errorf("dexscreener.request_delay must not be negative")
	}
	if c.DexScreener.Timeout <= 0 {
		return fmt.Errorf("dexscreener.timeout must be positive")
	}
	if c.DexScreener.MaxRetries < 1 {
		return fmt.Errorf("dexscreener.max_retries must be at least 1")
	}

	// Validate filter config
	if c.Filters.MinLiquidity < 0 {
		return fmt.Errorf("filters.min_liquidity must not be negative")
	}
	if c.Filters.MinVolume24h < 0 {
		return fmt.Errorf("filters.min_volume_24h must not be negative")
	}

	// Validate monitor config
	if c.Monitor.FakeVolumeRatio <= 0 {
		return fmt.Errorf("monitor.fake_volume_ratio must be positive")
	}
	if c.Monitor.PumpThreshold <= 0 {
		return fmt.Errorf("monitor.pump_threshold must be positive")
	}
	if c.Monitor.RugWindow <= 0 {
		return fmt.Errorf("monitor.rug_window must be positive")
	}
	if c.Monitor.Cooldown <= 0 {
		return fmt.Errorf("monitor.cooldown must be positive")
	}
	if c.Monitor.NewPairMaxAge < 0 {
		return fmt.Errorf("monitor.new_pair_max_age must not be negative")
	}

	// Validate RugCheck config
	if c.RugCheck.Enabled {
		if c.RugCheck.APIURL == "" {
			return fmt.Errorf("rugcheck.api_url is required when rugcheck is enabled")
		}
		if c.RugCheck.Timeout <= 0 {
			return fmt.Errorf("rugcheck.timeout must be positive")
		}
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate trading config
	if c.Trading.Enabled {
		if !c.Telegram.Enabled {
			return fmt.Errorf("trading.enabled requires telegram.enabled")
		}
		if c.Trading.BotHandle == "" {
			return fmt.Errorf("trading.bot_handle is required when trading is enabled")
		}
	}

	// Validate storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxPairs < 1 {
		return fmt.Errorf("storage.max_pairs must be at least 1")
	}
	if c.Storage.MaxSnapshotsPerPair < 1 {
		return fmt.Errorf("storage.max_snapshots_per_pair must be at least 1")
	}

	// Validate logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
