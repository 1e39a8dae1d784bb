// Package config defines all configuration for the BET market client.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via BET_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"driftbet/pkg/types"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun    bool            `mapstructure:"dry_run"`
	Venue     VenueConfig     `mapstructure:"venue"`
	Markets   MarketsConfig   `mapstructure:"markets"`
	Precision PrecisionConfig `mapstructure:"precision"`
	Trading   TradingConfig   `mapstructure:"trading"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Stats     StatsConfig     `mapstructure:"stats"`
}

// VenueConfig holds the gateway endpoints and the account the client trades as.
// Wallet is the on-chain address whose positions are read and whose orders are
// submitted; ApiKey/Secret authenticate mutating gateway calls.
type VenueConfig struct {
	GatewayBaseURL string        `mapstructure:"gateway_base_url"`
	WSAccountURL   string        `mapstructure:"ws_account_url"`
	Wallet         string        `mapstructure:"wallet"`
	SubAccountID   int           `mapstructure:"sub_account_id"`
	ApiKey         string        `mapstructure:"api_key"`
	Secret         string        `mapstructure:"secret"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MarketsConfig controls which catalog entries count as prediction markets.
// A market matches when its symbol contains any family token or its category
// tags include the prediction tag.
type MarketsConfig struct {
	FamilyTokens  []string `mapstructure:"family_tokens"`
	PredictionTag string   `mapstructure:"prediction_tag"`
}

// PrecisionConfig sets the venue's fixed-point scales. These must match the
// on-chain program exactly; a venue upgrade changing precision is a config
// change, not a code change.
type PrecisionConfig struct {
	BaseDecimals  int32 `mapstructure:"base_decimals"`
	QuoteDecimals int32 `mapstructure:"quote_decimals"`
	PriceDecimals int32 `mapstructure:"price_decimals"`
}

// TradingConfig sets hard limits on order placement.
// MaxBetUSD caps a single bet's notional (safety rail, not risk management).
type TradingConfig struct {
	MaxBetUSD float64 `mapstructure:"max_bet_usd"`
}

// LedgerConfig sets where the paper-trading journal lives.
type LedgerConfig struct {
	Path            string  `mapstructure:"path"`
	StartingBalance float64 `mapstructure:"starting_balance"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StatsConfig controls the read-only stats HTTP server.
type StatsConfig struct {
	Port int `mapstructure:"port"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: BET_WALLET, BET_API_KEY, BET_API_SECRET.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("BET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("venue.request_timeout", 15*time.Second)
	v.SetDefault("markets.family_tokens", []string{"BET", "PREDICT"})
	v.SetDefault("markets.prediction_tag", "Prediction")
	v.SetDefault("precision.base_decimals", 9)
	v.SetDefault("precision.quote_decimals", 6)
	v.SetDefault("precision.price_decimals", 6)
	v.SetDefault("trading.max_bet_usd", 100)
	v.SetDefault("ledger.path", "data/paper.db")
	v.SetDefault("ledger.starting_balance", 10_000)
	v.SetDefault("logging.level", "info")
	v.SetDefault("stats.port", 8080)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env
	if w := os.Getenv("BET_WALLET"); w != "" {
		cfg.Venue.Wallet = w
	}
	if key := os.Getenv("BET_API_KEY"); key != "" {
		cfg.Venue.ApiKey = key
	}
	if secret := os.Getenv("BET_API_SECRET"); secret != "" {
		cfg.Venue.Secret = secret
	}
	if os.Getenv("BET_DRY_RUN") == "true" || os.Getenv("BET_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Venue.GatewayBaseURL == "" {
		return fmt.Errorf("venue.gateway_base_url is required")
	}
	if c.Venue.Wallet == "" {
		return fmt.Errorf("venue.wallet is required (set BET_WALLET)")
	}
	if len(c.Markets.FamilyTokens) == 0 && c.Markets.PredictionTag == "" {
		return fmt.Errorf("markets: at least one family token or a prediction tag is required")
	}
	if c.Precision.BaseDecimals <= 0 || c.Precision.QuoteDecimals <= 0 || c.Precision.PriceDecimals <= 0 {
		return fmt.Errorf("precision decimals must all be > 0")
	}
	if c.Trading.MaxBetUSD <= 0 {
		return fmt.Errorf("trading.max_bet_usd must be > 0")
	}
	if c.Ledger.StartingBalance <= 0 {
		return fmt.Errorf("ledger.starting_balance must be > 0")
	}
	return nil
}

// VenuePrecision returns the configured fixed-point scales as the shared type.
func (c *Config) VenuePrecision() types.Precision {
	return types.Precision{
		BaseDecimals:  c.Precision.BaseDecimals,
		QuoteDecimals: c.Precision.QuoteDecimals,
		PriceDecimals: c.Precision.PriceDecimals,
	}
}
