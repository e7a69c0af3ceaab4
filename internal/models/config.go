package models

import "fmt"

// Config holds every runtime option of the bot. It is built once at startup
// by the config package and passed by reference into the engine constructor;
// there is no package-level mutable configuration.
type Config struct {
	Symbol     string `yaml:"symbol"`
	BaseAsset  string `yaml:"base_asset"`
	QuoteAsset string `yaml:"quote_asset"`

	LowerPrice float64  `yaml:"lower_price"`
	UpperPrice float64  `yaml:"upper_price"`
	GridLevels int      `yaml:"grid_levels"`
	GridType   GridType `yaml:"grid_type"`
	OrderSize  float64  `yaml:"order_size"`

	TrailingUp      bool   `yaml:"trailing_up"`
	StopLossEnabled bool   `yaml:"stop_loss_enabled"`
	StrategyID      string `yaml:"strategy_id"`

	// DryRun simulates fills locally instead of placing real orders.
	// Offline additionally replaces the live ticker with a synthetic feed
	// and implies DryRun.
	DryRun           bool      `yaml:"dry_run"`
	Offline          bool      `yaml:"offline"`
	OfflineOnce      bool      `yaml:"offline_once"`
	OfflineScenario  string    `yaml:"offline_scenario"`
	OfflinePrices    []float64 `yaml:"offline_prices"`
	OfflinePricesCSV string    `yaml:"offline_prices_csv"`
	Seed             *int64    `yaml:"seed"`

	IntervalSeconds    float64 `yaml:"interval_seconds"`
	MaxSteps           int     `yaml:"max_steps"`
	StatusEverySeconds float64 `yaml:"status_every_seconds"`
	ReportPath         string  `yaml:"report_path"`

	Risk       RiskConfig       `yaml:"risk"`
	Accounting AccountingConfig `yaml:"accounting"`
	Storage    StorageConfig    `yaml:"storage"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Log        LogConfig        `yaml:"log"`
}

// RiskConfig parameterizes the risk engine and the synthetic range scenario.
type RiskConfig struct {
	Enabled              bool    `yaml:"enabled"`
	MaxConsecutiveErrors int     `yaml:"max_consecutive_errors"`
	MaxPriceJumpPct      float64 `yaml:"max_price_jump_pct"`
	PauseSeconds         float64 `yaml:"pause_seconds"`
	MaxDrawdownPct       float64 `yaml:"max_drawdown_pct"`
	PanicOnStop          bool    `yaml:"panic_on_stop"`

	AmplitudePct float64 `yaml:"amplitude_pct"`
	NoisePct     float64 `yaml:"noise_pct"`
	PeriodSteps  int     `yaml:"period_steps"`
}

// AccountingConfig parameterizes the paper ledger and the execution model.
// Cost parameters are in basis points unless noted.
type AccountingConfig struct {
	Enabled           bool    `yaml:"enabled"`
	InitialQuote      float64 `yaml:"initial_quote"`
	InitialBase       float64 `yaml:"initial_base"`
	FeeRate           float64 `yaml:"fee_rate"`
	FeeBps            float64 `yaml:"fee_bps"`
	SpreadBps         float64 `yaml:"spread_bps"`
	SlippageBps       float64 `yaml:"slippage_bps"`
	MakerFeeBps       float64 `yaml:"maker_fee_bps"`
	TakerFeeBps       float64 `yaml:"taker_fee_bps"`
	ApplyCostsInPrice bool    `yaml:"apply_costs_in_price"`
}

// StorageConfig selects and locates the persistence backend.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "badger"
	Path   string `yaml:"path"`
}

// ExchangeConfig holds live-exchange connectivity options. Credentials come
// from the environment, never from the config file.
type ExchangeConfig struct {
	Testnet         bool    `yaml:"testnet"`
	WSBaseURL       string  `yaml:"ws_base_url"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
}

// LogConfig defines logging output, level and rotation.
type LogConfig struct {
	Level      string `yaml:"level"`
	Output     string `yaml:"output"` // "console", "file" or "both"
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Validate reports the first fatal configuration error. A bot with an invalid
// config never starts its loop.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("config: symbol is required")
	}
	if c.LowerPrice <= 0 {
		return fmt.Errorf("config: lower_price must be greater than 0, got %v", c.LowerPrice)
	}
	if c.UpperPrice <= c.LowerPrice {
		return fmt.Errorf("config: upper_price %v must be greater than lower_price %v", c.UpperPrice, c.LowerPrice)
	}
	if c.GridLevels < 1 {
		return fmt.Errorf("config: grid_levels must be at least 1, got %d", c.GridLevels)
	}
	if c.OrderSize <= 0 {
		return fmt.Errorf("config: order_size must be greater than 0, got %v", c.OrderSize)
	}
	if c.GridType != GridArithmetic && c.GridType != GridGeometric {
		return fmt.Errorf("config: grid_type must be %q or %q, got %q", GridArithmetic, GridGeometric, c.GridType)
	}
	switch c.Storage.Driver {
	case "sqlite", "badger":
	default:
		return fmt.Errorf("config: storage.driver must be \"sqlite\" or \"badger\", got %q", c.Storage.Driver)
	}
	return nil
}
