package config

import (
	"fmt"
	"os"

	"grid-bot-go/internal/models"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML config file at path, applies defaults, and validates
// the result. Validation failures are fatal at startup.
func Load(path string) (*models.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	normalize(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaults returns a config pre-filled with the values assumed when a key is
// absent from the file.
func defaults() *models.Config {
	return &models.Config{
		GridType:           models.GridArithmetic,
		StrategyID:         "classic_grid",
		StopLossEnabled:    true,
		DryRun:             true,
		IntervalSeconds:    10,
		StatusEverySeconds: 10,
		Risk: models.RiskConfig{
			Enabled:              true,
			MaxConsecutiveErrors: 5,
			MaxPriceJumpPct:      3.0,
			PauseSeconds:         60,
			MaxDrawdownPct:       10.0,
			PanicOnStop:          true,
			AmplitudePct:         1.0,
			NoisePct:             0.5,
			PeriodSteps:          24,
		},
		Accounting: models.AccountingConfig{
			Enabled:           true,
			InitialQuote:      1000.0,
			FeeRate:           0.001,
			ApplyCostsInPrice: true,
		},
		Storage: models.StorageConfig{
			Driver: "sqlite",
			Path:   "grid_bot.db",
		},
		Exchange: models.ExchangeConfig{
			WSBaseURL:       "wss://stream.binance.com:9443",
			RateLimitPerSec: 10,
		},
		Log: models.LogConfig{
			Level:  "info",
			Output: "console",
		},
	}
}

// normalize clamps values the engine cannot work with instead of failing.
func normalize(cfg *models.Config) {
	if cfg.Offline {
		cfg.DryRun = true
	}
	if cfg.Risk.MaxConsecutiveErrors < 1 {
		cfg.Risk.MaxConsecutiveErrors = 1
	}
	if cfg.Risk.PauseSeconds < 0 {
		cfg.Risk.PauseSeconds = 0
	}
	if cfg.Exchange.RateLimitPerSec <= 0 {
		cfg.Exchange.RateLimitPerSec = 10
	}
}
