package config

import (
	"os"
	"path/filepath"
	"testing"

	"grid-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validConfig = `
symbol: BTCUSDT
base_asset: BTC
quote_asset: USDT
lower_price: 100
upper_price: 200
grid_levels: 4
order_size: 0.1
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, models.GridArithmetic, cfg.GridType)
	assert.Equal(t, "classic_grid", cfg.StrategyID)
	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.StopLossEnabled)
	assert.Equal(t, 5, cfg.Risk.MaxConsecutiveErrors)
	assert.Equal(t, 3.0, cfg.Risk.MaxPriceJumpPct)
	assert.Equal(t, 1000.0, cfg.Accounting.InitialQuote)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 10.0, cfg.IntervalSeconds)
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig+`
grid_type: geometric
storage:
  driver: badger
  path: state.db
risk:
  max_price_jump_pct: 5.5
`))
	require.NoError(t, err)

	assert.Equal(t, models.GridGeometric, cfg.GridType)
	assert.Equal(t, "badger", cfg.Storage.Driver)
	assert.Equal(t, "state.db", cfg.Storage.Path)
	assert.Equal(t, 5.5, cfg.Risk.MaxPriceJumpPct)
}

func TestOfflineImpliesDryRun(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig+`
dry_run: false
offline: true
`))
	require.NoError(t, err)

	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.Offline)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing symbol", `
lower_price: 100
upper_price: 200
grid_levels: 4
order_size: 0.1
`},
		{"inverted range", `
symbol: BTCUSDT
lower_price: 200
upper_price: 100
grid_levels: 4
order_size: 0.1
`},
		{"zero levels", `
symbol: BTCUSDT
lower_price: 100
upper_price: 200
grid_levels: 0
order_size: 0.1
`},
		{"bad grid type", validConfig + "grid_type: exotic\n"},
		{"bad storage driver", validConfig + "storage: {driver: etcd}\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
