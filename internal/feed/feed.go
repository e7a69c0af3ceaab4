package feed

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"grid-bot-go/internal/models"
)

// scenarioLength is how many ticks a generated scenario covers.
const scenarioLength = 500

// Feed hands out one synthetic price per tick in offline mode. It either
// cycles its series forever or, in once mode, runs through it a single time
// and then reports exhaustion.
type Feed struct {
	prices    []float64
	idx       int
	cycle     bool
	exhausted bool
}

// New builds the offline feed from the config, trying sources in order:
// a named scenario, the inline offline_prices list, then the CSV file.
// An empty feed is valid and reports exhaustion on first Next.
func New(cfg *models.Config) (*Feed, error) {
	var prices []float64
	if cfg.OfflineScenario != "" {
		rng := rand.New(rand.NewSource(seedOf(cfg)))
		prices = Generate(cfg.OfflineScenario, scenarioLength, cfg.Risk, rng)
	}
	if len(prices) == 0 {
		prices = cfg.OfflinePrices
	}
	if len(prices) == 0 && cfg.OfflinePricesCSV != "" {
		loaded, err := LoadCSV(cfg.OfflinePricesCSV)
		if err != nil {
			return nil, err
		}
		prices = loaded
	}
	return &Feed{prices: prices, cycle: !cfg.OfflineOnce}, nil
}

func seedOf(cfg *models.Config) int64 {
	if cfg.Seed != nil {
		return *cfg.Seed
	}
	return time.Now().UnixNano()
}

// Next returns the next price, or false when the feed has nothing left.
// Exhaustion is sticky.
func (f *Feed) Next() (float64, bool) {
	if len(f.prices) == 0 {
		f.exhausted = true
		return 0, false
	}
	if f.idx >= len(f.prices) {
		if !f.cycle {
			f.exhausted = true
			return 0, false
		}
		f.idx = 0
	}
	p := f.prices[f.idx]
	f.idx++
	return p, true
}

// Exhausted reports whether the feed has run dry in once mode.
func (f *Feed) Exhausted() bool { return f.exhausted }

// Len returns the length of the underlying series.
func (f *Feed) Len() int { return len(f.prices) }

// Generate produces a synthetic price series for the named scenario. The
// range scenario oscillates around the base with configurable amplitude and
// noise; trend scenarios drift linearly; flash_crash holds, drops 15-25% and
// then partially recovers.
func Generate(scenario string, length int, risk models.RiskConfig, rng *rand.Rand) []float64 {
	const base = 88000.0
	prices := make([]float64, 0, length)

	uniform := func(lo, hi float64) float64 {
		return lo + rng.Float64()*(hi-lo)
	}

	switch scenario {
	case "trend_up":
		for i := 0; i < length; i++ {
			drift := float64(i) * 3
			prices = append(prices, base-400+drift+uniform(-50, 50))
		}
	case "trend_down":
		for i := 0; i < length; i++ {
			drift := float64(i) * -3
			prices = append(prices, base+400+drift+uniform(-50, 50))
		}
	case "flash_crash":
		stableLen := max(50, length/5)
		crashLen := max(20, length/10)
		recoverLen := length - stableLen - crashLen
		for i := 0; i < stableLen; i++ {
			prices = append(prices, base+uniform(-40, 40))
		}
		crashPrice := base * (1 - uniform(0.15, 0.25))
		for i := 0; i < crashLen; i++ {
			prices = append(prices, crashPrice+uniform(-30, 30))
		}
		target := crashPrice + (base-crashPrice)*0.6
		for i := 0; i < recoverLen; i++ {
			frac := float64(i+1) / float64(recoverLen)
			prices = append(prices, crashPrice+(target-crashPrice)*frac+uniform(-50, 50))
		}
	default: // "range"
		amplitude := base * (risk.AmplitudePct / 100)
		noiseScale := base * (risk.NoisePct / 100)
		period := risk.PeriodSteps
		if period < 1 {
			period = 1
		}
		for i := 0; i < length; i++ {
			wave := math.Sin(float64(i)/float64(period)) * amplitude
			prices = append(prices, base+wave+uniform(-noiseScale, noiseScale))
		}
	}
	return prices
}

// LoadCSV reads a price series from a CSV file. The price is taken from the
// first column, falling back to the second when the first does not parse,
// which also covers timestamp,close exports. A lone "price" header is
// skipped.
func LoadCSV(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var prices []float64
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read price csv %s: %w", path, err)
	}
	for _, row := range records {
		if len(row) == 0 {
			continue
		}
		if len(row) == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "price") {
			continue
		}
		candidates := row[:1]
		if len(row) > 1 {
			candidates = row[:2]
		}
		for _, c := range candidates {
			if v, err := strconv.ParseFloat(strings.TrimSpace(c), 64); err == nil {
				prices = append(prices, v)
				break
			}
		}
	}
	return prices, nil
}
