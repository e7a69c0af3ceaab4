package grid

import (
	"errors"
	"fmt"
	"math"

	"grid-bot-go/internal/models"

	"github.com/shopspring/decimal"
)

// ErrInvalidRange is returned when the grid bounds or level count cannot
// describe a valid ladder.
var ErrInvalidRange = errors.New("grid: invalid range")

// pricePrecision is the fixed number of fractional digits grid prices are
// rounded to, so rotation math does not accumulate float drift.
const pricePrecision = 10

// Round clamps a price to the fixed grid precision.
func Round(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(pricePrecision).Float64()
	return f
}

// Calculator produces the price levels of a grid ladder. It is pure and
// cheap to rebuild whenever the range changes, e.g. after a trailing shift.
type Calculator struct {
	lower    float64
	upper    float64
	levels   int
	gridType models.GridType

	step  float64 // arithmetic spacing, 0 for geometric grids
	ratio float64 // geometric spacing, 0 for arithmetic grids
}

// New validates the range and returns a calculator for it.
func New(lower, upper float64, levels int, gridType models.GridType) (*Calculator, error) {
	if lower <= 0 {
		return nil, fmt.Errorf("%w: lower_price %v must be greater than 0", ErrInvalidRange, lower)
	}
	if upper <= lower {
		return nil, fmt.Errorf("%w: upper_price %v must be greater than lower_price %v", ErrInvalidRange, upper, lower)
	}
	if levels <= 0 {
		return nil, fmt.Errorf("%w: grid_levels %d must be greater than 0", ErrInvalidRange, levels)
	}

	c := &Calculator{lower: lower, upper: upper, levels: levels, gridType: gridType}
	switch gridType {
	case models.GridGeometric:
		c.ratio = math.Pow(upper/lower, 1/float64(levels))
	default:
		c.step = (upper - lower) / float64(levels)
	}
	return c, nil
}

// Levels returns the levels+1 grid prices from lower to upper inclusive,
// strictly increasing and rounded to the fixed precision.
func (c *Calculator) Levels() []float64 {
	prices := make([]float64, 0, c.levels+1)
	for i := 0; i <= c.levels; i++ {
		var p float64
		if c.ratio != 0 {
			p = c.lower * math.Pow(c.ratio, float64(i))
		} else {
			p = c.lower + c.step*float64(i)
		}
		prices = append(prices, Round(p))
	}
	return prices
}

// Step returns the arithmetic spacing, or 0 for geometric grids.
func (c *Calculator) Step() float64 { return c.step }

// Ratio returns the geometric spacing factor, or 0 for arithmetic grids.
func (c *Calculator) Ratio() float64 { return c.ratio }

// StepUp returns the adjacent grid price one level above price.
func (c *Calculator) StepUp(price float64) float64 {
	if c.ratio != 0 {
		return Round(price * c.ratio)
	}
	return Round(price + c.step)
}

// StepDown returns the adjacent grid price one level below price.
func (c *Calculator) StepDown(price float64) float64 {
	if c.ratio != 0 {
		return Round(price / c.ratio)
	}
	return Round(price - c.step)
}
