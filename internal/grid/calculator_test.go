package grid

import (
	"testing"

	"grid-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelsArithmetic(t *testing.T) {
	c, err := New(100, 200, 4, models.GridArithmetic)
	require.NoError(t, err)

	levels := c.Levels()
	assert.Equal(t, []float64{100, 125, 150, 175, 200}, levels)
	assert.Equal(t, 25.0, c.Step())
	assert.Equal(t, 0.0, c.Ratio())
}

func TestLevelsCountAndMonotonic(t *testing.T) {
	cases := []struct {
		name     string
		lower    float64
		upper    float64
		levels   int
		gridType models.GridType
	}{
		{"arithmetic small", 1, 2, 3, models.GridArithmetic},
		{"arithmetic wide", 100, 200000, 50, models.GridArithmetic},
		{"geometric small", 1, 2, 3, models.GridGeometric},
		{"geometric wide", 100, 200000, 50, models.GridGeometric},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New(tc.lower, tc.upper, tc.levels, tc.gridType)
			require.NoError(t, err)

			levels := c.Levels()
			require.Len(t, levels, tc.levels+1)
			assert.InDelta(t, tc.lower, levels[0], 1e-9)
			assert.InEpsilon(t, tc.upper, levels[len(levels)-1], 1e-9)
			for i := 1; i < len(levels); i++ {
				assert.Greater(t, levels[i], levels[i-1])
			}
		})
	}
}

func TestSingleLevelGridTypesAgree(t *testing.T) {
	arith, err := New(100, 200, 1, models.GridArithmetic)
	require.NoError(t, err)
	geo, err := New(100, 200, 1, models.GridGeometric)
	require.NoError(t, err)

	assert.Equal(t, arith.Levels(), geo.Levels())
}

func TestInvalidRange(t *testing.T) {
	cases := []struct {
		name   string
		lower  float64
		upper  float64
		levels int
	}{
		{"zero lower", 0, 200, 4},
		{"negative lower", -5, 200, 4},
		{"upper equals lower", 100, 100, 4},
		{"upper below lower", 200, 100, 4},
		{"zero levels", 100, 200, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.lower, tc.upper, tc.levels, models.GridArithmetic)
			assert.ErrorIs(t, err, ErrInvalidRange)
		})
	}
}

func TestStepUpStepDown(t *testing.T) {
	arith, err := New(100, 200, 4, models.GridArithmetic)
	require.NoError(t, err)
	assert.Equal(t, 150.0, arith.StepUp(125))
	assert.Equal(t, 100.0, arith.StepDown(125))

	geo, err := New(100, 400, 2, models.GridGeometric)
	require.NoError(t, err)
	assert.InDelta(t, 200.0, geo.StepUp(100), 1e-9)
	assert.InDelta(t, 100.0, geo.StepDown(200), 1e-9)
}

func TestRoundFixedPrecision(t *testing.T) {
	assert.Equal(t, 0.1234567891, Round(0.12345678905))
	assert.Equal(t, 100.0, Round(100.00000000004))
}
