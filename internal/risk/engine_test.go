package risk

import (
	"errors"
	"testing"
	"time"

	"grid-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() models.RiskConfig {
	return models.RiskConfig{
		Enabled:              true,
		MaxConsecutiveErrors: 3,
		MaxPriceJumpPct:      3.0,
		PauseSeconds:         60,
		MaxDrawdownPct:       10.0,
	}
}

func f(v float64) *float64 { return &v }

func TestDisabledEngineNeverTransitions(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	e := New(cfg)

	status, reason := e.Evaluate(nil, nil, models.StatusRunning, errors.New("boom"), time.Now(), nil)
	assert.Equal(t, models.StatusRunning, status)
	assert.Empty(t, reason)
}

func TestPriceJumpPausesAndResumes(t *testing.T) {
	e := New(testConfig())
	now := time.Now()

	status, reason := e.Evaluate(f(110), f(100), models.StatusRunning, nil, now, nil)
	require.Equal(t, models.StatusPaused, status)
	assert.Equal(t, ReasonPriceJump, reason)
	require.NotNil(t, e.PauseUntil)

	// Still inside the pause window.
	status, reason = e.Evaluate(f(110), f(110), models.StatusPaused, nil, now.Add(30*time.Second), nil)
	assert.Equal(t, models.StatusPaused, status)
	assert.Empty(t, reason)

	// Window elapsed: back to RUNNING, pause cleared.
	status, _ = e.Evaluate(f(110), f(110), models.StatusPaused, nil, now.Add(61*time.Second), nil)
	assert.Equal(t, models.StatusRunning, status)
	assert.Nil(t, e.PauseUntil)
}

func TestSmallMoveDoesNotPause(t *testing.T) {
	e := New(testConfig())

	status, reason := e.Evaluate(f(102), f(100), models.StatusRunning, nil, time.Now(), nil)
	assert.Equal(t, models.StatusRunning, status)
	assert.Empty(t, reason)
}

func TestErrorStreakStops(t *testing.T) {
	e := New(testConfig())
	now := time.Now()
	boom := errors.New("boom")

	status, _ := e.Evaluate(nil, nil, models.StatusRunning, boom, now, nil)
	assert.Equal(t, models.StatusRunning, status)
	status, _ = e.Evaluate(nil, nil, models.StatusRunning, boom, now, nil)
	assert.Equal(t, models.StatusRunning, status)
	status, reason := e.Evaluate(nil, nil, models.StatusRunning, boom, now, nil)
	assert.Equal(t, models.StatusStopped, status)
	assert.Equal(t, ReasonTooManyErrors, reason)
}

func TestSuccessResetsErrorCounter(t *testing.T) {
	e := New(testConfig())
	now := time.Now()
	boom := errors.New("boom")

	e.Evaluate(nil, nil, models.StatusRunning, boom, now, nil)
	e.Evaluate(nil, nil, models.StatusRunning, boom, now, nil)
	e.Evaluate(f(100), nil, models.StatusRunning, nil, now, nil)
	assert.Zero(t, e.ConsecutiveErrors)

	status, _ := e.Evaluate(nil, nil, models.StatusRunning, boom, now, nil)
	assert.Equal(t, models.StatusRunning, status)
}

func TestMissingPriceStops(t *testing.T) {
	e := New(testConfig())

	status, reason := e.Evaluate(nil, nil, models.StatusRunning, nil, time.Now(), nil)
	assert.Equal(t, models.StatusStopped, status)
	assert.Equal(t, ReasonNoPrice, reason)
}

func TestDrawdownStops(t *testing.T) {
	e := New(testConfig())
	now := time.Now()

	status, _ := e.Evaluate(f(100), f(100), models.StatusRunning, nil, now, f(1000))
	require.Equal(t, models.StatusRunning, status)
	require.NotNil(t, e.PeakEquity)
	assert.Equal(t, 1000.0, *e.PeakEquity)

	// 5% down: within tolerance.
	status, _ = e.Evaluate(f(100), f(100), models.StatusRunning, nil, now, f(950))
	assert.Equal(t, models.StatusRunning, status)

	// 10% down from peak: stop.
	status, reason := e.Evaluate(f(100), f(100), models.StatusRunning, nil, now, f(900))
	assert.Equal(t, models.StatusStopped, status)
	assert.Equal(t, ReasonMaxDrawdown, reason)
}

func TestErrorStreakPreemptsJumpCheck(t *testing.T) {
	e := New(testConfig())
	e.ConsecutiveErrors = 2

	status, reason := e.Evaluate(f(200), f(100), models.StatusRunning, errors.New("boom"), time.Now(), nil)
	assert.Equal(t, models.StatusStopped, status)
	assert.Equal(t, ReasonTooManyErrors, reason)
}
