package execution

import (
	"math"

	"grid-bot-go/internal/models"
)

// RoundtripCostBps estimates the cost of a buy-then-sell round trip in bps:
// the fee is paid on both legs, spread and slippage once.
func RoundtripCostBps(feeBps, spreadBps, slippageBps float64) float64 {
	return 2*feeBps + spreadBps + slippageBps
}

// GridStepPct returns the grid step as a fraction of price, or 0 when the
// grid has no meaningful step.
func GridStepPct(lower, upper float64, levels int, gridType models.GridType) float64 {
	if levels <= 0 {
		return 0
	}
	if gridType == models.GridGeometric {
		return math.Pow(upper/lower, 1/float64(levels)) - 1
	}
	mid := (upper + lower) / 2
	if mid <= 0 {
		return 0
	}
	return (upper - lower) / float64(levels) / mid
}

// RecommendGridLevels returns the largest level count whose step still clears
// minStepBps.
func RecommendGridLevels(lower, upper float64, minStepBps float64, gridType models.GridType) int {
	minStepFrac := minStepBps / 10000
	if minStepFrac <= 0 {
		return 1
	}
	if gridType == models.GridGeometric {
		levels := int(math.Floor(math.Log(upper/lower) / math.Log(1+minStepFrac)))
		if levels < 1 {
			return 1
		}
		return levels
	}
	mid := (upper + lower) / 2
	if mid <= 0 {
		return 1
	}
	stepNeeded := mid * minStepFrac
	if stepNeeded <= 0 {
		return 1
	}
	levels := int(math.Floor((upper - lower) / stepNeeded))
	if levels < 1 {
		return 1
	}
	return levels
}

// BreakevenMetrics summarizes whether a grid's step clears its round-trip
// trading costs.
type BreakevenMetrics struct {
	GridStepPct       float64
	RoundtripCostBps  float64
	RoundtripCostPct  float64
	BreakevenOK       bool
	RecommendedLevels int
	SafetyFactor      float64
}

// ComputeBreakeven evaluates a grid configuration against its cost
// parameters using a safety factor on top of the raw round-trip cost.
func ComputeBreakeven(lower, upper float64, levels int, gridType models.GridType, feeBps, spreadBps, slippageBps, safetyFactor float64) BreakevenMetrics {
	stepFrac := GridStepPct(lower, upper, levels, gridType)
	rtBps := RoundtripCostBps(feeBps, spreadBps, slippageBps)
	rtPct := rtBps / 100
	minStepPct := rtPct * safetyFactor

	return BreakevenMetrics{
		GridStepPct:       stepFrac * 100,
		RoundtripCostBps:  rtBps,
		RoundtripCostPct:  rtPct,
		BreakevenOK:       stepFrac*100 >= minStepPct,
		RecommendedLevels: RecommendGridLevels(lower, upper, minStepPct*100, gridType),
		SafetyFactor:      safetyFactor,
	}
}
