package domain

import "fmt"

// TrendConfig parameterizes the rising-trend heuristic. All values are
// configuration, not law; see DefaultTrendConfig for the shipped tuning.
type TrendConfig struct {
	WindowMinutes    int
	MaxSamples       int
	MinSamples       int
	MinRisingSteps   int
	MinTotalIncrease float64
}

var DefaultTrendConfig = TrendConfig{
	WindowMinutes:    5,
	MaxSamples:       5,
	MinSamples:       3,
	MinRisingSteps:   2,
	MinTotalIncrease: 2,
}

// TrendResult summarizes a detected rising trend over a sample window.
type TrendResult struct {
	RisingSteps   int
	TotalIncrease float64
	Newest        float64
	Oldest        float64
	Samples       int
}

func (t TrendResult) Message() string {
	return fmt.Sprintf("rising trend: %d rising steps over %d samples, +%.2f (%.2f -> %.2f)",
		t.RisingSteps, t.Samples, t.TotalIncrease, t.Oldest, t.Newest)
}

// AnalyzeTrend runs the rising-trend heuristic over samples ordered
// newest-first. It answers "is this unit recently getting warmer,
// persistently and by a meaningful margin" from the last few points only;
// it is not a statistical model.
//
// A trend is reported when there are at least MinSamples samples, at least
// MinRisingSteps adjacent pairs where the newer value exceeds the older,
// and the newest value exceeds the oldest by more than MinTotalIncrease.
func AnalyzeTrend(samples []float64, cfg TrendConfig) (TrendResult, bool) {
	if len(samples) < cfg.MinSamples {
		return TrendResult{}, false
	}

	rising := 0
	for i := 0; i < len(samples)-1; i++ {
		if samples[i] > samples[i+1] {
			rising++
		}
	}

	newest := samples[0]
	oldest := samples[len(samples)-1]
	increase := newest - oldest

	if rising < cfg.MinRisingSteps || increase <= cfg.MinTotalIncrease {
		return TrendResult{}, false
	}

	return TrendResult{
		RisingSteps:   rising,
		TotalIncrease: increase,
		Newest:        newest,
		Oldest:        oldest,
		Samples:       len(samples),
	}, true
}
