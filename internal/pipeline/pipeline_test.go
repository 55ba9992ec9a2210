package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complaint-survival-audit/internal/config"
	"complaint-survival-audit/internal/dataset"
)

func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Horizons = config.HorizonConfig{Start: 30, End: 180, Step: 30}
	cfg.Grids.Forest = config.ForestGrid{Trees: []int{20}, MinLeaf: []int{20}}
	cfg.Grids.Cox = config.CoxGrid{Penalty: []float64{0.1}}
	cfg.Grids.Weibull = config.WeibullGrid{Ridge: []float64{0.1}}
	cfg.Preprocess.RareLevelMinCount = 5
	return cfg
}

func synthInput(t *testing.T, rows int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "complaints.csv")
	require.NoError(t, dataset.WriteSynthetic(path, rows, 20260825))
	return path
}

func TestRunEndToEnd(t *testing.T) {
	cfg := smallConfig()
	input := synthInput(t, 400)

	report, artifacts, err := Run(cfg, input)
	require.NoError(t, err)

	// The split is a partition of the loaded rows.
	sum := report.Summary.TrainSize + report.Summary.ValidationSize + report.Summary.TestSize
	assert.Equal(t, report.Summary.TotalComplaints, sum)
	assert.Equal(t, report.Summary.TotalComplaints,
		report.Summary.Resolved+report.Summary.Censored)

	// One leaderboard entry per candidate, winner at the top.
	require.Len(t, report.Leaderboard, 3)
	assert.Equal(t, report.Leaderboard[0].ConfigKey, report.Winner.ConfigKey)

	// Test metrics are populated for every horizon and within range.
	require.Len(t, report.Test.ByHorizon, len(report.Summary.Horizons))
	for _, hm := range report.Test.ByHorizon {
		assert.GreaterOrEqual(t, hm.Brier, 0.0)
		assert.LessOrEqual(t, hm.Brier, 1.0)
		assert.GreaterOrEqual(t, hm.AUC, 0.0)
		assert.LessOrEqual(t, hm.AUC, 1.0)
	}
	assert.Greater(t, report.Test.IntegratedBrier, 0.0)

	// Every test complaint got a prediction and a tier.
	assert.Len(t, report.Predictions, report.Summary.TestSize)
	for _, p := range report.Predictions {
		assert.GreaterOrEqual(t, p.PredictedDays, 0.0)
		_, ok := map[string]bool{"on_pace": true, "lagging": true, "overdue": true, "stalled": true}[p.Tier]
		assert.True(t, ok, "unknown tier %q", p.Tier)
	}
	assert.Len(t, report.SlowResolvers, cfg.Report.TopN)
	for i := 1; i < len(report.SlowResolvers); i++ {
		assert.GreaterOrEqual(t, report.SlowResolvers[i-1].PredictedDays,
			report.SlowResolvers[i].PredictedDays)
	}

	// Artifacts cover every family plus sample curves.
	assert.Len(t, artifacts.ValidationByFamily, 3)
	assert.Len(t, artifacts.SampleCurves, 3)
	for _, curve := range artifacts.SampleCurves {
		assert.Len(t, curve.Surv, len(report.Summary.Horizons))
	}
}

func TestRunReproducibleUnderFixedSeed(t *testing.T) {
	cfg := smallConfig()
	input := synthInput(t, 400)

	first, _, err := Run(cfg, input)
	require.NoError(t, err)
	second, _, err := Run(cfg, input)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRunRejectsTinyDataset(t *testing.T) {
	cfg := smallConfig()
	input := synthInput(t, 20)

	_, _, err := Run(cfg, input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")
}

func TestRunRejectsEmptySplitArm(t *testing.T) {
	cfg := smallConfig()
	// Valid ratios, but at 50 rows the test arm rounds down to zero.
	cfg.Split.Train = 0.98
	cfg.Split.Validation = 0.01
	cfg.Split.Test = 0.01
	require.NoError(t, cfg.Validate())
	input := synthInput(t, 50)

	_, _, err := Run(cfg, input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, "on_pace", TierFor(20, 180))
	assert.Equal(t, "lagging", TierFor(60, 180))
	assert.Equal(t, "overdue", TierFor(150, 180))
	assert.Equal(t, "stalled", TierFor(300, 180))
	// Zero threshold falls back to the default.
	assert.Equal(t, "on_pace", TierFor(20, 0))
}
