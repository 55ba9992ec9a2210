package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complaint-survival-audit/internal/eval"
	"complaint-survival-audit/internal/pipeline"
)

func sampleReport() *pipeline.Report {
	return &pipeline.Report{
		Summary: pipeline.Summary{
			Input:           "complaints.csv",
			Seed:            7,
			TotalComplaints: 4,
			Resolved:        3,
			Censored:        1,
			TrainSize:       2,
			ValidationSize:  1,
			TestSize:        1,
			Horizons:        []float64{30, 60},
		},
		Leaderboard: []pipeline.FamilyResult{
			{Family: "cox_ridge", ConfigKey: "cox_ridge penalty=0.1", IntegratedBrier: 0.11, Concordance: 0.7},
			{Family: "weibull_aft", ConfigKey: "weibull_aft ridge=0", IntegratedBrier: 0.15, Concordance: 0.65},
		},
		Winner: pipeline.FamilyResult{Family: "cox_ridge", ConfigKey: "cox_ridge penalty=0.1", IntegratedBrier: 0.11, Concordance: 0.7},
		Test: pipeline.TestResult{
			IntegratedBrier: 0.12,
			Concordance:     0.68,
			ByHorizon: []pipeline.HorizonMetric{
				{Horizon: 30, Brier: 0.1, AUC: 0.7},
				{Horizon: 60, Brier: 0.14, AUC: 0.66},
			},
		},
		Predictions: []pipeline.PredictedComplaint{
			{Priority: "EMERGENCY", Category: "PLUMBING", CommunityBoard: "01", Latitude: 40.7, Longitude: -73.9, ObservedDays: 12, Resolved: true, PredictedDays: 20, Tier: "on_pace"},
			{Priority: "REFERRED", Category: "GENERAL", CommunityBoard: "05", Latitude: 40.8, Longitude: -73.8, ObservedDays: 200, Resolved: false, PredictedDays: 260, Tier: "stalled"},
			{Priority: "HAZARDOUS", Category: "ELECTRIC", CommunityBoard: "09", Latitude: 40.6, Longitude: -74.0, ObservedDays: 90, Resolved: true, PredictedDays: 120, Tier: "overdue"},
		},
		SlowResolvers: []pipeline.PredictedComplaint{
			{Priority: "REFERRED", Category: "GENERAL", PredictedDays: 260, Tier: "stalled"},
		},
	}
}

func TestTierRank(t *testing.T) {
	for tier, want := range map[string]int{
		"on_pace": 0, "lagging": 1, "overdue": 2, "stalled": 3,
	} {
		rank, ok := TierRank(tier)
		require.True(t, ok, tier)
		assert.Equal(t, want, rank)
	}
	_, ok := TierRank("nope")
	assert.False(t, ok)
	rank, ok := TierRank(" Stalled ")
	require.True(t, ok)
	assert.Equal(t, 3, rank)
}

func TestWriteJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	original := sampleReport()
	require.NoError(t, WriteJSON(original, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded pipeline.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *original, decoded)
}

func TestWriteAlertsCSVFiltersByTier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.csv")
	require.NoError(t, WriteAlertsCSV(sampleReport(), path, "overdue"))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	// Header plus the stalled and overdue predictions.
	require.Len(t, records, 3)
	assert.Equal(t, "priority", records[0][0])
	assert.Equal(t, "stalled", records[1][9])
	assert.Equal(t, "overdue", records[2][9])
}

func TestWriteAlertsCSVRejectsBadTier(t *testing.T) {
	err := WriteAlertsCSV(sampleReport(), filepath.Join(t.TempDir(), "x.csv"), "bogus")
	require.Error(t, err)
}

func TestWritePlotsCreatesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	artifacts := &pipeline.Artifacts{
		ValidationByFamily: map[string]eval.Result{
			"cox_ridge": {
				Horizons: []float64{30, 60},
				Brier:    []float64{0.1, 0.14},
				AUC:      []float64{0.7, 0.66},
			},
			"weibull_aft": {
				Horizons: []float64{30, 60},
				Brier:    []float64{0.12, 0.16},
				AUC:      []float64{0.68, 0.64},
			},
		},
		SampleCurves: []pipeline.SampleCurve{
			{Label: "EMERGENCY / PLUMBING", Times: []float64{30, 60}, Surv: []float64{0.8, 0.5}},
		},
	}

	require.NoError(t, WritePlots(sampleReport(), artifacts, dir))

	for _, name := range []string{
		"brier_by_horizon.png",
		"auc_by_horizon.png",
		"survival_samples.png",
		"complaint_map.png",
	} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0), name)
	}
}

func TestPrintDoesNotPanic(t *testing.T) {
	// Smoke test: the narrative renderer handles a fully populated report.
	Print(sampleReport())
}
