// Package pipeline wires the full audit run: load, encode, split, tune,
// select, refit, and score once on the held-out test subset.
package pipeline

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"complaint-survival-audit/internal/config"
	"complaint-survival-audit/internal/dataset"
	"complaint-survival-audit/internal/eval"
	"complaint-survival-audit/internal/model"
	"complaint-survival-audit/internal/split"
	"complaint-survival-audit/internal/survival"
	"complaint-survival-audit/internal/tune"
)

// minDatasetSize keeps every split arm large enough to fit and score on.
const minDatasetSize = 50

type Summary struct {
	Input           string    `json:"input"`
	Seed            int64     `json:"seed"`
	TotalComplaints int       `json:"total_complaints"`
	Resolved        int       `json:"resolved"`
	Censored        int       `json:"censored"`
	InvalidRows     int       `json:"invalid_rows"`
	TrainSize       int       `json:"train_size"`
	ValidationSize  int       `json:"validation_size"`
	TestSize        int       `json:"test_size"`
	Horizons        []float64 `json:"horizons"`
}

type FamilyResult struct {
	Family          string  `json:"family"`
	ConfigKey       string  `json:"config_key"`
	IntegratedBrier float64 `json:"integrated_brier"`
	Concordance     float64 `json:"concordance"`
}

type HorizonMetric struct {
	Horizon float64 `json:"horizon"`
	Brier   float64 `json:"brier"`
	AUC     float64 `json:"auc"`
}

type TestResult struct {
	IntegratedBrier float64         `json:"integrated_brier"`
	Concordance     float64         `json:"concordance"`
	ByHorizon       []HorizonMetric `json:"by_horizon"`
}

type PredictedComplaint struct {
	Priority       string  `json:"priority"`
	Category       string  `json:"category"`
	Unit           string  `json:"unit"`
	CommunityBoard string  `json:"community_board"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	ObservedDays   float64 `json:"observed_days"`
	Resolved       bool    `json:"resolved"`
	PredictedDays  float64 `json:"predicted_days"`
	Tier           string  `json:"tier"`
}

type Report struct {
	Summary       Summary              `json:"summary"`
	Leaderboard   []FamilyResult       `json:"leaderboard"`
	Winner        FamilyResult         `json:"winner"`
	Test          TestResult           `json:"test"`
	SlowResolvers []PredictedComplaint `json:"slow_resolvers"`
	Predictions   []PredictedComplaint `json:"predictions"`
}

// SampleCurve is one test complaint's predicted survival curve, kept for the
// plot renderer.
type SampleCurve struct {
	Label string
	Times []float64
	Surv  []float64
}

// Artifacts carries everything the reporter needs beyond the report itself.
type Artifacts struct {
	// ValidationByFamily maps each family to its best validation result.
	ValidationByFamily map[string]eval.Result
	SampleCurves       []SampleCurve
}

// Run executes the whole audit against the complaints CSV at inputPath.
func Run(cfg *config.Config, inputPath string) (*Report, *Artifacts, error) {
	ds, err := dataset.Load(inputPath)
	if err != nil {
		return nil, nil, err
	}
	return runOn(cfg, inputPath, ds)
}

func runOn(cfg *config.Config, inputPath string, ds *dataset.Dataset) (*Report, *Artifacts, error) {
	n := len(ds.Complaints)
	if n < minDatasetSize {
		return nil, nil, fmt.Errorf("dataset too small: %d rows, need at least %d", n, minDatasetSize)
	}

	horizons := cfg.Horizons.Grid()
	parts := split.Partition(n, cfg.Split.Train, cfg.Split.Validation, cfg.Split.Seed)
	if len(parts.Train) == 0 || len(parts.Validation) == 0 || len(parts.Test) == 0 {
		return nil, nil, fmt.Errorf("split left a subset empty: train %d / validation %d / test %d",
			len(parts.Train), len(parts.Validation), len(parts.Test))
	}

	trainRows, trainObs := ds.Subset(parts.Train)
	validRows, validObs := ds.Subset(parts.Validation)
	testRows, testObs := ds.Subset(parts.Test)

	candidates := tune.Candidates(cfg, cfg.Split.Seed)
	outcomes, err := tune.Search(candidates, trainRows, trainObs, validRows, validObs, horizons)
	if err != nil {
		return nil, nil, err
	}
	winner, err := tune.Select(outcomes)
	if err != nil {
		return nil, nil, err
	}

	// Refit the winning configuration on train+validation; the test subset
	// is touched exactly once, here.
	refitRows := append(append([]dataset.Complaint{}, trainRows...), validRows...)
	refitObs := append(append([]survival.Observation{}, trainObs...), validObs...)
	enc := winner.Candidate.Recipe.Fit(refitRows)
	final, err := winner.Candidate.Fitter.Fit(enc.Transform(refitRows), refitObs)
	if err != nil {
		return nil, nil, fmt.Errorf("refit %s: %w", winner.Candidate.Key, err)
	}

	testX := enc.Transform(testRows)
	testResult, err := eval.Evaluate(final, testX, testObs, horizons)
	if err != nil {
		return nil, nil, fmt.Errorf("test evaluation: %w", err)
	}

	report := &Report{
		Summary: Summary{
			Input:           inputPath,
			Seed:            cfg.Split.Seed,
			TotalComplaints: n,
			Resolved:        survival.EventCount(ds.Observations),
			Censored:        n - survival.EventCount(ds.Observations),
			InvalidRows:     ds.InvalidRows,
			TrainSize:       len(parts.Train),
			ValidationSize:  len(parts.Validation),
			TestSize:        len(parts.Test),
			Horizons:        horizons,
		},
		Winner: familyResult(winner),
		Test: TestResult{
			IntegratedBrier: testResult.IntegratedBrier,
			Concordance:     testResult.Concordance,
		},
	}
	for h, t := range horizons {
		report.Test.ByHorizon = append(report.Test.ByHorizon, HorizonMetric{
			Horizon: t,
			Brier:   testResult.Brier[h],
			AUC:     testResult.AUC[h],
		})
	}

	leaderboard := tune.Leaderboard(outcomes)
	for _, o := range leaderboard {
		report.Leaderboard = append(report.Leaderboard, familyResult(o))
	}

	report.Predictions = predict(final, testX, testRows, testObs, cfg.Report.AlertDays)
	report.SlowResolvers = topSlow(report.Predictions, cfg.Report.TopN)

	artifacts := &Artifacts{ValidationByFamily: map[string]eval.Result{}}
	for _, o := range leaderboard {
		family := o.Candidate.Family
		if _, seen := artifacts.ValidationByFamily[family]; !seen {
			artifacts.ValidationByFamily[family] = o.Validation
		}
	}
	for i := 0; i < len(testRows) && i < 3; i++ {
		x := mat.Row(nil, i, testX)
		artifacts.SampleCurves = append(artifacts.SampleCurves, SampleCurve{
			Label: fmt.Sprintf("%s / %s", testRows[i].Priority, testRows[i].Category),
			Times: horizons,
			Surv:  final.PredictSurvival(x, horizons),
		})
	}

	return report, artifacts, nil
}

func familyResult(o tune.Outcome) FamilyResult {
	return FamilyResult{
		Family:          o.Candidate.Family,
		ConfigKey:       o.Candidate.Key,
		IntegratedBrier: o.Validation.IntegratedBrier,
		Concordance:     o.Validation.Concordance,
	}
}

func predict(m model.Model, X *mat.Dense, rows []dataset.Complaint, obs []survival.Observation, alertDays float64) []PredictedComplaint {
	out := make([]PredictedComplaint, len(rows))
	for i, row := range rows {
		predicted := m.PredictDuration(mat.Row(nil, i, X))
		out[i] = PredictedComplaint{
			Priority:       row.Priority,
			Category:       row.Category,
			Unit:           row.Unit,
			CommunityBoard: row.CommunityBoard,
			Latitude:       row.Latitude,
			Longitude:      row.Longitude,
			ObservedDays:   obs[i].Duration,
			Resolved:       obs[i].Event,
			PredictedDays:  predicted,
			Tier:           TierFor(predicted, alertDays),
		}
	}
	return out
}

func topSlow(predictions []PredictedComplaint, topN int) []PredictedComplaint {
	sorted := append([]PredictedComplaint{}, predictions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PredictedDays > sorted[j].PredictedDays
	})
	if topN > 0 && len(sorted) > topN {
		sorted = sorted[:topN]
	}
	return sorted
}

// TierFor buckets a predicted resolution time against the alert threshold.
func TierFor(predictedDays, alertDays float64) string {
	if alertDays <= 0 {
		alertDays = 180
	}
	switch {
	case predictedDays <= alertDays/6:
		return "on_pace"
	case predictedDays <= alertDays/2:
		return "lagging"
	case predictedDays <= alertDays:
		return "overdue"
	}
	return "stalled"
}
