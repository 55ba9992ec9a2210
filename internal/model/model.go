// Package model implements the three survival model families behind a common
// fit/predict contract: Weibull accelerated-failure-time regression, ridge-
// penalized Cox regression, and an oblique random survival forest.
package model

import (
	"gonum.org/v1/gonum/mat"

	"complaint-survival-audit/internal/survival"
)

// Model is a fitted survival model.
type Model interface {
	// PredictSurvival returns S(t|x) for each requested time, non-increasing
	// in t and within [0, 1].
	PredictSurvival(x []float64, times []float64) []float64
	// PredictDuration returns a point prediction of the resolution time.
	PredictDuration(x []float64) float64
}

// Fitter builds a model from a design matrix and its observations.
type Fitter interface {
	Name() string
	Fit(X *mat.Dense, obs []survival.Observation) (Model, error)
}

// medianFromCurve walks a survival curve evaluated on a time grid and returns
// the first time it crosses 0.5. Falls back to the last grid time when the
// curve never drops that far.
func medianFromCurve(times, surv []float64) float64 {
	for i, s := range surv {
		if s <= 0.5 {
			return times[i]
		}
	}
	if len(times) == 0 {
		return 0
	}
	return times[len(times)-1]
}
