package model

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"complaint-survival-audit/internal/survival"
)

// twoGroupData builds observations where group 1 resolves much slower than
// group 0: Weibull durations with scale 30 vs 150. Censoring is applied to a
// fraction of each group at a fixed fraction of the drawn time.
func twoGroupData(n int, seed int64, censorFrac float64) (*mat.Dense, []survival.Observation) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(n, 1, nil)
	obs := make([]survival.Observation, n)
	for i := 0; i < n; i++ {
		group := float64(i % 2)
		scale := 30.0
		if group == 1 {
			scale = 150.0
		}
		u := rng.Float64()*0.98 + 0.01
		duration := scale * math.Pow(-math.Log(1-u), 1/1.3)
		event := true
		if rng.Float64() < censorFrac {
			event = false
			duration *= 0.6
		}
		X.Set(i, 0, group)
		obs[i] = survival.Observation{Duration: math.Max(duration, 1), Event: event}
	}
	return X, obs
}

func grid() []float64 { return []float64{30, 60, 90, 120, 180, 240} }

func assertValidCurve(t *testing.T, surv []float64) {
	t.Helper()
	prev := 1.0
	for i, s := range surv {
		require.GreaterOrEqual(t, s, 0.0, "point %d", i)
		require.LessOrEqual(t, s, 1.0, "point %d", i)
		require.LessOrEqual(t, s, prev+1e-9, "curve must be non-increasing at %d", i)
		prev = s
	}
}

func TestWeibullFitSeparatesGroups(t *testing.T) {
	X, obs := twoGroupData(400, 11, 0.2)
	m, err := WeibullFitter{}.Fit(X, obs)
	require.NoError(t, err)

	fast := m.PredictDuration([]float64{0})
	slow := m.PredictDuration([]float64{1})
	assert.Greater(t, fast, 0.0)
	assert.Greater(t, slow, 2*fast, "slow group should predict much longer resolution")

	assertValidCurve(t, m.PredictSurvival([]float64{0}, grid()))
	assertValidCurve(t, m.PredictSurvival([]float64{1}, grid()))

	// Survival at zero is 1 by definition.
	assert.Equal(t, 1.0, m.PredictSurvival([]float64{1}, []float64{0})[0])

	// The slow group is more likely to still be open at 60 days.
	s0 := m.PredictSurvival([]float64{0}, []float64{60})[0]
	s1 := m.PredictSurvival([]float64{1}, []float64{60})[0]
	assert.Greater(t, s1, s0)
}

func TestWeibullFitCompletesWithRidge(t *testing.T) {
	X, obs := twoGroupData(60, 23, 0.3)
	m, err := WeibullFitter{Ridge: 0.1}.Fit(X, obs)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Greater(t, m.PredictDuration([]float64{0}), 0.0)
	assertValidCurve(t, m.PredictSurvival([]float64{0}, grid()))
}

func TestWeibullRejectsAllCensored(t *testing.T) {
	X := mat.NewDense(3, 1, nil)
	obs := []survival.Observation{{Duration: 1}, {Duration: 2}, {Duration: 3}}
	_, err := WeibullFitter{}.Fit(X, obs)
	require.Error(t, err)
}

func TestCoxFitSeparatesGroups(t *testing.T) {
	X, obs := twoGroupData(400, 13, 0.2)
	m, err := CoxFitter{Penalty: 0.1}.Fit(X, obs)
	require.NoError(t, err)

	s0 := m.PredictSurvival([]float64{0}, []float64{60})[0]
	s1 := m.PredictSurvival([]float64{1}, []float64{60})[0]
	assert.Greater(t, s1, s0, "slow group should have higher survival at 60 days")

	assertValidCurve(t, m.PredictSurvival([]float64{0}, grid()))
	assertValidCurve(t, m.PredictSurvival([]float64{1}, grid()))

	fast := m.PredictDuration([]float64{0})
	slow := m.PredictDuration([]float64{1})
	assert.Greater(t, slow, fast)
}

func TestCoxRejectsNegativePenalty(t *testing.T) {
	X, obs := twoGroupData(50, 1, 0)
	_, err := CoxFitter{Penalty: -1}.Fit(X, obs)
	require.Error(t, err)
}

func TestForestFitSeparatesGroups(t *testing.T) {
	X, obs := twoGroupData(400, 17, 0.2)
	m, err := ForestFitter{Trees: 30, MinLeaf: 15, Seed: 5}.Fit(X, obs)
	require.NoError(t, err)

	assertValidCurve(t, m.PredictSurvival([]float64{0}, grid()))
	assertValidCurve(t, m.PredictSurvival([]float64{1}, grid()))

	s0 := m.PredictSurvival([]float64{0}, []float64{60})[0]
	s1 := m.PredictSurvival([]float64{1}, []float64{60})[0]
	assert.Greater(t, s1, s0)
}

func TestForestReproducibleBySeed(t *testing.T) {
	X, obs := twoGroupData(200, 19, 0.2)

	a, err := ForestFitter{Trees: 10, MinLeaf: 10, Seed: 42}.Fit(X, obs)
	require.NoError(t, err)
	b, err := ForestFitter{Trees: 10, MinLeaf: 10, Seed: 42}.Fit(X, obs)
	require.NoError(t, err)

	probe := []float64{1}
	assert.Equal(t, a.PredictSurvival(probe, grid()), b.PredictSurvival(probe, grid()))
	assert.Equal(t, a.PredictDuration(probe), b.PredictDuration(probe))
}

func TestForestRejectsBadTreeCount(t *testing.T) {
	X, obs := twoGroupData(50, 1, 0)
	_, err := ForestFitter{Trees: 0}.Fit(X, obs)
	require.Error(t, err)
}

func TestFittersRejectMismatchedInput(t *testing.T) {
	X := mat.NewDense(3, 1, nil)
	obs := []survival.Observation{{Duration: 1, Event: true}}
	for _, fitter := range []Fitter{WeibullFitter{}, CoxFitter{Penalty: 0.1}, ForestFitter{Trees: 5}} {
		_, err := fitter.Fit(X, obs)
		require.Error(t, err, fitter.Name())
	}
}

func TestMedianFromCurve(t *testing.T) {
	times := []float64{10, 20, 30}
	assert.Equal(t, 20.0, medianFromCurve(times, []float64{0.9, 0.5, 0.2}))
	assert.Equal(t, 30.0, medianFromCurve(times, []float64{0.9, 0.8, 0.7}))
	assert.Equal(t, 0.0, medianFromCurve(nil, nil))
}
