package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"complaint-survival-audit/internal/survival"
)

// constModel predicts the same survival probability everywhere.
type constModel struct {
	surv     float64
	duration float64
}

func (m constModel) PredictSurvival(x []float64, times []float64) []float64 {
	out := make([]float64, len(times))
	for i := range out {
		out[i] = m.surv
	}
	return out
}

func (m constModel) PredictDuration(x []float64) float64 { return m.duration }

// oracleModel knows each observation's duration and ranks accordingly.
type oracleModel struct {
	durations []float64
}

func (m oracleModel) PredictSurvival(x []float64, times []float64) []float64 {
	// x[0] carries the observation index for this stub.
	d := m.durations[int(x[0])]
	out := make([]float64, len(times))
	for i, t := range times {
		if t < d {
			out[i] = 1
		}
	}
	return out
}

func (m oracleModel) PredictDuration(x []float64) float64 { return m.durations[int(x[0])] }

func indexMatrix(n int) *mat.Dense {
	X := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
	}
	return X
}

func TestConcordanceHandComputed(t *testing.T) {
	obs := []survival.Observation{
		{Duration: 10, Event: true},
		{Duration: 20, Event: true},
		{Duration: 30, Event: false},
	}
	// Perfect ordering: all 3 comparable pairs concordant.
	assert.Equal(t, 1.0, Concordance([]float64{5, 15, 40}, obs))
	// Fully reversed: zero.
	assert.Equal(t, 0.0, Concordance([]float64{40, 15, 5}, obs))
	// All tied: one half.
	assert.Equal(t, 0.5, Concordance([]float64{7, 7, 7}, obs))
}

func TestConcordanceIgnoresCensoredFirstElements(t *testing.T) {
	obs := []survival.Observation{
		{Duration: 10, Event: false},
		{Duration: 20, Event: true},
	}
	// The only candidate pair starts from a censored observation, so there
	// are no comparable pairs at all.
	assert.Equal(t, 0.5, Concordance([]float64{1, 2}, obs))
}

func TestEvaluateNearZeroHorizonEveryoneAtRisk(t *testing.T) {
	obs := []survival.Observation{
		{Duration: 50, Event: true},
		{Duration: 80, Event: false},
		{Duration: 120, Event: true},
		{Duration: 200, Event: false},
	}
	// A model that predicts survival 1 near t=0 scores a perfect Brier
	// there: every observation is still at risk.
	m := oracleModel{durations: []float64{50, 80, 120, 200}}
	res, err := Evaluate(m, indexMatrix(4), obs, []float64{0.001, 60})
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Brier[0], 1e-12)
}

func TestEvaluateConstantModelBrierNoCensoring(t *testing.T) {
	// No censoring, horizon 15: two of four events have happened. A
	// constant S=0.5 prediction scores 0.25 everywhere.
	obs := []survival.Observation{
		{Duration: 10, Event: true},
		{Duration: 12, Event: true},
		{Duration: 20, Event: true},
		{Duration: 25, Event: true},
	}
	m := constModel{surv: 0.5, duration: 15}
	res, err := Evaluate(m, indexMatrix(4), obs, []float64{15})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, res.Brier[0], 1e-12)
	assert.InDelta(t, 0.25, res.IntegratedBrier, 1e-12)
	// Constant risk cannot discriminate.
	assert.InDelta(t, 0.5, res.AUC[0], 1e-12)
}

func TestEvaluateOracleModelDiscriminates(t *testing.T) {
	obs := []survival.Observation{
		{Duration: 10, Event: true},
		{Duration: 40, Event: true},
		{Duration: 90, Event: true},
		{Duration: 150, Event: false},
		{Duration: 30, Event: true},
		{Duration: 70, Event: false},
	}
	m := oracleModel{durations: []float64{10, 40, 90, 150, 30, 70}}
	res, err := Evaluate(m, indexMatrix(6), obs, []float64{50, 100})
	require.NoError(t, err)

	assert.Equal(t, 1.0, res.Concordance)
	for i, auc := range res.AUC {
		assert.Equal(t, 1.0, auc, "horizon %v", res.Horizons[i])
	}
}

func TestEvaluateInputValidation(t *testing.T) {
	obs := []survival.Observation{{Duration: 1, Event: true}}
	_, err := Evaluate(constModel{}, indexMatrix(2), obs, []float64{10})
	require.Error(t, err)

	_, err = Evaluate(constModel{}, indexMatrix(1), obs, nil)
	require.Error(t, err)
}

func TestIntegrateTrapezoid(t *testing.T) {
	// Linear values integrate to their midpoint average.
	got := integrate([]float64{0, 10, 20}, []float64{0, 1, 2})
	assert.InDelta(t, 1.0, got, 1e-12)
	assert.Equal(t, 3.0, integrate([]float64{5}, []float64{3}))
}
