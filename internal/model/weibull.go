package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"complaint-survival-audit/internal/survival"
)

// durationFloor keeps log(t) finite for same-day resolutions.
const durationFloor = 0.5

// WeibullFitter fits an accelerated-failure-time model with Weibull survival
// S(t|x) = exp(-(t/lambda(x))^k), lambda(x) = exp(b0 + b'x), by maximum
// likelihood. Ridge adds an L2 penalty on the coefficients (not the intercept
// or the shape).
type WeibullFitter struct {
	Ridge float64
}

func (f WeibullFitter) Name() string { return "weibull_aft" }

type weibullModel struct {
	shape     float64
	intercept float64
	coef      []float64
}

func (f WeibullFitter) Fit(X *mat.Dense, obs []survival.Observation) (Model, error) {
	n, p := X.Dims()
	if n == 0 || n != len(obs) {
		return nil, fmt.Errorf("design matrix rows (%d) do not match observations (%d)", n, len(obs))
	}
	if survival.EventCount(obs) == 0 {
		return nil, errors.New("no resolved complaints to fit on")
	}

	logT := make([]float64, n)
	meanT := 0.0
	for i, o := range obs {
		t := math.Max(o.Duration, durationFloor)
		logT[i] = math.Log(t)
		meanT += t
	}
	meanT /= float64(n)

	// theta = [log k, intercept, coefficients...]
	negLogLik := func(theta []float64) float64 {
		k := math.Exp(clamp(theta[0], -4, 4))
		nll := 0.0
		for i := 0; i < n; i++ {
			eta := theta[1]
			for j := 0; j < p; j++ {
				eta += theta[2+j] * X.At(i, j)
			}
			// z^k computed in log space with a guard against overflow.
			logZK := k * (logT[i] - eta)
			zk := math.Exp(clamp(logZK, -700, 30))
			if obs[i].Event {
				nll -= clamp(theta[0], -4, 4) + (k-1)*logT[i] - k*eta
			}
			nll += zk
		}
		for j := 0; j < p; j++ {
			nll += f.Ridge * theta[2+j] * theta[2+j]
		}
		return nll
	}

	theta0 := make([]float64, 2+p)
	theta0[1] = math.Log(math.Max(meanT, durationFloor))

	problem := optimize.Problem{
		Func: negLogLik,
		Grad: func(grad, theta []float64) {
			fd.Gradient(grad, negLogLik, theta, nil)
		},
	}
	result, err := optimize.Minimize(problem, theta0, nil, &optimize.LBFGS{})
	if result == nil {
		return nil, fmt.Errorf("weibull fit failed: %w", err)
	}
	if math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return nil, errors.New("weibull fit did not converge")
	}

	m := &weibullModel{
		shape:     math.Exp(clamp(result.X[0], -4, 4)),
		intercept: result.X[1],
		coef:      append([]float64{}, result.X[2:]...),
	}
	return m, nil
}

func (m *weibullModel) scale(x []float64) float64 {
	eta := m.intercept
	for j, c := range m.coef {
		eta += c * x[j]
	}
	return math.Exp(clamp(eta, -30, 30))
}

func (m *weibullModel) PredictSurvival(x []float64, times []float64) []float64 {
	lambda := m.scale(x)
	out := make([]float64, len(times))
	for i, t := range times {
		if t <= 0 {
			out[i] = 1
			continue
		}
		out[i] = math.Exp(-math.Pow(t/lambda, m.shape))
	}
	return out
}

// PredictDuration returns the median survival time.
func (m *weibullModel) PredictDuration(x []float64) float64 {
	return m.scale(x) * math.Pow(math.Ln2, 1/m.shape)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
