package model

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"complaint-survival-audit/internal/survival"
)

// CoxFitter fits a Cox proportional-hazards model by Newton iterations on the
// ridge-penalized Breslow partial likelihood, then estimates the baseline
// cumulative hazard so the model can produce full survival curves.
type CoxFitter struct {
	Penalty float64
	MaxIter int
	Tol     float64
}

func (f CoxFitter) Name() string { return "cox_ridge" }

type coxModel struct {
	coef []float64
	// Breslow baseline cumulative hazard as a step function.
	baseTimes []float64
	baseHaz   []float64
}

func (f CoxFitter) Fit(X *mat.Dense, obs []survival.Observation) (Model, error) {
	n, p := X.Dims()
	if n == 0 || n != len(obs) {
		return nil, fmt.Errorf("design matrix rows (%d) do not match observations (%d)", n, len(obs))
	}
	if survival.EventCount(obs) == 0 {
		return nil, errors.New("no resolved complaints to fit on")
	}
	maxIter := f.MaxIter
	if maxIter <= 0 {
		maxIter = 25
	}
	tol := f.Tol
	if tol <= 0 {
		tol = 1e-7
	}
	if f.Penalty < 0 {
		return nil, fmt.Errorf("penalty must be non-negative, got %g", f.Penalty)
	}

	// Descending by duration so risk sets accumulate as we walk.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return obs[order[a]].Duration > obs[order[b]].Duration
	})

	beta := make([]float64, p)
	prevLik := math.Inf(-1)

	for iter := 0; iter < maxIter; iter++ {
		lik, grad, negHess := f.score(X, obs, order, beta)

		var chol mat.Cholesky
		if !chol.Factorize(negHess) {
			// Penalty should keep this positive definite; bump it if not.
			for j := 0; j < p; j++ {
				negHess.SetSym(j, j, negHess.At(j, j)+1e-6)
			}
			if !chol.Factorize(negHess) {
				return nil, errors.New("cox fit failed: information matrix not positive definite")
			}
		}

		step := mat.NewVecDense(p, nil)
		if err := chol.SolveVecTo(step, mat.NewVecDense(p, grad)); err != nil {
			return nil, fmt.Errorf("cox newton step failed: %w", err)
		}

		// Step halving guards against overshooting.
		scale := 1.0
		var nextLik float64
		next := make([]float64, p)
		for half := 0; half < 6; half++ {
			for j := 0; j < p; j++ {
				next[j] = beta[j] + scale*step.AtVec(j)
			}
			nextLik, _, _ = f.score(X, obs, order, next)
			if nextLik >= lik || half == 5 {
				break
			}
			scale /= 2
		}
		copy(beta, next)

		if math.Abs(nextLik-prevLik) < tol*(math.Abs(prevLik)+1) {
			prevLik = nextLik
			break
		}
		prevLik = nextLik
	}

	m := &coxModel{coef: beta}
	m.fitBaseline(X, obs, order)
	return m, nil
}

// score returns the penalized partial log-likelihood, its gradient, and the
// negative Hessian at beta.
func (f CoxFitter) score(X *mat.Dense, obs []survival.Observation, order []int, beta []float64) (float64, []float64, *mat.SymDense) {
	_, p := X.Dims()

	lik := 0.0
	grad := make([]float64, p)
	negHess := mat.NewSymDense(p, nil)

	sumW := 0.0
	swx := make([]float64, p)
	swxx := mat.NewSymDense(p, nil)

	i := 0
	for i < len(order) {
		t := obs[order[i]].Duration
		groupStart := i
		// Fold the whole tie group into the risk set first.
		for i < len(order) && obs[order[i]].Duration == t {
			idx := order[i]
			eta := 0.0
			for j := 0; j < p; j++ {
				eta += beta[j] * X.At(idx, j)
			}
			w := math.Exp(clamp(eta, -30, 30))
			sumW += w
			for j := 0; j < p; j++ {
				xj := X.At(idx, j)
				swx[j] += w * xj
				for k := j; k < p; k++ {
					swxx.SetSym(j, k, swxx.At(j, k)+w*xj*X.At(idx, k))
				}
			}
			i++
		}

		events := 0
		for g := groupStart; g < i; g++ {
			idx := order[g]
			if !obs[idx].Event {
				continue
			}
			events++
			eta := 0.0
			for j := 0; j < p; j++ {
				eta += beta[j] * X.At(idx, j)
				grad[j] += X.At(idx, j)
			}
			lik += clamp(eta, -30, 30)
		}
		if events == 0 {
			continue
		}

		d := float64(events)
		lik -= d * math.Log(sumW)
		for j := 0; j < p; j++ {
			xbarJ := swx[j] / sumW
			grad[j] -= d * xbarJ
			for k := j; k < p; k++ {
				cov := swxx.At(j, k)/sumW - xbarJ*(swx[k]/sumW)
				negHess.SetSym(j, k, negHess.At(j, k)+d*cov)
			}
		}
	}

	for j := 0; j < p; j++ {
		lik -= f.Penalty * beta[j] * beta[j]
		grad[j] -= 2 * f.Penalty * beta[j]
		negHess.SetSym(j, j, negHess.At(j, j)+2*f.Penalty)
	}
	return lik, grad, negHess
}

// fitBaseline computes the Breslow cumulative hazard at the fitted beta.
func (m *coxModel) fitBaseline(X *mat.Dense, obs []survival.Observation, descOrder []int) {
	_, p := X.Dims()

	// Risk-set denominator at each distinct event time, walking descending.
	type eventPoint struct {
		time  float64
		d     float64
		denom float64
	}
	var points []eventPoint

	sumW := 0.0
	i := 0
	for i < len(descOrder) {
		t := obs[descOrder[i]].Duration
		events := 0
		for i < len(descOrder) && obs[descOrder[i]].Duration == t {
			idx := descOrder[i]
			eta := 0.0
			for j := 0; j < p; j++ {
				eta += m.coef[j] * X.At(idx, j)
			}
			sumW += math.Exp(clamp(eta, -30, 30))
			if obs[idx].Event {
				events++
			}
			i++
		}
		if events > 0 {
			points = append(points, eventPoint{time: t, d: float64(events), denom: sumW})
		}
	}

	// Points were collected in descending time; accumulate ascending.
	cum := 0.0
	m.baseTimes = make([]float64, 0, len(points))
	m.baseHaz = make([]float64, 0, len(points))
	for k := len(points) - 1; k >= 0; k-- {
		cum += points[k].d / points[k].denom
		m.baseTimes = append(m.baseTimes, points[k].time)
		m.baseHaz = append(m.baseHaz, cum)
	}
}

func (m *coxModel) risk(x []float64) float64 {
	eta := 0.0
	for j, c := range m.coef {
		eta += c * x[j]
	}
	return math.Exp(clamp(eta, -30, 30))
}

func (m *coxModel) cumHazardAt(t float64) float64 {
	idx := sort.SearchFloat64s(m.baseTimes, t)
	for idx < len(m.baseTimes) && m.baseTimes[idx] <= t {
		idx++
	}
	if idx == 0 {
		return 0
	}
	return m.baseHaz[idx-1]
}

func (m *coxModel) PredictSurvival(x []float64, times []float64) []float64 {
	r := m.risk(x)
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = math.Exp(-m.cumHazardAt(t) * r)
	}
	return out
}

func (m *coxModel) PredictDuration(x []float64) float64 {
	surv := m.PredictSurvival(x, m.baseTimes)
	return medianFromCurve(m.baseTimes, surv)
}
