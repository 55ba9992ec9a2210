// Package tune runs the hyperparameter grid search on the validation subset
// and selects the winning configuration by integrated Brier score.
package tune

import (
	"errors"
	"fmt"
	"sort"

	"complaint-survival-audit/internal/config"
	"complaint-survival-audit/internal/dataset"
	"complaint-survival-audit/internal/eval"
	"complaint-survival-audit/internal/model"
	"complaint-survival-audit/internal/preprocess"
	"complaint-survival-audit/internal/survival"
)

// Candidate is one model family configuration paired with its recipe.
type Candidate struct {
	Family string
	// Key uniquely identifies the configuration and doubles as the
	// deterministic tie-breaker during selection.
	Key    string
	Recipe preprocess.Recipe
	Fitter model.Fitter
}

// Outcome is a candidate with its validation metrics.
type Outcome struct {
	Candidate  Candidate
	Validation eval.Result
}

// Candidates expands the configured grids into the full candidate list. Each
// family carries its own preprocessing recipe: the forest collapses rare
// levels, the Weibull model marks unknown levels, and the Cox model gets
// dummy-encoded normalized features.
func Candidates(cfg *config.Config, seed int64) []Candidate {
	var out []Candidate

	forestRecipe := preprocess.Recipe{
		CollapseRare: true,
		RareMinCount: cfg.Preprocess.RareLevelMinCount,
	}
	for _, trees := range cfg.Grids.Forest.Trees {
		for _, minLeaf := range cfg.Grids.Forest.MinLeaf {
			fitter := model.ForestFitter{Trees: trees, MinLeaf: minLeaf, Seed: seed}
			out = append(out, Candidate{
				Family: fitter.Name(),
				Key:    fmt.Sprintf("%s trees=%d min_leaf=%d", fitter.Name(), trees, minLeaf),
				Recipe: forestRecipe,
				Fitter: fitter,
			})
		}
	}

	coxRecipe := preprocess.Recipe{
		CollapseRare: true,
		RareMinCount: cfg.Preprocess.RareLevelMinCount,
		Normalize:    true,
	}
	for _, penalty := range cfg.Grids.Cox.Penalty {
		fitter := model.CoxFitter{Penalty: penalty}
		out = append(out, Candidate{
			Family: fitter.Name(),
			Key:    fmt.Sprintf("%s penalty=%g", fitter.Name(), penalty),
			Recipe: coxRecipe,
			Fitter: fitter,
		})
	}

	weibullRecipe := preprocess.Recipe{
		CollapseRare: true,
		RareMinCount: cfg.Preprocess.RareLevelMinCount,
		MarkUnknown:  true,
		Normalize:    true,
	}
	for _, ridge := range cfg.Grids.Weibull.Ridge {
		fitter := model.WeibullFitter{Ridge: ridge}
		out = append(out, Candidate{
			Family: fitter.Name(),
			Key:    fmt.Sprintf("%s ridge=%g", fitter.Name(), ridge),
			Recipe: weibullRecipe,
			Fitter: fitter,
		})
	}

	return out
}

// Search fits every candidate on the training rows and scores it on the
// validation rows. Recipes are fitted on training data only.
func Search(cands []Candidate,
	trainRows []dataset.Complaint, trainObs []survival.Observation,
	validRows []dataset.Complaint, validObs []survival.Observation,
	horizons []float64) ([]Outcome, error) {

	outcomes := make([]Outcome, 0, len(cands))
	for _, cand := range cands {
		enc := cand.Recipe.Fit(trainRows)
		fitted, err := cand.Fitter.Fit(enc.Transform(trainRows), trainObs)
		if err != nil {
			return nil, fmt.Errorf("fit %s: %w", cand.Key, err)
		}
		result, err := eval.Evaluate(fitted, enc.Transform(validRows), validObs, horizons)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", cand.Key, err)
		}
		outcomes = append(outcomes, Outcome{Candidate: cand, Validation: result})
	}
	return outcomes, nil
}

// Select returns the outcome with minimal integrated Brier score. Exact ties
// resolve by configuration key, so the result does not depend on the order
// the candidates were evaluated in.
func Select(outcomes []Outcome) (Outcome, error) {
	if len(outcomes) == 0 {
		return Outcome{}, errors.New("no candidates to select from")
	}
	best := outcomes[0]
	for _, o := range outcomes[1:] {
		if better(o, best) {
			best = o
		}
	}
	return best, nil
}

func better(a, b Outcome) bool {
	if a.Validation.IntegratedBrier != b.Validation.IntegratedBrier {
		return a.Validation.IntegratedBrier < b.Validation.IntegratedBrier
	}
	return a.Candidate.Key < b.Candidate.Key
}

// Leaderboard sorts outcomes best-first using the same ordering as Select.
func Leaderboard(outcomes []Outcome) []Outcome {
	sorted := append([]Outcome{}, outcomes...)
	sort.Slice(sorted, func(i, j int) bool { return better(sorted[i], sorted[j]) })
	return sorted
}
