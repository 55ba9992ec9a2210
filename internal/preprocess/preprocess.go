// Package preprocess turns complaint rows into model design matrices. A
// Recipe is fitted on training rows only; the fitted Encoder then applies the
// same statistics to any rows, so validation and test data never leak into
// level counts or normalization moments.
package preprocess

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"complaint-survival-audit/internal/dataset"
)

const (
	otherLevel   = "other"
	unknownLevel = "unknown"
)

// Recipe selects which feature-engineering steps run.
type Recipe struct {
	// CollapseRare folds categorical levels seen fewer than RareMinCount
	// times in training into a single "other" level.
	CollapseRare bool
	RareMinCount int
	// MarkUnknown maps empty categorical values to an explicit "unknown"
	// level instead of dropping them.
	MarkUnknown bool
	// Normalize standardizes latitude/longitude with training moments.
	Normalize bool
}

type fieldSpec struct {
	name string
	get  func(dataset.Complaint) string
}

var categoricalFields = []fieldSpec{
	{"priority", func(c dataset.Complaint) string { return c.Priority }},
	{"category", func(c dataset.Complaint) string { return c.Category }},
	{"unit", func(c dataset.Complaint) string { return c.Unit }},
	{"community_board", func(c dataset.Complaint) string { return c.CommunityBoard }},
}

// Encoder is a fitted recipe. It is immutable after Fit; applying it is
// deterministic.
type Encoder struct {
	recipe Recipe
	// kept[field] is the set of levels that get their own dummy column.
	kept    map[string]map[string]bool
	columns []string
	// column index per field+level, resolved once at fit time.
	colIndex map[string]int

	latMean, latStd float64
	lonMean, lonStd float64
}

// Fit computes level sets and normalization moments from training rows.
func (r Recipe) Fit(rows []dataset.Complaint) *Encoder {
	enc := &Encoder{
		recipe:   r,
		kept:     make(map[string]map[string]bool),
		colIndex: make(map[string]int),
	}

	for _, field := range categoricalFields {
		counts := map[string]int{}
		for _, row := range rows {
			level := r.level(field.get(row))
			if level == "" {
				continue
			}
			counts[level]++
		}

		keptSet := map[string]bool{}
		for level, count := range counts {
			if r.CollapseRare && r.RareMinCount > 0 && count < r.RareMinCount {
				continue
			}
			keptSet[level] = true
		}
		if r.CollapseRare {
			keptSet[otherLevel] = true
		}
		if r.MarkUnknown {
			keptSet[unknownLevel] = true
		}
		enc.kept[field.name] = keptSet

		levels := make([]string, 0, len(keptSet))
		for level := range keptSet {
			levels = append(levels, level)
		}
		sort.Strings(levels)
		for _, level := range levels {
			enc.colIndex[field.name+"="+level] = len(enc.columns)
			enc.columns = append(enc.columns, field.name+"="+level)
		}
	}

	lats := make([]float64, len(rows))
	lons := make([]float64, len(rows))
	for i, row := range rows {
		lats[i] = row.Latitude
		lons[i] = row.Longitude
	}
	enc.latMean, enc.latStd = moments(lats, r.Normalize)
	enc.lonMean, enc.lonStd = moments(lons, r.Normalize)

	enc.colIndex["latitude"] = len(enc.columns)
	enc.columns = append(enc.columns, "latitude")
	enc.colIndex["longitude"] = len(enc.columns)
	enc.columns = append(enc.columns, "longitude")

	return enc
}

func moments(values []float64, normalize bool) (mean, std float64) {
	if !normalize || len(values) == 0 {
		return 0, 1
	}
	mean = stat.Mean(values, nil)
	std = stat.StdDev(values, nil)
	if std == 0 || math.IsNaN(std) {
		std = 1
	}
	return mean, std
}

// level normalizes a raw categorical value per the recipe.
func (r Recipe) level(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		if r.MarkUnknown {
			return unknownLevel
		}
		return ""
	}
	return value
}

// FeatureNames returns the design-matrix column names in order.
func (e *Encoder) FeatureNames() []string {
	out := make([]string, len(e.columns))
	copy(out, e.columns)
	return out
}

// NumFeatures returns the design-matrix width.
func (e *Encoder) NumFeatures() int { return len(e.columns) }

// TransformRow encodes a single complaint into a feature vector.
func (e *Encoder) TransformRow(c dataset.Complaint) []float64 {
	x := make([]float64, len(e.columns))
	for _, field := range categoricalFields {
		level := e.recipe.level(field.get(c))
		if level == "" {
			continue
		}
		if !e.kept[field.name][level] {
			if !e.recipe.CollapseRare {
				continue
			}
			level = otherLevel
		}
		if idx, ok := e.colIndex[field.name+"="+level]; ok {
			x[idx] = 1
		}
	}
	x[e.colIndex["latitude"]] = (c.Latitude - e.latMean) / e.latStd
	x[e.colIndex["longitude"]] = (c.Longitude - e.lonMean) / e.lonStd
	return x
}

// Transform encodes rows into a design matrix, one row per complaint.
func (e *Encoder) Transform(rows []dataset.Complaint) *mat.Dense {
	X := mat.NewDense(len(rows), len(e.columns), nil)
	for i, row := range rows {
		X.SetRow(i, e.TransformRow(row))
	}
	return X
}
