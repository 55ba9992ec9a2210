// Package survival holds the canonical time-to-event representation and the
// Kaplan-Meier product-limit estimator the rest of the pipeline is built on.
package survival

import (
	"errors"
	"fmt"
	"sort"
)

// Observation is one complaint reduced to its time-to-event form. Event is
// true when the complaint was resolved at Duration days; false means the
// record is right-censored and resolution is only known to take >= Duration.
type Observation struct {
	Duration float64 `json:"duration"`
	Event    bool    `json:"event"`
}

// NewObservation validates and builds an observation.
func NewObservation(duration float64, event bool) (Observation, error) {
	if duration < 0 {
		return Observation{}, fmt.Errorf("negative duration: %g", duration)
	}
	return Observation{Duration: duration, Event: event}, nil
}

// EventCount returns the number of observed (non-censored) events.
func EventCount(obs []Observation) int {
	count := 0
	for _, o := range obs {
		if o.Event {
			count++
		}
	}
	return count
}

// KaplanMeier is a fitted product-limit survival curve: a right-continuous
// step function starting at 1 and dropping at each distinct event time.
type KaplanMeier struct {
	times []float64
	surv  []float64
}

// FitKaplanMeier estimates the survival function of the event distribution.
func FitKaplanMeier(obs []Observation) (*KaplanMeier, error) {
	return fitKM(obs, false)
}

// FitCensoring estimates the survival function of the censoring distribution
// by flipping the event flag. Used for inverse-probability-of-censoring
// weights in the evaluation metrics.
func FitCensoring(obs []Observation) (*KaplanMeier, error) {
	return fitKM(obs, true)
}

func fitKM(obs []Observation, flip bool) (*KaplanMeier, error) {
	if len(obs) == 0 {
		return nil, errors.New("no observations")
	}
	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	if flip {
		for i := range sorted {
			sorted[i].Event = !sorted[i].Event
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Duration < sorted[j].Duration })

	km := &KaplanMeier{}
	surv := 1.0
	atRisk := len(sorted)
	i := 0
	for i < len(sorted) {
		t := sorted[i].Duration
		events := 0
		count := 0
		for i < len(sorted) && sorted[i].Duration == t {
			if sorted[i].Event {
				events++
			}
			count++
			i++
		}
		if events > 0 && atRisk > 0 {
			surv *= 1 - float64(events)/float64(atRisk)
			km.times = append(km.times, t)
			km.surv = append(km.surv, surv)
		}
		atRisk -= count
	}
	return km, nil
}

// SurvivalAt evaluates S(t). Before the first event time the curve is 1.
func (km *KaplanMeier) SurvivalAt(t float64) float64 {
	idx := sort.SearchFloat64s(km.times, t)
	// idx is the first time > t-epsilon; step down to the last time <= t.
	for idx < len(km.times) && km.times[idx] <= t {
		idx++
	}
	if idx == 0 {
		return 1
	}
	return km.surv[idx-1]
}

// SurvivalBefore evaluates the left limit S(t-), needed for weights at an
// observation's own event time.
func (km *KaplanMeier) SurvivalBefore(t float64) float64 {
	idx := sort.SearchFloat64s(km.times, t)
	if idx == 0 {
		return 1
	}
	return km.surv[idx-1]
}

// MedianTime returns the first time the curve drops to 0.5 or below, and
// false when it never does within the observed range.
func (km *KaplanMeier) MedianTime() (float64, bool) {
	for i, s := range km.surv {
		if s <= 0.5 {
			return km.times[i], true
		}
	}
	return 0, false
}
