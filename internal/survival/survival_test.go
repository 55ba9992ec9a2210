package survival

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewObservationRejectsNegativeDuration(t *testing.T) {
	_, err := NewObservation(-1, true)
	require.Error(t, err)

	obs, err := NewObservation(0, false)
	require.NoError(t, err)
	assert.Equal(t, 0.0, obs.Duration)
	assert.False(t, obs.Event)
}

func TestKaplanMeierHandComputed(t *testing.T) {
	// Times 1(e), 2(c), 3(e), 4(e), 5(c):
	// S(1) = 4/5, S(3) = 4/5 * 2/3, S(4) = 4/5 * 2/3 * 1/2.
	obs := []Observation{
		{Duration: 1, Event: true},
		{Duration: 2, Event: false},
		{Duration: 3, Event: true},
		{Duration: 4, Event: true},
		{Duration: 5, Event: false},
	}
	km, err := FitKaplanMeier(obs)
	require.NoError(t, err)

	assert.Equal(t, 1.0, km.SurvivalAt(0))
	assert.InDelta(t, 0.8, km.SurvivalAt(1), 1e-12)
	assert.InDelta(t, 0.8, km.SurvivalAt(2.5), 1e-12)
	assert.InDelta(t, 0.8*2.0/3.0, km.SurvivalAt(3), 1e-12)
	assert.InDelta(t, 0.8*2.0/3.0*0.5, km.SurvivalAt(10), 1e-12)

	// Left limit at an event time steps back to the previous value.
	assert.InDelta(t, 0.8, km.SurvivalBefore(3), 1e-12)
	assert.InDelta(t, 1.0, km.SurvivalBefore(1), 1e-12)

	median, ok := km.MedianTime()
	require.True(t, ok)
	assert.Equal(t, 4.0, median)
}

func TestFitCensoringFlipsEvents(t *testing.T) {
	obs := []Observation{
		{Duration: 1, Event: true},
		{Duration: 2, Event: false},
		{Duration: 3, Event: true},
	}
	cens, err := FitCensoring(obs)
	require.NoError(t, err)

	// Only the censored record at t=2 is an "event" for the censoring
	// curve: G(2) = 1/2 with 2 still at risk.
	assert.Equal(t, 1.0, cens.SurvivalAt(1))
	assert.InDelta(t, 0.5, cens.SurvivalAt(2), 1e-12)
}

func TestFitKaplanMeierEmpty(t *testing.T) {
	_, err := FitKaplanMeier(nil)
	require.Error(t, err)
}

func TestEventCount(t *testing.T) {
	obs := []Observation{{Event: true}, {Event: false}, {Event: true}}
	assert.Equal(t, 2, EventCount(obs))
}
