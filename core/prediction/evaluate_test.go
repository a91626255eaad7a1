package prediction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bustrack/core/model"
)

func crossingAt(id string, t time.Time) CrossingRecord {
	return CrossingRecord{JourneyID: id, Point: model.TrackPoint{ObservedAt: t.Add(fixLag), UpdatedAt: t}}
}

func TestEvaluateSummary(t *testing.T) {
	t0 := time.Date(2017, 1, 4, 12, 0, 0, 0, time.UTC)
	s := Series{
		Nows: []time.Time{t0, t0.Add(time.Minute)},
		Predictions: []map[string]time.Time{
			{"a": t0.Add(5*time.Minute + 10*time.Second), "ghost": t0},
			{"a": t0.Add(5*time.Minute - 20*time.Second), "b": t0.Add(8*time.Minute + 40*time.Second)},
		},
		Actual: map[string]CrossingRecord{
			"a": crossingAt("a", t0.Add(5*time.Minute)),
			"b": crossingAt("b", t0.Add(8*time.Minute)),
		},
	}
	ev := Evaluate(s)
	require.Len(t, ev.Residuals, 3)

	first := ev.Residuals[0]
	assert.Equal(t, "a", first.JourneyID)
	assert.Equal(t, 10*time.Second, first.Error)
	assert.Equal(t, 5*time.Minute+fixLag, first.Lead)
	assert.Equal(t, "b", ev.Residuals[2].JourneyID)

	sum := ev.Summary
	assert.Equal(t, 3, sum.Count)
	assert.InDelta(t, 10, sum.MeanError, 1e-9)
	assert.InDelta(t, 30, sum.StdDev, 1e-9)
	assert.InDelta(t, 70.0/3, sum.MeanAbsError, 1e-9)
	assert.InDelta(t, 20, sum.MedianAbsError, 1e-9)
	assert.InDelta(t, 40, sum.P90AbsError, 1e-9)
	assert.InDelta(t, 40, sum.MaxAbsError, 1e-9)
}

func TestEvaluateEmpty(t *testing.T) {
	ev := Evaluate(Series{})
	assert.Empty(t, ev.Residuals)
	assert.Equal(t, Summary{}, ev.Summary)
}

func TestEvaluateSingleResidual(t *testing.T) {
	t0 := time.Date(2017, 1, 4, 12, 0, 0, 0, time.UTC)
	ev := Evaluate(Series{
		Nows:        []time.Time{t0},
		Predictions: []map[string]time.Time{{"a": t0.Add(time.Minute)}},
		Actual:      map[string]CrossingRecord{"a": crossingAt("a", t0.Add(90*time.Second))},
	})
	require.Len(t, ev.Residuals, 1)
	assert.Equal(t, -30.0, ev.Summary.MeanError)
	assert.Zero(t, ev.Summary.StdDev)
}

func TestEvaluateEngineSeries(t *testing.T) {
	t0 := time.Date(2017, 1, 4, 12, 0, 0, 0, time.UTC)
	journeys := []model.Journey{
		straightRun("a", t0, 0, 21),
		straightRun("b", t0.Add(3*time.Minute), 0, 21),
	}
	e := newEngine(t, testConfig())
	ev := Evaluate(e.PredictSeries(journeys, Nows(t0.Add(3*time.Minute), t0.Add(5*time.Minute), step)))
	require.NotEmpty(t, ev.Residuals)
	assert.InDelta(t, 0, ev.Summary.MaxAbsError, 1e-9)
	for _, r := range ev.Residuals {
		assert.Equal(t, "b", r.JourneyID)
		assert.True(t, r.Lead >= 0)
	}
}
