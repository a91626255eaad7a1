package prediction

import (
	"time"

	"github.com/kilianp07/bustrack/core/model"
)

// Predictor estimates crossing times of the journeys still approaching the
// reference point. Journeys without an estimate are absent from the result.
type Predictor interface {
	Predict(journeys []model.Journey, now time.Time) map[string]time.Time
}

// Series holds one prediction map per evaluation time, together with the
// crossings observed over the whole input, used as ground truth.
type Series struct {
	Nows        []time.Time               `json:"nows"`
	Predictions []map[string]time.Time    `json:"predictions"`
	Actual      map[string]CrossingRecord `json:"actual"`
}

// Engine is the arrival predictor for one reference point.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine parameters.
func (e *Engine) Config() Config { return e.cfg }

// Crossings detects the reference crossing of every journey.
func (e *Engine) Crossings(journeys []model.Journey) map[string]CrossingRecord {
	return DetectCrossings(journeys, e.cfg.Reference, e.cfg.RadiusSq)
}

// Predict returns the estimated crossing time of every fresh journey that has
// not crossed by now. The map is empty when no journey crossed yet.
func (e *Engine) Predict(journeys []model.Journey, now time.Time) map[string]time.Time {
	return e.predictAt(journeys, e.Crossings(journeys), now)
}

// PredictSeries evaluates Predict independently at each of nows. Crossings
// are detected once for the whole sweep.
func (e *Engine) PredictSeries(journeys []model.Journey, nows []time.Time) Series {
	crossings := e.Crossings(journeys)
	s := Series{
		Nows:        append([]time.Time(nil), nows...),
		Predictions: make([]map[string]time.Time, len(nows)),
		Actual:      crossings,
	}
	for i, now := range nows {
		s.Predictions[i] = e.predictAt(journeys, crossings, now)
	}
	return s
}

func (e *Engine) predictAt(journeys []model.Journey, crossings map[string]CrossingRecord, now time.Time) map[string]time.Time {
	result := make(map[string]time.Time)
	records := make([]CrossingRecord, 0, len(crossings))
	for _, r := range crossings {
		records = append(records, r)
	}
	crossed := SelectTemplates(records, now, 0)
	if len(crossed) == 0 {
		return result
	}
	top := crossed
	if len(top) > e.cfg.TopN {
		top = top[:e.cfg.TopN]
	}

	byID := make(map[string]model.Journey, len(journeys))
	for _, j := range journeys {
		byID[j.JourneyID] = j
	}
	templates := make([]model.Journey, 0, len(top))
	for _, id := range top {
		if j, ok := byID[id]; ok {
			templates = append(templates, j)
		}
	}

	for _, target := range SelectTargets(journeys, crossed, now, e.cfg.RecentThreshold) {
		last, _ := target.Last()
		candidates := make([]time.Time, 0, len(templates))
		for _, tmpl := range templates {
			if c, ok := Extrapolate(tmpl, crossings[tmpl.JourneyID], last); ok {
				candidates = append(candidates, c)
			}
		}
		if t, ok := Combine(candidates); ok {
			result[target.JourneyID] = t
		}
	}
	return result
}

// Nows returns evaluation times from start to end inclusive, step apart.
func Nows(start, end time.Time, step time.Duration) []time.Time {
	if step <= 0 || end.Before(start) {
		return nil
	}
	var out []time.Time
	for t := start; !t.After(end); t = t.Add(step) {
		out = append(out, t)
	}
	return out
}
