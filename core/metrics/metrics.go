package metrics

import "time"

// PollEvent describes one collector cycle.
type PollEvent struct {
	PollID    string
	Time      time.Time
	Vehicles  int
	Appended  int
	Rejected  int
	Fetch     time.Duration
	Parse     time.Duration
	Append    time.Duration
	Succeeded bool
	// Stage names the failing step when Succeeded is false.
	Stage string
}

// MetricsSink records collector cycles.
type MetricsSink interface {
	RecordPoll(ev PollEvent) error
}

// PredictionEvent is one published arrival estimate.
type PredictionEvent struct {
	Watch     string
	Line      string
	Towards   int64
	JourneyID string
	Now       time.Time
	Predicted time.Time
}

// Horizon is how far ahead of now the estimate lies.
func (e PredictionEvent) Horizon() time.Duration { return e.Predicted.Sub(e.Now) }

// PredictionRecorder records published estimates.
type PredictionRecorder interface {
	RecordPredictions(evs []PredictionEvent) error
}

// EvaluationEvent summarizes a back-test, errors in seconds.
type EvaluationEvent struct {
	Label          string
	Count          int
	MeanError      float64
	MeanAbsError   float64
	MedianAbsError float64
	P90AbsError    float64
	Time           time.Time
}

// EvaluationRecorder records back-test summaries.
type EvaluationRecorder interface {
	RecordEvaluation(ev EvaluationEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordPoll(PollEvent) error                { return nil }
func (NopSink) RecordPredictions([]PredictionEvent) error { return nil }
func (NopSink) RecordEvaluation(EvaluationEvent) error    { return nil }

// RecordPredictions forwards evs when s supports it.
func RecordPredictions(s MetricsSink, evs []PredictionEvent) error {
	if r, ok := s.(PredictionRecorder); ok && len(evs) > 0 {
		return r.RecordPredictions(evs)
	}
	return nil
}

// RecordEvaluation forwards ev when s supports it.
func RecordEvaluation(s MetricsSink, ev EvaluationEvent) error {
	if r, ok := s.(EvaluationRecorder); ok {
		return r.RecordEvaluation(ev)
	}
	return nil
}
