package metrics

import "errors"

// MultiSink fans events out to several sinks. Every sink is tried; the
// errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordPoll(ev PollEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordPoll(ev))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordPredictions(evs []PredictionEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, RecordPredictions(s, evs))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordEvaluation(ev EvaluationEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, RecordEvaluation(s, ev))
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		Close(s)
	}
}

// Close releases s when it exposes a Close method.
func Close(s MetricsSink) {
	switch c := s.(type) {
	case interface{ Close() }:
		c.Close()
	case interface{ Close() error }:
		_ = c.Close()
	}
}
