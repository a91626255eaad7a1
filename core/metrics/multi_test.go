package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordSink struct {
	polls, preds int
	err          error
}

func (r *recordSink) RecordPoll(PollEvent) error {
	r.polls++
	return r.err
}

func (r *recordSink) RecordPredictions(evs []PredictionEvent) error {
	r.preds += len(evs)
	return nil
}

type pollOnly struct{ n int }

func (p *pollOnly) RecordPoll(PollEvent) error { p.n++; return nil }

func TestMultiSinkForwards(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{err: errors.New("down")}
	s3 := &pollOnly{}
	m := NewMultiSink(s1, s2, s3)

	err := m.RecordPoll(PollEvent{PollID: "p"})
	assert.ErrorContains(t, err, "down")
	assert.Equal(t, 1, s1.polls)
	assert.Equal(t, 1, s2.polls)
	assert.Equal(t, 1, s3.n)

	assert.NoError(t, m.RecordPredictions([]PredictionEvent{{}, {}}))
	assert.Equal(t, 2, s1.preds)
	assert.NoError(t, m.RecordEvaluation(EvaluationEvent{}))
}

func TestPredictionHorizon(t *testing.T) {
	now := time.Date(2017, 1, 4, 12, 0, 0, 0, time.UTC)
	ev := PredictionEvent{Now: now, Predicted: now.Add(90 * time.Second)}
	assert.Equal(t, 90*time.Second, ev.Horizon())
}

type closingSink struct {
	pollOnly
	closed bool
}

func (c *closingSink) Close() { c.closed = true }

func TestMultiSinkClose(t *testing.T) {
	a, b := &closingSink{}, &closingSink{}
	m := NewMultiSink(a, &pollOnly{}, b)
	Close(m)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
	Close(NopSink{})
}
