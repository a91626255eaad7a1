package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/bustrack/core/metrics"
)

func captureServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, strings.TrimSpace(string(data)))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), bodies...)
	}
}

func TestInfluxSink_RecordPoll(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()

	now := time.Date(2017, 1, 4, 12, 0, 0, 0, time.UTC)
	ev := coremetrics.PollEvent{
		PollID: "p1", Time: now, Vehicles: 40, Appended: 38, Rejected: 2,
		Fetch: 120 * time.Millisecond, Parse: 3 * time.Millisecond, Append: 9 * time.Millisecond,
		Succeeded: true,
	}
	require.NoError(t, sink.RecordPoll(ev))

	p := write.NewPointWithMeasurement("poll_event").
		AddTag("component", "collector").
		AddTag("succeeded", "true").
		AddField("poll_id", "p1").
		AddField("vehicles", 40).
		AddField("appended", 38).
		AddField("rejected", 2).
		AddField("fetch_ms", 120.0).
		AddField("parse_ms", 3.0).
		AddField("append_ms", 9.0).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	got := bodies()
	require.Len(t, got, 1)
	assert.Equal(t, expected, got[0])
}

func TestInfluxSink_RecordPredictions(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Org: "org", Bucket: "bucket"})
	defer sink.Close()

	now := time.Date(2017, 1, 4, 12, 0, 0, 0, time.UTC)
	evs := []coremetrics.PredictionEvent{
		{Watch: "home", Line: "2A", Towards: 751421800, JourneyID: "j1", Now: now, Predicted: now.Add(time.Minute)},
		{Watch: "home", Line: "2A", Towards: 751421800, JourneyID: "j2", Now: now, Predicted: now.Add(5 * time.Minute)},
	}
	require.NoError(t, sink.RecordPredictions(evs))
	got := bodies()
	require.Len(t, got, 1)
	lines := strings.Split(got[0], "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "arrival_prediction,"))
	for _, tag := range []string{"watch=home", "line=2A", "towards=751421800", "journey_id=j1"} {
		assert.Contains(t, lines[0], tag)
	}
	assert.Contains(t, lines[1], "horizon_s=300")
}

func TestInfluxSink_RecordEvaluation(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Org: "org", Bucket: "bucket"})
	defer sink.Close()
	require.NoError(t, sink.RecordEvaluation(coremetrics.EvaluationEvent{Label: "2A", Count: 3, MeanAbsError: 12.3456, Time: time.Now()}))
	got := bodies()
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "mean_abs_error_s=12.346")
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	_, isInflux := sink.(*InfluxSink)
	assert.False(t, isInflux, "expected NopSink on failing health check")
	assert.True(t, called, "health endpoint not called")
}
