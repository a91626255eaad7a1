package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/bustrack/core/metrics"
	"github.com/kilianp07/bustrack/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes collector and prediction events to InfluxDB using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordPoll writes one poll_event point.
func (s *InfluxSink) RecordPoll(ev coremetrics.PollEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("poll_event").
		AddTag("component", "collector").
		AddTag("succeeded", strconv.FormatBool(ev.Succeeded))
	if ev.Stage != "" {
		p = p.AddTag("stage", ev.Stage)
	}
	p = p.AddField("poll_id", ev.PollID).
		AddField("vehicles", ev.Vehicles).
		AddField("appended", ev.Appended).
		AddField("rejected", ev.Rejected).
		AddField("fetch_ms", round3(ms(ev.Fetch))).
		AddField("parse_ms", round3(ms(ev.Parse))).
		AddField("append_ms", round3(ms(ev.Append))).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPredictions writes one arrival_prediction point per estimate.
func (s *InfluxSink) RecordPredictions(evs []coremetrics.PredictionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(evs))
	for _, ev := range evs {
		points = append(points, write.NewPointWithMeasurement("arrival_prediction").
			AddTag("watch", ev.Watch).
			AddTag("line", ev.Line).
			AddTag("towards", strconv.FormatInt(ev.Towards, 10)).
			AddTag("journey_id", ev.JourneyID).
			AddField("predicted_unix", ev.Predicted.Unix()).
			AddField("horizon_s", round3(ev.Horizon().Seconds())).
			SetTime(ev.Now))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordEvaluation writes a backtest_summary point.
func (s *InfluxSink) RecordEvaluation(ev coremetrics.EvaluationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("backtest_summary").
		AddTag("label", ev.Label).
		AddField("count", ev.Count).
		AddField("mean_error_s", round3(ev.MeanError)).
		AddField("mean_abs_error_s", round3(ev.MeanAbsError)).
		AddField("median_abs_error_s", round3(ev.MedianAbsError)).
		AddField("p90_abs_error_s", round3(ev.P90AbsError)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
