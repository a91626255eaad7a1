package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/bustrack/core/metrics"
)

// PromSink exposes collector and prediction activity as Prometheus metrics.
type PromSink struct {
	polls       *prometheus.CounterVec
	vehicles    prometheus.Gauge
	appended    prometheus.Counter
	rejected    prometheus.Counter
	stage       *prometheus.HistogramVec
	predictions *prometheus.CounterVec
	horizon     *prometheus.HistogramVec
	backtest    *prometheus.GaugeVec
}

// NewPromSink registers metrics on the default Prometheus registerer. The
// /metrics endpoint is served by the HTTP API.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.polls, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bustrack_polls_total",
		Help: "Collector cycles by outcome",
	}, []string{"status"})); err != nil {
		return nil, err
	}
	if s.vehicles, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bustrack_poll_vehicles",
		Help: "Vehicles reported by the last successful poll",
	})); err != nil {
		return nil, err
	}
	if s.appended, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bustrack_samples_appended_total",
		Help: "Samples written to the store",
	})); err != nil {
		return nil, err
	}
	if s.rejected, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bustrack_samples_rejected_total",
		Help: "Samples refused by the store",
	})); err != nil {
		return nil, err
	}
	if s.stage, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bustrack_poll_stage_seconds",
		Help:    "Duration of each collector stage",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})); err != nil {
		return nil, err
	}
	if s.predictions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bustrack_predictions_total",
		Help: "Arrival estimates published",
	}, []string{"watch"})); err != nil {
		return nil, err
	}
	if s.horizon, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bustrack_prediction_horizon_seconds",
		Help:    "Lead time of published estimates",
		Buckets: []float64{30, 60, 120, 300, 600, 900, 1800, 3600},
	}, []string{"watch"})); err != nil {
		return nil, err
	}
	if s.backtest, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bustrack_backtest_error_seconds",
		Help: "Back-test error statistics",
	}, []string{"label", "stat"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordPoll updates the poll counters and stage histograms.
func (s *PromSink) RecordPoll(ev coremetrics.PollEvent) error {
	status := "ok"
	if !ev.Succeeded {
		status = "error"
	}
	s.polls.WithLabelValues(status).Inc()
	if ev.Fetch > 0 {
		s.stage.WithLabelValues("fetch").Observe(ev.Fetch.Seconds())
	}
	if !ev.Succeeded {
		return nil
	}
	s.vehicles.Set(float64(ev.Vehicles))
	s.appended.Add(float64(ev.Appended))
	s.rejected.Add(float64(ev.Rejected))
	s.stage.WithLabelValues("parse").Observe(ev.Parse.Seconds())
	s.stage.WithLabelValues("append").Observe(ev.Append.Seconds())
	return nil
}

// RecordPredictions counts estimates and observes their horizon.
func (s *PromSink) RecordPredictions(evs []coremetrics.PredictionEvent) error {
	for _, ev := range evs {
		s.predictions.WithLabelValues(ev.Watch).Inc()
		s.horizon.WithLabelValues(ev.Watch).Observe(ev.Horizon().Seconds())
	}
	return nil
}

// RecordEvaluation publishes back-test statistics as gauges.
func (s *PromSink) RecordEvaluation(ev coremetrics.EvaluationEvent) error {
	s.backtest.WithLabelValues(ev.Label, "count").Set(float64(ev.Count))
	s.backtest.WithLabelValues(ev.Label, "mean").Set(ev.MeanError)
	s.backtest.WithLabelValues(ev.Label, "mean_abs").Set(ev.MeanAbsError)
	s.backtest.WithLabelValues(ev.Label, "median_abs").Set(ev.MedianAbsError)
	s.backtest.WithLabelValues(ev.Label, "p90_abs").Set(ev.P90AbsError)
	return nil
}
