// Package watch turns collector cycles into published arrival estimates for
// a set of configured reference points.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/bustrack/core/collector"
	"github.com/kilianp07/bustrack/core/logger"
	"github.com/kilianp07/bustrack/core/metrics"
	"github.com/kilianp07/bustrack/core/model"
	"github.com/kilianp07/bustrack/core/monitoring"
	"github.com/kilianp07/bustrack/core/prediction"
	"github.com/kilianp07/bustrack/core/predictionlog"
	"github.com/kilianp07/bustrack/core/publish"
	"github.com/kilianp07/bustrack/core/store"
)

// Watch is one reference point on a line and direction.
type Watch struct {
	Name    string
	Line    string
	Towards int64
	Engine  *prediction.Engine
}

// Loader reads the journeys of one line, direction and date.
type Loader interface {
	LoadJourneys(ctx context.Context, line string, endStation int64, date time.Time) ([]model.Journey, error)
}

// Watcher evaluates every watch touched by a collector cycle.
type Watcher struct {
	watches []Watch
	loader  Loader
	pub     publish.Publisher
	sink    metrics.MetricsSink
	plog    predictionlog.Store
	log     logger.Logger
	now     func() time.Time

	mu     sync.RWMutex
	latest map[string]publish.Update
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithPublisher sets the update publisher.
func WithPublisher(p publish.Publisher) Option { return func(w *Watcher) { w.pub = p } }

// WithMetrics sets the sink receiving prediction events.
func WithMetrics(s metrics.MetricsSink) Option { return func(w *Watcher) { w.sink = s } }

// WithPredictionLog sets the store estimates are appended to.
func WithPredictionLog(s predictionlog.Store) Option { return func(w *Watcher) { w.plog = s } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(w *Watcher) { w.log = logger.OrNop(l) } }

// WithClock overrides the wall clock used for LoggedAt.
func WithClock(now func() time.Time) Option { return func(w *Watcher) { w.now = now } }

// New returns a Watcher over watches.
func New(loader Loader, watches []Watch, opts ...Option) *Watcher {
	w := &Watcher{
		watches: watches,
		loader:  loader,
		pub:     publish.Nop{},
		sink:    metrics.NopSink{},
		log:     logger.Nop{},
		now:     time.Now,
		latest:  make(map[string]publish.Update),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Watches returns the configured watches.
func (w *Watcher) Watches() []Watch { return w.watches }

// dates returns the bucket dates of cyc relevant to wt, oldest first.
func dates(wt Watch, cyc collector.Cycle) []time.Time {
	line := store.Slugify(wt.Line)
	var out []time.Time
	for _, sc := range cyc.Scopes {
		if sc.Line == line && sc.EndStation == wt.Towards {
			out = append(out, sc.Date)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// HandleCycle predicts, publishes and records arrivals for every watch whose
// line and direction received samples in cyc. Errors of individual watches
// are joined.
func (w *Watcher) HandleCycle(ctx context.Context, cyc collector.Cycle) error {
	var errs []error
	for _, wt := range w.watches {
		ds := dates(wt, cyc)
		if len(ds) == 0 {
			continue
		}
		if err := w.evaluate(ctx, wt, cyc, ds); err != nil {
			errs = append(errs, fmt.Errorf("watch %s: %w", wt.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (w *Watcher) evaluate(ctx context.Context, wt Watch, cyc collector.Cycle, ds []time.Time) error {
	var journeys []model.Journey
	for _, d := range ds {
		js, err := w.loader.LoadJourneys(ctx, wt.Line, wt.Towards, d)
		if err != nil {
			return err
		}
		journeys = append(journeys, js...)
	}
	names := make(map[string]string, len(journeys))
	for _, j := range journeys {
		names[j.JourneyID] = j.Meta.Name
	}

	preds := wt.Engine.Predict(journeys, cyc.At)
	u := publish.Update{
		PollID:   cyc.ID,
		Watch:    wt.Name,
		Line:     wt.Line,
		Towards:  wt.Towards,
		Now:      cyc.At,
		Arrivals: make([]publish.Arrival, 0, len(preds)),
	}
	for id, t := range preds {
		u.Arrivals = append(u.Arrivals, publish.Arrival{
			JourneyID:   id,
			VehicleName: names[id],
			Predicted:   t,
			InSeconds:   t.Sub(cyc.At).Seconds(),
		})
	}
	sort.Slice(u.Arrivals, func(i, j int) bool {
		if !u.Arrivals[i].Predicted.Equal(u.Arrivals[j].Predicted) {
			return u.Arrivals[i].Predicted.Before(u.Arrivals[j].Predicted)
		}
		return u.Arrivals[i].JourneyID < u.Arrivals[j].JourneyID
	})

	w.mu.Lock()
	w.latest[wt.Name] = u
	w.mu.Unlock()

	w.log.Infow("arrivals predicted", map[string]any{
		"poll_id":  cyc.ID,
		"watch":    wt.Name,
		"journeys": len(journeys),
		"arrivals": len(u.Arrivals),
	})

	var errs []error
	if err := w.pub.Publish(ctx, u); err != nil {
		errs = append(errs, fmt.Errorf("publish: %w", err))
	}
	if len(u.Arrivals) == 0 {
		return errors.Join(errs...)
	}
	evs := make([]metrics.PredictionEvent, len(u.Arrivals))
	recs := make([]predictionlog.Record, len(u.Arrivals))
	logged := w.now()
	for i, a := range u.Arrivals {
		evs[i] = metrics.PredictionEvent{
			Watch: wt.Name, Line: wt.Line, Towards: wt.Towards,
			JourneyID: a.JourneyID, Now: cyc.At, Predicted: a.Predicted,
		}
		recs[i] = predictionlog.Record{
			LoggedAt: logged, PollID: cyc.ID, Watch: wt.Name, Line: wt.Line, Towards: wt.Towards,
			JourneyID: a.JourneyID, Now: cyc.At, Predicted: a.Predicted,
		}
	}
	if err := metrics.RecordPredictions(w.sink, evs); err != nil {
		w.log.Warnf("record predictions: %v", err)
	}
	if w.plog != nil {
		if err := w.plog.Append(ctx, recs...); err != nil {
			errs = append(errs, fmt.Errorf("prediction log: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Latest returns the last update computed for the named watch.
func (w *Watcher) Latest(name string) (publish.Update, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	u, ok := w.latest[name]
	return u, ok
}

// All returns the last update of every watch that produced one, by name.
func (w *Watcher) All() []publish.Update {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]publish.Update, 0, len(w.latest))
	for _, u := range w.latest {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Watch < out[j].Watch })
	return out
}

// Run handles cycles from ch until it is closed or ctx is done.
func (w *Watcher) Run(ctx context.Context, ch <-chan collector.Cycle) error {
	defer monitoring.Recover()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cyc, ok := <-ch:
			if !ok {
				return nil
			}
			if err := w.HandleCycle(ctx, cyc); err != nil {
				w.log.Errorf("cycle %s: %v", cyc.ID, err)
				monitoring.CaptureException(err, map[string]string{"module": "watch", "poll_id": cyc.ID})
			}
		}
	}
}
