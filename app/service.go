// Package app wires the collector, the prediction watcher, publishers,
// metrics sinks and the HTTP API from a configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/bustrack/api/predictions"
	"github.com/kilianp07/bustrack/config"
	"github.com/kilianp07/bustrack/core/collector"
	"github.com/kilianp07/bustrack/core/geo"
	"github.com/kilianp07/bustrack/core/logger"
	"github.com/kilianp07/bustrack/core/metrics"
	"github.com/kilianp07/bustrack/core/monitoring"
	"github.com/kilianp07/bustrack/core/prediction"
	"github.com/kilianp07/bustrack/core/predictionlog"
	"github.com/kilianp07/bustrack/core/publish"
	"github.com/kilianp07/bustrack/core/store"
	"github.com/kilianp07/bustrack/core/trajectory"
	"github.com/kilianp07/bustrack/core/watch"
	"github.com/kilianp07/bustrack/infra/feed"
	infralog "github.com/kilianp07/bustrack/infra/logger"
	_ "github.com/kilianp07/bustrack/infra/metrics"
	infmon "github.com/kilianp07/bustrack/infra/monitoring"
	_ "github.com/kilianp07/bustrack/infra/mqtt"
	_ "github.com/kilianp07/bustrack/infra/nats"
	infstore "github.com/kilianp07/bustrack/infra/store"
	"github.com/kilianp07/bustrack/internal/eventbus"
)

// Mode selects which parts of the service run.
type Mode int

const (
	// ModeServe collects, predicts, publishes and serves HTTP.
	ModeServe Mode = iota
	// ModeCollect only runs the collector.
	ModeCollect
)

// Service orchestrates the collector and the prediction watcher.
type Service struct {
	Store     store.Store
	Feed      *feed.Client
	Collector *collector.Collector
	Watcher   *watch.Watcher

	cfg    *config.Config
	mode   Mode
	bus    *eventbus.TypedBus[collector.Cycle]
	sink   metrics.MetricsSink
	pub    publish.Publisher
	plog   predictionlog.Store
	loader *trajectory.Loader
	server *http.Server
	log    logger.Logger
}

// InitMonitoring installs the Sentry monitor when a DSN is configured.
func InitMonitoring(cfg config.SentryConfig) error {
	m, err := infmon.NewSentryMonitor(cfg)
	if err != nil {
		return fmt.Errorf("sentry: %w", err)
	}
	monitoring.Init(m)
	return nil
}

// Projector returns the configured projector.
func Projector(cfg config.ProjectionConfig) (geo.Projector, error) {
	return geo.New(cfg.Name, cfg.UTMZone)
}

// Engine builds the prediction engine of one watch. The watch radius wins
// over the shared one when set.
func Engine(cfg config.PredictionConfig, proj geo.Projector, w config.WatchConfig) (*prediction.Engine, error) {
	radiusSq := cfg.RadiusSq
	if w.RadiusSq > 0 {
		radiusSq = w.RadiusSq
	}
	return prediction.NewEngine(prediction.Config{
		Reference:       proj.Project(w.Lon, w.Lat),
		RadiusSq:        radiusSq,
		TopN:            cfg.TopN,
		RecentThreshold: cfg.RecentThreshold,
	})
}

// Watches builds one watch per configured reference point.
func Watches(cfg *config.Config, proj geo.Projector) ([]watch.Watch, error) {
	out := make([]watch.Watch, 0, len(cfg.Watches))
	for _, wc := range cfg.Watches {
		e, err := Engine(cfg.Prediction, proj, wc)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", wc.Name, err)
		}
		out = append(out, watch.Watch{Name: wc.Name, Line: wc.Line, Towards: wc.Towards, Engine: e})
	}
	return out, nil
}

// New creates a Service from the configuration. Resources opened before a
// failure are released.
func New(ctx context.Context, cfg *config.Config, mode Mode) (svc *Service, err error) {
	s := &Service{cfg: cfg, mode: mode, log: infralog.New("service")}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if s.Store, err = infstore.Open(ctx, cfg.Store); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if s.Feed, err = feed.NewClient(cfg.Feed, feed.WithLogger(infralog.New("feed"))); err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	if s.sink, err = metrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	s.bus = eventbus.NewTyped[collector.Cycle]()
	s.Collector = collector.New(collector.Config{
		Interval:       cfg.Collector.Interval,
		InitialBackoff: cfg.Collector.InitialBackoff,
		MaxBackoff:     cfg.Collector.MaxBackoff,
	}, s.Feed, s.Store, s.sink, s.bus, infralog.New("collector"))
	if mode == ModeCollect {
		return s, nil
	}

	proj, err := Projector(cfg.Projection)
	if err != nil {
		return nil, fmt.Errorf("projection: %w", err)
	}
	watches, err := Watches(cfg, proj)
	if err != nil {
		return nil, err
	}
	if s.pub, err = publish.New(cfg.Publishers); err != nil {
		return nil, fmt.Errorf("publishers: %w", err)
	}
	opts := []watch.Option{
		watch.WithPublisher(s.pub),
		watch.WithMetrics(s.sink),
		watch.WithLogger(infralog.New("watch")),
	}
	if p := cfg.PredictionLog; p.Path != "" {
		plog, err := predictionlog.NewRotatingJSONLStore(p.Path, p.MaxSizeMB, p.MaxBackups, p.MaxAgeDays)
		if err != nil {
			return nil, fmt.Errorf("prediction log: %w", err)
		}
		s.plog = plog
		opts = append(opts, watch.WithPredictionLog(plog))
	}
	s.loader = trajectory.NewLoader(s.Store, proj, infralog.New("trajectory"))
	s.Watcher = watch.New(s.loader, watches, opts...)
	s.server = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Handler returns the HTTP API of the service.
func (s *Service) Handler() http.Handler {
	o := predictions.Options{
		Journeys:    s.loader,
		Gatherer:    prometheus.DefaultGatherer,
		Location:    s.Feed.Location(),
		CORSOrigins: s.cfg.HTTP.CORSOrigins,
		Token:       s.cfg.HTTP.Token,
	}
	if s.Watcher != nil {
		o.Latest = s.Watcher
	}
	if s.plog != nil {
		o.History = s.plog
	}
	if p, ok := s.Store.(predictions.Pinger); ok {
		o.Health = p
	}
	return predictions.NewRouter(o)
}

// Run starts the service and blocks until ctx is cancelled or a component
// fails.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if s.Watcher != nil {
		cycles := s.bus.SubscribeN(len(s.Watcher.Watches()) + eventbus.DefaultBuffer)
		g.Go(func() error { return s.Watcher.Run(ctx, cycles) })
	}
	g.Go(func() error { return s.Collector.Run(ctx) })
	if s.server != nil {
		g.Go(func() error {
			s.log.Infof("http listening on %s", s.server.Addr)
			if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return s.server.Shutdown(shutdownCtx)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.bus != nil {
		s.bus.Close()
	}
	if s.pub != nil {
		errs = append(errs, s.pub.Close())
	}
	if s.sink != nil {
		metrics.Close(s.sink)
	}
	if s.plog != nil {
		errs = append(errs, s.plog.Close())
	}
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	monitoring.Flush(2 * time.Second)
	return errors.Join(errs...)
}
