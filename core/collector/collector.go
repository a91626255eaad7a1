// Package collector polls the live feed and appends every vehicle report to
// the trajectory store.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/bustrack/core/logger"
	"github.com/kilianp07/bustrack/core/metrics"
	"github.com/kilianp07/bustrack/core/model"
	"github.com/kilianp07/bustrack/core/monitoring"
	"github.com/kilianp07/bustrack/core/store"
	"github.com/kilianp07/bustrack/internal/eventbus"
)

// Feed is the upstream vehicle source.
type Feed interface {
	Fetch(ctx context.Context) ([]byte, error)
	Parse(data []byte) ([]model.VehicleReport, error)
	WaitForNetwork(ctx context.Context, initial, maxDelay time.Duration) error
}

// Config tunes the poll loop.
type Config struct {
	Interval       time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Cycle is published on the bus after every successful poll.
type Cycle struct {
	ID       string
	At       time.Time
	Vehicles int
	Appended int
	Rejected int
	// Scopes lists the (line, direction, date) buckets touched by the poll.
	Scopes []store.Scope
}

// Collector runs the poll loop.
type Collector struct {
	cfg   Config
	feed  Feed
	store store.Writer
	sink  metrics.MetricsSink
	bus   *eventbus.TypedBus[Cycle]
	log   logger.Logger
	now   func() time.Time
}

// New returns a Collector. A nil sink or logger is replaced by a no-op.
func New(cfg Config, feed Feed, w store.Writer, sink metrics.MetricsSink, bus *eventbus.TypedBus[Cycle], log logger.Logger) *Collector {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = 5 * time.Minute
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Collector{cfg: cfg, feed: feed, store: w, sink: sink, bus: bus, log: logger.OrNop(log), now: time.Now}
}

// StageError tells which poll stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// PollOnce fetches, parses and stores one snapshot of the feed. Samples the
// store refuses as out of order, or whose key would not decode, are counted
// and skipped.
func (c *Collector) PollOnce(ctx context.Context) (Cycle, error) {
	cyc := Cycle{ID: uuid.NewString()}
	ev := metrics.PollEvent{PollID: cyc.ID, Time: c.now()}
	fail := func(stage string, err error) (Cycle, error) {
		ev.Stage = stage
		if rerr := c.sink.RecordPoll(ev); rerr != nil {
			c.log.Warnf("record poll: %v", rerr)
		}
		return cyc, &StageError{Stage: stage, Err: err}
	}

	t0 := time.Now()
	data, err := c.feed.Fetch(ctx)
	ev.Fetch = time.Since(t0)
	if err != nil {
		return fail("fetch", err)
	}

	t1 := time.Now()
	reports, err := c.feed.Parse(data)
	ev.Parse = time.Since(t1)
	if err != nil {
		var se *model.SchemaError
		if errors.As(err, &se) {
			monitoring.CaptureException(err, map[string]string{"module": "collector", "stage": "parse"})
		}
		return fail("parse", err)
	}

	cyc.At = c.now()
	ev.Time = cyc.At
	t2 := time.Now()
	seen := make(map[store.Scope]bool)
	for _, r := range reports {
		k := store.KeyFor(r)
		err := c.store.Append(ctx, k, r.Sample(cyc.At), r.Meta())
		var fe *store.FormatError
		switch {
		case errors.Is(err, store.ErrOutOfOrder):
			cyc.Rejected++
			c.log.Debugw("sample rejected", map[string]any{"key": k.String(), "poll_id": cyc.ID})
			continue
		case errors.As(err, &fe):
			cyc.Rejected++
			c.log.Warnf("vehicle %d on line %q rejected: %v", r.ID, r.Line, err)
			continue
		case err != nil:
			ev.Append = time.Since(t2)
			return fail("append", fmt.Errorf("append %s: %w", k, err))
		}
		cyc.Appended++
		sc := store.Scope{Line: k.Line, EndStation: k.EndStation, Date: k.Date}
		if !seen[sc] {
			seen[sc] = true
			cyc.Scopes = append(cyc.Scopes, sc)
		}
	}
	ev.Append = time.Since(t2)
	cyc.Vehicles = len(reports)

	ev.Succeeded = true
	ev.Vehicles, ev.Appended, ev.Rejected = cyc.Vehicles, cyc.Appended, cyc.Rejected
	if err := c.sink.RecordPoll(ev); err != nil {
		c.log.Warnf("record poll: %v", err)
	}
	c.log.Infow("poll done", map[string]any{
		"poll_id":   cyc.ID,
		"vehicles":  cyc.Vehicles,
		"appended":  cyc.Appended,
		"rejected":  cyc.Rejected,
		"fetch_ms":  ev.Fetch.Milliseconds(),
		"parse_ms":  ev.Parse.Milliseconds(),
		"append_ms": ev.Append.Milliseconds(),
	})
	if c.bus != nil {
		c.bus.Publish(cyc)
	}
	return cyc, nil
}

// NextTick returns how long to sleep from now until the next multiple of
// interval since the Unix epoch.
func NextTick(now time.Time, interval time.Duration) time.Duration {
	if interval <= 0 {
		return 0
	}
	return interval - time.Duration(now.UnixNano()%int64(interval))
}

// Run waits for the network, then polls on interval boundaries until ctx is
// done. A failed poll triggers another network wait.
func (c *Collector) Run(ctx context.Context) error {
	defer monitoring.Recover()
	if err := c.feed.WaitForNetwork(ctx, c.cfg.InitialBackoff, c.cfg.MaxBackoff); err != nil {
		return err
	}
	c.log.Infof("collector started, interval %s", c.cfg.Interval)
	timer := time.NewTimer(c.cfg.Interval)
	timer.Stop()
	defer timer.Stop()
	for {
		if _, err := c.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Errorf("poll failed: %v", err)
			var se *StageError
			if errors.As(err, &se) && se.Stage == "fetch" {
				if werr := c.feed.WaitForNetwork(ctx, c.cfg.InitialBackoff, c.cfg.MaxBackoff); werr != nil {
					return werr
				}
			} else {
				monitoring.CaptureException(err, map[string]string{"module": "collector"})
			}
		}
		sleep := NextTick(c.now(), c.cfg.Interval)
		c.log.Debugw("sleeping", map[string]any{"sleep_ms": sleep.Milliseconds(), "until": c.now().Add(sleep).Format(time.RFC3339)})
		timer.Reset(sleep)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}
