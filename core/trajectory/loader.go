// Package trajectory turns stored buckets into projected journeys.
package trajectory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/bustrack/core/geo"
	"github.com/kilianp07/bustrack/core/logger"
	"github.com/kilianp07/bustrack/core/model"
	"github.com/kilianp07/bustrack/core/store"
)

// Loader reads journeys of one line, direction and date from a store.
type Loader struct {
	Store     store.Reader
	Projector geo.Projector
	Log       logger.Logger
}

// NewLoader returns a Loader. A nil projector defaults to geo.LonLat.
func NewLoader(r store.Reader, p geo.Projector, log logger.Logger) *Loader {
	if p == nil {
		p = geo.LonLat{}
	}
	return &Loader{Store: r, Projector: p, Log: log}
}

// LoadJourneys returns every non-empty journey in scope, ordered by journey
// id. Samples are sorted by observation time and duplicates dropped.
func (l *Loader) LoadJourneys(ctx context.Context, line string, endStation int64, date time.Time) ([]model.Journey, error) {
	keys, err := l.Store.Keys(ctx, store.Scope{Line: line, EndStation: endStation, Date: date})
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	journeys := make([]model.Journey, 0, len(keys))
	for _, k := range keys {
		b, err := l.Store.Load(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", k, err)
		}
		samples := normalize(b.Samples)
		if len(samples) == 0 {
			continue
		}
		journeys = append(journeys, model.Journey{
			JourneyID:  k.JourneyID,
			Line:       k.Line,
			Meta:       b.Meta,
			Trajectory: geo.ProjectSamples(l.Projector, samples),
		})
	}
	sort.Slice(journeys, func(i, j int) bool { return journeys[i].JourneyID < journeys[j].JourneyID })
	if l.Log != nil {
		l.Log.Debugw("journeys loaded", map[string]any{
			"line":        line,
			"end_station": endStation,
			"date":        date.Format("2006-01-02"),
			"journeys":    len(journeys),
		})
	}
	return journeys, nil
}

func normalize(in []model.Sample) []model.Sample {
	out := make([]model.Sample, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ObservedAt.Before(out[j].ObservedAt) })
	n := 0
	for i, s := range out {
		if i > 0 && !s.ObservedAt.After(out[n-1].ObservedAt) {
			continue
		}
		out[n] = s
		n++
	}
	return out[:n]
}
