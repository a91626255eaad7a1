package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bustrack/app"
	"github.com/kilianp07/bustrack/config"
	"github.com/kilianp07/bustrack/core/model"
	"github.com/kilianp07/bustrack/core/prediction"
	"github.com/kilianp07/bustrack/core/trajectory"
	"github.com/kilianp07/bustrack/infra/logger"
	infstore "github.com/kilianp07/bustrack/infra/store"
)

// watchFlags select a reference point by configured name or inline.
type watchFlags struct {
	name    string
	line    string
	towards int64
	lat     float64
	lon     float64
	date    string
}

func (f *watchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.name, "watch", "w", "", "configured watch name")
	cmd.Flags().StringVar(&f.line, "line", "", "line, when no watch is given")
	cmd.Flags().Int64Var(&f.towards, "towards", 0, "end station id, when no watch is given")
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "reference latitude, when no watch is given")
	cmd.Flags().Float64Var(&f.lon, "lon", 0, "reference longitude, when no watch is given")
	cmd.Flags().StringVar(&f.date, "date", "", "service date YYYY-MM-DD in the feed time zone (default today)")
}

func (f *watchFlags) resolve(c *config.Config) (config.WatchConfig, error) {
	if f.name != "" {
		w, ok := c.Watch(f.name)
		if !ok {
			return w, fmt.Errorf("unknown watch %q", f.name)
		}
		return w, nil
	}
	if f.line == "" || f.towards <= 0 {
		return config.WatchConfig{}, fmt.Errorf("either --watch or --line and --towards are required")
	}
	return config.WatchConfig{Name: "adhoc", Line: f.line, Towards: f.towards, Lat: f.lat, Lon: f.lon}, nil
}

func feedLocation(c *config.Config) *time.Location {
	loc, err := time.LoadLocation(c.Feed.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// day returns the service date selected by --date, or the date of fallback.
func (f *watchFlags) day(loc *time.Location, fallback time.Time) (time.Time, error) {
	if f.date == "" {
		return fallback.In(loc), nil
	}
	d, err := time.ParseInLocation(time.DateOnly, f.date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date: %w", err)
	}
	return d, nil
}

// loadWatch opens the store and returns the engine and journeys of a watch
// on the given date.
func loadWatch(ctx context.Context, c *config.Config, w config.WatchConfig, date time.Time) (*prediction.Engine, []model.Journey, error) {
	proj, err := app.Projector(c.Projection)
	if err != nil {
		return nil, nil, err
	}
	engine, err := app.Engine(c.Prediction, proj, w)
	if err != nil {
		return nil, nil, err
	}
	st, err := infstore.Open(ctx, c.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("store: %w", err)
	}
	defer st.Close()
	journeys, err := trajectory.NewLoader(st, proj, logger.New("trajectory")).LoadJourneys(ctx, w.Line, w.Towards, date)
	if err != nil {
		return nil, nil, err
	}
	return engine, journeys, nil
}
