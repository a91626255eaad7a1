package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bustrack/core/metrics"
	"github.com/kilianp07/bustrack/core/prediction"
	"github.com/kilianp07/bustrack/infra/logger"
	"github.com/kilianp07/bustrack/pkg/export"
)

var (
	btWatch  watchFlags
	btFrom   string
	btTo     string
	btStep   time.Duration
	btFormat string
	btOut    string
	btSeries bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay predictions over a time window and score them against observed crossings",
	RunE:  runBacktest,
}

func init() {
	btWatch.register(backtestCmd)
	backtestCmd.Flags().StringVar(&btFrom, "from", "00:00", "window start, HH:MM on --date or RFC3339")
	backtestCmd.Flags().StringVar(&btTo, "to", "23:59", "window end, HH:MM on --date or RFC3339")
	backtestCmd.Flags().DurationVar(&btStep, "step", 30*time.Second, "spacing of prediction times")
	backtestCmd.Flags().StringVarP(&btFormat, "format", "f", "json", "output format: json, csv or yaml")
	backtestCmd.Flags().StringVarP(&btOut, "out", "o", "", "output file (default stdout)")
	backtestCmd.Flags().BoolVar(&btSeries, "series", false, "write the raw prediction series instead of the evaluation")
	rootCmd.AddCommand(backtestCmd)
}

// windowTime parses HH:MM on date, or an absolute RFC3339 time.
func windowTime(s string, date time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	c, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected HH:MM or RFC3339, got %q", s)
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, date.Location()), nil
}

func runBacktest(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(btFormat)
	if err != nil {
		return err
	}
	if btStep <= 0 {
		return fmt.Errorf("--step must be positive")
	}
	w, err := btWatch.resolve(cfg)
	if err != nil {
		return err
	}
	date, err := btWatch.day(feedLocation(cfg), time.Now())
	if err != nil {
		return err
	}
	from, err := windowTime(btFrom, date)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	to, err := windowTime(btTo, date)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}
	if to.Before(from) {
		return fmt.Errorf("window ends before it starts")
	}

	engine, journeys, err := loadWatch(cmd.Context(), cfg, w, date)
	if err != nil {
		return err
	}
	series := engine.PredictSeries(journeys, prediction.Nows(from, to, btStep))
	ev := prediction.Evaluate(series)

	log := logger.New("backtest")
	log.Infow("backtest done", map[string]any{
		"watch":     w.Name,
		"journeys":  len(journeys),
		"steps":     len(series.Nows),
		"residuals": ev.Summary.Count,
		"mae_s":     ev.Summary.MeanAbsError,
	})
	if err := recordEvaluation(w.Name, date, ev.Summary); err != nil {
		log.Warnf("record evaluation: %v", err)
	}

	var out io.Writer = cmd.OutOrStdout()
	if btOut != "" {
		f, err := os.Create(btOut)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if btSeries {
		return export.WriteSeries(out, format, series)
	}
	return export.WriteEvaluation(out, format, ev)
}

func recordEvaluation(watch string, date time.Time, s prediction.Summary) error {
	sink, err := metrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return err
	}
	defer metrics.Close(sink)
	return metrics.RecordEvaluation(sink, metrics.EvaluationEvent{
		Label:          watch + "/" + date.Format(time.DateOnly),
		Count:          s.Count,
		MeanError:      s.MeanError,
		MeanAbsError:   s.MeanAbsError,
		MedianAbsError: s.MedianAbsError,
		P90AbsError:    s.P90AbsError,
		Time:           time.Now(),
	})
}
