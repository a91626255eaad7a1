package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bustrack/core/publish"
)

var (
	predictWatch watchFlags
	predictAt    string
	predictJSON  bool
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict arrivals at a reference point from stored trajectories",
	RunE:  runPredict,
}

func init() {
	predictWatch.register(predictCmd)
	predictCmd.Flags().StringVar(&predictAt, "at", "", "prediction time, RFC3339 (default now)")
	predictCmd.Flags().BoolVar(&predictJSON, "json", false, "print the update as JSON")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	w, err := predictWatch.resolve(cfg)
	if err != nil {
		return err
	}
	now := time.Now()
	if predictAt != "" {
		if now, err = time.Parse(time.RFC3339, predictAt); err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
	}
	loc := feedLocation(cfg)
	date, err := predictWatch.day(loc, now)
	if err != nil {
		return err
	}
	engine, journeys, err := loadWatch(cmd.Context(), cfg, w, date)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(journeys))
	for _, j := range journeys {
		names[j.JourneyID] = j.Meta.Name
	}

	u := publish.Update{Watch: w.Name, Line: w.Line, Towards: w.Towards, Now: now, Arrivals: []publish.Arrival{}}
	for id, t := range engine.Predict(journeys, now) {
		u.Arrivals = append(u.Arrivals, publish.Arrival{
			JourneyID: id, VehicleName: names[id], Predicted: t, InSeconds: t.Sub(now).Seconds(),
		})
	}
	sort.Slice(u.Arrivals, func(i, j int) bool { return u.Arrivals[i].Predicted.Before(u.Arrivals[j].Predicted) })

	out := cmd.OutOrStdout()
	if predictJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(u)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "JOURNEY\tVEHICLE\tARRIVAL\tIN\n")
	for _, a := range u.Arrivals {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.JourneyID, a.VehicleName,
			a.Predicted.In(loc).Format(time.TimeOnly), time.Duration(a.InSeconds*float64(time.Second)).Round(time.Second))
	}
	return tw.Flush()
}
