package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bustrack/app"
)

var collectOnce bool

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Poll the live feed into the trajectory store",
	RunE:  runCollect,
}

func init() {
	collectCmd.Flags().BoolVar(&collectOnce, "once", false, "poll a single time and exit")
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	if !collectOnce {
		return runService(app.ModeCollect)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Feed.Timeout+30*time.Second)
	defer cancel()
	svc, err := app.New(ctx, cfg, app.ModeCollect)
	if err != nil {
		return err
	}
	defer svc.Close()
	cyc, err := svc.Collector.PollOnce(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "poll %s: %d vehicles, %d appended, %d rejected\n",
		cyc.ID, cyc.Vehicles, cyc.Appended, cyc.Rejected)
	return err
}
