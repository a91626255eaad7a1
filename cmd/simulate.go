package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bustrack/infra/logger"
	"github.com/kilianp07/bustrack/simulator"
)

var (
	simAddr   string
	simBuses  int
	simSpeed  float64
	simEpoch  string
	simFixLag time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Serve a synthetic live vehicle feed",
	RunE:  runSimulate,
}

func init() {
	def := simulator.DefaultConfig()
	simulateCmd.Flags().StringVar(&simAddr, "addr", ":9000", "listen address")
	simulateCmd.Flags().IntVar(&simBuses, "buses", def.BusesPerLine, "buses per line")
	simulateCmd.Flags().Float64Var(&simSpeed, "speed", def.SpeedMS, "bus speed in m/s")
	simulateCmd.Flags().StringVar(&simEpoch, "epoch", "", "first departure, RFC3339 (default now)")
	simulateCmd.Flags().DurationVar(&simFixLag, "fix-lag", def.FixLag, "age of reported positions")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	simCfg := simulator.DefaultConfig()
	simCfg.BusesPerLine = simBuses
	simCfg.SpeedMS = simSpeed
	simCfg.FixLag = simFixLag
	epoch := time.Now()
	if simEpoch != "" {
		var err error
		if epoch, err = time.Parse(time.RFC3339, simEpoch); err != nil {
			return fmt.Errorf("invalid --epoch: %w", err)
		}
	}
	fleet, err := simulator.NewFleet(simCfg, epoch)
	if err != nil {
		return err
	}
	log := logger.New("simulator")
	srv := &http.Server{
		Addr:              simAddr,
		Handler:           simulator.NewServer(fleet, feedLocation(cfg), log).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Infof("simulated feed on %s, trip %s", simAddr, fleet.TripDuration(0).Round(time.Second))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
