// Package cmd implements the bustrack command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bustrack/app"
	"github.com/kilianp07/bustrack/config"
	"github.com/kilianp07/bustrack/infra/logger"
)

const defaultConfigPath = "config.yaml"

var (
	cfgPath  string
	envFiles []string
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "bustrack",
	Short:         "Bus position collector and arrival predictor",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFiles...); err != nil {
			return err
		}
		path := cfgPath
		if path == defaultConfigPath {
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				path = ""
			}
		}
		c, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		return app.InitMonitoring(cfg.Sentry)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Collect positions, predict arrivals and serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runService(app.ModeServe)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfigPath, "configuration file (yaml or json)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before the configuration")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func runService(mode app.Mode) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(ctx, cfg, mode)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
