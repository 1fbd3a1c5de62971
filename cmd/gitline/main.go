package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gitline/internal/config"
	appLog "gitline/internal/log"
)

// Version is set via ldflags at release time.
var Version = "0.1.0-dev"

var (
	cfgFile string
	debug   bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "gitline",
	Short: "Git-graph style history timeline",
	Long: `gitline renders a dated event catalog as a vertical timeline with
alternating cards and curved branch connectors between consecutive events
of the same branch.

  gitline serve                  # page + API on the configured address
  gitline render -o out.svg      # standalone SVG
  gitline branches               # branch summary
  gitline capture                # PNG preview through headless Chromium`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config %s: %w", cfgFile, err)
		}
		level := appLog.ParseLevel(cfg.LogLevel)
		if debug {
			level = appLog.LevelDebug
		}
		appLog.SetLevel(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "./config.yaml", "Path to config file (created with defaults on first run)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.Version = Version

	rootCmd.AddCommand(newServeCmd(), newRenderCmd(), newBranchesCmd(), newCaptureCmd(), newMeasureCmd())
}

func main() {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		appLog.Error("gitline failed", err)
		os.Exit(1)
	}
}
