package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gitline/internal/capture"
	"gitline/internal/config"
	appLog "gitline/internal/log"
	"gitline/internal/refresh"
	"gitline/internal/watch"
	"gitline/internal/web"
)

func newServeCmd() *cobra.Command {
	var listen string
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the timeline page, layout API and SVG",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				cfg.Listen = listen
			}
			if noWatch {
				cfg.Watch.Enabled = false
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Override the listen address")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload the catalog on file changes")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	appLog.Info("gitline starting",
		"version", Version,
		"config", cfgFile,
		"listen", cfg.Listen,
		"catalog", cfg.CatalogSource().Name(),
	)

	server := web.NewServer(cfg)

	// A missing catalog is not fatal: the page shows its fallback until a
	// later reload succeeds.
	if err := server.Reload(ctx); err != nil {
		appLog.Error("initial catalog load failed", err)
	}

	if cfg.Watch.Enabled && cfg.Catalog.URL == "" && cfg.Catalog.Path != "" {
		w, err := watch.New(func(events []watch.Event) {
			appLog.Info("catalog changed; reloading", "events", len(events), "path", events[len(events)-1].Path)
			if err := server.Reload(ctx); err != nil {
				appLog.Error("catalog reload failed", err)
			}
		}, watch.WithDebounceDuration(cfg.Debounce()))
		if err != nil {
			return err
		}
		defer w.Close()
		if err := w.Add(cfg.Catalog.Path); err != nil {
			appLog.Warn("catalog watch disabled", "path", cfg.Catalog.Path, "err", err.Error())
		}
	}

	sched, err := refresh.New(cfg.RefreshCron, cfg.CaptureTimeout()*2)
	if err != nil {
		return err
	}
	sched.Add("reload", server.Reload)
	if cfg.Capture.OnRefresh {
		browser := capture.NewBrowser(captureOptions(cfg))
		sched.Add("capture", func(ctx context.Context) error {
			png, err := browser.CapturePNG(ctx)
			if err != nil {
				return err
			}
			return capture.WritePNG(cfg.Capture.Output, png)
		})
	}
	sched.Start(ctx)
	defer sched.Stop()

	return server.Serve(ctx)
}

// captureOptions points the browser at the configured page, or at the
// local server when none is set.
func captureOptions(cfg *config.Config) capture.Options {
	url := cfg.Capture.URL
	if url == "" {
		host := cfg.Listen
		if strings.HasPrefix(host, ":") {
			host = "127.0.0.1" + host
		}
		url = fmt.Sprintf("http://%s/", host)
	}
	return capture.Options{
		URL:     url,
		Width:   cfg.Capture.Width,
		Height:  cfg.Capture.Height,
		Timeout: cfg.CaptureTimeout(),
	}
}
