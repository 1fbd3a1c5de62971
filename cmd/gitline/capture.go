package main

import (
	"github.com/spf13/cobra"

	"gitline/internal/capture"
	appLog "gitline/internal/log"
)

func newCaptureCmd() *cobra.Command {
	var (
		url    string
		output string
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Screenshot the running timeline page with headless Chromium",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := captureOptions(cfg)
			if url != "" {
				opts.URL = url
			}
			if output == "" {
				output = cfg.Capture.Output
			}
			png, err := capture.NewBrowser(opts).CapturePNG(cmd.Context())
			if err != nil {
				return err
			}
			if err := capture.WritePNG(output, png); err != nil {
				return err
			}
			appLog.Info("preview written", "path", output, "bytes", len(png))
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Page to capture (default: configured URL or local server)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "PNG path (default from config)")
	return cmd
}
