package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"gitline/internal/capture"
	"gitline/internal/catalog"
	"gitline/internal/layout"
	appLog "gitline/internal/log"
)

// measureResult is what `gitline measure` prints.
type measureResult struct {
	URL      string           `json:"url"`
	Width    int              `json:"width"`
	Height   int              `json:"height"`
	ViewBox  string           `json:"view_box"`
	Length   float64          `json:"total_length"`
	Segments []layout.Segment `json:"segments"`
}

func newMeasureCmd() *cobra.Command {
	var (
		url    string
		width  int
		height int
	)

	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Lay out branches from a live page's geometry and print the segments",
		Long: `measure loads the page in headless Chromium, reads the card and marker
rectangles the browser produced, and runs the layout engine on them. Useful
to compare the server's layout with what the page draws at a given width.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := cfg.CatalogOptions()
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cmd.Context(), cfg.CatalogSource(), opts)
			if err != nil {
				return err
			}

			bopts := captureOptions(cfg)
			if url != "" {
				bopts.URL = url
			}
			if width > 0 {
				bopts.Width = width
			}
			if height > 0 {
				bopts.Height = height
			}
			browser := capture.NewBrowser(bopts)
			snap, err := browser.Measure(cmd.Context())
			if err != nil {
				return err
			}

			eng := layout.New(snap, cfg.LayoutOptions())
			surface := eng.Attach(nil)
			segments := eng.Layout(layout.Input{
				Events:   cat.Events,
				Branches: cat.Branches,
				Viewport: snap.Viewport,
				Cards:    layout.CardsFor(cat.Events),
			})
			if len(snap.Elements) < len(cat.Events) {
				appLog.Warn("page shows fewer cards than the catalog",
					"measured", len(snap.Elements), "events", len(cat.Events))
			}

			eff := browser.Options()
			return writeIndentedJSON(cmd, measureResult{
				URL:      eff.URL,
				Width:    eff.Width,
				Height:   eff.Height,
				ViewBox:  surface.ViewBox(),
				Length:   surface.TotalLength(),
				Segments: append([]layout.Segment{}, segments...),
			})
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Page to measure (default: configured URL or local server)")
	cmd.Flags().IntVar(&width, "width", 0, "Viewport width")
	cmd.Flags().IntVar(&height, "height", 0, "Viewport height")
	return cmd
}

func writeIndentedJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
