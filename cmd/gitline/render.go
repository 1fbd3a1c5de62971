package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"gitline/internal/catalog"
	appLog "gitline/internal/log"
	"gitline/internal/render"
)

func newRenderCmd() *cobra.Command {
	var (
		output  string
		width   float64
		animate bool
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Write the timeline as a standalone SVG",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := cfg.CatalogOptions()
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cmd.Context(), cfg.CatalogSource(), opts)
			if err != nil {
				return err
			}

			static := cfg.Layout.Static
			if width > 0 {
				static.Width = width
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			bw := bufio.NewWriter(w)

			segments, err := render.Timeline(bw, cat, static, cfg.LayoutOptions(), render.SVGOptions{
				Lang:        cfg.Page.Lang,
				StrokeWidth: cfg.Layout.StrokeWidth,
				Opacity:     cfg.Layout.Opacity,
				Animate:     animate,
			})
			if err != nil {
				return err
			}
			if err := bw.Flush(); err != nil {
				return err
			}
			appLog.Info("svg rendered", "events", len(cat.Events), "segments", len(segments), "output", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().Float64Var(&width, "width", 0, "Frame width in px (default from config)")
	cmd.Flags().BoolVar(&animate, "animate", false, "Embed draw animations")
	return cmd
}
