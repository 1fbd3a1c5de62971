package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"gitline/internal/catalog"
	"gitline/internal/model"
	"gitline/internal/render"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
)

func newBranchesCmd() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "branches",
		Short: "Summarise the catalog's branches and their connectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := cfg.CatalogOptions()
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cmd.Context(), cfg.CatalogSource(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if noColor || !isTerminal(out) {
				lipgloss.SetColorProfile(termenv.Ascii)
			}
			return printBranches(out, cat, cfg.Page.Lang)
		},
	}
	cmd.Flags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "Disable colours")
	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// branchStat summarises one branch in catalog order.
type branchStat struct {
	Key        string
	Label      string
	Color      string
	Events     int
	Connectors int
	First      string
	Last       string
}

func branchStats(cat *model.Catalog, lang string) []branchStat {
	idx := make(map[string]int)
	var stats []branchStat
	for _, key := range cat.BranchOrder() {
		b, ok := cat.Branches[key]
		if !ok {
			b = model.Branch{Key: key}
		}
		idx[key] = len(stats)
		stats = append(stats, branchStat{Key: key, Label: b.Label(), Color: cat.BranchColor(key)})
	}
	for _, ev := range cat.Events {
		i, ok := idx[ev.Branch]
		if !ok {
			continue
		}
		st := &stats[i]
		date := render.FormatDate(ev.Date, lang)
		if st.Events == 0 {
			st.First = date
		}
		st.Last = date
		st.Events++
	}
	// n events of a branch are joined by n-1 connectors.
	for i := range stats {
		if stats[i].Events > 1 {
			stats[i].Connectors = stats[i].Events - 1
		}
	}
	return stats
}

const labelWidth = 20

func printBranches(w io.Writer, cat *model.Catalog, lang string) error {
	stats := branchStats(cat, lang)
	unbranched := len(cat.Events)
	for _, st := range stats {
		unbranched -= st.Events
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", headerStyle.Render(fmt.Sprintf("%d events, %d branches", len(cat.Events), len(stats))))
	for _, st := range stats {
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(st.Color)).Bold(true)
		fmt.Fprintf(&b, "%s %s %3d events  %3d connectors  %s\n",
			swatch.Render("●"),
			runewidth.FillRight(runewidth.Truncate(st.Label, labelWidth, "…"), labelWidth),
			st.Events,
			st.Connectors,
			mutedStyle.Render(st.First+" → "+st.Last),
		)
	}
	if unbranched > 0 {
		fmt.Fprintf(&b, "%s\n", mutedStyle.Render(fmt.Sprintf("%d events without branch", unbranched)))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
