package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"gitline/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templateFS, "templates/page.html"))

// Page is the data behind the timeline page. A non-empty Error replaces the
// timeline with the loading-failure block.
type Page struct {
	Lang     string
	Title    string
	Subtitle string
	Error    string
	Cards    []Card

	StrokeWidth    float64
	Opacity        float64
	Animate        bool
	ScrollTrigger  bool
	ResizeDebounce int // ms
}

// NewPage builds the page for a loaded catalog.
func NewPage(cat *model.Catalog, lang, title, subtitle string) Page {
	return Page{
		Lang:     lang,
		Title:    title,
		Subtitle: subtitle,
		Cards:    Cards(cat, lang),
	}
}

// ErrorPage builds the fallback page shown when the catalog failed to load.
func ErrorPage(lang, title, subtitle, message string) Page {
	return Page{Lang: lang, Title: title, Subtitle: subtitle, Error: message}
}

// Write renders p as HTML.
func (p Page) Write(w io.Writer) error {
	var buf bytes.Buffer
	if err := pageTmpl.ExecuteTemplate(&buf, "page.html", p); err != nil {
		return fmt.Errorf("render: page: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}
