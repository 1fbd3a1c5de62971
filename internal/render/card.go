// Package render turns a catalog into the timeline's visible artefacts: the
// HTML page with one card per event, and a standalone SVG drawing.
package render

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"gitline/internal/geom"
	"gitline/internal/layout"
	"gitline/internal/model"
)

var frMonths = [...]string{
	"janv.", "févr.", "mars", "avr.", "mai", "juin",
	"juil.", "août", "sept.", "oct.", "nov.", "déc.",
}

// FormatDate renders the short card date. French gives "5 janv. 2024";
// any other language falls back to "Jan 5, 2024".
func FormatDate(t time.Time, lang string) string {
	if t.IsZero() {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(lang), "fr") {
		return fmt.Sprintf("%d %s %d", t.Day(), frMonths[t.Month()-1], t.Year())
	}
	return t.Format("Jan 2, 2006")
}

// Initials returns up to two uppercase initials, one per word of author.
func Initials(author string) string {
	var b strings.Builder
	n := 0
	for _, word := range strings.Fields(author) {
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
		if n++; n == 2 {
			break
		}
	}
	return b.String()
}

// Card is the view model of one rendered event card.
type Card struct {
	Event       model.Event
	Index       int
	Lane        geom.Lane
	Color       string
	Date        string
	Initials    string
	BranchLabel string
}

// Side is the lane's CSS modifier.
func (c Card) Side() string { return c.Lane.String() }

// Cards builds the card view models in catalog order. Lanes come from
// layout.CardsFor so the page, the SVG and the engine agree on them.
func Cards(cat *model.Catalog, lang string) []Card {
	if cat == nil {
		return nil
	}
	rendered := layout.CardsFor(cat.Events)
	out := make([]Card, len(cat.Events))
	for i, ev := range cat.Events {
		label := ""
		if ev.Branch != "" {
			label = ev.Branch
			if b, ok := cat.Branches[ev.Branch]; ok {
				label = b.Label()
			}
		}
		out[i] = Card{
			Event:       ev,
			Index:       rendered[i].Index,
			Lane:        rendered[i].Lane,
			Color:       cat.CardColor(ev),
			Date:        FormatDate(ev.Date, lang),
			Initials:    Initials(ev.Author),
			BranchLabel: label,
		}
	}
	return out
}
