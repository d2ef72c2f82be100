// Package report assembles quotes and headlines into the daily market report.
package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"MarketReel/internal/model"
)

// Sentiment classifies a line's percentage move.
type Sentiment string

const (
	Bullish Sentiment = "bullish"
	Bearish Sentiment = "bearish"
	Neutral Sentiment = "neutral"
	Unknown Sentiment = "unknown"
)

var sentimentThreshold = decimal.NewFromFloat(0.5)

// Line is one labelled observation in the report.
type Line struct {
	Label         string
	Available     bool
	Price         decimal.Decimal
	ChangePoints  decimal.Decimal
	ChangePercent decimal.Decimal
	Sentiment     Sentiment
	Arrow         string
}

// NewLine derives a report line from a quote.
func NewLine(q model.Quote) Line {
	a, ok := q.(model.Available)
	if !ok {
		return Line{Label: q.QuoteLabel(), Sentiment: Unknown}
	}
	l := Line{
		Label:         a.Label,
		Available:     true,
		Price:         a.Price.Round(0),
		ChangePoints:  a.Price.Round(0).Sub(a.PreviousClose.Round(0)),
		ChangePercent: a.ChangePercent().Round(2),
	}
	switch {
	case l.ChangePercent.GreaterThanOrEqual(sentimentThreshold):
		l.Sentiment = Bullish
	case l.ChangePercent.LessThanOrEqual(sentimentThreshold.Neg()):
		l.Sentiment = Bearish
	default:
		l.Sentiment = Neutral
	}
	switch l.ChangePoints.Sign() {
	case 1:
		l.Arrow = "▲"
	case -1:
		l.Arrow = "▼"
	default:
		l.Arrow = "⏸"
	}
	return l
}

// Value renders the line without its label, e.g. "24512 ▲ +122 (+0.50%)".
func (l Line) Value() string {
	if !l.Available {
		return "Unavailable"
	}
	return fmt.Sprintf("%s %s %s (%s%%)", l.Price.StringFixed(0), l.Arrow, signed(l.ChangePoints, 0), signed(l.ChangePercent, 2))
}

// String renders "LABEL: value".
func (l Line) String() string {
	return l.Label + ": " + l.Value()
}

func signed(d decimal.Decimal, places int32) string {
	s := d.StringFixed(places)
	if d.Sign() > 0 {
		return "+" + s
	}
	return s
}

// Report is the assembled market report for one date.
type Report struct {
	Date     string
	Domestic []Line
	Global   []Line
	News     []model.NewsItem
}

// Build assembles a report. It never fails: unavailable quotes stay in
// place as flagged lines and an empty news slice yields an empty section.
func Build(date string, domestic, global []model.Quote, news []model.NewsItem) *Report {
	r := &Report{Date: date, News: news}
	for _, q := range domestic {
		r.Domestic = append(r.Domestic, NewLine(q))
	}
	for _, q := range global {
		r.Global = append(r.Global, NewLine(q))
	}
	return r
}

// Lines returns domestic then global lines.
func (r *Report) Lines() []Line {
	out := make([]Line, 0, len(r.Domestic)+len(r.Global))
	out = append(out, r.Domestic...)
	return append(out, r.Global...)
}

// Text renders the report deterministically.
func (r *Report) Text() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 Market Report | %s\n\n", r.Date))

	b.WriteString("📊 Indian Market:\n")
	for _, l := range r.Domestic {
		b.WriteString(l.String() + "\n")
	}

	b.WriteString("\n🌍 Global Markets:\n")
	for _, l := range r.Global {
		b.WriteString(l.String() + "\n")
	}

	b.WriteString("\n📰 Top Market News:\n")
	if len(r.News) == 0 {
		b.WriteString("No news available.\n")
	}
	for _, n := range r.News {
		b.WriteString(fmt.Sprintf("\n📰 %s\n", n.Title))
		if n.PublishedAt != "" {
			b.WriteString(fmt.Sprintf("📅 %s\n", n.PublishedAt))
		}
		b.WriteString(fmt.Sprintf("📖 %s\n", n.Content))
		b.WriteString("---\n")
	}
	return b.String()
}

// Headlines returns just the news titles, in report order.
func (r *Report) Headlines() []string {
	out := make([]string, 0, len(r.News))
	for _, n := range r.News {
		out = append(out, n.Title)
	}
	return out
}
