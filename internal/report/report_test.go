package report

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"MarketReel/internal/model"
)

func avail(label string, price, prev float64) model.Available {
	return model.Available{Label: label, Price: decimal.NewFromFloat(price), PreviousClose: decimal.NewFromFloat(prev)}
}

func TestNewLine(t *testing.T) {
	tests := []struct {
		name      string
		q         model.Quote
		want      string
		sentiment Sentiment
	}{
		{"up", avail("SENSEX", 80400, 80000), "SENSEX: 80400 ▲ +400 (+0.50%)", Bullish},
		{"down", avail("DAX", 19000, 19200), "DAX: 19000 ▼ -200 (-1.04%)", Bearish},
		{"flat", avail("FTSE 100", 8000.2, 7999.9), "FTSE 100: 8000 ⏸ 0 (0.00%)", Neutral},
		{"small move", avail("Nasdaq", 18010, 18000), "Nasdaq: 18010 ▲ +10 (+0.06%)", Neutral},
		{"unavailable", model.Unavailable{Label: "NIFTY", Reason: "timeout"}, "NIFTY: Unavailable", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLine(tt.q)
			require.Equal(t, tt.want, l.String())
			require.Equal(t, tt.sentiment, l.Sentiment)
		})
	}
}

func TestBuild_KeepsUnavailableLine(t *testing.T) {
	r := Build("2026-10-15",
		[]model.Quote{
			model.Unavailable{Label: "NIFTY"},
			avail("SENSEX", 80400, 80000),
		},
		[]model.Quote{avail("Dow Jones", 42000, 42100)},
		nil,
	)

	lines := r.Lines()
	require.Len(t, lines, 3)
	require.False(t, lines[0].Available)
	require.Empty(t, lines[0].Arrow)
	require.True(t, lines[1].Available)
	require.True(t, lines[2].Available)

	text := r.Text()
	require.Contains(t, text, "NIFTY: Unavailable\n")
	require.Contains(t, text, "SENSEX: 80400 ▲ +400 (+0.50%)\n")
	require.Contains(t, text, "Dow Jones: 42000 ▼ -100 (-0.24%)\n")
	require.Contains(t, text, "No news available.")
	require.Less(t, strings.Index(text, "NIFTY"), strings.Index(text, "Dow Jones"))
}

func TestText_Idempotent(t *testing.T) {
	build := func() string {
		return Build("2026-10-15",
			[]model.Quote{avail("NIFTY 50", 24500, 24400)},
			[]model.Quote{model.Unavailable{Label: "Nikkei 225"}},
			[]model.NewsItem{{Title: "RBI holds", PublishedAt: "Wed", Content: "body..."}},
		).Text()
	}
	first := build()
	require.Equal(t, first, build())
	require.Contains(t, first, "📰 RBI holds\n📅 Wed\n📖 body...\n---\n")
	require.True(t, strings.HasPrefix(first, "📅 Market Report | 2026-10-15\n"))
}
