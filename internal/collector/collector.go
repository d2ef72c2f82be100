package collector

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"MarketReel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Prices map[string][2]float64 // symbol -> {price, previousClose}
	Errors map[string]error
	Calls  []string
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchQuote(_ context.Context, symbol string) (decimal.Decimal, decimal.Decimal, error) {
	m.Calls = append(m.Calls, symbol)
	if err, ok := m.Errors[symbol]; ok {
		return decimal.Zero, decimal.Zero, err
	}
	p, ok := m.Prices[symbol]
	if !ok {
		return decimal.Zero, decimal.Zero, errNoMockPrice(symbol)
	}
	return decimal.NewFromFloat(p[0]), decimal.NewFromFloat(p[1]), nil
}

type errNoMockPrice string

func (e errNoMockPrice) Error() string { return "mock: no price for " + string(e) }

// Collector fetches quotes for a list of indices, one at a time.
type Collector struct {
	Fetcher Fetcher
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher) *Collector {
	return &Collector{Fetcher: fetcher}
}

// Collect fetches every index in order. A failed fetch becomes an
// Unavailable quote; it never aborts the rest of the list.
func (c *Collector) Collect(ctx context.Context, specs []model.IndexSpec) []model.Quote {
	quotes := make([]model.Quote, 0, len(specs))
	for _, s := range specs {
		price, prev, err := c.Fetcher.FetchQuote(ctx, s.Symbol)
		if err != nil {
			log.Printf("[WARN] [collector] %s (%s) unavailable: %v", s.Label, s.Symbol, err)
			quotes = append(quotes, model.Unavailable{Label: s.Label, Symbol: s.Symbol, Reason: err.Error()})
			continue
		}
		quotes = append(quotes, model.Available{Label: s.Label, Symbol: s.Symbol, Price: price, PreviousClose: prev})
	}
	return quotes
}
