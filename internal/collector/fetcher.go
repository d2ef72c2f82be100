package collector

import (
	"context"

	"github.com/shopspring/decimal"
)

// Fetcher defines the interface for fetching a single index quote.
type Fetcher interface {
	FetchQuote(ctx context.Context, symbol string) (price, previousClose decimal.Decimal, err error)
	Name() string
}
