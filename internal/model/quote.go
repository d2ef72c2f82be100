package model

import "github.com/shopspring/decimal"

// IndexSpec names one index to quote in the report.
type IndexSpec struct {
	Symbol string `yaml:"symbol"`
	Label  string `yaml:"label"`
}

// Quote is either Available or Unavailable. Only Available carries numbers.
type Quote interface {
	QuoteLabel() string
	quote()
}

// Available is a successfully fetched quote.
type Available struct {
	Label         string
	Symbol        string
	Price         decimal.Decimal
	PreviousClose decimal.Decimal
}

func (a Available) QuoteLabel() string { return a.Label }
func (Available) quote()                {}

// Change returns price minus previous close.
func (a Available) Change() decimal.Decimal {
	return a.Price.Sub(a.PreviousClose)
}

// ChangePercent returns the change relative to the previous close, in percent.
// A zero previous close yields zero.
func (a Available) ChangePercent() decimal.Decimal {
	if a.PreviousClose.IsZero() {
		return decimal.Zero
	}
	return a.Change().Div(a.PreviousClose).Mul(decimal.NewFromInt(100))
}

// Unavailable stands in for a quote that could not be fetched.
type Unavailable struct {
	Label  string
	Symbol string
	Reason string
}

func (u Unavailable) QuoteLabel() string { return u.Label }
func (Unavailable) quote()                {}
