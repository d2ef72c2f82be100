package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const yahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// YahooFetcher implements Fetcher using Yahoo Finance public chart API.
type YahooFetcher struct {
	BaseURL string
	Region  string
	Client  *http.Client
}

// NewYahooFetcher creates a new Yahoo Finance fetcher with optional proxy support.
func NewYahooFetcher(region, proxyURL string) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooFetcher{
		BaseURL: yahooChartURL,
		Region:  region,
		Client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// FetchQuote reads regularMarketPrice and previousClose from the chart meta block.
func (f *YahooFetcher) FetchQuote(ctx context.Context, symbol string) (decimal.Decimal, decimal.Decimal, error) {
	q := url.Values{}
	q.Set("interval", "2m")
	q.Set("range", "1d")
	q.Set("includePrePost", "false")
	if f.Region != "" {
		q.Set("region", f.Region)
	}
	u := f.BaseURL + url.PathEscape(symbol) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, decimal.Zero, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, truncate(string(body), 200))
	}
	if !gjson.ValidBytes(body) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("yahoo: malformed response")
	}

	if desc := gjson.GetBytes(body, "chart.error.description"); desc.Exists() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("yahoo api error: %s", desc.String())
	}
	meta := gjson.GetBytes(body, "chart.result.0.meta")
	if !meta.Exists() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("yahoo: no data returned")
	}
	price := meta.Get("regularMarketPrice")
	prev := meta.Get("previousClose")
	if !prev.Exists() {
		prev = meta.Get("chartPreviousClose")
	}
	if price.Type != gjson.Number || prev.Type != gjson.Number {
		return decimal.Zero, decimal.Zero, fmt.Errorf("yahoo: price fields missing for %s", symbol)
	}
	return decimal.NewFromFloat(price.Float()), decimal.NewFromFloat(prev.Float()), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
