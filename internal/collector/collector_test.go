package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"MarketReel/internal/model"
)

func TestYahooFetcher_FetchQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Mozilla/5.0", r.Header.Get("User-Agent"))
		require.Equal(t, "2m", r.URL.Query().Get("interval"))
		switch {
		case strings.HasSuffix(r.URL.Path, "/%5ENSEI"), strings.HasSuffix(r.URL.Path, "/^NSEI"):
			w.Write([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":24512.4,"previousClose":24390.1}}],"error":null}}`))
		case strings.HasSuffix(r.URL.Path, "/BAD"):
			w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("boom"))
		}
	}))
	defer srv.Close()

	f := NewYahooFetcher("IN", "")
	f.BaseURL = srv.URL + "/"

	price, prev, err := f.FetchQuote(context.Background(), "^NSEI")
	require.NoError(t, err)
	require.Equal(t, "24512.4", price.String())
	require.Equal(t, "24390.1", prev.String())

	_, _, err = f.FetchQuote(context.Background(), "BAD")
	require.ErrorContains(t, err, "No data found")

	_, _, err = f.FetchQuote(context.Background(), "DOWN")
	require.ErrorContains(t, err, "status 500")
}

func TestYahooFetcher_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"chart":`))
	}))
	defer srv.Close()

	f := NewYahooFetcher("", "")
	f.BaseURL = srv.URL + "/"
	_, _, err := f.FetchQuote(context.Background(), "X")
	require.ErrorContains(t, err, "malformed")
}

func TestCollect_DegradesPerQuote(t *testing.T) {
	m := &MockFetcher{
		Prices: map[string][2]float64{
			"^BSESN":   {80000, 79900},
			"^NSEBANK": {52000, 52100},
		},
		Errors: map[string]error{"^NSEI": errors.New("timeout")},
	}
	c := NewCollector(m)

	quotes := c.Collect(context.Background(), []model.IndexSpec{
		{Symbol: "^NSEI", Label: "NIFTY"},
		{Symbol: "^BSESN", Label: "SENSEX"},
		{Symbol: "^NSEBANK", Label: "BANK NIFTY"},
	})

	require.Len(t, quotes, 3)
	require.Equal(t, []string{"^NSEI", "^BSESN", "^NSEBANK"}, m.Calls)

	u, ok := quotes[0].(model.Unavailable)
	require.True(t, ok)
	require.Equal(t, "NIFTY", u.Label)
	require.Equal(t, "timeout", u.Reason)

	a, ok := quotes[1].(model.Available)
	require.True(t, ok)
	require.Equal(t, "100", a.Change().String())
}
