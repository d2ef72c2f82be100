package render

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fogleman/gg"
	"github.com/openai/openai-go/option"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"MarketReel/internal/model"
	"MarketReel/internal/report"
)

func sampleReport() *report.Report {
	return report.Build("15 Oct 2026",
		[]model.Quote{
			model.Available{Label: "NIFTY 50", Price: decimal.NewFromInt(24500), PreviousClose: decimal.NewFromInt(24300)},
			model.Unavailable{Label: "SENSEX", Reason: "timeout"},
		},
		[]model.Quote{
			model.Available{Label: "Dow Jones", Price: decimal.NewFromInt(42000), PreviousClose: decimal.NewFromInt(42500)},
		},
		[]model.NewsItem{{Title: "RBI holds repo rate at 6.5% as inflation cools across food and fuel baskets"}},
	)
}

func decode(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func TestRender_PlainCanvas(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer("", "", 0, 0)

	paths, err := r.Render(context.Background(), sampleReport(), dir)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "date.png"),
		filepath.Join(dir, "summary.png"),
		filepath.Join(dir, "news.png"),
	}, paths)

	img := decode(t, paths[1])
	require.Equal(t, image.Rect(0, 0, 1280, 720), img.Bounds())
}

func TestRender_UsesTemplate(t *testing.T) {
	tpl := t.TempDir()
	dc := gg.NewContext(640, 360)
	dc.SetColor(color.Black)
	dc.Clear()
	require.NoError(t, dc.SavePNG(filepath.Join(tpl, "news.png")))

	out := t.TempDir()
	r := NewRenderer(tpl, filepath.Join(tpl, "missing.ttf"), 1280, 720)
	paths, err := r.Render(context.Background(), sampleReport(), out)
	require.NoError(t, err)

	require.Equal(t, image.Rect(0, 0, 640, 360), decode(t, paths[2]).Bounds())
	require.Equal(t, image.Rect(0, 0, 1280, 720), decode(t, paths[0]).Bounds())
}

type fakeCover struct{ err error }

func (f fakeCover) Generate(_ context.Context, _ string, outPath string) error {
	if f.err != nil {
		return f.err
	}
	return gg.NewContext(16, 9).SavePNG(outPath)
}

func TestRender_Cover(t *testing.T) {
	r := NewRenderer("", "", 320, 180)
	r.Cover = fakeCover{}
	paths, err := r.Render(context.Background(), sampleReport(), t.TempDir())
	require.NoError(t, err)
	require.Len(t, paths, 4)
	require.Equal(t, "cover.png", filepath.Base(paths[0]))

	r.Cover = fakeCover{err: errors.New("content policy")}
	paths, err = r.Render(context.Background(), sampleReport(), t.TempDir())
	require.NoError(t, err)
	require.Len(t, paths, 3)
}

func TestOpenAICover_Generate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/images/generations", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"created": 1760000000,
			"data":    []map[string]any{{"b64_json": base64.StdEncoding.EncodeToString([]byte("PNGDATA"))}},
		})
	}))
	defer srv.Close()

	c := NewOpenAICover("k", srv.URL+"/", "", option.WithMaxRetries(0))
	out := filepath.Join(t.TempDir(), "cover.png")
	require.NoError(t, c.Generate(context.Background(), "RBI holds repo rate", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "PNGDATA", string(data))
	require.Equal(t, "dall-e-3", body["model"])
	require.Equal(t, "b64_json", body["response_format"])
	require.Contains(t, body["prompt"], "RBI holds repo rate")
}
