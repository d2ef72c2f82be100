// Package render draws the report slides that make up the video frames.
package render

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"MarketReel/internal/report"
)

// Slide names, in display order. Each is also the template file stem.
const (
	SlideCover   = "cover"
	SlideDate    = "date"
	SlideSummary = "summary"
	SlideNews    = "news"
)

const (
	bgColor      = "#ffffff"
	textColor    = "#111111"
	titleColor   = "#2b9348"
	bullishColor = "#2b9348"
	bearishColor = "#d00000"
	mutedColor   = "#6c757d"
)

// CoverGenerator produces an illustration for the top headline.
type CoverGenerator interface {
	Generate(ctx context.Context, headline, outPath string) error
}

// Renderer draws slides onto template images or a plain canvas.
type Renderer struct {
	TemplateDir string
	FontPath    string
	Width       int
	Height      int
	// Cover is optional. A failed cover is skipped, not fatal.
	Cover CoverGenerator
}

// NewRenderer creates a Renderer with 1280x720 as the canvas fallback.
func NewRenderer(templateDir, fontPath string, width, height int) *Renderer {
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	return &Renderer{TemplateDir: templateDir, FontPath: fontPath, Width: width, Height: height}
}

// Render writes the slides for rep into dir and returns their paths.
func (r *Renderer) Render(ctx context.Context, rep *report.Report, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create slide dir: %w", err)
	}
	var paths []string

	if r.Cover != nil && len(rep.News) > 0 {
		p := filepath.Join(dir, SlideCover+".png")
		if err := r.Cover.Generate(ctx, rep.News[0].Title, p); err != nil {
			log.Printf("[WARN] [render] cover image skipped: %v", err)
		} else {
			paths = append(paths, p)
		}
	}

	for _, s := range []struct {
		name string
		draw func(*gg.Context)
	}{
		{SlideDate, func(dc *gg.Context) { r.drawDate(dc, rep) }},
		{SlideSummary, func(dc *gg.Context) { r.drawSummary(dc, rep) }},
		{SlideNews, func(dc *gg.Context) { r.drawNews(dc, rep) }},
	} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dc := r.canvas(s.name)
		s.draw(dc)
		p := filepath.Join(dir, s.name+".png")
		if err := dc.SavePNG(p); err != nil {
			return nil, fmt.Errorf("save %s slide: %w", s.name, err)
		}
		log.Printf("[INFO] [render] slide saved: %s", p)
		paths = append(paths, p)
	}
	return paths, nil
}

// canvas starts from {TemplateDir}/{name}.png when present.
func (r *Renderer) canvas(name string) *gg.Context {
	if r.TemplateDir != "" {
		p := filepath.Join(r.TemplateDir, name+".png")
		if img, err := gg.LoadImage(p); err == nil {
			return gg.NewContextForImage(img)
		} else if !os.IsNotExist(err) {
			log.Printf("[WARN] [render] template %s unusable: %v", p, err)
		}
	}
	dc := gg.NewContext(r.Width, r.Height)
	dc.SetHexColor(bgColor)
	dc.Clear()
	return dc
}

func (r *Renderer) face(points float64) font.Face {
	if r.FontPath != "" {
		f, err := gg.LoadFontFace(r.FontPath, points)
		if err == nil {
			return f
		}
		log.Printf("[WARN] [render] font %s: %v, using built-in face", r.FontPath, err)
	}
	return basicfont.Face7x13
}

func (r *Renderer) drawDate(dc *gg.Context, rep *report.Report) {
	w, h := float64(dc.Width()), float64(dc.Height())
	dc.SetFontFace(r.face(80))
	dc.SetHexColor(titleColor)
	dc.DrawStringAnchored("Pre-Market Report", w/2, h*0.4, 0.5, 0.5)
	dc.SetFontFace(r.face(64))
	dc.SetHexColor(textColor)
	dc.DrawStringAnchored(rep.Date, w/2, h*0.6, 0.5, 0.5)
}

func (r *Renderer) drawSummary(dc *gg.Context, rep *report.Report) {
	w := float64(dc.Width())
	dc.SetFontFace(r.face(56))
	dc.SetHexColor(titleColor)
	dc.DrawStringAnchored("Market Summary", w/2, 80, 0.5, 0.5)

	dc.SetFontFace(r.face(34))
	lineH := dc.FontHeight() * 1.6
	y := 170.0
	for _, section := range [][]report.Line{rep.Domestic, rep.Global} {
		for _, l := range section {
			dc.SetHexColor(textColor)
			dc.DrawStringAnchored(l.Label, 80, y, 0, 0.5)
			dc.SetHexColor(sentimentColor(l.Sentiment))
			dc.DrawStringAnchored(l.Value(), w-80, y, 1, 0.5)
			y += lineH
		}
		y += lineH / 2
	}
}

func (r *Renderer) drawNews(dc *gg.Context, rep *report.Report) {
	w := float64(dc.Width())
	dc.SetFontFace(r.face(56))
	dc.SetHexColor(titleColor)
	dc.DrawStringAnchored("Top Market News", w/2, 80, 0.5, 0.5)

	dc.SetFontFace(r.face(40))
	dc.SetHexColor(textColor)
	lineH := dc.FontHeight() * 1.5
	y := 180.0
	headlines := rep.Headlines()
	if len(headlines) == 0 {
		headlines = []string{"No news available."}
	}
	for i, h := range headlines {
		for _, line := range dc.WordWrap(fmt.Sprintf("%d. %s", i+1, h), w-160) {
			if y > float64(dc.Height())-40 {
				return
			}
			dc.DrawString(line, 80, y)
			y += lineH
		}
		y += 20
	}
}

func sentimentColor(s report.Sentiment) string {
	switch s {
	case report.Bullish:
		return bullishColor
	case report.Bearish:
		return bearishColor
	case report.Unknown:
		return mutedColor
	}
	return textColor
}
