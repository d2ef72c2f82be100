package news

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"MarketReel/internal/model"
)

const (
	articleMaxRunes = 600
	summaryMaxRunes = 300
)

// Source fetches market headlines from an RSS feed and optionally scrapes
// each article page for its body text.
type Source struct {
	FeedURL  string
	DenyList []string
	Scrape   bool
	Client   *http.Client
}

// NewSource creates a news Source with optional proxy support.
func NewSource(feedURL string, denyList []string, scrape bool, proxyURL string) *Source {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &Source{
		FeedURL:  feedURL,
		DenyList: denyList,
		Scrape:   scrape,
		Client: &http.Client{
			Timeout:   15 * time.Second,
			Transport: transport,
		},
	}
}

// Headlines returns up to limit filtered items in feed order. A limit of
// zero or less yields no items and skips the fetch.
func (s *Source) Headlines(ctx context.Context, limit int) ([]model.NewsItem, error) {
	if limit <= 0 {
		return []model.NewsItem{}, nil
	}
	parser := gofeed.NewParser()
	parser.Client = s.Client
	parser.UserAgent = "Mozilla/5.0"

	feed, err := parser.ParseURLWithContext(s.FeedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return s.fromFeed(ctx, feed, limit), nil
}

func (s *Source) fromFeed(ctx context.Context, feed *gofeed.Feed, limit int) []model.NewsItem {
	items := make([]model.NewsItem, 0, limit)
	for _, entry := range feed.Items {
		if len(items) >= limit {
			break
		}
		if entry == nil {
			continue
		}
		title := strings.TrimSpace(entry.Title)
		if title == "" {
			continue
		}
		if Denied(title, s.DenyList) {
			log.Printf("[INFO] [news] skipping deny-listed headline: %s", title)
			continue
		}

		item := model.NewsItem{
			Title:       title,
			PublishedAt: entry.Published,
			Link:        entry.Link,
		}

		var body string
		if s.Scrape && entry.Link != "" {
			text, err := s.scrapeArticle(ctx, entry.Link)
			if err != nil {
				log.Printf("[WARN] [news] scrape %s: %v, using summary", entry.Link, err)
			} else {
				body = CleanBody(text)
			}
		}
		if body != "" {
			item.Content = Truncate(body, articleMaxRunes)
		} else {
			summary := strings.TrimSpace(stripTags(entry.Description))
			if summary == "" {
				summary = "Content unavailable"
			}
			item.Content = Truncate(summary, summaryMaxRunes)
		}
		items = append(items, item)
	}
	return items
}

func (s *Source) scrapeArticle(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	resp, err := s.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	sel := doc.Find("article p")
	if sel.Length() == 0 {
		sel = doc.Find("p")
	}
	var lines []string
	sel.Each(func(_ int, p *goquery.Selection) {
		if t := strings.TrimSpace(p.Text()); t != "" {
			lines = append(lines, t)
		}
	})
	if len(lines) == 0 {
		return "", fmt.Errorf("no article text")
	}
	return strings.Join(lines, "\n"), nil
}

// stripTags flattens an HTML fragment (RSS descriptions often carry markup).
func stripTags(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return fragment
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return doc.Text()
}
