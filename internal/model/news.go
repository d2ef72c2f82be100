package model

// NewsItem is one filtered headline with its (truncated) body.
type NewsItem struct {
	Title       string
	PublishedAt string
	Content     string
	Link        string
}
