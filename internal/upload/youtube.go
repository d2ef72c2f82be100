// Package upload publishes the approved video to YouTube.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Config holds the OAuth client and video defaults.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Privacy      string
	CategoryID   string
	Tags         []string
}

// YouTube uploads videos with a stored refresh token.
type YouTube struct {
	cfg  Config
	opts []option.ClientOption
}

// NewYouTube creates an uploader. Extra client options are for tests.
func NewYouTube(cfg Config, opts ...option.ClientOption) (*YouTube, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("youtube client id, client secret and refresh token are required")
	}
	if cfg.Privacy == "" {
		cfg.Privacy = "public"
	}
	if cfg.CategoryID == "" {
		cfg.CategoryID = "22"
	}
	return &YouTube{cfg: cfg, opts: opts}, nil
}

// Upload sends videoPath and returns the watch URL.
func (y *YouTube) Upload(ctx context.Context, videoPath, title, description string) (string, error) {
	svc, err := y.service(ctx)
	if err != nil {
		return "", err
	}

	f, err := os.Open(videoPath)
	if err != nil {
		return "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       Clip(title, 100),
			Description: Clip(description, 5000),
			Tags:        y.cfg.Tags,
			CategoryId:  y.cfg.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: y.cfg.Privacy,
		},
	}

	log.Printf("[INFO] [upload] uploading %q", video.Snippet.Title)
	uploaded, err := svc.Videos.Insert([]string{"snippet", "status"}, video).Media(f).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("youtube upload: %w", err)
	}
	url := "https://www.youtube.com/watch?v=" + uploaded.Id
	log.Printf("[INFO] [upload] uploaded: %s", url)
	return url, nil
}

func (y *YouTube) service(ctx context.Context) (*youtube.Service, error) {
	if len(y.opts) > 0 {
		return youtube.NewService(ctx, y.opts...)
	}
	conf := &oauth2.Config{
		ClientID:     y.cfg.ClientID,
		ClientSecret: y.cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope},
	}
	token := &oauth2.Token{
		RefreshToken: y.cfg.RefreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	client := oauth2.NewClient(ctx, conf.TokenSource(ctx, token))
	svc, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return svc, nil
}

// Clip shortens s to at most n runes. YouTube rejects longer titles and
// descriptions.
func Clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
