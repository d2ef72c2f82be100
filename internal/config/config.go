package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"MarketReel/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken     string        `yaml:"bot_token"`
		ChatID       string        `yaml:"chat_id"`
		PollTimeout  time.Duration `yaml:"poll_timeout"`
		RetryBackoff time.Duration `yaml:"retry_backoff"`
		APIBase      string        `yaml:"api_base"`
	} `yaml:"telegram"`
	Approval struct {
		Enabled     bool     `yaml:"enabled"`
		Affirmative []string `yaml:"affirmative"`
		Negative    []string `yaml:"negative"`
	} `yaml:"approval"`
	Pipeline struct {
		WorkDir             string `yaml:"work_dir"`
		LockFile            string `yaml:"lock_file"`
		MaxGenerateFailures int    `yaml:"max_generate_failures"`
	} `yaml:"pipeline"`
	State struct {
		Backend    string `yaml:"backend"` // "file" or "sqlite"
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"state"`
	Market struct {
		Domestic []model.IndexSpec `yaml:"domestic"`
		Global   []model.IndexSpec `yaml:"global"`
		Region   string            `yaml:"region"`
	} `yaml:"market"`
	News struct {
		FeedURL        string   `yaml:"feed_url"`
		Limit          int      `yaml:"limit"`
		DenyList       []string `yaml:"deny_list"`
		ScrapeArticles bool     `yaml:"scrape_articles"`
	} `yaml:"news"`
	Script struct {
		APIKey      string  `yaml:"api_key"`
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"script"`
	Speech struct {
		Region  string `yaml:"region"`
		VoiceID string `yaml:"voice_id"`
	} `yaml:"speech"`
	Render struct {
		TemplateDir string `yaml:"template_dir"`
		FontPath    string `yaml:"font_path"`
		Width       int    `yaml:"width"`
		Height      int    `yaml:"height"`
		CoverImage  bool   `yaml:"cover_image"`
		CoverModel  string `yaml:"cover_model"`
	} `yaml:"render"`
	Video struct {
		FFmpegPath  string `yaml:"ffmpeg_path"`
		FFprobePath string `yaml:"ffprobe_path"`
	} `yaml:"video"`
	Upload struct {
		Enabled      bool     `yaml:"enabled"`
		ClientID     string   `yaml:"client_id"`
		ClientSecret string   `yaml:"client_secret"`
		RefreshToken string   `yaml:"refresh_token"`
		Privacy      string   `yaml:"privacy"`
		CategoryID   string   `yaml:"category_id"`
		Tags         []string `yaml:"tags"`
	} `yaml:"upload"`
	Schedule struct {
		RunCron string `yaml:"run_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Server struct {
		BindAddr string `yaml:"bind_addr"`
	} `yaml:"server"`
	Proxy string `yaml:"proxy"`
}

// DefaultDenyList drops speculative and technical-analysis headlines.
var DefaultDenyList = []string{
	"stocks to buy",
	"stocks to sell",
	"buy or sell",
	"technical analysis",
	"stock picks",
	"trading ideas",
	"target price",
	"multibagger",
	"stocks to watch",
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Approval.Enabled = true

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("APPROVAL_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Approval.Enabled = b
		}
	}
	if v := os.Getenv("WORK_DIR"); v != "" {
		cfg.Pipeline.WorkDir = v
	}
	if v := os.Getenv("MAX_GENERATE_FAILURES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.MaxGenerateFailures = n
		}
	}
	if v := os.Getenv("STATE_BACKEND"); v != "" {
		cfg.State.Backend = v
	}
	if v := os.Getenv("NEWS_FEED_URL"); v != "" {
		cfg.News.FeedURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Script.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Script.BaseURL = v
	}
	if v := os.Getenv("POLLY_VOICE_ID"); v != "" {
		cfg.Speech.VoiceID = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" && cfg.Speech.Region == "" {
		cfg.Speech.Region = v
	}
	if v := os.Getenv("YOUTUBE_CLIENT_ID"); v != "" {
		cfg.Upload.ClientID = v
	}
	if v := os.Getenv("YOUTUBE_CLIENT_SECRET"); v != "" {
		cfg.Upload.ClientSecret = v
	}
	if v := os.Getenv("YOUTUBE_REFRESH_TOKEN"); v != "" {
		cfg.Upload.RefreshToken = v
	}
	if v := os.Getenv("CRON_RUN"); v != "" {
		cfg.Schedule.RunCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("BIND_ADDR"); v != "" {
		cfg.Server.BindAddr = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Telegram.PollTimeout == 0 {
		cfg.Telegram.PollTimeout = 30 * time.Second
	}
	if cfg.Telegram.RetryBackoff == 0 {
		cfg.Telegram.RetryBackoff = 5 * time.Second
	}
	if cfg.Telegram.APIBase == "" {
		cfg.Telegram.APIBase = "https://api.telegram.org"
	}
	if len(cfg.Approval.Affirmative) == 0 {
		cfg.Approval.Affirmative = []string{"yes"}
	}
	if len(cfg.Approval.Negative) == 0 {
		cfg.Approval.Negative = []string{"no"}
	}
	if cfg.Pipeline.WorkDir == "" {
		cfg.Pipeline.WorkDir = "output"
	}
	if cfg.Pipeline.LockFile == "" {
		cfg.Pipeline.LockFile = cfg.Pipeline.WorkDir + "/.lock"
	}
	if cfg.Pipeline.MaxGenerateFailures == 0 {
		cfg.Pipeline.MaxGenerateFailures = 3
	}
	if cfg.State.Backend == "" {
		cfg.State.Backend = "file"
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = cfg.Pipeline.WorkDir + "/state.db"
	}
	if len(cfg.Market.Domestic) == 0 {
		cfg.Market.Domestic = []model.IndexSpec{
			{Symbol: "^NSEI", Label: "NIFTY 50"},
			{Symbol: "^BSESN", Label: "SENSEX"},
			{Symbol: "^NSEBANK", Label: "BANK NIFTY"},
		}
	}
	if len(cfg.Market.Global) == 0 {
		cfg.Market.Global = []model.IndexSpec{
			{Symbol: "^DJI", Label: "Dow Jones"},
			{Symbol: "^IXIC", Label: "Nasdaq"},
			{Symbol: "^FTSE", Label: "FTSE 100"},
			{Symbol: "^GDAXI", Label: "DAX"},
			{Symbol: "^N225", Label: "Nikkei 225"},
		}
	}
	if cfg.Market.Region == "" {
		cfg.Market.Region = "IN"
	}
	if cfg.News.FeedURL == "" {
		cfg.News.FeedURL = "https://economictimes.indiatimes.com/markets/rssfeeds/1977021501.cms"
	}
	if cfg.News.Limit == 0 {
		cfg.News.Limit = 5
	}
	if len(cfg.News.DenyList) == 0 {
		cfg.News.DenyList = DefaultDenyList
	}
	if cfg.Script.Model == "" {
		cfg.Script.Model = "gpt-4o"
	}
	if cfg.Script.Temperature == 0 {
		cfg.Script.Temperature = 0.8
	}
	if cfg.Speech.Region == "" {
		cfg.Speech.Region = "ap-south-1"
	}
	if cfg.Speech.VoiceID == "" {
		cfg.Speech.VoiceID = "Kajal"
	}
	if cfg.Render.Width == 0 {
		cfg.Render.Width = 1280
	}
	if cfg.Render.Height == 0 {
		cfg.Render.Height = 720
	}
	if cfg.Render.CoverModel == "" {
		cfg.Render.CoverModel = "dall-e-3"
	}
	if cfg.Video.FFmpegPath == "" {
		cfg.Video.FFmpegPath = "ffmpeg"
	}
	if cfg.Video.FFprobePath == "" {
		cfg.Video.FFprobePath = "ffprobe"
	}
	if cfg.Upload.Privacy == "" {
		cfg.Upload.Privacy = "public"
	}
	if cfg.Upload.CategoryID == "" {
		cfg.Upload.CategoryID = "22"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = cfg.Pipeline.WorkDir + "/marketreel.db"
	}
	if cfg.Server.BindAddr == "" {
		cfg.Server.BindAddr = "127.0.0.1:8080"
	}
	for i, tok := range cfg.Approval.Affirmative {
		cfg.Approval.Affirmative[i] = strings.ToLower(strings.TrimSpace(tok))
	}
	for i, tok := range cfg.Approval.Negative {
		cfg.Approval.Negative[i] = strings.ToLower(strings.TrimSpace(tok))
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	if c.Script.APIKey == "" {
		return fmt.Errorf("script.api_key is required")
	}
	if c.Pipeline.MaxGenerateFailures < 0 {
		return fmt.Errorf("pipeline.max_generate_failures cannot be negative")
	}
	if c.News.Limit <= 0 {
		return fmt.Errorf("news.limit must be positive")
	}
	switch c.State.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("state.backend must be \"file\" or \"sqlite\", got %q", c.State.Backend)
	}
	for _, a := range c.Approval.Affirmative {
		for _, n := range c.Approval.Negative {
			if a == n {
				return fmt.Errorf("approval token %q is both affirmative and negative", a)
			}
		}
	}
	if c.Upload.Enabled && (c.Upload.ClientID == "" || c.Upload.ClientSecret == "" || c.Upload.RefreshToken == "") {
		return fmt.Errorf("upload.client_id, upload.client_secret and upload.refresh_token are required when upload is enabled")
	}
	return nil
}
