package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"MarketReel/internal/config"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "APPROVAL_ENABLED",
		"WORK_DIR", "MAX_GENERATE_FAILURES", "STATE_BACKEND", "NEWS_FEED_URL",
		"OPENAI_API_KEY", "OPENAI_BASE_URL", "POLLY_VOICE_ID", "AWS_REGION",
		"YOUTUBE_CLIENT_ID", "YOUTUBE_CLIENT_SECRET", "YOUTUBE_REFRESH_TOKEN",
		"CRON_RUN", "SQLITE_PATH", "BIND_ADDR", "HTTPS_PROXY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	require.True(t, cfg.Approval.Enabled)
	require.Equal(t, []string{"yes"}, cfg.Approval.Affirmative)
	require.Equal(t, []string{"no"}, cfg.Approval.Negative)
	require.Equal(t, 30*time.Second, cfg.Telegram.PollTimeout)
	require.Equal(t, 5*time.Second, cfg.Telegram.RetryBackoff)
	require.Equal(t, "output", cfg.Pipeline.WorkDir)
	require.Equal(t, "output/.lock", cfg.Pipeline.LockFile)
	require.Equal(t, 3, cfg.Pipeline.MaxGenerateFailures)
	require.Equal(t, "file", cfg.State.Backend)
	require.Len(t, cfg.Market.Domestic, 3)
	require.Equal(t, "NIFTY 50", cfg.Market.Domestic[0].Label)
	require.Len(t, cfg.Market.Global, 5)
	require.Equal(t, 5, cfg.News.Limit)
	require.Contains(t, cfg.News.DenyList, "stocks to buy")
	require.Equal(t, "Kajal", cfg.Speech.VoiceID)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
telegram:
  bot_token: file-token
  chat_id: "42"
  poll_timeout: 10s
approval:
  enabled: false
  affirmative: [" YES ", "ok"]
pipeline:
  work_dir: /tmp/reel
  max_generate_failures: 7
news:
  limit: 2
market:
  domestic:
    - symbol: "^NSEI"
      label: NIFTY
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	t.Setenv("TELEGRAM_CHAT_ID", "99")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, "file-token", cfg.Telegram.BotToken)
	require.Equal(t, "99", cfg.Telegram.ChatID)
	require.Equal(t, 10*time.Second, cfg.Telegram.PollTimeout)
	require.False(t, cfg.Approval.Enabled)
	require.Equal(t, []string{"yes", "ok"}, cfg.Approval.Affirmative)
	require.Equal(t, "/tmp/reel", cfg.Pipeline.WorkDir)
	require.Equal(t, "/tmp/reel/.lock", cfg.Pipeline.LockFile)
	require.Equal(t, 7, cfg.Pipeline.MaxGenerateFailures)
	require.Equal(t, 2, cfg.News.Limit)
	require.Len(t, cfg.Market.Domestic, 1)
	require.Equal(t, "sk-test", cfg.Script.APIKey)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.ErrorContains(t, cfg.Validate(), "bot_token")

	cfg.Telegram.BotToken = "t"
	cfg.Telegram.ChatID = "1"
	cfg.Script.APIKey = "k"
	require.NoError(t, cfg.Validate())

	cfg.Approval.Negative = []string{"yes"}
	require.ErrorContains(t, cfg.Validate(), "both affirmative and negative")

	cfg.Approval.Negative = []string{"no"}
	cfg.State.Backend = "redis"
	require.ErrorContains(t, cfg.Validate(), "state.backend")

	cfg.State.Backend = "sqlite"
	cfg.Upload.Enabled = true
	require.ErrorContains(t, cfg.Validate(), "upload")
}
