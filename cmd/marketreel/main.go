package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"MarketReel/internal/approval"
	"MarketReel/internal/collector"
	"MarketReel/internal/config"
	"MarketReel/internal/lock"
	"MarketReel/internal/news"
	"MarketReel/internal/notifier"
	"MarketReel/internal/pipeline"
	"MarketReel/internal/recorder"
	"MarketReel/internal/render"
	"MarketReel/internal/scheduler"
	"MarketReel/internal/script"
	"MarketReel/internal/server"
	"MarketReel/internal/speech"
	"MarketReel/internal/state"
	"MarketReel/internal/upload"
	"MarketReel/internal/video"
)

const usage = `usage: marketreel [run|serve|status|unlock]

  run     perform one gated run and exit
  serve   schedule runs and expose the admin API
  status  print the persisted pipeline state
  unlock  clear a run lock left by a crashed run`

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	mode := "run"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] load .env: %v", err)
	}
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}

	switch mode {
	case "unlock":
		unlock(cfg)
		return
	case "status":
		status(cfg)
		return
	case "run", "serve":
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg)
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	var code int
	if mode == "run" {
		code = runOnce(ctx, cfg, app)
	} else {
		code = serve(ctx, cfg, app)
	}
	app.close()
	stop()
	if code != 0 {
		os.Exit(code)
	}
}

// runOnce performs one run and returns the process exit code. It never
// exits by itself so the caller can close the stores first.
func runOnce(ctx context.Context, cfg *config.Config, a *app) int {
	log.Println("[INFO] MarketReel run starting...")
	res, err := a.runner.Run(ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrLocked) {
			log.Printf("[FATAL] %v (lock file %s); clear it with `marketreel unlock`", err, cfg.Pipeline.LockFile)
		} else {
			log.Printf("[FATAL] run failed: %v", err)
		}
		return 1
	}
	log.Printf("[INFO] run %s done: %s", res.RunID, res.Video)
	return 0
}

type app struct {
	runner   *pipeline.Runner
	notifier *notifier.TelegramNotifier
	store    state.Store
	recorder recorder.Recorder
	lock     *lock.RunLock
}

func (a *app) close() {
	if err := a.recorder.Close(); err != nil {
		log.Printf("[WARN] close recorder: %v", err)
	}
	if err := a.store.Close(); err != nil {
		log.Printf("[WARN] close state store: %v", err)
	}
}

func build(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] state backend: %s", cfg.State.Backend)

	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	partial := &app{store: store, recorder: rec}

	tn := notifier.NewTelegramNotifier(cfg.Telegram.APIBase, cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)

	fetcher := collector.NewYahooFetcher(cfg.Market.Region, cfg.Proxy)
	log.Printf("[INFO] data source: %s", fetcher.Name())

	synth, err := speech.NewSynthesizer(ctx, cfg.Speech.Region, cfg.Speech.VoiceID)
	if err != nil {
		partial.close()
		return nil, fmt.Errorf("init speech: %w", err)
	}

	slides := render.NewRenderer(cfg.Render.TemplateDir, cfg.Render.FontPath, cfg.Render.Width, cfg.Render.Height)
	if cfg.Render.CoverImage {
		slides.Cover = render.NewOpenAICover(cfg.Script.APIKey, cfg.Script.BaseURL, cfg.Render.CoverModel)
	}

	runLock := lock.New(cfg.Pipeline.LockFile)
	deps := pipeline.Deps{
		Lock:      runLock,
		Notifier:  tn,
		Store:     store,
		Recorder:  rec,
		Collector: collector.NewCollector(fetcher),
		News:      news.NewSource(cfg.News.FeedURL, cfg.News.DenyList, cfg.News.ScrapeArticles, cfg.Proxy),
		Script: script.NewWriter(script.Config{
			APIKey:      cfg.Script.APIKey,
			BaseURL:     cfg.Script.BaseURL,
			Model:       cfg.Script.Model,
			Temperature: cfg.Script.Temperature,
		}),
		Speech: synth,
		Slides: slides,
		Video:  video.NewAssembler(cfg.Video.FFmpegPath, cfg.Video.FFprobePath, cfg.Render.Width, cfg.Render.Height),
	}
	if cfg.Upload.Enabled {
		yt, err := upload.NewYouTube(upload.Config{
			ClientID:     cfg.Upload.ClientID,
			ClientSecret: cfg.Upload.ClientSecret,
			RefreshToken: cfg.Upload.RefreshToken,
			Privacy:      cfg.Upload.Privacy,
			CategoryID:   cfg.Upload.CategoryID,
			Tags:         cfg.Upload.Tags,
		})
		if err != nil {
			partial.close()
			return nil, fmt.Errorf("init uploader: %w", err)
		}
		deps.Uploader = yt
	}

	opts := pipeline.Options{
		WorkDir:             cfg.Pipeline.WorkDir,
		Domestic:            cfg.Market.Domestic,
		Global:              cfg.Market.Global,
		NewsLimit:           cfg.News.Limit,
		MaxGenerateFailures: cfg.Pipeline.MaxGenerateFailures,
		Affirmative:         cfg.Approval.Affirmative[0],
		Negative:            cfg.Approval.Negative[0],
	}

	// The gate reports decisive replies to the runner, which is built after it.
	var runner *pipeline.Runner
	if cfg.Approval.Enabled {
		deps.Approver = approval.NewGate(tn, store, approval.Options{
			ChatID:       cfg.Telegram.ChatID,
			Affirmative:  cfg.Approval.Affirmative,
			Negative:     cfg.Approval.Negative,
			PollWait:     cfg.Telegram.PollTimeout,
			RetryBackoff: cfg.Telegram.RetryBackoff,
			Observer: func(m approval.Message, approved bool) {
				runner.ObserveReply(m, approved)
			},
		})
	} else {
		log.Println("[INFO] approval disabled, every stage auto-approves")
		deps.Approver = pipeline.AutoApprover{}
	}
	runner = pipeline.NewRunner(deps, opts)

	partial.runner, partial.notifier, partial.lock = runner, tn, runLock
	return partial, nil
}

func openStore(cfg *config.Config) (state.Store, error) {
	switch cfg.State.Backend {
	case "sqlite":
		s, err := state.NewSQLiteStore(cfg.State.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite state: %w", err)
		}
		return s, nil
	default:
		s, err := state.NewFileStore(cfg.Pipeline.WorkDir)
		if err != nil {
			return nil, fmt.Errorf("open file state: %w", err)
		}
		return s, nil
	}
}

func serve(ctx context.Context, cfg *config.Config, a *app) int {
	sched := scheduler.NewScheduler(ctx, a.runner, a.notifier)
	if err := sched.Register(cfg.Schedule.RunCron); err != nil {
		log.Printf("[FATAL] register cron tasks: %v", err)
		return 1
	}
	sched.Start()
	defer sched.Stop()

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, starting a run now")
		if err := sched.RunNow(); err != nil {
			log.Printf("[WARN] run on start: %v", err)
		}
	}

	api := server.New(a.store, a.recorder, a.lock, sched, a.runner.Current)
	log.Println("[INFO] MarketReel is running. Press Ctrl+C to stop.")
	if err := api.ListenAndServe(ctx, cfg.Server.BindAddr); err != nil {
		log.Printf("[ERROR] admin API: %v", err)
		return 1
	}
	log.Println("[INFO] shutdown signal received, stopping...")
	return 0
}

func unlock(cfg *config.Config) {
	l := lock.New(cfg.Pipeline.LockFile)
	if !l.Held() {
		log.Printf("[INFO] no run lock at %s", cfg.Pipeline.LockFile)
		return
	}
	if pid := l.Owner(); pid > 0 {
		log.Printf("[INFO] lock was taken by pid %d", pid)
	}
	if err := l.Release(); err != nil {
		log.Fatalf("[FATAL] release lock: %v", err)
	}
	log.Printf("[INFO] run lock %s cleared", cfg.Pipeline.LockFile)
}

func status(cfg *config.Config) {
	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}
	defer store.Close()

	st, err := store.Load()
	if err != nil {
		log.Fatalf("[FATAL] load state: %v", err)
	}
	fmt.Print(notifier.FormatStatus(st, lock.New(cfg.Pipeline.LockFile).Held()))
}
