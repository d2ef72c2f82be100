package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"MarketReel/internal/pipeline"
)

// ErrBusy is returned by RunNow while a run started here is in progress.
var ErrBusy = errors.New("a run is already in progress")

// Runner performs one pipeline run.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// Alerter sends operator alerts with retry.
type Alerter interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler fires pipeline runs on a cron schedule or on demand.
type Scheduler struct {
	Cron    *cron.Cron
	Runner  Runner
	Alerter Alerter
	Ctx     context.Context

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, runner Runner, alerter Alerter) *Scheduler {
	return &Scheduler{
		Cron:    cron.New(cron.WithSeconds()),
		Runner:  runner,
		Alerter: alerter,
		Ctx:     ctx,
	}
}

// Register adds the daily run. An empty spec registers nothing.
func (s *Scheduler) Register(runCron string) error {
	if runCron == "" {
		log.Println("[INFO] [scheduler] no run_cron configured, runs are manual only")
		return nil
	}
	if _, err := s.Cron.AddFunc(runCron, s.runTask); err != nil {
		return fmt.Errorf("register run task: %w", err)
	}
	log.Printf("[INFO] [scheduler] run scheduled: %s", runCron)
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] [scheduler] scheduler started")
}

// Stop stops the cron scheduler and waits for an in-flight run to return.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.wg.Wait()
	log.Println("[INFO] [scheduler] scheduler stopped")
}

// RunNow starts a run in the background.
func (s *Scheduler) RunNow() error {
	if !s.begin() {
		return ErrBusy
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.end()
		s.execute()
	}()
	return nil
}

// Running reports whether a run started here is in progress.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runTask() {
	if !s.begin() {
		log.Println("[WARN] [scheduler] previous run still in progress, skipping")
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	defer s.end()
	s.execute()
}

func (s *Scheduler) execute() {
	log.Println("[INFO] [scheduler] running pipeline")
	res, err := s.Runner.Run(s.Ctx)
	switch {
	case errors.Is(err, pipeline.ErrLocked):
		log.Println("[WARN] [scheduler] run lock held, skipping")
		s.trySend("⏳ Skipped scheduled run: the previous run still holds the lock. Clear it with `marketreel unlock` if it crashed.")
	case err != nil:
		log.Printf("[ERROR] [scheduler] run failed: %v", err)
	default:
		log.Printf("[INFO] [scheduler] run %s complete: %s", res.RunID, res.Video)
	}
}

func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) end() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Scheduler) trySend(text string) {
	if s.Alerter == nil {
		return
	}
	if err := s.Alerter.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] [scheduler] send notification: %v", err)
	}
}
