package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"MarketReel/internal/approval"
	"MarketReel/internal/model"
	"MarketReel/internal/notifier"
	"MarketReel/internal/recorder"
	"MarketReel/internal/report"
	"MarketReel/internal/state"
)

// ErrLocked is returned when another run still holds the run lock.
var ErrLocked = errors.New("another run holds the lock")

// Artifact file names inside the work dir.
const (
	ReportFile = "report.txt"
	ScriptFile = "script.txt"
	AudioFile  = "audio.mp3"
	VideoFile  = "final_video.mp4"
)

// Locker is the run lock.
type Locker interface {
	Acquire() (bool, error)
	Release() error
}

// QuoteCollector fetches quotes and never fails as a whole.
type QuoteCollector interface {
	Collect(ctx context.Context, specs []model.IndexSpec) []model.Quote
}

// NewsSource fetches filtered headlines.
type NewsSource interface {
	Headlines(ctx context.Context, limit int) ([]model.NewsItem, error)
}

// ScriptWriter turns the report into narration.
type ScriptWriter interface {
	Write(ctx context.Context, reportText string) (string, error)
}

// Synthesizer writes narration audio to outPath.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outPath string) error
}

// SlideRenderer draws the report slides into dir and returns their paths in
// display order.
type SlideRenderer interface {
	Render(ctx context.Context, rep *report.Report, dir string) ([]string, error)
}

// VideoAssembler combines slides and audio into outPath.
type VideoAssembler interface {
	Assemble(ctx context.Context, frames []string, audioPath, outPath string) error
}

// Uploader publishes the approved video and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, videoPath, title, description string) (string, error)
}

// Deps are the collaborators of a run. Uploader may be nil.
type Deps struct {
	Lock      Locker
	Approver  Approver
	Notifier  Notifier
	Store     state.Store
	Recorder  recorder.Recorder
	Collector QuoteCollector
	News      NewsSource
	Script    ScriptWriter
	Speech    Synthesizer
	Slides    SlideRenderer
	Video     VideoAssembler
	Uploader  Uploader
}

// Options tune a run.
type Options struct {
	WorkDir             string
	Domestic            []model.IndexSpec
	Global              []model.IndexSpec
	NewsLimit           int
	MaxGenerateFailures int
	Affirmative         string
	Negative            string
	Location            *time.Location
}

// Runner executes full pipeline runs.
type Runner struct {
	deps Deps
	opts Options
	now  func() time.Time

	mu    sync.Mutex
	runID string
	stage model.Stage
}

// NewRunner creates a Runner.
func NewRunner(deps Deps, opts Options) *Runner {
	if deps.Recorder == nil {
		deps.Recorder = recorder.NewNoopRecorder()
	}
	if deps.Approver == nil {
		deps.Approver = AutoApprover{}
	}
	if opts.WorkDir == "" {
		opts.WorkDir = "output"
	}
	if opts.NewsLimit <= 0 {
		opts.NewsLimit = 5
	}
	if opts.Affirmative == "" {
		opts.Affirmative = "yes"
	}
	if opts.Negative == "" {
		opts.Negative = "no"
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Runner{deps: deps, opts: opts, now: time.Now}
}

// Result summarizes a finished run.
type Result struct {
	RunID    string
	Script   string
	Audio    string
	Video    string
	VideoURL string
}

// Run performs one full pipeline run. The lock is released only when the run
// completes; a failed or cancelled run leaves it held for manual reset.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	ok, err := r.deps.Lock.Acquire()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	runID := uuid.NewString()
	r.setCurrent(runID, model.StageNone)
	defer r.setCurrent("", model.StageNone)

	date := r.now().In(r.opts.Location).Format("02 Jan 2006")
	log.Printf("[INFO] [pipeline] run %s started", runID)
	if err := r.deps.Recorder.RecordRunStart(&recorder.RunEvent{RunID: runID, Date: date}); err != nil {
		log.Printf("[ERROR] [pipeline] record run start: %v", err)
	}
	r.notify(ctx, notifier.FormatRunStarted(runID, date))

	res, err := r.run(ctx, runID, date)
	if err != nil {
		status := recorder.StatusFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = recorder.StatusCanceled
		}
		log.Printf("[ERROR] [pipeline] run %s %s: %v", runID, status, err)
		if rerr := r.deps.Recorder.RecordRunEnd(&recorder.RunEvent{RunID: runID, Status: status, Error: err.Error()}); rerr != nil {
			log.Printf("[ERROR] [pipeline] record run end: %v", rerr)
		}
		r.notify(context.WithoutCancel(ctx), notifier.FormatRunFailed(runID, err))
		return nil, err
	}

	r.saveStage(runID, model.StageDone)
	if rerr := r.deps.Recorder.RecordRunEnd(&recorder.RunEvent{RunID: runID, Status: recorder.StatusDone, VideoURL: res.VideoURL}); rerr != nil {
		log.Printf("[ERROR] [pipeline] record run end: %v", rerr)
	}
	if err := r.deps.Lock.Release(); err != nil {
		log.Printf("[ERROR] [pipeline] release run lock: %v", err)
	}
	r.notify(ctx, notifier.FormatRunFinished(runID))
	log.Printf("[INFO] [pipeline] run %s finished", runID)
	return res, nil
}

func (r *Runner) run(ctx context.Context, runID, date string) (*Result, error) {
	dir := r.opts.WorkDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	rep := r.buildReport(ctx, date)
	reportText := rep.Text()
	if err := os.WriteFile(filepath.Join(dir, ReportFile), []byte(reportText), 0o644); err != nil {
		log.Printf("[WARN] [pipeline] checkpoint report: %v", err)
	}
	r.notify(ctx, notifier.FormatReport(reportText))

	d := NewDriver(runID, r.deps.Approver, r.deps.Notifier, r.deps.Store, r.deps.Recorder, r.opts.MaxGenerateFailures)
	res := &Result{RunID: runID}

	scriptPath := filepath.Join(dir, ScriptFile)
	script, err := r.runGated(ctx, d, StageSpec{
		Stage: model.StageScript,
		Generate: func(ctx context.Context) (model.Artifact, error) {
			text, err := r.deps.Script.Write(ctx, reportText)
			if err != nil {
				return model.Artifact{}, err
			}
			if err := os.WriteFile(scriptPath, []byte(text), 0o644); err != nil {
				return model.Artifact{}, fmt.Errorf("checkpoint script: %w", err)
			}
			return model.Artifact{Text: text, Path: scriptPath}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	res.Script = script.Text

	audioPath := filepath.Join(dir, AudioFile)
	audio, err := r.runGated(ctx, d, StageSpec{
		Stage: model.StageAudio,
		Generate: func(ctx context.Context) (model.Artifact, error) {
			if err := removeStale(audioPath); err != nil {
				return model.Artifact{}, err
			}
			if err := r.deps.Speech.Synthesize(ctx, script.Text, audioPath); err != nil {
				return model.Artifact{}, err
			}
			return model.Artifact{Path: audioPath}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	res.Audio = audio.Path

	videoPath := filepath.Join(dir, VideoFile)
	video, err := r.runGated(ctx, d, StageSpec{
		Stage: model.StageVideo,
		Generate: func(ctx context.Context) (model.Artifact, error) {
			if err := removeStale(videoPath); err != nil {
				return model.Artifact{}, err
			}
			frames, err := r.deps.Slides.Render(ctx, rep, dir)
			if err != nil {
				return model.Artifact{}, fmt.Errorf("render slides: %w", err)
			}
			if err := r.deps.Video.Assemble(ctx, frames, audio.Path, videoPath); err != nil {
				return model.Artifact{}, err
			}
			return model.Artifact{Path: videoPath}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	res.Video = video.Path

	if r.deps.Uploader != nil {
		title := fmt.Sprintf("Pre-Market Report | %s", date)
		url, err := r.deps.Uploader.Upload(ctx, video.Path, title, reportText)
		if err != nil {
			log.Printf("[ERROR] [pipeline] upload: %v", err)
			r.notify(ctx, fmt.Sprintf("❌ Upload failed: %v", err))
		} else {
			res.VideoURL = url
			r.notify(ctx, notifier.FormatUploaded(url))
		}
	}
	return res, nil
}

// runGated fills in the prompt and delivery for spec and runs it.
func (r *Runner) runGated(ctx context.Context, d *Driver, spec StageSpec) (model.Artifact, error) {
	r.setCurrent(d.RunID, spec.Stage)
	spec.Prompt = notifier.FormatStagePrompt(spec.Stage, r.opts.Affirmative, r.opts.Negative)
	spec.Deliver = func(ctx context.Context, a model.Artifact) error {
		return r.deps.Notifier.SendFile(ctx, a.Path, notifier.FormatArtifactCaption(a.Stage))
	}
	return d.RunStage(ctx, spec)
}

// buildReport collects quotes and news. Individual failures degrade to
// unavailable quotes or an empty news section.
func (r *Runner) buildReport(ctx context.Context, date string) *report.Report {
	domestic := r.deps.Collector.Collect(ctx, r.opts.Domestic)
	global := r.deps.Collector.Collect(ctx, r.opts.Global)

	items, err := r.deps.News.Headlines(ctx, r.opts.NewsLimit)
	if err != nil {
		log.Printf("[WARN] [pipeline] news unavailable: %v", err)
		items = nil
	}
	return report.Build(date, domestic, global, items)
}

// removeStale deletes a previous attempt's artifact so that a generator
// which fails silently cannot pass the old file off as new output.
func removeStale(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[ERROR] [pipeline] remove stale %s: %v", path, err)
		return fmt.Errorf("remove stale artifact: %w", err)
	}
	return nil
}

// ObserveReply records a decisive operator reply against the current stage.
// It is meant to be the gate's approval.Observer.
func (r *Runner) ObserveReply(msg approval.Message, approved bool) {
	r.mu.Lock()
	runID, stage := r.runID, r.stage
	r.mu.Unlock()
	if runID == "" {
		return
	}
	if err := r.deps.Recorder.RecordApproval(&recorder.ApprovalEvent{
		RunID:     runID,
		Stage:     string(stage),
		MessageID: msg.ID,
		Reply:     msg.Text,
		Approved:  approved,
	}); err != nil {
		log.Printf("[ERROR] [pipeline] record approval: %v", err)
	}
}

// Current returns the active run id and stage, or "" when idle.
func (r *Runner) Current() (string, model.Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID, r.stage
}

func (r *Runner) setCurrent(runID string, stage model.Stage) {
	r.mu.Lock()
	r.runID, r.stage = runID, stage
	r.mu.Unlock()
}

func (r *Runner) saveStage(runID string, stage model.Stage) {
	st, err := r.deps.Store.Load()
	if err != nil {
		log.Printf("[WARN] [pipeline] load state: %v", err)
	}
	st.CurrentStage = stage
	st.RunID = runID
	if err := r.deps.Store.Save(st); err != nil {
		log.Printf("[ERROR] [pipeline] save stage %s: %v", stage, err)
	}
}

func (r *Runner) notify(ctx context.Context, text string) {
	if err := r.deps.Notifier.SendMessage(ctx, text); err != nil {
		log.Printf("[WARN] [pipeline] notify operator: %v", err)
	}
}
