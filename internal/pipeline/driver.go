// Package pipeline sequences the script, audio and video stages. Each stage
// is generated, shown to the operator and gated on approval; a rejection
// regenerates the stage from scratch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"MarketReel/internal/model"
	"MarketReel/internal/notifier"
	"MarketReel/internal/recorder"
	"MarketReel/internal/state"
)

// ErrGenerateExhausted is returned when a stage fails to produce an artifact
// too many times in a row.
var ErrGenerateExhausted = errors.New("generate attempts exhausted")

// Approver blocks until the operator accepts or rejects.
type Approver interface {
	RequestApproval(ctx context.Context, prompt string) (bool, error)
}

// Notifier delivers status text and artifacts to the operator.
type Notifier interface {
	SendMessage(ctx context.Context, text string) error
	SendFile(ctx context.Context, path, caption string) error
}

// AutoApprover approves everything. It stands in for the gate in unattended
// mode.
type AutoApprover struct{}

func (AutoApprover) RequestApproval(_ context.Context, prompt string) (bool, error) {
	log.Printf("[INFO] [pipeline] auto-approved: %s", firstLine(prompt))
	return true, nil
}

// StageSpec describes one gated stage.
type StageSpec struct {
	Stage    model.Stage
	Prompt   string
	Generate func(ctx context.Context) (model.Artifact, error)
	Deliver  func(ctx context.Context, a model.Artifact) error
}

// Driver runs stages for a single pipeline run.
type Driver struct {
	RunID string

	approver    Approver
	notifier    Notifier
	store       state.Store
	recorder    recorder.Recorder
	maxFailures int
}

// NewDriver creates a Driver. maxFailures <= 0 falls back to 3.
func NewDriver(runID string, approver Approver, n Notifier, store state.Store, rec recorder.Recorder, maxFailures int) *Driver {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Driver{
		RunID:       runID,
		approver:    approver,
		notifier:    n,
		store:       store,
		recorder:    rec,
		maxFailures: maxFailures,
	}
}

// RunStage loops generate, deliver, approve until the operator approves.
// A failed generate or deliver is reported and retried; maxFailures
// consecutive failures abort the stage with ErrGenerateExhausted. Rejections
// are not limited.
func (d *Driver) RunStage(ctx context.Context, spec StageSpec) (model.Artifact, error) {
	failures := 0
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return model.Artifact{}, err
		}
		d.setStage(spec.Stage)
		attempt++

		art, err := spec.Generate(ctx)
		if err == nil {
			err = checkArtifact(art)
		}
		if err == nil && spec.Deliver != nil {
			art.Stage = spec.Stage
			if derr := spec.Deliver(ctx, art); derr != nil {
				err = fmt.Errorf("deliver: %w", derr)
			}
		}
		d.recordAttempt(spec.Stage, attempt, art, err)

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return model.Artifact{}, ctxErr
			}
			failures++
			log.Printf("[WARN] [pipeline] %s attempt %d failed (%d/%d): %v", spec.Stage, attempt, failures, d.maxFailures, err)
			d.notify(ctx, notifier.FormatGenerateFailure(spec.Stage, failures, d.maxFailures, err))
			if failures >= d.maxFailures {
				return model.Artifact{}, fmt.Errorf("%s: %w: %v", spec.Stage, ErrGenerateExhausted, err)
			}
			continue
		}
		failures = 0
		art.Stage = spec.Stage

		ok, err := d.approver.RequestApproval(ctx, spec.Prompt)
		if err != nil {
			return model.Artifact{}, fmt.Errorf("%s approval: %w", spec.Stage, err)
		}
		if ok {
			log.Printf("[INFO] [pipeline] %s approved after %d attempt(s)", spec.Stage, attempt)
			return art, nil
		}
		log.Printf("[INFO] [pipeline] %s rejected, regenerating", spec.Stage)
		d.notify(ctx, notifier.FormatRegenerating(spec.Stage))
	}
}

// checkArtifact treats empty output or a missing file as a failure.
func checkArtifact(a model.Artifact) error {
	if a.Empty() {
		return errors.New("no artifact produced")
	}
	if a.Path != "" {
		fi, err := os.Stat(a.Path)
		if err != nil {
			return fmt.Errorf("artifact missing: %w", err)
		}
		if fi.Size() == 0 {
			return fmt.Errorf("artifact %s is empty", a.Path)
		}
	}
	return nil
}

func (d *Driver) setStage(stage model.Stage) {
	st, err := d.store.Load()
	if err != nil {
		log.Printf("[WARN] [pipeline] load state: %v", err)
	}
	st.CurrentStage = stage
	st.RunID = d.RunID
	if err := d.store.Save(st); err != nil {
		log.Printf("[ERROR] [pipeline] save stage %s: %v", stage, err)
	}
}

func (d *Driver) recordAttempt(stage model.Stage, attempt int, a model.Artifact, err error) {
	evt := &recorder.StageAttemptEvent{
		RunID:   d.RunID,
		Stage:   string(stage),
		Attempt: attempt,
	}
	switch {
	case err != nil:
		evt.Error = err.Error()
	case a.Path != "":
		evt.Artifact = a.Path
	default:
		evt.Artifact = fmt.Sprintf("%d chars", len([]rune(a.Text)))
	}
	if rerr := d.recorder.RecordStageAttempt(evt); rerr != nil {
		log.Printf("[ERROR] [pipeline] record stage attempt: %v", rerr)
	}
}

func (d *Driver) notify(ctx context.Context, text string) {
	if err := d.notifier.SendMessage(ctx, text); err != nil {
		log.Printf("[WARN] [pipeline] notify operator: %v", err)
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
