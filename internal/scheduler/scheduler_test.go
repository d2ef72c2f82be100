package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"MarketReel/internal/pipeline"
)

type blockingRunner struct {
	release chan struct{}
	mu      sync.Mutex
	calls   int
	err     error
}

func (b *blockingRunner) Run(context.Context) (*pipeline.Result, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	<-b.release
	if b.err != nil {
		return nil, b.err
	}
	return &pipeline.Result{RunID: "r1"}, nil
}

type recordingAlerter struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingAlerter) SendWithRetry(_ context.Context, text string, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return nil
}

func TestRunNow_RejectsOverlap(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{})}
	s := NewScheduler(context.Background(), runner, nil)

	require.NoError(t, s.RunNow())
	require.Eventually(t, s.Running, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, s.RunNow(), ErrBusy)

	close(runner.release)
	require.Eventually(t, func() bool { return !s.Running() }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, runner.calls)
}

func TestRunTask_AlertsOnLock(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{}), err: pipeline.ErrLocked}
	close(runner.release)
	alerter := &recordingAlerter{}
	s := NewScheduler(context.Background(), runner, alerter)

	s.runTask()
	require.Len(t, alerter.texts, 1)
	require.Contains(t, alerter.texts[0], "still holds the lock")
}

func TestRegister(t *testing.T) {
	s := NewScheduler(context.Background(), &blockingRunner{}, nil)
	require.NoError(t, s.Register(""))
	require.NoError(t, s.Register("0 30 8 * * 1-5"))
	require.Len(t, s.Cron.Entries(), 1)
	require.Error(t, s.Register("not a cron"))
}
