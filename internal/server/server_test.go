package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"MarketReel/internal/lock"
	"MarketReel/internal/model"
	"MarketReel/internal/recorder"
	"MarketReel/internal/scheduler"
	"MarketReel/internal/state"
)

type fakeTrigger struct {
	running bool
	err     error
	calls   int
}

func (f *fakeTrigger) RunNow() error {
	f.calls++
	return f.err
}

func (f *fakeTrigger) Running() bool { return f.running }

type fixture struct {
	srv     http.Handler
	lock    *lock.RunLock
	trigger *fakeTrigger
	store   *state.FileStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := state.NewFileStore(dir)
	require.NoError(t, err)
	rec, err := recorder.NewSQLiteRecorder(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })
	require.NoError(t, rec.RecordRunStart(&recorder.RunEvent{RunID: "run-1", Date: "15 Oct 2026"}))

	f := &fixture{lock: lock.New(filepath.Join(dir, ".lock")), trigger: &fakeTrigger{}, store: store}
	f.srv = New(store, rec, f.lock, f.trigger, func() (string, model.Stage) { return "run-1", model.StageAudio }).Router()
	return f
}

func (f *fixture) do(t *testing.T, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	f.srv.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	var body map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	return rr, body
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rr, body := f.do(t, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", body["status"])
}

func TestState(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save(model.PersistedState{LastSeenMessageID: 77, CurrentStage: model.StageAudio, RunID: "run-1"}))
	ok, err := f.lock.Acquire()
	require.NoError(t, err)
	require.True(t, ok)

	rr, body := f.do(t, http.MethodGet, "/api/state")
	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualValues(t, 77, body["last_seen_message_id"])
	require.Equal(t, "audio", body["current_stage"])
	require.Equal(t, true, body["lock_held"])
	require.Equal(t, "run-1", body["active_run"])
}

func TestRuns(t *testing.T) {
	f := newFixture(t)
	rr := httptest.NewRecorder()
	f.srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs?limit=5", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var runs []recorder.RunSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	require.Equal(t, "run-1", runs[0].RunID)
	require.Equal(t, recorder.StatusRunning, runs[0].Status)
}

func TestTrigger(t *testing.T) {
	f := newFixture(t)
	rr, _ := f.do(t, http.MethodPost, "/api/runs")
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, 1, f.trigger.calls)

	f.trigger.err = scheduler.ErrBusy
	rr, _ = f.do(t, http.MethodPost, "/api/runs")
	require.Equal(t, http.StatusConflict, rr.Code)

	f.trigger.err = nil
	_, err := f.lock.Acquire()
	require.NoError(t, err)
	rr, body := f.do(t, http.MethodPost, "/api/runs")
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "run lock is held", body["error"])
}

func TestUnlock(t *testing.T) {
	f := newFixture(t)
	_, err := f.lock.Acquire()
	require.NoError(t, err)

	f.trigger.running = true
	rr, _ := f.do(t, http.MethodDelete, "/api/lock")
	require.Equal(t, http.StatusConflict, rr.Code)
	require.True(t, f.lock.Held())

	f.trigger.running = false
	rr, body := f.do(t, http.MethodDelete, "/api/lock")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, true, body["released"])
	require.False(t, f.lock.Held())

	_, body = f.do(t, http.MethodDelete, "/api/lock")
	require.Equal(t, false, body["released"])
}
