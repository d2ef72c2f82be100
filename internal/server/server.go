// Package server exposes a small admin API for the pipeline.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"MarketReel/internal/model"
	"MarketReel/internal/recorder"
	"MarketReel/internal/scheduler"
	"MarketReel/internal/state"
)

// Lock is the run lock as seen by operators.
type Lock interface {
	Held() bool
	Owner() int
	Release() error
}

// Trigger starts a run in the background.
type Trigger interface {
	RunNow() error
	Running() bool
}

// Server serves the admin API.
type Server struct {
	store    state.Store
	recorder recorder.Recorder
	lock     Lock
	trigger  Trigger
	current  func() (string, model.Stage)
}

// New creates a Server. current reports the in-process run and may be nil.
func New(store state.Store, rec recorder.Recorder, lock Lock, trigger Trigger, current func() (string, model.Stage)) *Server {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Server{store: store, recorder: rec, lock: lock, trigger: trigger, current: current}
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/runs", s.handleRuns)
		r.Post("/runs", s.handleTrigger)
		r.Delete("/lock", s.handleUnlock)
	})
	return r
}

// ListenAndServe runs the API until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] [server] admin API listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Println("[INFO] [server] admin API stopped")
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

type stateResponse struct {
	model.PersistedState
	LockHeld    bool   `json:"lock_held"`
	LockOwner   int    `json:"lock_owner,omitempty"`
	Running     bool   `json:"running"`
	ActiveRun   string `json:"active_run,omitempty"`
	ActiveStage string `json:"active_stage,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	st, err := s.store.Load()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	resp := stateResponse{PersistedState: st, LockHeld: s.lock.Held(), LockOwner: s.lock.Owner()}
	if s.trigger != nil {
		resp.Running = s.trigger.Running()
	}
	if s.current != nil {
		id, stage := s.current()
		resp.ActiveRun, resp.ActiveStage = id, string(stage)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(r.URL.Query().Get("limit"), 20, 200)
	runs, err := s.recorder.RecentRuns(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if runs == nil {
		runs = []recorder.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleTrigger(w http.ResponseWriter, _ *http.Request) {
	if s.trigger == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "runs cannot be triggered in this mode"})
		return
	}
	if s.lock.Held() {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "run lock is held"})
		return
	}
	if err := s.trigger.RunNow(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scheduler.ErrBusy) {
			status = http.StatusConflict
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleUnlock(w http.ResponseWriter, _ *http.Request) {
	if s.trigger != nil && s.trigger.Running() {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "a run is in progress in this process"})
		return
	}
	held := s.lock.Held()
	if err := s.lock.Release(); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if held {
		log.Println("[INFO] [server] run lock cleared via API")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"released": held})
}

func clampInt(raw string, def, max int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[WARN] [server] encode response: %v", err)
	}
}
