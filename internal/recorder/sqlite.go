package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so the admin API can read while a run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] [recorder] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id      TEXT PRIMARY KEY,
			date        TEXT,
			status      TEXT NOT NULL,
			error       TEXT,
			video_url   TEXT,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS stage_attempts (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			run_id    TEXT NOT NULL,
			stage     TEXT NOT NULL,
			attempt   INTEGER,
			artifact  TEXT,
			error     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_run ON stage_attempts(run_id)`,

		`CREATE TABLE IF NOT EXISTS approvals (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			run_id     TEXT NOT NULL,
			stage      TEXT NOT NULL,
			message_id INTEGER,
			reply      TEXT,
			approved   INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_approvals_run ON approvals(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRunStart(evt *RunEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := evt.Status
	if status == "" {
		status = StatusRunning
	}
	_, err := r.db.Exec(`INSERT INTO runs (run_id, date, status, started_at) VALUES (?,?,?,?)`,
		evt.RunID, evt.Date, status, r.now().Unix(),
	)
	return err
}

func (r *SQLiteRecorder) RecordRunEnd(evt *RunEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.Exec(`UPDATE runs SET status = ?, error = ?, video_url = ?, finished_at = ? WHERE run_id = ?`,
		evt.Status, evt.Error, evt.VideoURL, r.now().Unix(), evt.RunID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", evt.RunID)
	}
	return nil
}

func (r *SQLiteRecorder) RecordStageAttempt(evt *StageAttemptEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO stage_attempts
		(timestamp, run_id, stage, attempt, artifact, error)
		VALUES (?,?,?,?,?,?)`,
		r.now().Unix(), evt.RunID, evt.Stage, evt.Attempt, evt.Artifact, evt.Error,
	)
	return err
}

func (r *SQLiteRecorder) RecordApproval(evt *ApprovalEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO approvals
		(timestamp, run_id, stage, message_id, reply, approved)
		VALUES (?,?,?,?,?,?)`,
		r.now().Unix(), evt.RunID, evt.Stage, evt.MessageID, evt.Reply, evt.Approved,
	)
	return err
}

// RecentRuns returns the newest runs first.
func (r *SQLiteRecorder) RecentRuns(limit int) ([]RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`SELECT r.run_id, COALESCE(r.date, ''), r.status, COALESCE(r.error, ''),
			COALESCE(r.video_url, ''), r.started_at, COALESCE(r.finished_at, 0),
			(SELECT COUNT(*) FROM stage_attempts a WHERE a.run_id = r.run_id),
			(SELECT COUNT(*) FROM approvals p WHERE p.run_id = r.run_id AND p.approved = 0)
		FROM runs r
		ORDER BY r.started_at DESC, r.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var started, finished int64
		if err := rows.Scan(&s.RunID, &s.Date, &s.Status, &s.Error, &s.VideoURL,
			&started, &finished, &s.Attempts, &s.Rejections); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.StartedAt = time.Unix(started, 0)
		if finished > 0 {
			s.FinishedAt = time.Unix(finished, 0)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] [recorder] closing sqlite recorder")
	return r.db.Close()
}
