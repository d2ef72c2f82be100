package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"MarketReel/internal/model"
)

var now = time.Now

// SQLiteStore keeps the state as rows of a key/value table.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database and its kv table.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	log.Printf("[INFO] [state] sqlite store opened: %s", dbPath)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) get(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *SQLiteStore) Load() (model.PersistedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st model.PersistedState
	if v, ok, err := s.get("last_seen_message_id"); err != nil {
		return st, fmt.Errorf("load offset: %w", err)
	} else if ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return st, fmt.Errorf("parse offset %q: %w", v, err)
		}
		st.LastSeenMessageID = id
	}
	if v, ok, err := s.get("current_stage"); err != nil {
		return st, fmt.Errorf("load stage: %w", err)
	} else if ok {
		stage, err := model.ParseStage(v)
		if err != nil {
			return st, err
		}
		st.CurrentStage = stage
	}
	if v, _, err := s.get("run_id"); err != nil {
		return st, fmt.Errorf("load run id: %w", err)
	} else {
		st.RunID = v
	}
	if v, ok, err := s.get("updated_at"); err == nil && ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			st.UpdatedAt = ts
		}
	}
	return st, nil
}

// Save writes all keys in one transaction.
func (s *SQLiteStore) Save(st model.PersistedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	kv := map[string]string{
		"last_seen_message_id": strconv.FormatInt(st.LastSeenMessageID, 10),
		"current_stage":        string(st.CurrentStage),
		"run_id":               st.RunID,
		"updated_at":           now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range kv {
		if _, err := tx.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, v); err != nil {
			return fmt.Errorf("save %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] [state] closing sqlite store")
	return s.db.Close()
}
