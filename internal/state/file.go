package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"MarketReel/internal/model"
)

const (
	offsetFileName = "last_update.txt"
	stageFileName  = "phase.txt"
)

// FileStore keeps the offset and the stage as two small text files in dir.
// The offset file holds a single integer. The stage file holds the stage
// name and, on a second line, the run id.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Load returns a zero state when the files don't exist.
func (s *FileStore) Load() (model.PersistedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st model.PersistedState
	data, err := os.ReadFile(filepath.Join(s.dir, offsetFileName))
	switch {
	case err == nil:
		raw := strings.TrimSpace(string(data))
		if raw != "" {
			id, perr := strconv.ParseInt(raw, 10, 64)
			if perr != nil {
				return st, fmt.Errorf("parse offset %q: %w", raw, perr)
			}
			st.LastSeenMessageID = id
		}
	case !os.IsNotExist(err):
		return st, fmt.Errorf("read offset: %w", err)
	}

	data, err = os.ReadFile(filepath.Join(s.dir, stageFileName))
	switch {
	case err == nil:
		lines := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)
		stage, perr := model.ParseStage(strings.TrimSpace(lines[0]))
		if perr != nil {
			return st, perr
		}
		st.CurrentStage = stage
		if len(lines) > 1 {
			st.RunID = strings.TrimSpace(lines[1])
		}
	case !os.IsNotExist(err):
		return st, fmt.Errorf("read stage: %w", err)
	}
	if fi, err := os.Stat(filepath.Join(s.dir, offsetFileName)); err == nil {
		st.UpdatedAt = fi.ModTime()
	}
	return st, nil
}

// Save writes both files via temp-file rename.
func (s *FileStore) Save(st model.PersistedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeAtomic(filepath.Join(s.dir, offsetFileName), strconv.FormatInt(st.LastSeenMessageID, 10)); err != nil {
		return fmt.Errorf("write offset: %w", err)
	}
	stage := string(st.CurrentStage)
	if st.RunID != "" {
		stage += "\n" + st.RunID
	}
	if err := writeAtomic(filepath.Join(s.dir, stageFileName), stage); err != nil {
		return fmt.Errorf("write stage: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

func writeAtomic(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
