// Package lock guards against overlapping pipeline runs with a marker file.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// RunLock is a presence-only marker. A crashed run leaves it in place until
// it is cleared by hand.
type RunLock struct {
	Path string
}

// New returns a lock backed by the file at path.
func New(path string) *RunLock {
	return &RunLock{Path: path}
}

// Acquire creates the marker. It returns false when the marker already exists.
func (l *RunLock) Acquire() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return false, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("create lock: %w", err)
	}
	defer f.Close()
	// Contents are informational only.
	fmt.Fprintf(f, "pid=%d\nstarted=%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	return true, nil
}

// Release removes the marker. Releasing a free lock is not an error.
func (l *RunLock) Release() error {
	if err := os.Remove(l.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock: %w", err)
	}
	return nil
}

// Held reports whether the marker exists.
func (l *RunLock) Held() bool {
	_, err := os.Stat(l.Path)
	return err == nil
}

// Owner returns the pid recorded in the marker, or 0 if unknown.
func (l *RunLock) Owner() int {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return 0
	}
	var pid int
	for _, line := range strings.Split(string(data), "\n") {
		if v, ok := strings.CutPrefix(line, "pid="); ok {
			pid, _ = strconv.Atoi(v)
		}
	}
	return pid
}
