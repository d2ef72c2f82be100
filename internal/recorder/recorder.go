package recorder

import "time"

// Run statuses.
const (
	StatusRunning  = "RUNNING"
	StatusDone     = "DONE"
	StatusFailed   = "FAILED"
	StatusCanceled = "CANCELED"
)

// RunEvent marks the start or end of a pipeline run.
type RunEvent struct {
	RunID    string
	Date     string
	Status   string
	Error    string
	VideoURL string
}

// StageAttemptEvent records one generate call.
type StageAttemptEvent struct {
	RunID    string
	Stage    string
	Attempt  int
	Artifact string // text length or file path
	Error    string // empty on success
}

// ApprovalEvent records a decisive operator reply.
type ApprovalEvent struct {
	RunID     string
	Stage     string
	MessageID int64
	Reply     string
	Approved  bool
}

// RunSummary is a row of the runs table.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Date       string    `json:"date"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	VideoURL   string    `json:"video_url,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Attempts   int       `json:"attempts"`
	Rejections int       `json:"rejections"`
}

// Recorder persists run history for the admin API.
type Recorder interface {
	RecordRunStart(evt *RunEvent) error
	RecordRunEnd(evt *RunEvent) error
	RecordStageAttempt(evt *StageAttemptEvent) error
	RecordApproval(evt *ApprovalEvent) error
	RecentRuns(limit int) ([]RunSummary, error)
	Close() error
}
