package recorder

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRunStart(_ *RunEvent) error              { return nil }
func (n *NoopRecorder) RecordRunEnd(_ *RunEvent) error                { return nil }
func (n *NoopRecorder) RecordStageAttempt(_ *StageAttemptEvent) error { return nil }
func (n *NoopRecorder) RecordApproval(_ *ApprovalEvent) error         { return nil }
func (n *NoopRecorder) RecentRuns(_ int) ([]RunSummary, error)        { return nil, nil }
func (n *NoopRecorder) Close() error                                  { return nil }
