package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSQLiteRecorder_RunHistory(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer r.Close()

	clock := time.Unix(1_760_000_000, 0)
	r.now = func() time.Time { return clock }

	require.NoError(t, r.RecordRunStart(&RunEvent{RunID: "run-1", Date: "15 Oct 2026"}))
	require.NoError(t, r.RecordStageAttempt(&StageAttemptEvent{RunID: "run-1", Stage: "script", Attempt: 1, Error: "empty reply"}))
	require.NoError(t, r.RecordStageAttempt(&StageAttemptEvent{RunID: "run-1", Stage: "script", Attempt: 2, Artifact: "812 chars"}))
	require.NoError(t, r.RecordApproval(&ApprovalEvent{RunID: "run-1", Stage: "script", MessageID: 5, Reply: "no"}))
	require.NoError(t, r.RecordApproval(&ApprovalEvent{RunID: "run-1", Stage: "script", MessageID: 7, Reply: "yes", Approved: true}))

	clock = clock.Add(time.Minute)
	require.NoError(t, r.RecordRunEnd(&RunEvent{RunID: "run-1", Status: StatusDone, VideoURL: "https://youtu.be/x"}))

	clock = clock.Add(time.Minute)
	require.NoError(t, r.RecordRunStart(&RunEvent{RunID: "run-2", Date: "16 Oct 2026"}))

	runs, err := r.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	require.Equal(t, "run-2", runs[0].RunID)
	require.Equal(t, StatusRunning, runs[0].Status)
	require.True(t, runs[0].FinishedAt.IsZero())

	require.Equal(t, "run-1", runs[1].RunID)
	require.Equal(t, StatusDone, runs[1].Status)
	require.Equal(t, 2, runs[1].Attempts)
	require.Equal(t, 1, runs[1].Rejections)
	require.Equal(t, "https://youtu.be/x", runs[1].VideoURL)
	require.Equal(t, time.Unix(1_760_000_060, 0), runs[1].FinishedAt)
}

func TestSQLiteRecorder_EndUnknownRun(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer r.Close()

	require.ErrorContains(t, r.RecordRunEnd(&RunEvent{RunID: "nope", Status: StatusFailed}), "not found")
}
