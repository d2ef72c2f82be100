package notifier

import (
	"fmt"
	"strings"

	"MarketReel/internal/model"
)

// FormatRunStarted announces a new run.
func FormatRunStarted(runID, date string) string {
	return fmt.Sprintf("🚀 MarketReel run started | %s\nRun: %s", date, runID)
}

// FormatReport wraps the pre-market report for the chat.
func FormatReport(reportText string) string {
	return "📝 Pre-market report:\n\n" + reportText
}

// FormatStagePrompt is the question asked at each approval gate.
func FormatStagePrompt(stage model.Stage, yes, no string) string {
	var what string
	switch stage {
	case model.StageScript:
		what = "Approve this script and generate audio?"
	case model.StageAudio:
		what = "Approve this audio and generate video?"
	case model.StageVideo:
		what = "Approve this video as final?"
	default:
		what = fmt.Sprintf("Approve %s?", stage)
	}
	return fmt.Sprintf("%s\nReply '%s' to continue or '%s' to regenerate.", what, yes, no)
}

// FormatArtifactCaption is the caption sent with a stage's output.
func FormatArtifactCaption(stage model.Stage) string {
	switch stage {
	case model.StageScript:
		return "✍️ Script generated:"
	case model.StageAudio:
		return "🔊 Audio ready."
	case model.StageVideo:
		return "📽️ Final video generated."
	}
	return string(stage)
}

// FormatGenerateFailure reports a failed generation attempt.
func FormatGenerateFailure(stage model.Stage, attempt, max int, err error) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("❌ %s generation failed (attempt %d/%d)", stage, attempt, max))
	if err != nil {
		b.WriteString(fmt.Sprintf(": %v", err))
	}
	if attempt < max {
		b.WriteString("\nRetrying...")
	}
	return b.String()
}

// FormatRegenerating acknowledges a rejection.
func FormatRegenerating(stage model.Stage) string {
	return fmt.Sprintf("🔁 %s rejected, regenerating...", stage)
}

// FormatRunFinished reports a completed run.
func FormatRunFinished(runID string) string {
	return fmt.Sprintf("✅ All steps completed successfully.\nRun: %s", runID)
}

// FormatRunFailed reports an aborted run. The lock stays held.
func FormatRunFailed(runID string, err error) string {
	return fmt.Sprintf("⛔ Run %s stopped: %v\nThe run lock is still held. Clear it with `marketreel unlock` once resolved.", runID, err)
}

// FormatUploaded reports the published video URL.
func FormatUploaded(url string) string {
	return "📺 Uploaded to YouTube: " + url
}

// FormatStatus renders the persisted pipeline state for status queries.
func FormatStatus(st model.PersistedState, locked bool) string {
	var b strings.Builder
	b.WriteString("📦 MarketReel status\n\n")
	stage := string(st.CurrentStage)
	if stage == "" {
		stage = "idle"
	}
	b.WriteString(fmt.Sprintf("Stage: %s\n", stage))
	if st.RunID != "" {
		b.WriteString(fmt.Sprintf("Run: %s\n", st.RunID))
	}
	b.WriteString(fmt.Sprintf("Last message id: %d\n", st.LastSeenMessageID))
	b.WriteString(fmt.Sprintf("Lock held: %v\n", locked))
	if !st.UpdatedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Updated: %s\n", st.UpdatedAt.Format("2006-01-02 15:04")))
	}
	return b.String()
}
