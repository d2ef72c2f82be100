package model

import (
	"fmt"
	"time"
)

// Stage is one phase of the content pipeline.
type Stage string

const (
	StageNone   Stage = ""
	StageScript Stage = "script"
	StageAudio  Stage = "audio"
	StageVideo  Stage = "video"
	StageDone   Stage = "done"
)

// Stages lists the generating stages in execution order.
var Stages = []Stage{StageScript, StageAudio, StageVideo}

// ParseStage converts a stored stage name back to a Stage.
func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case StageNone, StageScript, StageAudio, StageVideo, StageDone:
		return Stage(s), nil
	default:
		return StageNone, fmt.Errorf("unknown stage %q", s)
	}
}

// Artifact is the output of one stage. Script stages fill Text, audio and
// video fill Path.
type Artifact struct {
	Stage Stage
	Text  string
	Path  string
}

// Empty reports whether the artifact carries nothing.
func (a Artifact) Empty() bool {
	return a.Text == "" && a.Path == ""
}

// PersistedState is the gate and driver state that survives restarts.
type PersistedState struct {
	LastSeenMessageID int64     `json:"last_seen_message_id"`
	CurrentStage      Stage     `json:"current_stage"`
	RunID             string    `json:"run_id"`
	UpdatedAt         time.Time `json:"updated_at"`
}
