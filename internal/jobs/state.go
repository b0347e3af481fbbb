package jobs

import (
	"strings"

	"media-translator/internal/domain"
)

// DefaultFailureMessage is used when a failed snapshot carries no text.
const DefaultFailureMessage = "processing failed without details"

// NewJobState returns a queued job with every stage pending.
func NewJobState(jobID string) domain.JobState {
	stages := make(map[domain.StageName]domain.StageProgress, len(domain.Stages()))
	for _, name := range domain.Stages() {
		stages[name] = domain.StageProgress{Status: domain.StageStatusPending}
	}
	return domain.JobState{
		JobID:  jobID,
		Status: domain.JobStatusQueued,
		Stages: stages,
	}
}

// ApplyServerSnapshot merges one server snapshot into current and returns the
// next state. It never mutates current and is a no-op once current is terminal.
func ApplyServerSnapshot(current domain.JobState, snapshot domain.StatusSnapshot) domain.JobState {
	if current.IsTerminal() {
		return current
	}

	next := current.Clone()
	for _, name := range domain.Stages() {
		if _, ok := next.Stages[name]; !ok {
			next.Stages[name] = domain.StageProgress{Status: domain.StageStatusPending}
		}
	}

	next.Status = snapshot.Status
	next.Progress = clampProgress(snapshot.Progress)
	next.Message = snapshot.Message
	next.Notice = ""

	for name, reported := range snapshot.Stages {
		if !domain.IsKnownStage(name) {
			continue
		}
		if next.Stages[name].Status == domain.StageStatusCompleted {
			continue
		}
		reported.Progress = clampProgress(reported.Progress)
		if reported.Status == domain.StageStatusCompleted {
			reported.Progress = 100
		}
		next.Stages[name] = reported
	}

	switch next.Status {
	case domain.JobStatusCompleted:
		for _, name := range domain.Stages() {
			next.Stages[name] = domain.StageProgress{Status: domain.StageStatusCompleted, Progress: 100}
		}
		next.Progress = 100
		next.Error = ""
		next.Failure = domain.FailureNone
	case domain.JobStatusFailed:
		next.Error = failureText(snapshot)
		next.Failure = domain.FailureJobFailed
	}

	return next
}

// Fail moves a non-terminal state to failed with the given category.
func Fail(current domain.JobState, category domain.FailureCategory, message string) domain.JobState {
	if current.IsTerminal() {
		return current
	}
	next := current.Clone()
	next.Status = domain.JobStatusFailed
	next.Failure = category
	next.Error = message
	next.Message = message
	next.Notice = ""
	return next
}

// MarkCancelled moves a non-terminal state to cancelled.
func MarkCancelled(current domain.JobState, message string) domain.JobState {
	if current.IsTerminal() {
		return current
	}
	next := current.Clone()
	next.Status = domain.JobStatusCancelled
	next.Message = message
	next.Notice = ""
	return next
}

func failureText(snapshot domain.StatusSnapshot) string {
	if text := strings.TrimSpace(snapshot.Error); text != "" {
		return text
	}
	if text := strings.TrimSpace(snapshot.Message); text != "" {
		return text
	}
	return DefaultFailureMessage
}

func clampProgress(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
