package domain

import "time"

// SourceLanguageAuto asks the service to detect the spoken language.
const SourceLanguageAuto = "auto"

// JobStatus is the overall status reported by the translation service.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether no further polling or transition happens from status.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseJobStatus maps a wire value onto a known status.
func ParseJobStatus(raw string) (JobStatus, bool) {
	switch JobStatus(raw) {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return JobStatus(raw), true
	case "pending":
		return JobStatusQueued, true
	case "canceled":
		return JobStatusCancelled, true
	default:
		return "", false
	}
}

// StageName is one step of the fixed server-side pipeline.
type StageName string

const (
	StageDownload     StageName = "download"
	StageExtractAudio StageName = "extract_audio"
	StageSpeechToText StageName = "speech_to_text"
	StageTranslate    StageName = "translate"
	StageTextToSpeech StageName = "text_to_speech"
	StageMergeVideo   StageName = "merge_video"
)

var pipelineStages = []StageName{
	StageDownload,
	StageExtractAudio,
	StageSpeechToText,
	StageTranslate,
	StageTextToSpeech,
	StageMergeVideo,
}

// Stages returns the pipeline stages in execution order.
func Stages() []StageName {
	out := make([]StageName, len(pipelineStages))
	copy(out, pipelineStages)
	return out
}

// IsKnownStage reports whether name belongs to the pipeline.
func IsKnownStage(name StageName) bool {
	for _, stage := range pipelineStages {
		if stage == name {
			return true
		}
	}
	return false
}

// StageStatus tracks one pipeline stage.
type StageStatus string

const (
	StageStatusPending    StageStatus = "pending"
	StageStatusProcessing StageStatus = "processing"
	StageStatusCompleted  StageStatus = "completed"
	StageStatusFailed     StageStatus = "failed"
)

// ParseStageStatus maps a wire value onto a known stage status.
func ParseStageStatus(raw string) (StageStatus, bool) {
	switch StageStatus(raw) {
	case StageStatusPending, StageStatusProcessing, StageStatusCompleted, StageStatusFailed:
		return StageStatus(raw), true
	case "running", "in_progress":
		return StageStatusProcessing, true
	default:
		return "", false
	}
}

// StageProgress is the sub-progress of one stage.
type StageProgress struct {
	Status   StageStatus `json:"status"`
	Progress int         `json:"progress"`
}

// JobRequest is the immutable submission input. Exactly one of MediaURL and
// UploadHandle is set.
type JobRequest struct {
	MediaURL       string `json:"mediaUrl,omitempty"`
	UploadHandle   string `json:"uploadHandle,omitempty"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
}

// StatusSnapshot is one decoded status payload from the service.
type StatusSnapshot struct {
	Status   JobStatus                   `json:"status"`
	Progress int                         `json:"progress"`
	Message  string                      `json:"message"`
	Error    string                      `json:"error,omitempty"`
	Stages   map[StageName]StageProgress `json:"stages"`
}

// JobState is the client view of one active job.
type JobState struct {
	JobID    string                      `json:"jobId"`
	Status   JobStatus                   `json:"status"`
	Progress int                         `json:"progress"`
	Stages   map[StageName]StageProgress `json:"stages"`
	Message  string                      `json:"message"`
	Elapsed  time.Duration               `json:"elapsed"`
	Error    string                      `json:"error,omitempty"`
	Failure  FailureCategory             `json:"failure,omitempty"`

	// WaitingCount counts consecutive polls that did not find the job yet.
	WaitingCount int `json:"waitingCount"`
	// Notice holds the latest retryable error shown while polling continues.
	Notice string `json:"notice,omitempty"`
}

// IsTerminal reports whether the job reached completed, failed or cancelled.
func (s JobState) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// Clone returns a copy that shares no map with s.
func (s JobState) Clone() JobState {
	out := s
	out.Stages = make(map[StageName]StageProgress, len(s.Stages))
	for name, stage := range s.Stages {
		out.Stages[name] = stage
	}
	return out
}

// HistoryEntry is the durable summary of a finished job.
type HistoryEntry struct {
	JobID       string               `json:"jobId"`
	Request     JobRequest           `json:"request"`
	FinalStatus JobStatus            `json:"finalStatus"`
	CreatedAt   time.Time            `json:"createdAt"`
	CompletedAt *time.Time           `json:"completedAt,omitempty"`
	Artifacts   []ArtifactDescriptor `json:"artifacts,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// Preferences contains user-selectable options persisted with the history.
type Preferences struct {
	DownloadDir    string `json:"downloadDir"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	Locale         string `json:"locale"`
	AutoDownload   bool   `json:"autoDownload"`
}
