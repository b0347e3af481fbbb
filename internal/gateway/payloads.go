package gateway

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"media-translator/internal/domain"
)

type translateURLRequest struct {
	YoutubeURL     string `json:"youtube_url"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

type translateFileRequest struct {
	FilePath       string `json:"file_path"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

type submitResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type stepPayload struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
}

type statusPayload struct {
	ID       string                 `json:"id"`
	TaskID   string                 `json:"task_id"`
	Status   string                 `json:"status"`
	Progress float64                `json:"progress"`
	Message  string                 `json:"message"`
	Error    *string                `json:"error"`
	Steps    map[string]stepPayload `json:"steps"`
}

type errorPayload struct {
	Detail string `json:"detail"`
}

type taskListPayload struct {
	Tasks []RemoteTask `json:"tasks"`
}

type sharePayload struct {
	TaskID     string `json:"task_id"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

type shareResponse struct {
	ShareURL   string  `json:"share_url"`
	ShareToken string  `json:"share_token"`
	ExpiresAt  float64 `json:"expires_at"`
}

type languagesPayload struct {
	Languages []domain.Language `json:"languages"`
}

// RemoteTask is one item of the service-side task list.
type RemoteTask struct {
	TaskID         string  `json:"task_id"`
	Status         string  `json:"status"`
	YoutubeURL     string  `json:"youtube_url"`
	TargetLanguage string  `json:"target_language"`
	CreatedAt      string  `json:"created_at"`
	Progress       float64 `json:"progress"`
}

// ServiceStats are the service-wide task counters.
type ServiceStats struct {
	TotalTasks      int     `json:"total_tasks"`
	CompletedTasks  int     `json:"completed_tasks"`
	FailedTasks     int     `json:"failed_tasks"`
	ProcessingTasks int     `json:"processing_tasks"`
	SuccessRate     float64 `json:"success_rate"`
}

// ShareLink is a time-limited public link to a finished job.
type ShareLink struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UploadHandle identifies media uploaded ahead of submission.
type UploadHandle struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
	Size     int64  `json:"size"`
}

// ProbeResult is the outcome of a successful artifact probe.
type ProbeResult struct {
	SizeHint    int64
	ContentType string
}

// toSnapshot validates a status payload and converts it to the domain shape.
func (p statusPayload) toSnapshot() (domain.StatusSnapshot, string, bool) {
	status, ok := domain.ParseJobStatus(strings.ToLower(strings.TrimSpace(p.Status)))
	if !ok {
		return domain.StatusSnapshot{}, "unknown status " + strconv.Quote(p.Status), false
	}

	snapshot := domain.StatusSnapshot{
		Status:   status,
		Progress: roundProgress(p.Progress),
		Message:  p.Message,
		Stages:   make(map[domain.StageName]domain.StageProgress, len(p.Steps)),
	}
	if p.Error != nil {
		snapshot.Error = *p.Error
	}

	for name, step := range p.Steps {
		stage := domain.StageName(name)
		if !domain.IsKnownStage(stage) {
			continue
		}
		stageStatus, ok := domain.ParseStageStatus(strings.ToLower(step.Status))
		if !ok {
			return domain.StatusSnapshot{}, "unknown stage status " + strconv.Quote(step.Status), false
		}
		snapshot.Stages[stage] = domain.StageProgress{
			Status:   stageStatus,
			Progress: roundProgress(step.Progress),
		}
	}

	return snapshot, "", true
}

// DecodeStatus parses one pushed status message. It returns the job id the
// message carries, which may be empty for per-job channels.
func DecodeStatus(op string, data []byte) (string, domain.StatusSnapshot, error) {
	var payload statusPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", domain.StatusSnapshot{}, malformed(op, "decode status message", err)
	}
	snapshot, detail, ok := payload.toSnapshot()
	if !ok {
		return "", domain.StatusSnapshot{}, malformed(op, detail, nil)
	}
	jobID := payload.TaskID
	if jobID == "" {
		jobID = payload.ID
	}
	return jobID, snapshot, nil
}

// roundProgress converts a wire percentage, clamping before the int conversion
// so huge values cannot overflow.
func roundProgress(v float64) int {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 100:
		return 100
	}
	return int(math.Round(v))
}

func unixSeconds(v float64) time.Time {
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
