package domain

import "time"

// FailureCategory classifies a terminal or artifact failure for the user.
type FailureCategory string

const (
	FailureNone                 FailureCategory = ""
	FailureJobNeverMaterialized FailureCategory = "job_never_materialized"
	FailureJobFailed            FailureCategory = "job_failed"
	FailureArtifactNotReady     FailureCategory = "artifact_not_ready"
	FailureAccessDenied         FailureCategory = "access_denied"
	FailureServerFault          FailureCategory = "server_fault"
	FailureConnectivity         FailureCategory = "connectivity"
	FailureLocalStorage         FailureCategory = "local_storage"
)

// NotificationKind separates the notification streams a UI renders differently.
type NotificationKind string

const (
	NotificationStatus   NotificationKind = "status"
	NotificationWaiting  NotificationKind = "waiting"
	NotificationNotice   NotificationKind = "notice"
	NotificationArtifact NotificationKind = "artifact"
	NotificationFailure  NotificationKind = "failure"
	NotificationUpload   NotificationKind = "upload"
)

// Notification is one user-facing message produced by the core.
type Notification struct {
	Kind      NotificationKind    `json:"kind"`
	JobID     string              `json:"jobId"`
	Category  FailureCategory     `json:"category,omitempty"`
	Message   string              `json:"message"`
	Progress  int                 `json:"progress,omitempty"`
	State     *JobState           `json:"state,omitempty"`
	Artifact  *ArtifactDescriptor `json:"artifact,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// Notifier receives notifications. Implementations must not block.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f.
func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(Notification) {})

// Fanout delivers each notification to every non-nil notifier in order.
func Fanout(notifiers ...Notifier) Notifier {
	active := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return NotifierFunc(func(n Notification) {
		for _, notifier := range active {
			notifier.Notify(n)
		}
	})
}
