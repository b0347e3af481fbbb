package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"media-translator/internal/auth"
	"media-translator/internal/domain"
	"media-translator/internal/gateway"
	"media-translator/internal/history"
	"media-translator/internal/jobs"
	"media-translator/internal/metrics"
)

// Controller is the application surface the control API drives.
type Controller interface {
	SubmitJob(req domain.JobRequest) (domain.JobState, error)
	UploadAndSubmit(ctx context.Context, filename string, content io.Reader, req domain.JobRequest) (domain.JobState, error)
	ResumeJob(jobID string) (domain.JobState, error)
	CancelJob() error
	CurrentJob() domain.JobState
	JobEvents(sinceSeq int64) []jobs.Event
	EventsChanged() <-chan struct{}

	ProbeArtifacts(jobID string) ([]domain.ArtifactDescriptor, error)
	ListArtifacts() []domain.ArtifactDescriptor
	DownloadArtifact(kind string) (domain.ArtifactDescriptor, error)
	RetryArtifact(kind string) (domain.ArtifactDescriptor, error)

	ListHistory(status, order string, limit int) ([]domain.HistoryEntry, error)
	GetHistoryEntry(jobID string) (domain.HistoryEntry, error)
	RemoveHistoryEntry(jobID string) error
	ClearHistory() error
	HistoryStats() (history.Stats, error)
	RemoteHistory(limit int) ([]gateway.RemoteTask, error)
	ServiceStats() (gateway.ServiceStats, error)
	DeleteRemoteTask(jobID string) error
	CreateShareLink(jobID string, ttlSeconds int64) (gateway.ShareLink, error)

	GetPreferences() (domain.Preferences, error)
	SavePreferences(prefs domain.Preferences) (domain.Preferences, error)
	Languages() []domain.Language
	GetDiagnostics() domain.DiagnosticReport
	RefreshDiagnostics() (domain.DiagnosticReport, error)
	InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error)
}

// Options configures the router.
type Options struct {
	Controller Controller
	// Issuer enables bearer-token auth on /api routes when set.
	Issuer  *auth.Issuer
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

type handlers struct {
	ctrl   Controller
	logger *slog.Logger
}

// NewRouter builds the gin engine serving the control API.
func NewRouter(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{ctrl: opts.Controller, logger: logger}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	if opts.Metrics != nil {
		router.Use(observe(opts.Metrics))
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	if opts.Issuer != nil {
		v1.Use(requireToken(opts.Issuer))
	}

	v1.POST("/jobs", h.submitJob)
	v1.POST("/jobs/upload", h.uploadJob)
	v1.GET("/jobs/current", h.currentJob)
	v1.POST("/jobs/current/cancel", h.cancelJob)
	v1.POST("/jobs/:id/resume", h.resumeJob)
	v1.POST("/jobs/:id/artifacts/probe", h.probeArtifacts)
	v1.POST("/jobs/:id/share", h.createShareLink)
	v1.GET("/events", h.streamEvents)

	v1.GET("/artifacts", h.listArtifacts)
	v1.POST("/artifacts/:kind/download", h.downloadArtifact)
	v1.POST("/artifacts/:kind/retry", h.retryArtifact)

	v1.GET("/history", h.listHistory)
	v1.GET("/history/stats", h.historyStats)
	v1.GET("/history/:id", h.getHistoryEntry)
	v1.DELETE("/history/:id", h.removeHistoryEntry)
	v1.DELETE("/history", h.clearHistory)
	v1.GET("/remote/history", h.remoteHistory)
	v1.GET("/remote/stats", h.remoteStats)
	v1.DELETE("/remote/tasks/:id", h.deleteRemoteTask)

	v1.GET("/preferences", h.getPreferences)
	v1.PUT("/preferences", h.savePreferences)
	v1.GET("/languages", h.languages)
	v1.GET("/diagnostics", h.getDiagnostics)
	v1.POST("/diagnostics/refresh", h.refreshDiagnostics)
	v1.POST("/diagnostics/:id/fix", h.fixDiagnostic)

	return router
}
