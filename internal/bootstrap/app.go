package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"media-translator/internal/artifacts"
	"media-translator/internal/diagnostics"
	"media-translator/internal/domain"
	"media-translator/internal/gateway"
	"media-translator/internal/history"
	"media-translator/internal/jobs"
	"media-translator/internal/metrics"
	"media-translator/internal/monitor"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// DefaultShareTTL matches the service's default link lifetime.
const DefaultShareTTL = 24 * time.Hour

var mediaDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Media files",
		Pattern:     "*.mp4;*.mov;*.mkv;*.avi;*.webm;*.mp3;*.wav;*.m4a",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// Service is the remote translation service as seen by the app.
type Service interface {
	monitor.StatusSource
	monitor.Canceller
	artifacts.Gateway
	Submit(ctx context.Context, req domain.JobRequest) (string, error)
	UploadMedia(ctx context.Context, filename string, content io.Reader, progress func(sent, total int64)) (gateway.UploadHandle, error)
	ListHistory(ctx context.Context, limit int) ([]gateway.RemoteTask, error)
	Stats(ctx context.Context) (gateway.ServiceStats, error)
	DeleteTask(ctx context.Context, jobID string) error
	CreateShareLink(ctx context.Context, jobID string, ttl time.Duration) (gateway.ShareLink, error)
	Health(ctx context.Context) error
	Languages(ctx context.Context) ([]domain.Language, error)
}

// Subscriber opens a push channel of status updates for one job.
type Subscriber interface {
	Subscribe(ctx context.Context, jobID string) (<-chan gateway.Update, error)
}

// Deps are the collaborators an App is assembled from.
type Deps struct {
	Service     Service
	Push        Subscriber
	Ledger      *history.Ledger
	Metrics     *metrics.Collector
	Checker     *diagnostics.Checker
	SyncOptions monitor.Options
	Logger      *slog.Logger
	Closers     []io.Closer
}

// App wires the gateway, synchronizer, artifacts, and history, and exposes
// them to the desktop runtime and the control API.
type App struct {
	Service     Service
	Push        Subscriber
	Ledger      *history.Ledger
	Jobs        *jobs.Manager
	Artifacts   *artifacts.Manager
	Metrics     *metrics.Collector
	Diagnostics domain.DiagnosticReport
	checker     *diagnostics.Checker
	syncOptions monitor.Options
	logger      *slog.Logger
	closers     []io.Closer
	now         func() time.Time

	mu          sync.Mutex
	prefs       domain.Preferences
	activeJobID string
	follower    *monitor.Synchronizer
	cancel      context.CancelFunc
	done        chan struct{}
	events      *jobs.EventBus
	runtimeCtx  context.Context
}

// NewWithDeps builds the application from explicit collaborators and loads
// persisted preferences.
func NewWithDeps(deps Deps) (*App, error) {
	if deps.Service == nil {
		return nil, fmt.Errorf("service is required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("history ledger is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	prefs, err := deps.Ledger.Preferences(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	a := &App{
		Service:     deps.Service,
		Push:        deps.Push,
		Ledger:      deps.Ledger,
		Jobs:        jobs.NewManager(),
		Metrics:     deps.Metrics,
		checker:     deps.Checker,
		syncOptions: deps.SyncOptions,
		logger:      logger,
		closers:     deps.Closers,
		now:         time.Now,
		prefs:       prefs,
		events:      jobs.NewEventBus(1000),
	}
	a.Artifacts = artifacts.NewManager(deps.Service, artifacts.Options{
		DownloadDir: prefs.DownloadDir,
		Locale:      prefs.Locale,
		Notifier:    a.notifier(),
		Logger:      logger,
	})
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(context.Background(), prefs)
	}
	return a, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	return wails.Run(&options.App{
		Title:  "Media Translator",
		Width:  1180,
		Height: 780,
		AssetServer: &assetserver.Options{
			Handler: http.FileServer(http.Dir("./frontend")),
		},
		OnStartup: a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			a.runtimeCtx = nil
			a.mu.Unlock()
			if err := a.Shutdown(ctx); err != nil {
				a.logger.Warn("shutdown", "error", err)
			}
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// Shutdown stops following the active job and releases backend connections.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	done := a.done
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
			a.Jobs.Reset()
		case <-ctx.Done():
		}
	}

	var errs []error
	for _, closer := range a.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// RefreshDiagnostics reloads preferences and reruns readiness checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	prefs, err := a.GetPreferences()
	if err != nil {
		return domain.DiagnosticReport{}, err
	}
	return a.refreshDiagnosticsFromPreferences(prefs), nil
}

// GetPreferences loads and returns the latest persisted preferences.
func (a *App) GetPreferences() (domain.Preferences, error) {
	prefs, err := a.Ledger.Preferences(context.Background())
	if err != nil {
		return domain.Preferences{}, fmt.Errorf("load preferences: %w", err)
	}

	a.mu.Lock()
	a.prefs = prefs
	a.mu.Unlock()
	return prefs, nil
}

// SavePreferences validates and persists preferences, then refreshes diagnostics.
func (a *App) SavePreferences(prefs domain.Preferences) (domain.Preferences, error) {
	saved, err := a.Ledger.SavePreferences(context.Background(), prefs)
	if err != nil {
		return domain.Preferences{}, err
	}
	a.applyPreferences(saved)
	a.refreshDiagnosticsFromPreferences(saved)
	return saved, nil
}

func (a *App) applyPreferences(prefs domain.Preferences) {
	a.mu.Lock()
	a.prefs = prefs
	a.mu.Unlock()
	a.Artifacts.SetDownloadDir(prefs.DownloadDir)
	a.Artifacts.SetLocale(prefs.Locale)
}

// SubmitJob validates req, submits it and starts following the new job.
func (a *App) SubmitJob(req domain.JobRequest) (domain.JobState, error) {
	normalized, err := jobs.ValidateRequest(req)
	if err != nil {
		return domain.JobState{}, err
	}
	if err := a.Jobs.Reserve(); err != nil {
		return domain.JobState{}, err
	}
	return a.submitReserved(normalized)
}

// UploadAndSubmit uploads content and submits a job for the uploaded media.
// Languages are checked before any bytes are sent.
func (a *App) UploadAndSubmit(ctx context.Context, filename string, content io.Reader, req domain.JobRequest) (domain.JobState, error) {
	req, err := jobs.ValidateLanguages(req)
	if err != nil {
		return domain.JobState{}, err
	}
	if err := a.Jobs.Reserve(); err != nil {
		return domain.JobState{}, err
	}

	handle, err := a.Service.UploadMedia(ctx, filename, content, a.uploadProgress(filename))
	if err != nil {
		a.Jobs.Release()
		return domain.JobState{}, fmt.Errorf("upload media: %w", err)
	}
	a.logger.Info("media uploaded", "file_path", handle.FilePath, "bytes", handle.Size)

	req.MediaURL = ""
	req.UploadHandle = handle.FilePath
	normalized, err := jobs.ValidateRequest(req)
	if err != nil {
		a.Jobs.Release()
		return domain.JobState{}, err
	}
	return a.submitReserved(normalized)
}

// submitReserved submits a validated request while the caller holds the reservation.
func (a *App) submitReserved(normalized domain.JobRequest) (domain.JobState, error) {
	jobID, err := a.Service.Submit(context.Background(), normalized)
	if err != nil {
		a.Jobs.Release()
		return domain.JobState{}, fmt.Errorf("submit job: %w", err)
	}
	a.logger.Info("job submitted", "job_id", jobID, "target_language", normalized.TargetLanguage)

	return a.follow(jobID, normalized, a.now().UTC())
}

// uploadProgress publishes an upload event each time the whole percentage changes.
func (a *App) uploadProgress(filename string) func(sent, total int64) {
	name := filepath.Base(filename)
	notifier := a.notifier()
	last := -1
	return func(sent, total int64) {
		if total <= 0 {
			return
		}
		percent := int(sent * 100 / total)
		if percent == last {
			return
		}
		last = percent

		a.mu.Lock()
		locale := a.prefs.Locale
		a.mu.Unlock()
		notifier.Notify(domain.Notification{
			Kind:      domain.NotificationUpload,
			Message:   domain.Message(locale, domain.MsgUploadProgress, name, percent),
			Progress:  percent,
			Timestamp: a.now().UTC(),
		})
	}
}

// SubmitFile uploads a local file chosen in the desktop UI and submits it.
func (a *App) SubmitFile(path, sourceLanguage, targetLanguage string) (domain.JobState, error) {
	file, err := os.Open(strings.TrimSpace(path))
	if err != nil {
		return domain.JobState{}, fmt.Errorf("open media file: %w", err)
	}
	defer file.Close()

	return a.UploadAndSubmit(context.Background(), filepath.Base(path), file, domain.JobRequest{
		SourceLanguage: sourceLanguage,
		TargetLanguage: targetLanguage,
	})
}

// ResumeJob follows an already submitted job again, for example after a restart.
func (a *App) ResumeJob(jobID string) (domain.JobState, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return domain.JobState{}, jobs.ErrMissingJobID
	}
	if err := a.Jobs.Reserve(); err != nil {
		return domain.JobState{}, err
	}

	var req domain.JobRequest
	createdAt := a.now().UTC()
	if entry, err := a.Ledger.Get(context.Background(), jobID); err == nil {
		req = entry.Request
		createdAt = entry.CreatedAt
	}
	return a.follow(jobID, req, createdAt)
}

// CancelJob stops following the active job and asks the service to cancel it.
func (a *App) CancelJob() error {
	a.mu.Lock()
	synchronizer := a.follower
	a.mu.Unlock()

	if synchronizer == nil {
		return jobs.ErrNoRunningJob
	}
	return synchronizer.Cancel()
}

// CurrentJob returns the active or most recently followed job state.
func (a *App) CurrentJob() domain.JobState {
	return a.Jobs.Current()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// EventsChanged returns a channel closed when the next event is published.
func (a *App) EventsChanged() <-chan struct{} {
	return a.events.Changed()
}

// ProbeArtifacts checks every artifact of jobID, or of the current job when empty.
func (a *App) ProbeArtifacts(jobID string) ([]domain.ArtifactDescriptor, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID != "" && jobID != a.Artifacts.JobID() {
		a.Artifacts.Open(jobID)
	}
	return a.Artifacts.ProbeAll(context.Background())
}

// ListArtifacts returns the current artifact descriptors without probing.
func (a *App) ListArtifacts() []domain.ArtifactDescriptor {
	return a.Artifacts.Descriptors()
}

// DownloadArtifact saves one artifact of the opened job into the download directory.
func (a *App) DownloadArtifact(kind string) (domain.ArtifactDescriptor, error) {
	parsed, ok := domain.ParseArtifactKind(kind)
	if !ok {
		return domain.ArtifactDescriptor{}, fmt.Errorf("%w: %s", artifacts.ErrUnknownKind, kind)
	}
	return a.Artifacts.Download(context.Background(), parsed)
}

// RetryArtifact re-attempts one artifact regardless of its last probe.
func (a *App) RetryArtifact(kind string) (domain.ArtifactDescriptor, error) {
	parsed, ok := domain.ParseArtifactKind(kind)
	if !ok {
		return domain.ArtifactDescriptor{}, fmt.Errorf("%w: %s", artifacts.ErrUnknownKind, kind)
	}
	return a.Artifacts.Retry(context.Background(), parsed)
}

// ListHistory returns ledger entries filtered by final status and ordered.
func (a *App) ListHistory(status, order string, limit int) ([]domain.HistoryEntry, error) {
	opts := history.ListOptions{Limit: limit}
	if status != "" {
		parsed, ok := domain.ParseJobStatus(status)
		if !ok || !parsed.IsTerminal() {
			return nil, fmt.Errorf("%w: unknown status %s", history.ErrInvalidQuery, status)
		}
		opts.Status = parsed
	}
	parsedOrder, ok := history.ParseOrder(order)
	if !ok {
		return nil, fmt.Errorf("%w: unknown order %s", history.ErrInvalidQuery, order)
	}
	opts.Order = parsedOrder
	return a.Ledger.List(context.Background(), opts)
}

// GetHistoryEntry returns one ledger entry.
func (a *App) GetHistoryEntry(jobID string) (domain.HistoryEntry, error) {
	return a.Ledger.Get(context.Background(), jobID)
}

// RemoveHistoryEntry deletes one ledger entry.
func (a *App) RemoveHistoryEntry(jobID string) error {
	return a.Ledger.Remove(context.Background(), jobID)
}

// ClearHistory deletes every ledger entry.
func (a *App) ClearHistory() error {
	return a.Ledger.Clear(context.Background())
}

// HistoryStats counts ledger entries by final status.
func (a *App) HistoryStats() (history.Stats, error) {
	return a.Ledger.Stats(context.Background())
}

// RemoteHistory lists tasks known to the service.
func (a *App) RemoteHistory(limit int) ([]gateway.RemoteTask, error) {
	return a.Service.ListHistory(context.Background(), limit)
}

// ServiceStats returns the service-wide task counters.
func (a *App) ServiceStats() (gateway.ServiceStats, error) {
	return a.Service.Stats(context.Background())
}

// DeleteRemoteTask removes a task from the service. The followed job cannot be deleted.
func (a *App) DeleteRemoteTask(jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return jobs.ErrMissingJobID
	}
	a.mu.Lock()
	active := a.activeJobID
	a.mu.Unlock()
	if jobID == active {
		return jobs.ErrJobAlreadyRunning
	}

	if err := a.Service.DeleteTask(context.Background(), jobID); err != nil {
		return err
	}
	a.logger.Info("remote task deleted", "job_id", jobID)
	return nil
}

// CreateShareLink asks the service for a public link to a finished job.
func (a *App) CreateShareLink(jobID string, ttlSeconds int64) (gateway.ShareLink, error) {
	ttl := DefaultShareTTL
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return a.Service.CreateShareLink(context.Background(), strings.TrimSpace(jobID), ttl)
}

// PickInputFile opens a native file dialog for media selection.
func (a *App) PickInputFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select media file",
		Filters: mediaDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickDownloadDirectory opens a native directory picker for downloaded results.
func (a *App) PickDownloadDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select download directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenDownloadFolder opens the given path (or configured download dir) in file manager.
func (a *App) OpenDownloadFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.prefs.DownloadDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("download path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve download path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// follow turns the caller's reservation into the active job and runs a
// synchronizer for jobID.
func (a *App) follow(jobID string, req domain.JobRequest, createdAt time.Time) (domain.JobState, error) {
	if err := a.Jobs.Start(jobID); err != nil {
		a.Jobs.Release()
		return domain.JobState{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger := a.logger.With("job_id", jobID)

	var source monitor.StatusSource = a.Service
	if a.Push != nil {
		updates, err := a.Push.Subscribe(ctx, jobID)
		if err != nil {
			logger.Warn("push channel unavailable, polling only", "error", err)
		} else {
			source = monitor.NewPushSource(updates, a.Service, logger)
		}
	}

	a.mu.Lock()
	locale := a.prefs.Locale
	a.mu.Unlock()

	opts := a.syncOptions
	opts.Locale = locale
	opts.Notifier = a.notifier()
	opts.Logger = a.logger
	opts.OnUpdate = func(state domain.JobState) {
		if err := a.Jobs.Update(state); err != nil {
			logger.Debug("job state not applied", "error", err)
		}
	}
	synchronizer := monitor.New(jobID, source, a.Service, opts)
	done := make(chan struct{})

	a.mu.Lock()
	a.activeJobID = jobID
	a.follower = synchronizer
	a.cancel = cancel
	a.done = done
	a.mu.Unlock()

	go a.runJob(ctx, synchronizer, req, createdAt, done)
	return a.Jobs.Current(), nil
}

// runJob waits for the synchronizer to finish, then resolves artifacts and
// records the outcome in the ledger.
func (a *App) runJob(ctx context.Context, synchronizer *monitor.Synchronizer, req domain.JobRequest, createdAt time.Time, done chan struct{}) {
	defer close(done)
	jobID := synchronizer.JobID()
	defer a.clearActiveJob(jobID)

	state, err := synchronizer.Run(ctx)
	if err != nil {
		a.logger.Info("stopped following job", "job_id", jobID, "error", err)
		return
	}
	_ = a.Jobs.Update(state)

	var descriptors []domain.ArtifactDescriptor
	if state.Status == domain.JobStatusCompleted {
		a.Artifacts.Open(jobID)
		descriptors, err = a.Artifacts.ProbeAll(ctx)
		if err != nil {
			a.logger.Warn("probe artifacts", "job_id", jobID, "error", err)
		}

		a.mu.Lock()
		autoDownload := a.prefs.AutoDownload
		a.mu.Unlock()
		if autoDownload {
			descriptors = a.downloadAvailable(ctx, jobID, descriptors)
		}
	}

	completedAt := a.now().UTC()
	entry := domain.HistoryEntry{
		JobID:       jobID,
		Request:     req,
		FinalStatus: state.Status,
		CreatedAt:   createdAt,
		CompletedAt: &completedAt,
		Artifacts:   descriptors,
		Error:       state.Error,
	}
	if _, err := a.Ledger.Append(context.Background(), entry); err != nil {
		a.logger.Error("record job history", "job_id", jobID, "error", err)
	}
}

// downloadAvailable saves every artifact the probe found and returns the
// updated descriptors.
func (a *App) downloadAvailable(ctx context.Context, jobID string, descriptors []domain.ArtifactDescriptor) []domain.ArtifactDescriptor {
	for _, descriptor := range descriptors {
		if descriptor.Availability != domain.AvailabilityAvailable {
			continue
		}
		if _, err := a.Artifacts.Download(ctx, descriptor.Kind); err != nil {
			a.logger.Warn("auto download", "job_id", jobID, "kind", descriptor.Kind, "error", err)
		}
	}
	return a.Artifacts.Descriptors()
}

// notifier fans notifications out to the event bus and metrics.
func (a *App) notifier() domain.Notifier {
	sinks := []domain.Notifier{domain.NotifierFunc(a.publishNotification)}
	if a.Metrics != nil {
		sinks = append(sinks, a.Metrics)
	}
	return domain.Fanout(sinks...)
}

// publishNotification stores event history and emits runtime push notifications.
func (a *App) publishNotification(n domain.Notification) {
	published := a.events.Publish(jobs.EventFromNotification(n))

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "job:event", published)
	}
}

// clearActiveJob clears cancellation handles for finished job IDs.
func (a *App) clearActiveJob(jobID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeJobID == jobID {
		a.activeJobID = ""
		a.follower = nil
		if a.cancel != nil {
			a.cancel()
		}
		a.cancel = nil
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

func (a *App) refreshDiagnosticsFromPreferences(prefs domain.Preferences) domain.DiagnosticReport {
	if a.checker == nil {
		return a.GetDiagnostics()
	}
	report := a.checker.Run(context.Background(), prefs)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.Diagnostics = report
	return report
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
