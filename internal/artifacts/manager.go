package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"media-translator/internal/domain"
	"media-translator/internal/gateway"
)

// SmallFileThreshold flags transfers that are likely placeholders.
const SmallFileThreshold = 100

var (
	// ErrArtifactUnavailable is returned when the latest probe said the kind is missing.
	ErrArtifactUnavailable = errors.New("artifact unavailable")
	// ErrTransferInProgress is returned when the kind is already being saved.
	ErrTransferInProgress = errors.New("artifact transfer already in progress")
	// ErrUnknownKind is returned for kinds outside video, audio and subtitle.
	ErrUnknownKind = errors.New("unknown artifact kind")
	// ErrNoJob is returned before Open was called.
	ErrNoJob = errors.New("no job opened for artifacts")
)

// Gateway is the part of the service client artifacts need.
type Gateway interface {
	ArtifactURL(jobID string, kind domain.ArtifactKind) string
	ProbeArtifact(ctx context.Context, url string) (gateway.ProbeResult, error)
	TransferArtifact(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// Options configures a Manager.
type Options struct {
	DownloadDir string
	Locale      string
	Notifier    domain.Notifier
	Logger      *slog.Logger
}

// TransferError carries the category of a failed probe or transfer.
type TransferError struct {
	Kind     domain.ArtifactKind
	Category domain.FailureCategory
	Err      error
}

// Error formats the failure for logs.
func (e *TransferError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s artifact: %s: %v", e.Kind, e.Category, e.Err)
}

// Unwrap exposes the gateway or filesystem error.
func (e *TransferError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Manager tracks probe and transfer state of the artifacts of one completed job.
type Manager struct {
	gw       Gateway
	locale   string
	notifier domain.Notifier
	logger   *slog.Logger

	now      func() time.Time
	mkdirAll func(string, os.FileMode) error
	openFile func(string, int, os.FileMode) (*os.File, error)
	rename   func(string, string) error
	remove   func(string) error

	mu          sync.Mutex
	downloadDir string
	jobID       string
	items       map[domain.ArtifactKind]*domain.ArtifactDescriptor
}

// NewManager builds a manager using the real filesystem.
func NewManager(gw Gateway, opts Options) *Manager {
	if opts.Locale == "" {
		opts.Locale = domain.LocaleEnglish
	}
	if opts.Notifier == nil {
		opts.Notifier = domain.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		gw:          gw,
		locale:      opts.Locale,
		notifier:    opts.Notifier,
		logger:      opts.Logger,
		now:         time.Now,
		mkdirAll:    os.MkdirAll,
		openFile:    os.OpenFile,
		rename:      os.Rename,
		remove:      os.Remove,
		downloadDir: opts.DownloadDir,
	}
}

// FileName returns the local name of a saved artifact.
func FileName(kind domain.ArtifactKind, jobID string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s.%s", kind, jobID, at.Format("2006-01-02"), kind.Format())
}

// SetDownloadDir changes the directory used by later transfers.
func (m *Manager) SetDownloadDir(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadDir = strings.TrimSpace(dir)
}

// SetLocale changes the language of later notifications.
func (m *Manager) SetLocale(locale string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locale = locale
}

// Open resets the manager for jobID and builds the three descriptors.
func (m *Manager) Open(jobID string) []domain.ArtifactDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobID = jobID
	m.items = make(map[domain.ArtifactKind]*domain.ArtifactDescriptor, 3)
	for _, kind := range domain.ArtifactKinds() {
		m.items[kind] = &domain.ArtifactDescriptor{
			Kind:         kind,
			Format:       kind.Format(),
			URL:          m.gw.ArtifactURL(jobID, kind),
			Availability: domain.AvailabilityUnknown,
			Transfer:     domain.TransferIdle,
		}
	}
	return m.snapshotLocked()
}

// JobID returns the job whose artifacts are tracked.
func (m *Manager) JobID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobID
}

// Descriptors returns copies of all descriptors in kind order.
func (m *Manager) Descriptors() []domain.ArtifactDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// ProbeAll probes every kind concurrently. One failure marks only that kind unavailable.
func (m *Manager) ProbeAll(ctx context.Context) ([]domain.ArtifactDescriptor, error) {
	m.mu.Lock()
	if m.items == nil {
		m.mu.Unlock()
		return nil, ErrNoJob
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, kind := range domain.ArtifactKinds() {
		wg.Add(1)
		go func(kind domain.ArtifactKind) {
			defer wg.Done()
			_, _ = m.Probe(ctx, kind)
		}(kind)
	}
	wg.Wait()

	return m.Descriptors(), nil
}

// Probe checks one kind again. Repeating it without state change yields the same result.
func (m *Manager) Probe(ctx context.Context, kind domain.ArtifactKind) (domain.ArtifactDescriptor, error) {
	m.mu.Lock()
	item, err := m.itemLocked(kind)
	if err != nil {
		m.mu.Unlock()
		return domain.ArtifactDescriptor{}, err
	}
	item.Availability = domain.AvailabilityProbing
	url := item.URL
	locale := m.locale
	m.mu.Unlock()

	result, probeErr := m.gw.ProbeArtifact(ctx, url)

	m.mu.Lock()
	if probeErr != nil {
		item.Availability = domain.AvailabilityUnavailable
		item.Failure = categorize(probeErr)
		item.Message = domain.Message(locale, domain.MsgArtifactMissing, kind)
	} else {
		item.Availability = domain.AvailabilityAvailable
		item.Failure = domain.FailureNone
		item.Message = domain.Message(locale, domain.MsgArtifactAvailable, kind)
		if result.SizeHint > 0 {
			item.SizeHint = result.SizeHint
		}
	}
	descriptor := *item
	jobID := m.jobID
	m.mu.Unlock()

	m.notify(jobID, descriptor)
	if probeErr != nil {
		m.logger.Info("artifact probe failed", "job_id", jobID, "kind", kind, "error", probeErr)
		return descriptor, &TransferError{Kind: kind, Category: descriptor.Failure, Err: probeErr}
	}
	return descriptor, nil
}

// Download saves one kind unless the latest probe said it is unavailable.
func (m *Manager) Download(ctx context.Context, kind domain.ArtifactKind) (domain.ArtifactDescriptor, error) {
	return m.transfer(ctx, kind, false)
}

// Retry re-attempts one kind regardless of the latest probe result.
func (m *Manager) Retry(ctx context.Context, kind domain.ArtifactKind) (domain.ArtifactDescriptor, error) {
	return m.transfer(ctx, kind, true)
}

func (m *Manager) transfer(ctx context.Context, kind domain.ArtifactKind, force bool) (domain.ArtifactDescriptor, error) {
	m.mu.Lock()
	item, err := m.itemLocked(kind)
	if err != nil {
		m.mu.Unlock()
		return domain.ArtifactDescriptor{}, err
	}
	if item.Transfer == domain.TransferTransferring {
		descriptor := *item
		m.mu.Unlock()
		return descriptor, ErrTransferInProgress
	}
	if !force && item.Availability == domain.AvailabilityUnavailable {
		descriptor := *item
		m.mu.Unlock()
		return descriptor, ErrArtifactUnavailable
	}
	item.Transfer = domain.TransferTransferring
	item.Failure = domain.FailureNone
	item.Message = ""
	jobID := m.jobID
	url := item.URL
	dir := m.downloadDir
	locale := m.locale
	started := *item
	m.mu.Unlock()

	m.notify(jobID, started)
	logger := m.logger.With("job_id", jobID, "kind", kind)

	path, written, saveErr := m.save(ctx, jobID, kind, url, dir)

	m.mu.Lock()
	if saveErr != nil {
		item.Transfer = domain.TransferFailed
		item.Failure = saveErr.Category
		item.Message = domain.Message(locale, domain.FailureMessageKey(saveErr.Category), kind)
	} else {
		item.Transfer = domain.TransferSucceeded
		item.Availability = domain.AvailabilityAvailable
		item.LocalPath = path
		item.SizeHint = written
		item.Message = domain.Message(locale, domain.MsgArtifactSaved, kind, path)
	}
	descriptor := *item
	m.mu.Unlock()

	m.notify(jobID, descriptor)
	if saveErr != nil {
		logger.Warn("artifact transfer failed", "category", saveErr.Category, "error", saveErr.Err)
		return descriptor, saveErr
	}

	logger.Info("artifact saved", "path", path, "bytes", written)
	if written < SmallFileThreshold {
		logger.Warn("artifact is unusually small", "bytes", written)
		small := descriptor
		small.Message = domain.Message(locale, domain.MsgArtifactSmallFile, kind)
		m.notifyAs(domain.NotificationNotice, jobID, small)
	}
	return descriptor, nil
}

// save streams the artifact into a temp file and renames it into place.
func (m *Manager) save(ctx context.Context, jobID string, kind domain.ArtifactKind, url, dir string) (string, int64, *TransferError) {
	localErr := func(err error) *TransferError {
		return &TransferError{Kind: kind, Category: domain.FailureLocalStorage, Err: err}
	}

	if dir == "" {
		return "", 0, localErr(fmt.Errorf("download directory is not configured"))
	}
	if err := m.mkdirAll(dir, 0o755); err != nil {
		return "", 0, localErr(fmt.Errorf("prepare download directory: %w", err))
	}

	body, _, err := m.gw.TransferArtifact(ctx, url)
	if err != nil {
		return "", 0, &TransferError{Kind: kind, Category: categorize(err), Err: err}
	}
	defer body.Close()

	destination := filepath.Join(dir, FileName(kind, jobID, m.now()))
	tmpPath := destination + ".download"
	if err := m.remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", 0, localErr(fmt.Errorf("remove stale temp file: %w", err))
	}

	file, err := m.openFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", 0, localErr(fmt.Errorf("create temporary file: %w", err))
	}

	written, copyErr := io.Copy(file, body)
	closeErr := file.Close()
	if copyErr != nil {
		_ = m.remove(tmpPath)
		if isReadFailure(copyErr, file) {
			return "", 0, &TransferError{Kind: kind, Category: domain.FailureConnectivity, Err: copyErr}
		}
		return "", 0, localErr(fmt.Errorf("write destination file: %w", copyErr))
	}
	if closeErr != nil {
		_ = m.remove(tmpPath)
		return "", 0, localErr(fmt.Errorf("close destination file: %w", closeErr))
	}

	if err := m.remove(destination); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = m.remove(tmpPath)
		return "", 0, localErr(fmt.Errorf("remove old destination file: %w", err))
	}
	if err := m.rename(tmpPath, destination); err != nil {
		_ = m.remove(tmpPath)
		return "", 0, localErr(fmt.Errorf("move downloaded file into place: %w", err))
	}

	return destination, written, nil
}

func (m *Manager) itemLocked(kind domain.ArtifactKind) (*domain.ArtifactDescriptor, error) {
	if m.items == nil {
		return nil, ErrNoJob
	}
	item, ok := m.items[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return item, nil
}

func (m *Manager) snapshotLocked() []domain.ArtifactDescriptor {
	out := make([]domain.ArtifactDescriptor, 0, len(m.items))
	for _, kind := range domain.ArtifactKinds() {
		if item, ok := m.items[kind]; ok {
			out = append(out, *item)
		}
	}
	return out
}

func (m *Manager) notify(jobID string, descriptor domain.ArtifactDescriptor) {
	kind := domain.NotificationArtifact
	if descriptor.Transfer == domain.TransferFailed {
		kind = domain.NotificationFailure
	}
	m.notifyAs(kind, jobID, descriptor)
}

func (m *Manager) notifyAs(kind domain.NotificationKind, jobID string, descriptor domain.ArtifactDescriptor) {
	m.notifier.Notify(domain.Notification{
		Kind:      kind,
		JobID:     jobID,
		Category:  descriptor.Failure,
		Message:   descriptor.Message,
		Artifact:  &descriptor,
		Timestamp: m.now().UTC(),
	})
}

// categorize maps a gateway failure onto the user-facing category.
func categorize(err error) domain.FailureCategory {
	switch gateway.KindOf(err) {
	case gateway.KindNotFound:
		return domain.FailureArtifactNotReady
	case gateway.KindForbidden:
		return domain.FailureAccessDenied
	case gateway.KindServerError, gateway.KindMalformedResponse:
		return domain.FailureServerFault
	default:
		return domain.FailureConnectivity
	}
}

// isReadFailure reports whether io.Copy failed on the source side.
func isReadFailure(err error, dst *os.File) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && pathErr.Path == dst.Name() {
		return false
	}
	return true
}
