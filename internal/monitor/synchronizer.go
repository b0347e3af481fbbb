package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"media-translator/internal/domain"
	"media-translator/internal/gateway"
	"media-translator/internal/jobs"
)

const (
	DefaultInterval      = 3 * time.Second
	DefaultFastInterval  = 2 * time.Second
	DefaultFastAfter     = 3
	DefaultNotFoundLimit = 5
	DefaultCancelTimeout = 30 * time.Second
)

// ErrAlreadyStarted is returned when Run is called a second time.
var ErrAlreadyStarted = errors.New("synchronizer already started")

// StatusSource yields status snapshots for one job.
type StatusSource interface {
	FetchStatus(ctx context.Context, jobID string) (domain.StatusSnapshot, error)
}

// Canceller asks the service to stop a job.
type Canceller interface {
	Cancel(ctx context.Context, jobID string) error
}

// Options tunes cadence and failure policy. Zero values use the defaults.
type Options struct {
	Interval      time.Duration
	FastInterval  time.Duration
	FastAfter     int
	NotFoundLimit int
	CancelTimeout time.Duration
	Locale        string
	Notifier      domain.Notifier
	Logger        *slog.Logger
	OnUpdate      func(domain.JobState)
}

// Synchronizer keeps the local view of one job in step with the service.
type Synchronizer struct {
	jobID     string
	source    StatusSource
	canceller Canceller
	opts      Options
	now       func() time.Time

	mu              sync.Mutex
	state           domain.JobState
	started         bool
	startedAt       time.Time
	cancelRequested bool

	cancelOnce sync.Once
	cancelCh   chan struct{}
	remote     sync.WaitGroup
}

// New builds a synchronizer for jobID in the idle phase.
func New(jobID string, source StatusSource, canceller Canceller, opts Options) *Synchronizer {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FastInterval <= 0 {
		opts.FastInterval = DefaultFastInterval
	}
	if opts.FastAfter <= 0 {
		opts.FastAfter = DefaultFastAfter
	}
	if opts.NotFoundLimit <= 0 {
		opts.NotFoundLimit = DefaultNotFoundLimit
	}
	if opts.CancelTimeout <= 0 {
		opts.CancelTimeout = DefaultCancelTimeout
	}
	if opts.Locale == "" {
		opts.Locale = domain.LocaleEnglish
	}
	if opts.Notifier == nil {
		opts.Notifier = domain.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Synchronizer{
		jobID:     jobID,
		source:    source,
		canceller: canceller,
		opts:      opts,
		now:       time.Now,
		state:     jobs.NewJobState(jobID),
		cancelCh:  make(chan struct{}),
	}
}

// JobID returns the followed job id.
func (s *Synchronizer) JobID() string {
	return s.jobID
}

// State returns a copy of the current job state.
func (s *Synchronizer) State() domain.JobState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Run polls until the job reaches a terminal state, cancellation, or ctx ends.
// Only ctx ending produces a non-nil error other than ErrAlreadyStarted.
func (s *Synchronizer) Run(ctx context.Context) (domain.JobState, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return s.State(), ErrAlreadyStarted
	}
	s.started = true
	s.startedAt = s.now()
	s.mu.Unlock()

	logger := s.opts.Logger.With("job_id", s.jobID)
	logger.Info("status sync started")

	successes := 0
	notFound := 0
	for {
		if s.isCancelled() {
			logger.Info("status sync cancelled")
			return s.State(), nil
		}

		snapshot, err := s.source.FetchStatus(ctx, s.jobID)

		if s.isCancelled() {
			logger.Info("status sync cancelled")
			return s.State(), nil
		}
		if ctx.Err() != nil {
			return s.State(), ctx.Err()
		}

		if err == nil {
			successes++
			notFound = 0
			state, applied := s.apply(snapshot)
			if applied && state.IsTerminal() {
				logger.Info("status sync finished", "status", state.Status)
				return state, nil
			}
		} else {
			switch kind := gateway.KindOf(err); {
			case kind == gateway.KindNotFound:
				notFound++
				if notFound >= s.opts.NotFoundLimit {
					state := s.fail(domain.FailureJobNeverMaterialized, domain.Message(s.opts.Locale, domain.MsgJobNeverAppeared))
					logger.Warn("job never materialized", "attempts", notFound)
					return state, nil
				}
				s.waiting(notFound)
			default:
				s.notice(kind, err)
				logger.Warn("status poll failed", "kind", kind, "error", err)
			}
		}

		timer := time.NewTimer(s.interval(successes))
		select {
		case <-ctx.Done():
			timer.Stop()
			return s.State(), ctx.Err()
		case <-s.cancelCh:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Cancel requests cooperative cancellation and asks the service to stop the
// job in the background. Late responses are discarded.
func (s *Synchronizer) Cancel() error {
	s.mu.Lock()
	if s.cancelRequested || s.state.IsTerminal() {
		s.mu.Unlock()
		return jobs.ErrNoRunningJob
	}
	s.cancelRequested = true
	s.state = jobs.MarkCancelled(s.state, domain.Message(s.opts.Locale, domain.MsgJobCancelled))
	s.state.Elapsed = s.elapsedLocked()
	state := s.state.Clone()
	s.mu.Unlock()

	s.cancelOnce.Do(func() { close(s.cancelCh) })
	s.publish(domain.NotificationStatus, domain.FailureNone, state.Message, state)

	if s.canceller != nil {
		s.remote.Add(1)
		go s.remoteCancel()
	}
	return nil
}

// WaitRemote blocks until background cancel calls have returned.
func (s *Synchronizer) WaitRemote() {
	s.remote.Wait()
}

func (s *Synchronizer) remoteCancel() {
	defer s.remote.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.CancelTimeout)
	defer cancel()
	if err := s.canceller.Cancel(ctx, s.jobID); err != nil {
		s.opts.Logger.Warn("remote cancel failed", "job_id", s.jobID, "error", err)
	}
}

func (s *Synchronizer) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelRequested
}

func (s *Synchronizer) interval(successes int) time.Duration {
	if successes >= s.opts.FastAfter {
		return s.opts.FastInterval
	}
	return s.opts.Interval
}

// apply merges a snapshot unless cancellation raced ahead of it.
func (s *Synchronizer) apply(snapshot domain.StatusSnapshot) (domain.JobState, bool) {
	s.mu.Lock()
	if s.cancelRequested {
		state := s.state.Clone()
		s.mu.Unlock()
		return state, false
	}
	next := jobs.ApplyServerSnapshot(s.state, snapshot)
	next.WaitingCount = 0
	next.Elapsed = s.elapsedLocked()
	s.state = next
	state := next.Clone()
	s.mu.Unlock()

	switch state.Status {
	case domain.JobStatusCompleted:
		s.publish(domain.NotificationStatus, domain.FailureNone, domain.Message(s.opts.Locale, domain.MsgJobCompleted), state)
	case domain.JobStatusFailed:
		s.publish(domain.NotificationFailure, domain.FailureJobFailed, domain.Message(s.opts.Locale, domain.MsgJobFailed, state.Error), state)
	default:
		s.publish(domain.NotificationStatus, domain.FailureNone, state.Message, state)
	}
	return state, true
}

func (s *Synchronizer) waiting(attempt int) {
	message := domain.Message(s.opts.Locale, domain.MsgWaitingForJob, attempt, s.opts.NotFoundLimit)

	s.mu.Lock()
	if s.state.IsTerminal() {
		s.mu.Unlock()
		return
	}
	s.state.WaitingCount = attempt
	s.state.Notice = message
	s.state.Elapsed = s.elapsedLocked()
	state := s.state.Clone()
	s.mu.Unlock()

	s.publish(domain.NotificationWaiting, domain.FailureNone, message, state)
}

func (s *Synchronizer) notice(kind gateway.Kind, err error) {
	category := domain.FailureConnectivity
	message := ""
	switch kind {
	case gateway.KindServerError, gateway.KindMalformedResponse:
		category = domain.FailureServerFault
	case gateway.KindForbidden:
		category = domain.FailureAccessDenied
		message = domain.Message(s.opts.Locale, domain.MsgStatusAccessDenied)
	}
	if message == "" {
		message = domain.Message(s.opts.Locale, domain.FailureMessageKey(category))
	}

	s.mu.Lock()
	if s.state.IsTerminal() {
		s.mu.Unlock()
		return
	}
	s.state.Notice = message
	s.state.Elapsed = s.elapsedLocked()
	state := s.state.Clone()
	s.mu.Unlock()

	s.publish(domain.NotificationNotice, category, message, state)
}

func (s *Synchronizer) fail(category domain.FailureCategory, message string) domain.JobState {
	s.mu.Lock()
	s.state = jobs.Fail(s.state, category, message)
	s.state.Elapsed = s.elapsedLocked()
	state := s.state.Clone()
	s.mu.Unlock()

	s.publish(domain.NotificationFailure, category, message, state)
	return state
}

func (s *Synchronizer) elapsedLocked() time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	return s.now().Sub(s.startedAt)
}

func (s *Synchronizer) publish(kind domain.NotificationKind, category domain.FailureCategory, message string, state domain.JobState) {
	if s.opts.OnUpdate != nil {
		s.opts.OnUpdate(state)
	}
	s.opts.Notifier.Notify(domain.Notification{
		Kind:      kind,
		JobID:     s.jobID,
		Category:  category,
		Message:   message,
		State:     &state,
		Timestamp: s.now().UTC(),
	})
}
