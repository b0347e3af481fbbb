package jobs

import (
	"errors"
	"fmt"
	"sync"

	"media-translator/internal/domain"
)

// ErrJobAlreadyRunning is returned when starting a second active job.
var ErrJobAlreadyRunning = errors.New("job already running")

// ErrNoRunningJob is returned when cancel is requested for idle state.
var ErrNoRunningJob = errors.New("no running job")

// ErrMissingJobID is returned when a job must be addressed by id and none is given.
var ErrMissingJobID = errors.New("job id is required")

// Manager tracks the single active job a session follows.
type Manager struct {
	mu       sync.RWMutex
	current  domain.JobState
	active   bool
	reserved bool
}

// NewManager creates a manager with no active job.
func NewManager() *Manager {
	return &Manager{}
}

// Reserve claims the active slot before a job id exists, so a submission
// in flight blocks a second one. Start consumes the reservation.
func (m *Manager) Reserve() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy() {
		return ErrJobAlreadyRunning
	}
	m.reserved = true
	return nil
}

// Release drops a reservation that never reached Start.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserved = false
}

// Start claims the active slot for jobID, consuming any reservation.
func (m *Manager) Start(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active && !m.current.IsTerminal() {
		return ErrJobAlreadyRunning
	}

	m.current = NewJobState(jobID)
	m.active = true
	m.reserved = false
	return nil
}

// Update replaces the active job state after validating the transition.
func (m *Manager) Update(next domain.JobState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return fmt.Errorf("cannot update without an active job")
	}
	if next.JobID != m.current.JobID {
		return fmt.Errorf("state for job %s does not match active job %s", next.JobID, m.current.JobID)
	}
	if !isValidTransition(m.current.Status, next.Status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, next.Status)
	}
	if m.current.IsTerminal() {
		return nil
	}

	m.current = next.Clone()
	return nil
}

// Current returns a copy of the active job state.
func (m *Manager) Current() domain.JobState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone()
}

// Reset clears the active job and any reservation.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.JobState{}
	m.active = false
	m.reserved = false
}

// IsRunning reports whether a job is reserved, or active and not terminal.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.busy()
}

func (m *Manager) busy() bool {
	return m.reserved || (m.active && !m.current.IsTerminal())
}

// isValidTransition enforces the allowed client-visible status edges.
func isValidTransition(from, to domain.JobStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case domain.JobStatusQueued:
		return to == domain.JobStatusProcessing || to.IsTerminal()
	case domain.JobStatusProcessing:
		return to == domain.JobStatusQueued || to.IsTerminal()
	default:
		return false
	}
}
