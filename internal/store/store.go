package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"media-translator/internal/domain"
)

const (
	// Key names the persisted record in every backend.
	Key = "media-translator/state.v1"
	// FileName is the on-disk name used by the file backend.
	FileName = "state.v1.json"
)

// State is the single persisted aggregate.
type State struct {
	HistoryEntries []domain.HistoryEntry `json:"historyEntries"`
	Preferences    domain.Preferences    `json:"preferences"`
}

// Backend stores the encoded record. Load reports found=false when the key is absent.
type Backend interface {
	Load(ctx context.Context) (data []byte, found bool, err error)
	Save(ctx context.Context, data []byte) error
}

// Repository owns the persisted record and serializes every mutation.
type Repository struct {
	backend  Backend
	defaults domain.Preferences

	mu     sync.Mutex
	cached *State
}

// NewRepository wraps backend. defaults are used when the record is absent.
func NewRepository(backend Backend, defaults domain.Preferences) *Repository {
	return &Repository{backend: backend, defaults: defaults}
}

// Load returns the persisted record or defaults when it is missing.
func (r *Repository) Load(ctx context.Context) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.loadLocked(ctx)
	if err != nil {
		return State{}, err
	}
	return clone(state), nil
}

// Update applies fn to the current record and persists the result.
// The record is left unchanged when fn or the write fails.
func (r *Repository) Update(ctx context.Context, fn func(*State) error) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.loadLocked(ctx)
	if err != nil {
		return State{}, err
	}

	next := clone(current)
	if err := fn(&next); err != nil {
		return State{}, err
	}

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return State{}, fmt.Errorf("encode state: %w", err)
	}
	if err := r.backend.Save(ctx, data); err != nil {
		return State{}, fmt.Errorf("save state: %w", err)
	}

	r.cached = &next
	return clone(next), nil
}

// Invalidate drops the cached record so the next read hits the backend.
func (r *Repository) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = nil
}

func (r *Repository) loadLocked(ctx context.Context) (State, error) {
	if r.cached != nil {
		return *r.cached, nil
	}

	data, found, err := r.backend.Load(ctx)
	if err != nil {
		return State{}, fmt.Errorf("load state: %w", err)
	}

	state := State{Preferences: r.defaults}
	if found && len(data) > 0 {
		if err := json.Unmarshal(data, &state); err != nil {
			return State{}, fmt.Errorf("decode state: %w", err)
		}
	}

	r.cached = &state
	return state, nil
}

func clone(state State) State {
	out := state
	out.HistoryEntries = make([]domain.HistoryEntry, len(state.HistoryEntries))
	copy(out.HistoryEntries, state.HistoryEntries)
	return out
}
