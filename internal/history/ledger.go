package history

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"media-translator/internal/domain"
	"media-translator/internal/store"
)

// DefaultCapacity is the number of entries kept before the oldest is evicted.
const DefaultCapacity = 50

var (
	// ErrEntryNotFound is returned when no entry has the requested job id.
	ErrEntryNotFound = errors.New("history entry not found")
	// ErrInvalidEntry is returned for entries without a job id or terminal status.
	ErrInvalidEntry = errors.New("invalid history entry")
	// ErrInvalidQuery is returned for unknown list filters or orders.
	ErrInvalidQuery = errors.New("invalid history query")
)

// Order selects list ordering.
type Order string

const (
	NewestFirst Order = "newest"
	OldestFirst Order = "oldest"
)

// ListOptions filters and orders List results. Zero values list everything newest first.
type ListOptions struct {
	Status domain.JobStatus
	Order  Order
	Limit  int
}

// Stats summarizes the ledger by final status.
type Stats struct {
	Total    int                      `json:"total"`
	Capacity int                      `json:"capacity"`
	ByStatus map[domain.JobStatus]int `json:"byStatus"`
}

// Ledger is the bounded newest-first collection of finished jobs.
type Ledger struct {
	repo     *store.Repository
	capacity int
}

// NewLedger builds a ledger over repo. Non-positive capacity uses DefaultCapacity.
func NewLedger(repo *store.Repository, capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{repo: repo, capacity: capacity}
}

// Capacity returns the maximum entry count.
func (l *Ledger) Capacity() int {
	return l.capacity
}

// Append records entry at the front. An existing entry for the same job is replaced.
func (l *Ledger) Append(ctx context.Context, entry domain.HistoryEntry) (domain.HistoryEntry, error) {
	if entry.JobID == "" || !entry.FinalStatus.IsTerminal() {
		return domain.HistoryEntry{}, ErrInvalidEntry
	}
	entry.Artifacts = lo.Map(entry.Artifacts, func(item domain.ArtifactDescriptor, _ int) domain.ArtifactDescriptor {
		return item.Durable()
	})

	_, err := l.repo.Update(ctx, func(state *store.State) error {
		rest := lo.Reject(state.HistoryEntries, func(existing domain.HistoryEntry, _ int) bool {
			return existing.JobID == entry.JobID
		})
		entries := sortEntries(append([]domain.HistoryEntry{entry}, rest...))
		if len(entries) > l.capacity {
			entries = entries[:l.capacity]
		}
		state.HistoryEntries = entries
		return nil
	})
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("append history: %w", err)
	}
	return entry, nil
}

// Remove deletes the entry for jobID.
func (l *Ledger) Remove(ctx context.Context, jobID string) error {
	_, err := l.repo.Update(ctx, func(state *store.State) error {
		_, index, found := lo.FindIndexOf(state.HistoryEntries, func(existing domain.HistoryEntry) bool {
			return existing.JobID == jobID
		})
		if !found {
			return ErrEntryNotFound
		}
		state.HistoryEntries = append(state.HistoryEntries[:index], state.HistoryEntries[index+1:]...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove history %s: %w", jobID, err)
	}
	return nil
}

// Clear deletes every entry. Preferences are kept.
func (l *Ledger) Clear(ctx context.Context) error {
	_, err := l.repo.Update(ctx, func(state *store.State) error {
		state.HistoryEntries = nil
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// Get returns the entry for jobID.
func (l *Ledger) Get(ctx context.Context, jobID string) (domain.HistoryEntry, error) {
	state, err := l.repo.Load(ctx)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	entry, found := lo.Find(state.HistoryEntries, func(existing domain.HistoryEntry) bool {
		return existing.JobID == jobID
	})
	if !found {
		return domain.HistoryEntry{}, ErrEntryNotFound
	}
	return entry, nil
}

// List returns entries matching opts.
func (l *Ledger) List(ctx context.Context, opts ListOptions) ([]domain.HistoryEntry, error) {
	state, err := l.repo.Load(ctx)
	if err != nil {
		return nil, err
	}

	entries := state.HistoryEntries
	if opts.Status != "" {
		entries = lo.Filter(entries, func(entry domain.HistoryEntry, _ int) bool {
			return entry.FinalStatus == opts.Status
		})
	}
	entries = sortEntries(append([]domain.HistoryEntry(nil), entries...))
	if opts.Order == OldestFirst {
		entries = lo.Reverse(entries)
	}
	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return entries, nil
}

// Stats counts entries by final status.
func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	state, err := l.repo.Load(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Total:    len(state.HistoryEntries),
		Capacity: l.Capacity(),
		ByStatus: lo.CountValuesBy(state.HistoryEntries, func(entry domain.HistoryEntry) domain.JobStatus {
			return entry.FinalStatus
		}),
	}, nil
}

// ParseOrder maps a query value to an Order.
func ParseOrder(raw string) (Order, bool) {
	switch Order(raw) {
	case "", NewestFirst:
		return NewestFirst, true
	case OldestFirst:
		return OldestFirst, true
	default:
		return "", false
	}
}

// sortEntries orders entries newest first by CreatedAt in place. Equal
// timestamps keep their stored order, which is most recently appended first.
func sortEntries(entries []domain.HistoryEntry) []domain.HistoryEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries
}

// Invalidate drops cached state so the next read goes to the backend.
func (l *Ledger) Invalidate() {
	l.repo.Invalidate()
}
