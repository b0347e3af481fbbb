package monitor

import (
	"context"
	"log/slog"
	"sync"

	"media-translator/internal/domain"
	"media-translator/internal/gateway"
)

// PushSource serves the newest pushed snapshot to the poll loop and falls back
// to a direct fetch when nothing new arrived since the previous tick.
type PushSource struct {
	fallback StatusSource
	logger   *slog.Logger

	done chan struct{}

	mu     sync.Mutex
	latest domain.StatusSnapshot
	fresh  bool
}

// NewPushSource drains updates in the background until the channel closes.
func NewPushSource(updates <-chan gateway.Update, fallback StatusSource, logger *slog.Logger) *PushSource {
	if logger == nil {
		logger = slog.Default()
	}
	p := &PushSource{fallback: fallback, logger: logger, done: make(chan struct{})}
	go p.drain(updates)
	return p
}

func (p *PushSource) drain(updates <-chan gateway.Update) {
	defer close(p.done)
	for update := range updates {
		if update.Err != nil {
			p.logger.Debug("push update dropped", "error", update.Err)
			continue
		}
		p.mu.Lock()
		p.latest = update.Snapshot
		p.fresh = true
		p.mu.Unlock()
	}
	p.logger.Info("push channel closed, polling only")
}

// FetchStatus returns an unseen pushed snapshot or asks the fallback.
func (p *PushSource) FetchStatus(ctx context.Context, jobID string) (domain.StatusSnapshot, error) {
	p.mu.Lock()
	if p.fresh {
		p.fresh = false
		snapshot := p.latest
		p.mu.Unlock()
		return snapshot, nil
	}
	p.mu.Unlock()

	return p.fallback.FetchStatus(ctx, jobID)
}
