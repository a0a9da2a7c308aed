package cleanup

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunStore is the slice of storage the pruner needs
type RunStore interface {
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner periodically deletes readiness run records past their retention.
// It never triggers checklist runs.
type Pruner struct {
	store    RunStore
	interval time.Duration
	maxAge   time.Duration
	logger   *zap.Logger
	now      func() time.Time
	done     chan struct{}
}

// NewPruner creates a retention worker
func NewPruner(store RunStore, interval, maxAge time.Duration, logger *zap.Logger) *Pruner {
	if interval <= 0 {
		interval = time.Hour
	}
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pruner{
		store:    store,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start begins the worker in a goroutine. It stops when ctx is cancelled.
func (p *Pruner) Start(ctx context.Context) {
	go p.run(ctx)
}

// Done is closed once the worker has stopped
func (p *Pruner) Done() <-chan struct{} {
	return p.done
}

func (p *Pruner) run(ctx context.Context) {
	defer close(p.done)

	p.logger.Info("run retention worker started",
		zap.Duration("interval", p.interval),
		zap.Duration("max_age", p.maxAge),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("run retention worker stopped")
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune runs one retention cycle and returns the number of deleted records
func (p *Pruner) Prune(ctx context.Context) int64 {
	cutoff := p.now().Add(-p.maxAge)

	deleted, err := p.store.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to prune run history", zap.Error(err))
		return 0
	}

	if deleted > 0 {
		p.logger.Info("pruned run history",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	} else {
		p.logger.Debug("no expired run records found")
	}
	return deleted
}
