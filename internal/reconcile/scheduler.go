package reconcile

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Xin-Dragons/cpl-worker/internal/domain"
	"github.com/Xin-Dragons/cpl-worker/internal/observability"
	"github.com/Xin-Dragons/cpl-worker/internal/storage"
)

// CollectionRetries is how many attempts a collection gets per pass before
// it is skipped until the next pass.
const CollectionRetries = 3

// Scheduler runs reconciliation passes back to back until its context is
// cancelled. A pass walks every active collection sequentially; a panic or
// error anywhere aborts the pass, and the next pass starts from the top.
type Scheduler struct {
	engine      *Engine
	collections storage.CollectionStore
	metrics     *observability.Metrics // optional

	// PassDelay is the pause between passes. Zero means restart immediately.
	PassDelay time.Duration
}

// NewScheduler creates a scheduler over the given engine.
func NewScheduler(engine *Engine, collections storage.CollectionStore) *Scheduler {
	return &Scheduler{
		engine:      engine,
		collections: collections,
	}
}

// SetMetrics wires Prometheus metrics into the scheduler.
func (s *Scheduler) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// Run loops reconciliation passes until ctx is cancelled. The loop is
// unbounded on purpose: a crashed pass logs and restarts rather than
// stopping monitoring.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		s.runPass(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.PassDelay):
		}
		if s.metrics != nil {
			s.metrics.PassRestarts.Inc()
		}
	}
}

// runPass executes one full pass, absorbing panics so a poisoned collection
// cannot kill the loop.
func (s *Scheduler) runPass(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("reconciliation pass panicked", zap.Any("panic", r))
		}
	}()

	start := time.Now()
	cols, err := s.collections.GetCollections(ctx)
	if err != nil {
		zap.L().Error("load collections", zap.Error(err))
		return
	}

	for _, col := range cols {
		if ctx.Err() != nil {
			return
		}
		if !col.Active {
			continue
		}
		s.reconcileWithRetry(ctx, col, CollectionRetries)
	}

	if s.metrics != nil {
		s.metrics.PassDuration.Observe(time.Since(start).Seconds())
	}
	zap.L().Info("reconciliation pass complete",
		zap.Int("collections", len(cols)),
		zap.Duration("took", time.Since(start)))
}

// reconcileWithRetry gives a collection attemptsLeft tries within the
// current pass. The counter travels by value, so one collection's failures
// never eat into another's budget.
func (s *Scheduler) reconcileWithRetry(ctx context.Context, col *domain.Collection, attemptsLeft int) {
	start := time.Now()
	err := s.engine.ReconcileCollection(ctx, col)
	if s.metrics != nil {
		s.metrics.CollectionDuration.Observe(time.Since(start).Seconds())
	}
	if err == nil {
		return
	}

	if s.metrics != nil {
		s.metrics.CollectionFailures.Inc()
	}
	if ctx.Err() != nil {
		return
	}
	if attemptsLeft > 1 {
		zap.L().Warn("collection reconciliation failed, retrying",
			zap.String("collection", col.ID),
			zap.Int("attempts_left", attemptsLeft-1),
			zap.Error(err))
		s.reconcileWithRetry(ctx, col, attemptsLeft-1)
		return
	}

	zap.L().Error("collection skipped until next pass",
		zap.String("collection", col.ID),
		zap.Error(err))
	if s.metrics != nil {
		s.metrics.CollectionsSkipped.Inc()
	}
}
