package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/community-points/internal/config"
	"github.com/community-points/internal/domain"
	"github.com/community-points/internal/locker"
	"github.com/community-points/internal/service"
)

// Broadcaster pushes freshly computed snapshots to live subscribers.
// Implementations: internal/websocket
type Broadcaster interface {
	BroadcastRankingUpdate(period domain.RankingPeriod, referenceDate time.Time, entries []*domain.RankingEntry)
}

// CacheRebuilder replaces the realtime score cache with authoritative
// totals. Implementations: internal/redis
type CacheRebuilder interface {
	Rebuild(ctx context.Context, totals map[string]int) error
}

// RankingWorker periodically computes ranking snapshots. Each period is
// computed under a distributed lock so only one instance does the work;
// a snapshot that already exists for the current instance is treated as
// done, not as a failure.
type RankingWorker struct {
	calculator  *service.RankingCalculator
	users       domain.UserRepository
	cache       CacheRebuilder
	locks       locker.DistributedLocker
	broadcaster Broadcaster
	config      *config.RankingConfig
	logger      *slog.Logger
	stopCh      chan struct{}
	doneCh      chan struct{}
	mu          sync.Mutex
	running     bool
}

// NewRankingWorker creates a new ranking worker. cache and broadcaster
// may be nil.
func NewRankingWorker(
	calculator *service.RankingCalculator,
	users domain.UserRepository,
	cache CacheRebuilder,
	locks locker.DistributedLocker,
	broadcaster Broadcaster,
	cfg *config.RankingConfig,
	logger *slog.Logger,
) *RankingWorker {
	return &RankingWorker{
		calculator:  calculator,
		users:       users,
		cache:       cache,
		locks:       locks,
		broadcaster: broadcaster,
		config:      cfg,
		logger:      logger,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start begins the background computation process
func (w *RankingWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("ranking worker started",
		"interval", w.config.Interval,
		"periods", w.periods(),
	)

	go w.run(ctx)
	return nil
}

// Stop stops the background computation process
func (w *RankingWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("ranking worker stopped")
	return nil
}

// run is the main worker loop
func (w *RankingWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.computeAll(ctx)
		}
	}
}

// periods resolves the configured period names, defaulting to all
func (w *RankingWorker) periods() []domain.RankingPeriod {
	if len(w.config.Periods) == 0 {
		return domain.RankingPeriods()
	}
	var periods []domain.RankingPeriod
	for _, name := range w.config.Periods {
		period := domain.RankingPeriod(name)
		if !domain.ValidRankingPeriod(period) {
			w.logger.Warn("skipping unknown ranking period in config", "period", name)
			continue
		}
		periods = append(periods, period)
	}
	return periods
}

// computeAll runs one scheduler pass over every configured period
func (w *RankingWorker) computeAll(ctx context.Context) {
	w.logger.Info("starting ranking pass")
	startTime := time.Now()

	computed := 0
	skipped := 0
	errorCount := 0

	for _, period := range w.periods() {
		switch err := w.computePeriod(ctx, period); {
		case err == nil:
			computed++
		case errors.Is(err, domain.ErrDuplicateRanking):
			// Already stored for this instance, by us or another node
			skipped++
		default:
			w.logger.Error("failed to compute ranking",
				"period", period,
				"error", err,
			)
			errorCount++
		}
	}

	w.logger.Info("ranking pass completed",
		"duration", time.Since(startTime),
		"computed", computed,
		"skipped", skipped,
		"errors", errorCount,
	)
}

// computePeriod computes one period's snapshot under the distributed
// lock. Failing to get the lock means another instance is on it.
func (w *RankingWorker) computePeriod(ctx context.Context, period domain.RankingPeriod) error {
	lockKey := "ranking:compute:" + string(period)
	acquired, err := w.locks.Acquire(ctx, lockKey, w.config.LockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		w.logger.Debug("ranking lock held elsewhere", "period", period)
		return domain.ErrDuplicateRanking
	}
	defer func() {
		if err := w.locks.Release(ctx, lockKey); err != nil {
			w.logger.Warn("failed to release ranking lock", "period", period, "error", err)
		}
	}()

	now := time.Now().UTC()
	entries, err := w.calculator.ComputeRanking(ctx, period, now)
	if err != nil {
		return err
	}

	if w.broadcaster != nil {
		w.broadcaster.BroadcastRankingUpdate(period, period.ReferenceDate(now), entries)
	}
	return nil
}

// RebuildCache replaces the realtime score cache with the stored
// totals of all active users. Used at startup and after ledger
// reconciliation.
func (w *RankingWorker) RebuildCache(ctx context.Context) error {
	if w.cache == nil {
		return nil
	}

	users, err := w.users.ListActive(ctx)
	if err != nil {
		return err
	}

	totals := make(map[string]int, len(users))
	for _, user := range users {
		totals[user.ID] = user.TotalPoints
	}
	return w.cache.Rebuild(ctx, totals)
}

// IsRunning returns whether the worker is currently running
func (w *RankingWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single ranking pass (useful for manual triggers)
func (w *RankingWorker) RunOnce(ctx context.Context) {
	w.computeAll(ctx)
}
