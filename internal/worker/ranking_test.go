package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/community-points/internal/config"
	"github.com/community-points/internal/domain"
	"github.com/community-points/internal/service"
)

type fakeUsers struct {
	users []*domain.User
}

func (f *fakeUsers) FindByID(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}
func (f *fakeUsers) FindByEmail(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}
func (f *fakeUsers) Save(context.Context, *domain.User) error { return nil }
func (f *fakeUsers) ListActive(context.Context) ([]*domain.User, error) {
	return f.users, nil
}
func (f *fakeUsers) TopByPoints(context.Context, int) ([]*domain.User, error) {
	return f.users, nil
}
func (f *fakeUsers) AddPoints(context.Context, string, int) (int, error) { return 0, nil }
func (f *fakeUsers) SetTotalPoints(context.Context, string, int) error   { return nil }

type fakeRankings struct {
	mu      sync.Mutex
	entries []*domain.RankingEntry
}

func (f *fakeRankings) FindLatestBefore(_ context.Context, userID string, period domain.RankingPeriod, before time.Time) (*domain.RankingEntry, error) {
	return nil, domain.ErrRankingNotFound
}

func (f *fakeRankings) ExistsForDate(_ context.Context, period domain.RankingPeriod, referenceDate time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.entries {
		if entry.Period == period && entry.ReferenceDate.Equal(referenceDate) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRankings) SaveBatch(_ context.Context, entries []*domain.RankingEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeRankings) ListByPeriodAndDate(context.Context, domain.RankingPeriod, time.Time) ([]*domain.RankingEntry, error) {
	return nil, nil
}

func (f *fakeRankings) ListByUser(context.Context, string) ([]*domain.RankingEntry, error) {
	return nil, nil
}

// fakeLocker grants or denies every acquisition
type fakeLocker struct {
	denied   bool
	acquired []string
	released []string
}

func (f *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	if f.denied {
		return false, nil
	}
	f.acquired = append(f.acquired, key)
	return true, nil
}

func (f *fakeLocker) Release(_ context.Context, key string) error {
	f.released = append(f.released, key)
	return nil
}

type recordingBroadcaster struct {
	mu      sync.Mutex
	periods []domain.RankingPeriod
}

func (b *recordingBroadcaster) BroadcastRankingUpdate(period domain.RankingPeriod, _ time.Time, _ []*domain.RankingEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.periods = append(b.periods, period)
}

type recordingCache struct {
	totals map[string]int
}

func (c *recordingCache) Rebuild(_ context.Context, totals map[string]int) error {
	c.totals = totals
	return nil
}

func workerFixture(cfg *config.RankingConfig, users *fakeUsers, locks *fakeLocker, broadcaster Broadcaster, cache CacheRebuilder) *RankingWorker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	calculator := service.NewRankingCalculator(users, &fakeRankings{}, logger)
	return NewRankingWorker(calculator, users, cache, locks, broadcaster, cfg, logger)
}

func activeUsers(n int) []*domain.User {
	users := make([]*domain.User, n)
	for i := range users {
		email, _ := domain.NewEmail(fmt.Sprintf("user%d@example.com", i))
		users[i] = domain.NewUser(fmt.Sprintf("User %d", i), email)
		users[i].TotalPoints = (i + 1) * 10
	}
	return users
}

func TestRunOnceComputesConfiguredPeriods(t *testing.T) {
	locks := &fakeLocker{}
	broadcaster := &recordingBroadcaster{}
	worker := workerFixture(
		&config.RankingConfig{Interval: time.Minute, LockTTL: time.Minute, Periods: []string{"daily", "weekly"}},
		&fakeUsers{users: activeUsers(3)},
		locks,
		broadcaster,
		nil,
	)

	worker.RunOnce(context.Background())

	assert.ElementsMatch(t,
		[]string{"ranking:compute:daily", "ranking:compute:weekly"},
		locks.acquired,
	)
	assert.ElementsMatch(t, locks.acquired, locks.released)
	assert.ElementsMatch(t,
		[]domain.RankingPeriod{domain.RankingPeriodDaily, domain.RankingPeriodWeekly},
		broadcaster.periods,
	)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	worker := workerFixture(
		&config.RankingConfig{Interval: time.Minute, LockTTL: time.Minute, Periods: []string{"daily"}},
		&fakeUsers{users: activeUsers(1)},
		&fakeLocker{denied: true},
		broadcaster,
		nil,
	)

	worker.RunOnce(context.Background())

	assert.Empty(t, broadcaster.periods, "no broadcast when another node holds the lock")
}

func TestRunOnceSkipsExistingSnapshot(t *testing.T) {
	// Two passes in the same instant: the second sees the stored
	// snapshot and treats it as done
	locks := &fakeLocker{}
	broadcaster := &recordingBroadcaster{}
	worker := workerFixture(
		&config.RankingConfig{Interval: time.Minute, LockTTL: time.Minute, Periods: []string{"weekly"}},
		&fakeUsers{users: activeUsers(2)},
		locks,
		broadcaster,
		nil,
	)

	worker.RunOnce(context.Background())
	worker.RunOnce(context.Background())

	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	assert.Len(t, broadcaster.periods, 1)
}

func TestRebuildCache(t *testing.T) {
	users := activeUsers(2)
	cache := &recordingCache{}
	worker := workerFixture(
		&config.RankingConfig{Interval: time.Minute, LockTTL: time.Minute},
		&fakeUsers{users: users},
		&fakeLocker{},
		nil,
		cache,
	)

	require.NoError(t, worker.RebuildCache(context.Background()))

	require.Len(t, cache.totals, 2)
	assert.Equal(t, 10, cache.totals[users[0].ID])
	assert.Equal(t, 20, cache.totals[users[1].ID])
}

func TestStartStop(t *testing.T) {
	worker := workerFixture(
		&config.RankingConfig{Interval: time.Hour, LockTTL: time.Minute},
		&fakeUsers{},
		&fakeLocker{},
		nil,
		nil,
	)

	require.NoError(t, worker.Start(context.Background()))
	assert.True(t, worker.IsRunning())

	require.NoError(t, worker.Stop())
	assert.False(t, worker.IsRunning())
}
