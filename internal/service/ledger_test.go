package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/community-points/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedUser(t *testing.T, users *memUsers, name, address string) *domain.User {
	t.Helper()
	email, err := domain.NewEmail(address)
	require.NoError(t, err)
	user := domain.NewUser(name, email)
	require.NoError(t, users.Save(context.Background(), user))
	return user
}

func TestAddEngagementPoints(t *testing.T) {
	users := newMemUsers()
	ledger := NewPointsLedger(users, newMemEngagements(), testLogger())
	user := seedUser(t, users, "Ana", "ana@example.com")

	total, err := ledger.AddEngagementPoints(context.Background(), user.ID, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, total)

	total, err = ledger.AddEngagementPoints(context.Background(), user.ID, 30)
	require.NoError(t, err)
	assert.Equal(t, 80, total)
}

func TestAddEngagementPointsRejectsNonPositive(t *testing.T) {
	users := newMemUsers()
	ledger := NewPointsLedger(users, newMemEngagements(), testLogger())
	user := seedUser(t, users, "Ana", "ana@example.com")
	user.TotalPoints = 100

	for _, amount := range []int{0, -10} {
		_, err := ledger.AddEngagementPoints(context.Background(), user.ID, amount)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	}

	total, err := ledger.TotalPoints(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, total, "rejected amounts must not change the total")
}

func TestAddEngagementPointsUnknownUser(t *testing.T) {
	ledger := NewPointsLedger(newMemUsers(), newMemEngagements(), testLogger())

	_, err := ledger.AddEngagementPoints(context.Background(), "missing", 10)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAddEngagementPointsConcurrent(t *testing.T) {
	users := newMemUsers()
	ledger := NewPointsLedger(users, newMemEngagements(), testLogger())
	user := seedUser(t, users, "Ana", "ana@example.com")

	const workers = 50
	const amount = 10

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := ledger.AddEngagementPoints(context.Background(), user.ID, amount)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	total, err := ledger.TotalPoints(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, workers*amount, total, "no increment may be lost")
}

func TestRecomputeTotal(t *testing.T) {
	users := newMemUsers()
	engagements := newMemEngagements()
	ledger := NewPointsLedger(users, engagements, testLogger())
	user := seedUser(t, users, "Ana", "ana@example.com")

	for _, kind := range []domain.EngagementKind{domain.EngagementKindPost, domain.EngagementKindLike} {
		engagement, err := domain.NewEngagement(user.ID, "", kind)
		require.NoError(t, err)
		require.NoError(t, engagements.Save(context.Background(), engagement))
	}

	// Stored total has drifted from the history
	user.TotalPoints = 999

	total, err := ledger.RecomputeTotal(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, total)

	// Idempotent: a second run over unchanged history is a no-op
	total, err = ledger.RecomputeTotal(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, total)
}

func TestRecomputeTotalClampsNegative(t *testing.T) {
	users := newMemUsers()
	engagements := newMemEngagements()
	ledger := NewPointsLedger(users, engagements, testLogger())
	user := seedUser(t, users, "Ana", "ana@example.com")

	// Imported correction with a negative value drives the sum below zero
	imported := domain.ImportEngagement(user.ID, "", domain.EngagementKindLike, -40, time.Now().UTC())
	require.NoError(t, engagements.Save(context.Background(), imported))

	total, err := ledger.RecomputeTotal(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	stored, err := ledger.TotalPoints(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored)
}
