package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/community-points/internal/domain"
)

// PointsLedger maintains each user's running point total. All point
// growth outside of reconciliation flows through AddEngagementPoints.
type PointsLedger struct {
	users       domain.UserRepository
	engagements domain.EngagementRepository
	logger      *slog.Logger

	// Per-user serialization: the repository increment is atomic, but
	// RecomputeTotal does read-modify-write over the engagement history
	// and must not interleave with concurrent adds for the same user.
	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewPointsLedger creates a new points ledger
func NewPointsLedger(
	users domain.UserRepository,
	engagements domain.EngagementRepository,
	logger *slog.Logger,
) *PointsLedger {
	return &PointsLedger{
		users:       users,
		engagements: engagements,
		logger:      logger,
		userLocks:   make(map[string]*sync.Mutex),
	}
}

func (l *PointsLedger) lockUser(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.userLocks[userID] = lock
	}
	return lock
}

// AddEngagementPoints increases a user's total by amount and returns
// the new total. Fails with ErrInvalidAmount for non-positive amounts,
// leaving the total unchanged. Concurrent calls for the same user
// serialize so no increment is lost.
func (l *PointsLedger) AddEngagementPoints(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: got %d for user %s", domain.ErrInvalidAmount, amount, userID)
	}

	lock := l.lockUser(userID)
	lock.Lock()
	defer lock.Unlock()

	total, err := l.users.AddPoints(ctx, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("adding %d points to user %s: %w", amount, userID, err)
	}
	return total, nil
}

// RecomputeTotal rebuilds a user's total from their full engagement
// history and overwrites the stored value. Repair path after data
// correction or bulk import; idempotent. A negative sum is clamped to
// zero and logged rather than stored.
func (l *PointsLedger) RecomputeTotal(ctx context.Context, userID string) (int, error) {
	lock := l.lockUser(userID)
	lock.Lock()
	defer lock.Unlock()

	history, err := l.engagements.ListByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("listing engagements for user %s: %w", userID, err)
	}

	total := 0
	for _, engagement := range history {
		total += engagement.Points
	}
	if total < 0 {
		l.logger.Warn("recomputed total is negative, clamping to zero",
			"user_id", userID,
			"computed", total,
		)
		total = 0
	}

	if err := l.users.SetTotalPoints(ctx, userID, total); err != nil {
		return 0, fmt.Errorf("storing recomputed total for user %s: %w", userID, err)
	}
	return total, nil
}

// TotalPoints returns a user's current stored total
func (l *PointsLedger) TotalPoints(ctx context.Context, userID string) (int, error) {
	user, err := l.users.FindByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("looking up user %s: %w", userID, err)
	}
	return user.TotalPoints, nil
}
