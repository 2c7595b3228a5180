package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/community-points/internal/domain"
)

// RankingCalculator turns point totals into position-ordered, period-
// scoped ranking snapshots with position deltas against the previous
// snapshot.
type RankingCalculator struct {
	users    domain.UserRepository
	rankings domain.RankingRepository
	logger   *slog.Logger
}

// NewRankingCalculator creates a new ranking calculator
func NewRankingCalculator(
	users domain.UserRepository,
	rankings domain.RankingRepository,
	logger *slog.Logger,
) *RankingCalculator {
	return &RankingCalculator{
		users:    users,
		rankings: rankings,
		logger:   logger,
	}
}

// ComputeRanking orders all active users by point total for the period
// instance containing at, assigns dense 1-based positions, computes
// per-user deltas against the most recent prior snapshot for the same
// period, and persists the batch append-only.
//
// Fails with ErrDuplicateRanking when a snapshot already exists for the
// period instance: recomputation produces a new snapshot only for a new
// reference date, never an edit.
func (c *RankingCalculator) ComputeRanking(ctx context.Context, period domain.RankingPeriod, at time.Time) ([]*domain.RankingEntry, error) {
	if !domain.ValidRankingPeriod(period) {
		return nil, fmt.Errorf("%w: unknown ranking period %q", domain.ErrInvalidRequest, period)
	}
	referenceDate := period.ReferenceDate(at)

	exists, err := c.rankings.ExistsForDate(ctx, period, referenceDate)
	if err != nil {
		return nil, fmt.Errorf("checking existing %s ranking for %s: %w", period, referenceDate.Format("2006-01-02"), err)
	}
	if exists {
		return nil, fmt.Errorf("%w: period %s, reference date %s",
			domain.ErrDuplicateRanking, period, referenceDate.Format("2006-01-02"))
	}

	eligible, err := c.users.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active users: %w", err)
	}
	ranked := rankUsers(eligible)

	entries := make([]*domain.RankingEntry, 0, len(ranked))
	for i, user := range ranked {
		position := i + 1

		var delta *int
		previous, err := c.rankings.FindLatestBefore(ctx, user.ID, period, referenceDate)
		switch {
		case err == nil:
			d := previous.Position - position
			delta = &d
		case errors.Is(err, domain.ErrRankingNotFound):
			// First snapshot for this user and period: delta stays absent
		default:
			return nil, fmt.Errorf("looking up previous %s ranking for user %s: %w", period, user.ID, err)
		}

		entries = append(entries, domain.NewRankingEntry(
			user.ID, period, referenceDate, position, user.TotalPoints, delta,
		))
	}

	if err := c.rankings.SaveBatch(ctx, entries); err != nil {
		return nil, fmt.Errorf("persisting %s ranking for %s: %w", period, referenceDate.Format("2006-01-02"), err)
	}

	c.logger.Info("ranking computed",
		"period", period,
		"reference_date", referenceDate.Format("2006-01-02"),
		"users", len(entries),
	)
	return entries, nil
}

// rankUsers filters to active users and sorts by points descending.
// Ties break by ascending user identity so repeated computations over
// the same set always produce the same order regardless of storage
// iteration order.
func rankUsers(users []*domain.User) []*domain.User {
	ranked := make([]*domain.User, 0, len(users))
	for _, user := range users {
		if user.Active() {
			ranked = append(ranked, user)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].TotalPoints != ranked[j].TotalPoints {
			return ranked[i].TotalPoints > ranked[j].TotalPoints
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}

// Leaderboard returns the stored snapshot for a period instance,
// ordered by position
func (c *RankingCalculator) Leaderboard(ctx context.Context, period domain.RankingPeriod, at time.Time) ([]*domain.RankingEntry, error) {
	if !domain.ValidRankingPeriod(period) {
		return nil, fmt.Errorf("%w: unknown ranking period %q", domain.ErrInvalidRequest, period)
	}
	referenceDate := period.ReferenceDate(at)
	entries, err := c.rankings.ListByPeriodAndDate(ctx, period, referenceDate)
	if err != nil {
		return nil, fmt.Errorf("listing %s ranking for %s: %w", period, referenceDate.Format("2006-01-02"), err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Position < entries[j].Position
	})
	return entries, nil
}

// UserHistory returns all of a user's ranking snapshots, most recent
// computation first
func (c *RankingCalculator) UserHistory(ctx context.Context, userID string) ([]*domain.RankingEntry, error) {
	entries, err := c.rankings.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing rankings for user %s: %w", userID, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ComputedAt.After(entries[j].ComputedAt)
	})
	return entries, nil
}
