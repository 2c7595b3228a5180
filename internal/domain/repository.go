package domain

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for users.
// Implementations: internal/postgres
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, address string) (*User, error)
	Save(ctx context.Context, user *User) error
	ListActive(ctx context.Context) ([]*User, error)
	TopByPoints(ctx context.Context, limit int) ([]*User, error)

	// AddPoints increments the stored total server-side and returns the
	// new value. Must be atomic: concurrent calls for the same user may
	// never lose an increment.
	AddPoints(ctx context.Context, userID string, delta int) (int, error)

	// SetTotalPoints overwrites the stored total. Ledger reconciliation
	// path only.
	SetTotalPoints(ctx context.Context, userID string, total int) error
}

// ContentRepository defines persistence operations for content items
type ContentRepository interface {
	FindByID(ctx context.Context, id string) (*Content, error)
	Save(ctx context.Context, content *Content) error
	ListByAuthor(ctx context.Context, authorID string) ([]*Content, error)
	ListByKind(ctx context.Context, kind ContentKind) ([]*Content, error)
	MostViewed(ctx context.Context, limit int) ([]*Content, error)
	CountByAuthor(ctx context.Context, authorID string) (int, error)

	// IncrementViews bumps the view counter by one and returns the new count
	IncrementViews(ctx context.Context, id string) (int, error)

	// AdjustEngagementCount changes the engagement aggregate by delta
	// (negative for compensation)
	AdjustEngagementCount(ctx context.Context, id string, delta int) error

	// Delete removes a content item and cascades to its engagements.
	// Removing a user never cascades here: content outlives its author.
	Delete(ctx context.Context, id string) error
}

// EngagementRepository defines persistence operations for engagements
type EngagementRepository interface {
	Save(ctx context.Context, engagement *Engagement) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]*Engagement, error)
	ListByContent(ctx context.Context, contentID string) ([]*Engagement, error)
	ListByKind(ctx context.Context, kind EngagementKind) ([]*Engagement, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]*Engagement, error)

	// DeleteByContent removes all engagements targeting a content item.
	// Engagements of a deleted user are kept to preserve point history.
	DeleteByContent(ctx context.Context, contentID string) error
}

// RankingRepository defines persistence operations for ranking snapshots.
// Snapshots are append-only: there is no update or delete.
type RankingRepository interface {
	// FindLatestBefore returns the user's most recent snapshot for the
	// period with a reference date strictly earlier than before, or
	// ErrRankingNotFound.
	FindLatestBefore(ctx context.Context, userID string, period RankingPeriod, before time.Time) (*RankingEntry, error)

	// ExistsForDate reports whether any snapshot exists for the period
	// instance
	ExistsForDate(ctx context.Context, period RankingPeriod, referenceDate time.Time) (bool, error)

	// SaveBatch persists one computation's entries. Returns
	// ErrDuplicateRanking if any (user, period, reference date) triple
	// is already stored.
	SaveBatch(ctx context.Context, entries []*RankingEntry) error

	ListByPeriodAndDate(ctx context.Context, period RankingPeriod, referenceDate time.Time) ([]*RankingEntry, error)
	ListByUser(ctx context.Context, userID string) ([]*RankingEntry, error)
}
