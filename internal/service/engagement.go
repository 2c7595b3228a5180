package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/community-points/internal/domain"
)

// RecordRequest describes an engagement to record. ContentID is empty
// for engagements without a target (a post, for example).
type RecordRequest struct {
	UserID    string                `json:"user_id"`
	Kind      domain.EngagementKind `json:"kind"`
	ContentID string                `json:"content_id,omitempty"`
}

// RealtimeCache receives best-effort score updates for live leaderboard
// reads. Implementations: internal/redis
type RealtimeCache interface {
	IncrementScore(ctx context.Context, userID string, delta int) error
}

// EngagementRecorder validates and records engagement events, deriving
// point values from the scoring policy and feeding the points ledger.
type EngagementRecorder struct {
	users       domain.UserRepository
	contents    domain.ContentRepository
	engagements domain.EngagementRepository
	ledger      *PointsLedger
	cache       RealtimeCache
	logger      *slog.Logger
}

// NewEngagementRecorder creates a new engagement recorder. cache may be
// nil when no realtime leaderboard is wired.
func NewEngagementRecorder(
	users domain.UserRepository,
	contents domain.ContentRepository,
	engagements domain.EngagementRepository,
	ledger *PointsLedger,
	cache RealtimeCache,
	logger *slog.Logger,
) *EngagementRecorder {
	return &EngagementRecorder{
		users:       users,
		contents:    contents,
		engagements: engagements,
		ledger:      ledger,
		cache:       cache,
		logger:      logger,
	}
}

// Record validates and records a new engagement: the acting user must
// be active, the target content (if any) must exist, points come from
// the scoring policy, and the timestamp is engine-assigned.
//
// Appending the engagement, updating the content aggregate, and adding
// ledger points form one logical unit: a ledger failure rolls the
// first two back so no state remains where one effect happened without
// the other.
func (r *EngagementRecorder) Record(ctx context.Context, req RecordRequest) (*domain.Engagement, error) {
	user, err := r.users.FindByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolving acting user %s: %w", req.UserID, err)
	}
	if !user.Active() {
		return nil, fmt.Errorf("%w: user %s", domain.ErrInactiveUser, user.ID)
	}

	hasTarget := req.ContentID != ""
	if hasTarget {
		if _, err := r.contents.FindByID(ctx, req.ContentID); err != nil {
			if errors.Is(err, domain.ErrContentNotFound) {
				return nil, fmt.Errorf("%w: content %s", domain.ErrInvalidContentReference, req.ContentID)
			}
			return nil, fmt.Errorf("resolving target content %s: %w", req.ContentID, err)
		}
	}

	engagement, err := domain.NewEngagement(req.UserID, req.ContentID, req.Kind)
	if err != nil {
		return nil, err
	}

	if err := r.engagements.Save(ctx, engagement); err != nil {
		return nil, fmt.Errorf("saving engagement: %w", err)
	}
	if hasTarget {
		if err := r.contents.AdjustEngagementCount(ctx, req.ContentID, 1); err != nil {
			r.rollbackEngagement(ctx, engagement, false)
			return nil, fmt.Errorf("updating engagement count for content %s: %w", req.ContentID, err)
		}
	}

	if _, err := r.ledger.AddEngagementPoints(ctx, req.UserID, engagement.Points); err != nil {
		r.rollbackEngagement(ctx, engagement, hasTarget)
		return nil, fmt.Errorf("crediting points for engagement %s: %w", engagement.ID, err)
	}

	if r.cache != nil {
		if err := r.cache.IncrementScore(ctx, req.UserID, engagement.Points); err != nil {
			// Cache is rebuilt from the repository; do not fail the record
			r.logger.Warn("failed to update realtime leaderboard",
				"user_id", req.UserID,
				"error", err,
			)
		}
	}

	return engagement, nil
}

// rollbackEngagement compensates a partially applied record
func (r *EngagementRecorder) rollbackEngagement(ctx context.Context, engagement *domain.Engagement, undoCount bool) {
	if undoCount {
		if err := r.contents.AdjustEngagementCount(ctx, engagement.ContentID, -1); err != nil {
			r.logger.Error("failed to roll back engagement count",
				"content_id", engagement.ContentID,
				"error", err,
			)
		}
	}
	if err := r.engagements.Delete(ctx, engagement.ID); err != nil {
		r.logger.Error("failed to roll back engagement",
			"engagement_id", engagement.ID,
			"error", err,
		)
	}
}

// UserEngagements returns a user's full engagement history
func (r *EngagementRecorder) UserEngagements(ctx context.Context, userID string) ([]*domain.Engagement, error) {
	return r.engagements.ListByUser(ctx, userID)
}

// ContentEngagements returns the engagements directed at a content item
func (r *EngagementRecorder) ContentEngagements(ctx context.Context, contentID string) ([]*domain.Engagement, error) {
	return r.engagements.ListByContent(ctx, contentID)
}

// EngagementsByKind returns all engagements of one kind
func (r *EngagementRecorder) EngagementsByKind(ctx context.Context, kind domain.EngagementKind) ([]*domain.Engagement, error) {
	if !domain.ValidEngagementKind(kind) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEngagementKind, kind)
	}
	return r.engagements.ListByKind(ctx, kind)
}

// EngagementsBetween returns the engagements recorded between from and
// to, inclusive
func (r *EngagementRecorder) EngagementsBetween(ctx context.Context, from, to time.Time) ([]*domain.Engagement, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: empty time window", domain.ErrInvalidRequest)
	}
	return r.engagements.ListBetween(ctx, from, to)
}
