package domain

import (
	"time"

	"github.com/google/uuid"
)

// EngagementKind represents the type of a scored interaction
type EngagementKind string

const (
	EngagementKindPost    EngagementKind = "post"
	EngagementKindAnswer  EngagementKind = "answer"
	EngagementKindLike    EngagementKind = "like"
	EngagementKindComment EngagementKind = "comment"
	EngagementKindShare   EngagementKind = "share"
)

// Engagement represents a scored interaction by a user, optionally
// directed at a piece of content (a post may have no target).
type Engagement struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	ContentID  string         `json:"content_id,omitempty"`
	Kind       EngagementKind `json:"kind"`
	Points     int            `json:"points"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewEngagement creates an engagement with points derived from the
// scoring policy and an engine-assigned timestamp. contentID may be
// empty for engagements without a target.
func NewEngagement(userID, contentID string, kind EngagementKind) (*Engagement, error) {
	points, err := PointsFor(kind)
	if err != nil {
		return nil, err
	}
	return &Engagement{
		ID:         uuid.New().String(),
		UserID:     userID,
		ContentID:  contentID,
		Kind:       kind,
		Points:     points,
		OccurredAt: time.Now().UTC(),
	}, nil
}

// ImportEngagement constructs an engagement with an explicit point
// override. Reconciliation and bulk-import path only; everywhere else
// points must come from the scoring policy.
func ImportEngagement(userID, contentID string, kind EngagementKind, points int, occurredAt time.Time) *Engagement {
	return &Engagement{
		ID:         uuid.New().String(),
		UserID:     userID,
		ContentID:  contentID,
		Kind:       kind,
		Points:     points,
		OccurredAt: occurredAt,
	}
}
