package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/community-points/internal/domain"
)

// EngagementRepository is the PostgreSQL implementation of
// domain.EngagementRepository
type EngagementRepository struct {
	pool *pgxpool.Pool
}

// NewEngagementRepository creates an engagement repository on the
// shared pool
func NewEngagementRepository(repo *Repository) *EngagementRepository {
	return &EngagementRepository{pool: repo.Pool()}
}

func scanEngagement(row pgx.Row) (*domain.Engagement, error) {
	var (
		engagement domain.Engagement
		contentID  *string
	)
	err := row.Scan(
		&engagement.ID,
		&engagement.UserID,
		&contentID,
		&engagement.Kind,
		&engagement.Points,
		&engagement.OccurredAt,
	)
	if err != nil {
		return nil, err
	}
	if contentID != nil {
		engagement.ContentID = *contentID
	}
	return &engagement, nil
}

// Save inserts an engagement. An empty content reference is stored as
// NULL so the foreign key only applies to targeted engagements.
func (r *EngagementRepository) Save(ctx context.Context, engagement *domain.Engagement) error {
	query := `
		INSERT INTO engagements (id, user_id, content_id, kind, points, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var contentID *string
	if engagement.ContentID != "" {
		contentID = &engagement.ContentID
	}
	_, err := r.pool.Exec(ctx, query,
		engagement.ID,
		engagement.UserID,
		contentID,
		string(engagement.Kind),
		engagement.Points,
		engagement.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("saving engagement: %w", err)
	}
	return nil
}

// Delete removes a single engagement (compensation path)
func (r *EngagementRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM engagements WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting engagement: %w", err)
	}
	return nil
}

// ListByUser retrieves a user's full engagement history
func (r *EngagementRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Engagement, error) {
	query := `
		SELECT id, user_id, content_id, kind, points, occurred_at
		FROM engagements
		WHERE user_id = $1
		ORDER BY occurred_at DESC
	`
	return r.queryEngagements(ctx, query, userID)
}

// ListByContent retrieves the engagements directed at a content item
func (r *EngagementRepository) ListByContent(ctx context.Context, contentID string) ([]*domain.Engagement, error) {
	query := `
		SELECT id, user_id, content_id, kind, points, occurred_at
		FROM engagements
		WHERE content_id = $1
		ORDER BY occurred_at DESC
	`
	return r.queryEngagements(ctx, query, contentID)
}

// ListByKind retrieves all engagements of a given kind
func (r *EngagementRepository) ListByKind(ctx context.Context, kind domain.EngagementKind) ([]*domain.Engagement, error) {
	query := `
		SELECT id, user_id, content_id, kind, points, occurred_at
		FROM engagements
		WHERE kind = $1
		ORDER BY occurred_at DESC
	`
	return r.queryEngagements(ctx, query, string(kind))
}

// ListBetween retrieves engagements in the inclusive time window
func (r *EngagementRepository) ListBetween(ctx context.Context, from, to time.Time) ([]*domain.Engagement, error) {
	query := `
		SELECT id, user_id, content_id, kind, points, occurred_at
		FROM engagements
		WHERE occurred_at BETWEEN $1 AND $2
		ORDER BY occurred_at
	`
	return r.queryEngagements(ctx, query, from, to)
}

// DeleteByContent removes all engagements targeting a content item
func (r *EngagementRepository) DeleteByContent(ctx context.Context, contentID string) error {
	query := `DELETE FROM engagements WHERE content_id = $1`
	_, err := r.pool.Exec(ctx, query, contentID)
	if err != nil {
		return fmt.Errorf("deleting engagements for content: %w", err)
	}
	return nil
}

func (r *EngagementRepository) queryEngagements(ctx context.Context, query string, args ...any) ([]*domain.Engagement, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing engagements: %w", err)
	}
	defer rows.Close()

	var engagements []*domain.Engagement
	for rows.Next() {
		engagement, err := scanEngagement(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning engagement: %w", err)
		}
		engagements = append(engagements, engagement)
	}
	return engagements, rows.Err()
}
