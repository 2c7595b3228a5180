package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/community-points/internal/domain"
)

// ContentRepository is the PostgreSQL implementation of
// domain.ContentRepository
type ContentRepository struct {
	pool *pgxpool.Pool
}

// NewContentRepository creates a content repository on the shared pool
func NewContentRepository(repo *Repository) *ContentRepository {
	return &ContentRepository{pool: repo.Pool()}
}

func scanContent(row pgx.Row) (*domain.Content, error) {
	var content domain.Content
	err := row.Scan(
		&content.ID,
		&content.AuthorID,
		&content.Title,
		&content.Body,
		&content.Kind,
		&content.Views,
		&content.EngagementCount,
		&content.PublishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &content, nil
}

// FindByID retrieves a content item by identity
func (r *ContentRepository) FindByID(ctx context.Context, id string) (*domain.Content, error) {
	query := `
		SELECT id, author_id, title, body, kind, views, engagement_count, published_at
		FROM contents
		WHERE id = $1
	`
	content, err := scanContent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrContentNotFound, id)
		}
		return nil, fmt.Errorf("getting content: %w", err)
	}
	return content, nil
}

// Save inserts or updates a content item
func (r *ContentRepository) Save(ctx context.Context, content *domain.Content) error {
	query := `
		INSERT INTO contents (id, author_id, title, body, kind, views, engagement_count, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id)
		DO UPDATE SET title = $3, body = $4, kind = $5
	`
	_, err := r.pool.Exec(ctx, query,
		content.ID,
		content.AuthorID,
		content.Title,
		content.Body,
		string(content.Kind),
		content.Views,
		content.EngagementCount,
		content.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("saving content: %w", err)
	}
	return nil
}

// ListByAuthor retrieves all content published by an author
func (r *ContentRepository) ListByAuthor(ctx context.Context, authorID string) ([]*domain.Content, error) {
	query := `
		SELECT id, author_id, title, body, kind, views, engagement_count, published_at
		FROM contents
		WHERE author_id = $1
		ORDER BY published_at DESC
	`
	return r.queryContents(ctx, query, authorID)
}

// ListByKind retrieves all content of a given kind
func (r *ContentRepository) ListByKind(ctx context.Context, kind domain.ContentKind) ([]*domain.Content, error) {
	query := `
		SELECT id, author_id, title, body, kind, views, engagement_count, published_at
		FROM contents
		WHERE kind = $1
		ORDER BY published_at DESC
	`
	return r.queryContents(ctx, query, string(kind))
}

// MostViewed retrieves the most viewed content items
func (r *ContentRepository) MostViewed(ctx context.Context, limit int) ([]*domain.Content, error) {
	query := `
		SELECT id, author_id, title, body, kind, views, engagement_count, published_at
		FROM contents
		ORDER BY views DESC, id
		LIMIT $1
	`
	return r.queryContents(ctx, query, limit)
}

// CountByAuthor returns how many content items the author has published
func (r *ContentRepository) CountByAuthor(ctx context.Context, authorID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM contents WHERE author_id = $1`, authorID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting contents by author: %w", err)
	}
	return count, nil
}

// IncrementViews bumps the view counter by one and returns the new count
func (r *ContentRepository) IncrementViews(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE contents
		SET views = views + 1
		WHERE id = $1
		RETURNING views
	`
	var views int
	err := r.pool.QueryRow(ctx, query, id).Scan(&views)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", domain.ErrContentNotFound, id)
		}
		return 0, fmt.Errorf("incrementing views: %w", err)
	}
	return views, nil
}

// AdjustEngagementCount changes the engagement aggregate by delta
func (r *ContentRepository) AdjustEngagementCount(ctx context.Context, id string, delta int) error {
	query := `UPDATE contents SET engagement_count = engagement_count + $2 WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id, delta)
	if err != nil {
		return fmt.Errorf("adjusting engagement count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrContentNotFound, id)
	}
	return nil
}

// Delete removes a content item. The foreign key cascades to its
// engagements in the same statement.
func (r *ContentRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM contents WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting content: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrContentNotFound, id)
	}
	return nil
}

func (r *ContentRepository) queryContents(ctx context.Context, query string, args ...any) ([]*domain.Content, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing contents: %w", err)
	}
	defer rows.Close()

	var contents []*domain.Content
	for rows.Next() {
		content, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning content: %w", err)
		}
		contents = append(contents, content)
	}
	return contents, rows.Err()
}
