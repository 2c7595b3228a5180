package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/community-points/internal/domain"
)

// ContentService manages published content and its view counter
type ContentService struct {
	users    domain.UserRepository
	contents domain.ContentRepository
	logger   *slog.Logger
}

// NewContentService creates a new content service
func NewContentService(
	users domain.UserRepository,
	contents domain.ContentRepository,
	logger *slog.Logger,
) *ContentService {
	return &ContentService{
		users:    users,
		contents: contents,
		logger:   logger,
	}
}

// Publish creates a new content item owned by an existing author
func (s *ContentService) Publish(ctx context.Context, authorID, title, body string, kind domain.ContentKind) (*domain.Content, error) {
	if !domain.ValidContentKind(kind) {
		return nil, fmt.Errorf("%w: unknown content kind %q", domain.ErrInvalidRequest, kind)
	}
	if _, err := s.users.FindByID(ctx, authorID); err != nil {
		return nil, fmt.Errorf("resolving author %s: %w", authorID, err)
	}

	content := domain.NewContent(authorID, title, body, kind)
	if err := s.contents.Save(ctx, content); err != nil {
		return nil, fmt.Errorf("saving content: %w", err)
	}
	return content, nil
}

// RecordView increments the view counter by exactly one and returns
// the new count. Every call increments: callers wanting per-viewer
// deduplication must implement it upstream.
func (s *ContentService) RecordView(ctx context.Context, contentID string) (int, error) {
	count, err := s.contents.IncrementViews(ctx, contentID)
	if err != nil {
		return 0, fmt.Errorf("incrementing views for content %s: %w", contentID, err)
	}
	return count, nil
}

// GetByID returns a content item by identity
func (s *ContentService) GetByID(ctx context.Context, id string) (*domain.Content, error) {
	return s.contents.FindByID(ctx, id)
}

// ListByAuthor returns all content published by an author. Deactivating
// the author does not touch their content.
func (s *ContentService) ListByAuthor(ctx context.Context, authorID string) ([]*domain.Content, error) {
	return s.contents.ListByAuthor(ctx, authorID)
}

// ListByKind returns all content of a given kind
func (s *ContentService) ListByKind(ctx context.Context, kind domain.ContentKind) ([]*domain.Content, error) {
	if !domain.ValidContentKind(kind) {
		return nil, fmt.Errorf("%w: unknown content kind %q", domain.ErrInvalidRequest, kind)
	}
	return s.contents.ListByKind(ctx, kind)
}

// CountByAuthor returns how many content items an author has published
func (s *ContentService) CountByAuthor(ctx context.Context, authorID string) (int, error) {
	if _, err := s.users.FindByID(ctx, authorID); err != nil {
		return 0, fmt.Errorf("resolving author %s: %w", authorID, err)
	}
	return s.contents.CountByAuthor(ctx, authorID)
}

// MostViewed returns the most viewed content items
func (s *ContentService) MostViewed(ctx context.Context, limit int) ([]*domain.Content, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.contents.MostViewed(ctx, limit)
}

// Delete removes a content item. Its engagements go with it (they have
// no meaning without the content); the earned points stay on the users
// until a ledger reconciliation says otherwise.
func (s *ContentService) Delete(ctx context.Context, id string) error {
	if _, err := s.contents.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.contents.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting content %s: %w", id, err)
	}
	return nil
}
