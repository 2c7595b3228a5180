package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContentKind represents the type of published content
type ContentKind string

const (
	ContentKindArticle    ContentKind = "article"
	ContentKindQuestion   ContentKind = "question"
	ContentKindAnswer     ContentKind = "answer"
	ContentKindTutorial   ContentKind = "tutorial"
	ContentKindDiscussion ContentKind = "discussion"
)

// ContentKinds enumerates every declared content kind
func ContentKinds() []ContentKind {
	return []ContentKind{
		ContentKindArticle,
		ContentKindQuestion,
		ContentKindAnswer,
		ContentKindTutorial,
		ContentKindDiscussion,
	}
}

// ValidContentKind reports whether kind is one of the declared variants
func ValidContentKind(kind ContentKind) bool {
	for _, k := range ContentKinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// Content represents a piece of content published by a user.
//
// Engagements directed at a content are stored independently keyed by
// content ID; EngagementCount is the maintained aggregate. Deleting a
// content removes its engagements, but deleting or deactivating the
// author never removes their content.
type Content struct {
	ID              string      `json:"id"`
	AuthorID        string      `json:"author_id"`
	Title           string      `json:"title"`
	Body            string      `json:"body"`
	Kind            ContentKind `json:"kind"`
	Views           int         `json:"views"`
	EngagementCount int         `json:"engagement_count"`
	PublishedAt     time.Time   `json:"published_at"`
}

// NewContent creates a content item with the publication timestamp set once
func NewContent(authorID, title, body string, kind ContentKind) *Content {
	return &Content{
		ID:          uuid.New().String(),
		AuthorID:    authorID,
		Title:       title,
		Body:        body,
		Kind:        kind,
		PublishedAt: time.Now().UTC(),
	}
}

// View increments the view counter by exactly one and returns the new
// value. Not idempotent: every call counts.
func (c *Content) View() int {
	c.Views++
	return c.Views
}
