package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/community-points/internal/domain"
)

// In-memory implementations of the repository ports for service tests.
// The fail* fields inject storage failures to exercise rollback paths.

type memUsers struct {
	mu            sync.Mutex
	items         map[string]*domain.User
	failAddPoints error
}

func newMemUsers() *memUsers {
	return &memUsers{items: make(map[string]*domain.User)}
}

func (s *memUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, id)
	}
	return user, nil
}

func (s *memUsers) FindByEmail(_ context.Context, address string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.items {
		if user.Email.String() == address {
			return user, nil
		}
	}
	return nil, fmt.Errorf("%w: email %s", domain.ErrUserNotFound, address)
}

func (s *memUsers) Save(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[user.ID] = user
	return nil
}

func (s *memUsers) ListActive(_ context.Context) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []*domain.User
	for _, user := range s.items {
		if user.Active() {
			active = append(active, user)
		}
	}
	return active, nil
}

func (s *memUsers) TopByPoints(_ context.Context, limit int) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*domain.User, 0, len(s.items))
	for _, user := range s.items {
		all = append(all, user)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].TotalPoints > all[j].TotalPoints
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *memUsers) AddPoints(_ context.Context, userID string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAddPoints != nil {
		return 0, s.failAddPoints
	}
	user, ok := s.items[userID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	}
	user.TotalPoints += delta
	return user.TotalPoints, nil
}

func (s *memUsers) SetTotalPoints(_ context.Context, userID string, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.items[userID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	}
	user.TotalPoints = total
	return nil
}

type memEngagements struct {
	mu    sync.Mutex
	items map[string]*domain.Engagement
}

func newMemEngagements() *memEngagements {
	return &memEngagements{items: make(map[string]*domain.Engagement)}
}

func (s *memEngagements) Save(_ context.Context, engagement *domain.Engagement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[engagement.ID] = engagement
	return nil
}

func (s *memEngagements) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *memEngagements) ListByUser(_ context.Context, userID string) ([]*domain.Engagement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Engagement
	for _, engagement := range s.items {
		if engagement.UserID == userID {
			out = append(out, engagement)
		}
	}
	return out, nil
}

func (s *memEngagements) ListByContent(_ context.Context, contentID string) ([]*domain.Engagement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Engagement
	for _, engagement := range s.items {
		if engagement.ContentID == contentID {
			out = append(out, engagement)
		}
	}
	return out, nil
}

func (s *memEngagements) ListByKind(_ context.Context, kind domain.EngagementKind) ([]*domain.Engagement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Engagement
	for _, engagement := range s.items {
		if engagement.Kind == kind {
			out = append(out, engagement)
		}
	}
	return out, nil
}

func (s *memEngagements) ListBetween(_ context.Context, from, to time.Time) ([]*domain.Engagement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Engagement
	for _, engagement := range s.items {
		if !engagement.OccurredAt.Before(from) && !engagement.OccurredAt.After(to) {
			out = append(out, engagement)
		}
	}
	return out, nil
}

func (s *memEngagements) DeleteByContent(_ context.Context, contentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, engagement := range s.items {
		if engagement.ContentID == contentID {
			delete(s.items, id)
		}
	}
	return nil
}

type memContents struct {
	mu              sync.Mutex
	items           map[string]*domain.Content
	engagements     *memEngagements
	failAdjustCount error
}

func newMemContents(engagements *memEngagements) *memContents {
	return &memContents{
		items:       make(map[string]*domain.Content),
		engagements: engagements,
	}
}

func (s *memContents) FindByID(_ context.Context, id string) (*domain.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrContentNotFound, id)
	}
	return content, nil
}

func (s *memContents) Save(_ context.Context, content *domain.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[content.ID] = content
	return nil
}

func (s *memContents) ListByAuthor(_ context.Context, authorID string) ([]*domain.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Content
	for _, content := range s.items {
		if content.AuthorID == authorID {
			out = append(out, content)
		}
	}
	return out, nil
}

func (s *memContents) ListByKind(_ context.Context, kind domain.ContentKind) ([]*domain.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Content
	for _, content := range s.items {
		if content.Kind == kind {
			out = append(out, content)
		}
	}
	return out, nil
}

func (s *memContents) MostViewed(_ context.Context, limit int) ([]*domain.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*domain.Content, 0, len(s.items))
	for _, content := range s.items {
		all = append(all, content)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Views > all[j].Views
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *memContents) CountByAuthor(_ context.Context, authorID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, content := range s.items {
		if content.AuthorID == authorID {
			count++
		}
	}
	return count, nil
}

func (s *memContents) IncrementViews(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.items[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrContentNotFound, id)
	}
	return content.View(), nil
}

func (s *memContents) AdjustEngagementCount(_ context.Context, id string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAdjustCount != nil {
		return s.failAdjustCount
	}
	content, ok := s.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrContentNotFound, id)
	}
	content.EngagementCount += delta
	return nil
}

func (s *memContents) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrContentNotFound, id)
	}
	delete(s.items, id)
	s.mu.Unlock()
	return s.engagements.DeleteByContent(ctx, id)
}

type memRankings struct {
	mu      sync.Mutex
	entries []*domain.RankingEntry
}

func newMemRankings() *memRankings {
	return &memRankings{}
}

func (s *memRankings) FindLatestBefore(_ context.Context, userID string, period domain.RankingPeriod, before time.Time) (*domain.RankingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *domain.RankingEntry
	for _, entry := range s.entries {
		if entry.UserID != userID || entry.Period != period {
			continue
		}
		if !entry.ReferenceDate.Before(before) {
			continue
		}
		if latest == nil || entry.ReferenceDate.After(latest.ReferenceDate) {
			latest = entry
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: user %s, period %s", domain.ErrRankingNotFound, userID, period)
	}
	return latest, nil
}

func (s *memRankings) ExistsForDate(_ context.Context, period domain.RankingPeriod, referenceDate time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.entries {
		if entry.Period == period && entry.ReferenceDate.Equal(referenceDate) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memRankings) SaveBatch(_ context.Context, entries []*domain.RankingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, candidate := range entries {
		for _, existing := range s.entries {
			if existing.UserID == candidate.UserID &&
				existing.Period == candidate.Period &&
				existing.ReferenceDate.Equal(candidate.ReferenceDate) {
				return fmt.Errorf("%w: user %s", domain.ErrDuplicateRanking, candidate.UserID)
			}
		}
	}
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *memRankings) ListByPeriodAndDate(_ context.Context, period domain.RankingPeriod, referenceDate time.Time) ([]*domain.RankingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.RankingEntry
	for _, entry := range s.entries {
		if entry.Period == period && entry.ReferenceDate.Equal(referenceDate) {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *memRankings) ListByUser(_ context.Context, userID string) ([]*domain.RankingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.RankingEntry
	for _, entry := range s.entries {
		if entry.UserID == userID {
			out = append(out, entry)
		}
	}
	return out, nil
}
