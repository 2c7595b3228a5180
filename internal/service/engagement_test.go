package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/community-points/internal/domain"
)

type recorderFixture struct {
	users       *memUsers
	contents    *memContents
	engagements *memEngagements
	ledger      *PointsLedger
	recorder    *EngagementRecorder
}

func newRecorderFixture() *recorderFixture {
	users := newMemUsers()
	engagements := newMemEngagements()
	contents := newMemContents(engagements)
	ledger := NewPointsLedger(users, engagements, testLogger())
	return &recorderFixture{
		users:       users,
		contents:    contents,
		engagements: engagements,
		ledger:      ledger,
		recorder:    NewEngagementRecorder(users, contents, engagements, ledger, nil, testLogger()),
	}
}

func seedContent(t *testing.T, contents *memContents, authorID string) *domain.Content {
	t.Helper()
	content := domain.NewContent(authorID, "Intro to Goroutines", "...", domain.ContentKindArticle)
	require.NoError(t, contents.Save(context.Background(), content))
	return content
}

func TestRecordCreditsPolicyPoints(t *testing.T) {
	f := newRecorderFixture()
	author := seedUser(t, f.users, "Ana", "ana@example.com")
	reader := seedUser(t, f.users, "Bruno", "bruno@example.com")
	content := seedContent(t, f.contents, author.ID)

	engagement, err := f.recorder.Record(context.Background(), RecordRequest{
		UserID:    reader.ID,
		Kind:      domain.EngagementKindLike,
		ContentID: content.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, 10, engagement.Points)
	assert.False(t, engagement.OccurredAt.IsZero())

	total, err := f.ledger.TotalPoints(context.Background(), reader.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, total)
	assert.Equal(t, 1, content.EngagementCount)

	history, err := f.recorder.UserEngagements(context.Background(), reader.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRecordWithoutTarget(t *testing.T) {
	f := newRecorderFixture()
	user := seedUser(t, f.users, "Ana", "ana@example.com")

	engagement, err := f.recorder.Record(context.Background(), RecordRequest{
		UserID: user.ID,
		Kind:   domain.EngagementKindPost,
	})
	require.NoError(t, err)
	assert.Equal(t, 50, engagement.Points)
	assert.Empty(t, engagement.ContentID)

	total, err := f.ledger.TotalPoints(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, total)
}

func TestRecordSequenceAccumulates(t *testing.T) {
	f := newRecorderFixture()
	user := seedUser(t, f.users, "Ana", "ana@example.com")

	// post 50 + like 10 + comment 20
	for _, kind := range []domain.EngagementKind{
		domain.EngagementKindPost,
		domain.EngagementKindLike,
		domain.EngagementKindComment,
	} {
		_, err := f.recorder.Record(context.Background(), RecordRequest{UserID: user.ID, Kind: kind})
		require.NoError(t, err)
	}

	total, err := f.ledger.TotalPoints(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 80, total)
}

func TestRecordRejectsInactiveUser(t *testing.T) {
	f := newRecorderFixture()
	user := seedUser(t, f.users, "Ana", "ana@example.com")
	user.Deactivate()

	_, err := f.recorder.Record(context.Background(), RecordRequest{
		UserID: user.ID,
		Kind:   domain.EngagementKindPost,
	})
	assert.ErrorIs(t, err, domain.ErrInactiveUser)

	history, err := f.recorder.UserEngagements(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecordRejectsUnknownKind(t *testing.T) {
	f := newRecorderFixture()
	user := seedUser(t, f.users, "Ana", "ana@example.com")

	_, err := f.recorder.Record(context.Background(), RecordRequest{
		UserID: user.ID,
		Kind:   domain.EngagementKind("superlike"),
	})
	assert.ErrorIs(t, err, domain.ErrUnknownEngagementKind)
}

func TestRecordRejectsMissingContent(t *testing.T) {
	f := newRecorderFixture()
	user := seedUser(t, f.users, "Ana", "ana@example.com")

	_, err := f.recorder.Record(context.Background(), RecordRequest{
		UserID:    user.ID,
		Kind:      domain.EngagementKindLike,
		ContentID: "does-not-exist",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidContentReference)

	total, err := f.ledger.TotalPoints(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, total, "a rejected engagement must not award points")
}

func TestRecordRollsBackOnLedgerFailure(t *testing.T) {
	f := newRecorderFixture()
	author := seedUser(t, f.users, "Ana", "ana@example.com")
	reader := seedUser(t, f.users, "Bruno", "bruno@example.com")
	content := seedContent(t, f.contents, author.ID)

	f.users.failAddPoints = errors.New("connection reset")

	_, err := f.recorder.Record(context.Background(), RecordRequest{
		UserID:    reader.ID,
		Kind:      domain.EngagementKindComment,
		ContentID: content.ID,
	})
	require.Error(t, err)

	// The engagement append and the count bump were compensated
	history, err := f.recorder.ContentEngagements(context.Background(), content.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Equal(t, 0, content.EngagementCount)
}

func TestRecordRollsBackOnCountFailure(t *testing.T) {
	f := newRecorderFixture()
	author := seedUser(t, f.users, "Ana", "ana@example.com")
	content := seedContent(t, f.contents, author.ID)

	f.contents.failAdjustCount = errors.New("connection reset")

	_, err := f.recorder.Record(context.Background(), RecordRequest{
		UserID:    author.ID,
		Kind:      domain.EngagementKindShare,
		ContentID: content.ID,
	})
	require.Error(t, err)

	history, err := f.recorder.ContentEngagements(context.Background(), content.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	total, err := f.ledger.TotalPoints(context.Background(), author.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestEngagementQueries(t *testing.T) {
	f := newRecorderFixture()
	ana := seedUser(t, f.users, "Ana", "ana@example.com")
	bruno := seedUser(t, f.users, "Bruno", "bruno@example.com")

	before := time.Now().UTC()

	_, err := f.recorder.Record(context.Background(), RecordRequest{UserID: ana.ID, Kind: domain.EngagementKindPost})
	require.NoError(t, err)
	_, err = f.recorder.Record(context.Background(), RecordRequest{UserID: bruno.ID, Kind: domain.EngagementKindPost})
	require.NoError(t, err)
	_, err = f.recorder.Record(context.Background(), RecordRequest{UserID: bruno.ID, Kind: domain.EngagementKindAnswer})
	require.NoError(t, err)

	posts, err := f.recorder.EngagementsByKind(context.Background(), domain.EngagementKindPost)
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	_, err = f.recorder.EngagementsByKind(context.Background(), domain.EngagementKind("wave"))
	assert.ErrorIs(t, err, domain.ErrUnknownEngagementKind)

	after := time.Now().UTC().Add(time.Second)
	window, err := f.recorder.EngagementsBetween(context.Background(), before, after)
	require.NoError(t, err)
	assert.Len(t, window, 3)

	empty, err := f.recorder.EngagementsBetween(context.Background(), after, after.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = f.recorder.EngagementsBetween(context.Background(), after, before)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

type flakyCache struct {
	err   error
	calls int
}

func (c *flakyCache) IncrementScore(context.Context, string, int) error {
	c.calls++
	return c.err
}

func TestRecordSurvivesCacheFailure(t *testing.T) {
	users := newMemUsers()
	engagements := newMemEngagements()
	contents := newMemContents(engagements)
	ledger := NewPointsLedger(users, engagements, testLogger())
	cache := &flakyCache{err: errors.New("redis down")}
	recorder := NewEngagementRecorder(users, contents, engagements, ledger, cache, testLogger())

	user := seedUser(t, users, "Ana", "ana@example.com")

	engagement, err := recorder.Record(context.Background(), RecordRequest{
		UserID: user.ID,
		Kind:   domain.EngagementKindAnswer,
	})
	require.NoError(t, err, "cache failures are best-effort, never fatal")
	assert.Equal(t, 30, engagement.Points)
	assert.Equal(t, 1, cache.calls)
}
