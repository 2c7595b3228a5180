package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/community-points/internal/domain"
)

func TestCreateUser(t *testing.T) {
	users := newMemUsers()
	svc := NewUserService(users, testLogger())

	user, err := svc.Create(context.Background(), "Ana", "ana@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "Ana", user.Name)
	assert.Equal(t, 0, user.TotalPoints)
	assert.True(t, user.Active())

	found, err := svc.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
}

func TestCreateUserRejectsMalformedEmail(t *testing.T) {
	svc := NewUserService(newMemUsers(), testLogger())

	for _, address := range []string{"", "ana", "ana@", "@example.com", "ana @example.com"} {
		_, err := svc.Create(context.Background(), "Ana", address)
		assert.ErrorIs(t, err, domain.ErrInvalidEmail, "address %q", address)
	}
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	svc := NewUserService(newMemUsers(), testLogger())

	_, err := svc.Create(context.Background(), "Ana", "ana@example.com")
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "Impostor", "ana@example.com")
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
}

func TestCreateUserEmailIsCaseSensitive(t *testing.T) {
	svc := NewUserService(newMemUsers(), testLogger())

	_, err := svc.Create(context.Background(), "Ana", "ana@example.com")
	require.NoError(t, err)

	// Differs only by case, compared exactly as given
	_, err = svc.Create(context.Background(), "Ana", "Ana@example.com")
	assert.NoError(t, err)
}

func TestUpdateUserChecksNewEmail(t *testing.T) {
	svc := NewUserService(newMemUsers(), testLogger())

	ana, err := svc.Create(context.Background(), "Ana", "ana@example.com")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "Bruno", "bruno@example.com")
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), ana.ID, "", "bruno@example.com")
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

	updated, err := svc.Update(context.Background(), ana.ID, "Ana Clara", "ana.clara@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ana Clara", updated.Name)
	assert.Equal(t, "ana.clara@example.com", updated.Email.String())
}

func TestDeactivateIsSoftDelete(t *testing.T) {
	users := newMemUsers()
	svc := NewUserService(users, testLogger())

	user, err := svc.Create(context.Background(), "Ana", "ana@example.com")
	require.NoError(t, err)
	user.TotalPoints = 80

	require.NoError(t, svc.Deactivate(context.Background(), user.ID))

	// Record and points survive, but the user leaves the active set
	kept, err := svc.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 80, kept.TotalPoints)
	assert.False(t, kept.Active())

	active, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, svc.Activate(context.Background(), user.ID))
	active, err = svc.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestTopByPoints(t *testing.T) {
	users := newMemUsers()
	svc := NewUserService(users, testLogger())

	seedScoredUser(t, users, "Ana", "ana@example.com", 80)
	seedScoredUser(t, users, "Bruno", "bruno@example.com", 45)
	top := seedScoredUser(t, users, "Clara", "clara@example.com", 120)

	best, err := svc.TopByPoints(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, best, 2)
	assert.Equal(t, top.ID, best[0].ID)
}
