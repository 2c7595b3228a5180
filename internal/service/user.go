package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/community-points/internal/domain"
)

// UserService manages user accounts: registration with unique email,
// soft-delete deactivation, and point-total reads.
type UserService struct {
	users  domain.UserRepository
	logger *slog.Logger
}

// NewUserService creates a new user service
func NewUserService(users domain.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		logger: logger,
	}
}

// Create registers a new active user. Fails with ErrDuplicateEmail when
// the address is already taken and ErrInvalidEmail when malformed.
func (s *UserService) Create(ctx context.Context, name, address string) (*domain.User, error) {
	email, err := domain.NewEmail(address)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, email.String()); err == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateEmail, email)
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("checking email uniqueness: %w", err)
	}

	user := domain.NewUser(name, email)
	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("saving user: %w", err)
	}
	return user, nil
}

// GetByID returns a user by identity
func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.users.FindByID(ctx, id)
}

// ListActive returns all active users
func (s *UserService) ListActive(ctx context.Context) ([]*domain.User, error) {
	return s.users.ListActive(ctx)
}

// Update changes a user's name and email. A changed email is re-checked
// for uniqueness.
func (s *UserService) Update(ctx context.Context, id, name, address string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if address != "" && address != user.Email.String() {
		email, err := domain.NewEmail(address)
		if err != nil {
			return nil, err
		}
		if _, err := s.users.FindByEmail(ctx, email.String()); err == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateEmail, email)
		} else if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, fmt.Errorf("checking email uniqueness: %w", err)
		}
		user.Email = email
	}
	if name != "" {
		user.Name = name
	}

	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("saving user %s: %w", id, err)
	}
	return user, nil
}

// Deactivate soft-deletes a user: the record is retained, points and
// engagement history stay intact, and the user drops out of rankings.
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	user.Deactivate()
	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("saving user %s: %w", id, err)
	}
	return nil
}

// Activate restores a deactivated user
func (s *UserService) Activate(ctx context.Context, id string) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	user.Activate()
	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("saving user %s: %w", id, err)
	}
	return nil
}

// TopByPoints returns the highest-scoring users
func (s *UserService) TopByPoints(ctx context.Context, limit int) ([]*domain.User, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.users.TopByPoints(ctx, limit)
}
