package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/community-points/internal/domain"
)

// UserRepository is the PostgreSQL implementation of
// domain.UserRepository
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a user repository on the shared pool
func NewUserRepository(repo *Repository) *UserRepository {
	return &UserRepository{pool: repo.Pool()}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user    domain.User
		address string
	)
	err := row.Scan(&user.ID, &user.Name, &address, &user.TotalPoints, &user.Status, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	email, err := domain.NewEmail(address)
	if err != nil {
		return nil, fmt.Errorf("stored email is invalid: %w", err)
	}
	user.Email = email
	return &user, nil
}

// FindByID retrieves a user by identity
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, name, email, total_points, status, created_at
		FROM users
		WHERE id = $1
	`
	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, id)
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}

// FindByEmail retrieves a user by exact email address
func (r *UserRepository) FindByEmail(ctx context.Context, address string) (*domain.User, error) {
	query := `
		SELECT id, name, email, total_points, status, created_at
		FROM users
		WHERE email = $1
	`
	user, err := scanUser(r.pool.QueryRow(ctx, query, address))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: email %s", domain.ErrUserNotFound, address)
		}
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return user, nil
}

// Save inserts or updates a user. A unique violation on the email
// column maps to ErrDuplicateEmail.
func (r *UserRepository) Save(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, name, email, total_points, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id)
		DO UPDATE SET name = $2, email = $3, status = $5
	`
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email.String(),
		user.TotalPoints,
		string(user.Status),
		createdAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateEmail, user.Email)
		}
		return fmt.Errorf("saving user: %w", err)
	}
	return nil
}

// ListActive retrieves all active users
func (r *UserRepository) ListActive(ctx context.Context) ([]*domain.User, error) {
	query := `
		SELECT id, name, email, total_points, status, created_at
		FROM users
		WHERE status = $1
		ORDER BY created_at
	`
	return r.queryUsers(ctx, query, string(domain.UserStatusActive))
}

// TopByPoints retrieves the highest-scoring users
func (r *UserRepository) TopByPoints(ctx context.Context, limit int) ([]*domain.User, error) {
	query := `
		SELECT id, name, email, total_points, status, created_at
		FROM users
		ORDER BY total_points DESC, id
		LIMIT $1
	`
	return r.queryUsers(ctx, query, limit)
}

// AddPoints increments the stored total server-side and returns the
// new value. The single UPDATE makes concurrent increments safe.
func (r *UserRepository) AddPoints(ctx context.Context, userID string, delta int) (int, error) {
	query := `
		UPDATE users
		SET total_points = total_points + $2
		WHERE id = $1
		RETURNING total_points
	`
	var total int
	err := r.pool.QueryRow(ctx, query, userID, delta).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
		}
		return 0, fmt.Errorf("adding points: %w", err)
	}
	return total, nil
}

// SetTotalPoints overwrites the stored total
func (r *UserRepository) SetTotalPoints(ctx context.Context, userID string, total int) error {
	query := `UPDATE users SET total_points = $2 WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, userID, total)
	if err != nil {
		return fmt.Errorf("setting total points: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	}
	return nil
}

func (r *UserRepository) queryUsers(ctx context.Context, query string, args ...any) ([]*domain.User, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
