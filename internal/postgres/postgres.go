package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/community-points/internal/config"
)

// Repository manages the PostgreSQL connection pool and schema. The
// per-aggregate repositories share its pool.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(320) NOT NULL UNIQUE,
			total_points INT NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS contents (
			id VARCHAR(64) PRIMARY KEY,
			author_id VARCHAR(64) NOT NULL REFERENCES users(id),
			title VARCHAR(255) NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			kind VARCHAR(20) NOT NULL,
			views INT NOT NULL DEFAULT 0,
			engagement_count INT NOT NULL DEFAULT 0,
			published_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS engagements (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL REFERENCES users(id),
			content_id VARCHAR(64) REFERENCES contents(id) ON DELETE CASCADE,
			kind VARCHAR(20) NOT NULL,
			points INT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS rankings (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL REFERENCES users(id),
			period VARCHAR(20) NOT NULL,
			reference_date TIMESTAMPTZ NOT NULL,
			position INT NOT NULL,
			points INT NOT NULL,
			delta INT,
			computed_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, period, reference_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_total_points ON users(total_points DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_contents_author ON contents(author_id)`,
		`CREATE INDEX IF NOT EXISTS idx_contents_views ON contents(views DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_engagements_user ON engagements(user_id, occurred_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_engagements_content ON engagements(content_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rankings_instance ON rankings(period, reference_date, position)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique
// constraint violation
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
