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

// RankingRepository is the PostgreSQL implementation of
// domain.RankingRepository. Snapshots are append-only; the unique
// constraint on (user_id, period, reference_date) is the final guard
// against double computation.
type RankingRepository struct {
	pool *pgxpool.Pool
}

// NewRankingRepository creates a ranking repository on the shared pool
func NewRankingRepository(repo *Repository) *RankingRepository {
	return &RankingRepository{pool: repo.Pool()}
}

func scanRankingEntry(row pgx.Row) (*domain.RankingEntry, error) {
	var entry domain.RankingEntry
	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Period,
		&entry.ReferenceDate,
		&entry.Position,
		&entry.Points,
		&entry.Delta,
		&entry.ComputedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindLatestBefore returns the user's most recent snapshot for the
// period with a reference date strictly earlier than before
func (r *RankingRepository) FindLatestBefore(ctx context.Context, userID string, period domain.RankingPeriod, before time.Time) (*domain.RankingEntry, error) {
	query := `
		SELECT id, user_id, period, reference_date, position, points, delta, computed_at
		FROM rankings
		WHERE user_id = $1 AND period = $2 AND reference_date < $3
		ORDER BY reference_date DESC
		LIMIT 1
	`
	entry, err := scanRankingEntry(r.pool.QueryRow(ctx, query, userID, string(period), before))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s, period %s", domain.ErrRankingNotFound, userID, period)
		}
		return nil, fmt.Errorf("getting previous ranking: %w", err)
	}
	return entry, nil
}

// ExistsForDate reports whether any snapshot exists for the period
// instance
func (r *RankingRepository) ExistsForDate(ctx context.Context, period domain.RankingPeriod, referenceDate time.Time) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM rankings WHERE period = $1 AND reference_date = $2)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, string(period), referenceDate).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking ranking existence: %w", err)
	}
	return exists, nil
}

// SaveBatch persists one computation's entries in a single
// transaction: either the whole snapshot lands or none of it does.
// Concurrent computations of the same instance race on the unique
// constraint and the loser gets ErrDuplicateRanking.
func (r *RankingRepository) SaveBatch(ctx context.Context, entries []*domain.RankingEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning ranking transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	query := `
		INSERT INTO rankings (id, user_id, period, reference_date, position, points, delta, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, entry := range entries {
		batch.Queue(query,
			entry.ID,
			entry.UserID,
			string(entry.Period),
			entry.ReferenceDate,
			entry.Position,
			entry.Points,
			entry.Delta,
			entry.ComputedAt,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range entries {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: snapshot already stored", domain.ErrDuplicateRanking)
			}
			return fmt.Errorf("inserting ranking entries: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("closing ranking batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing ranking transaction: %w", err)
	}
	return nil
}

// ListByPeriodAndDate retrieves the snapshot for a period instance,
// ordered by position
func (r *RankingRepository) ListByPeriodAndDate(ctx context.Context, period domain.RankingPeriod, referenceDate time.Time) ([]*domain.RankingEntry, error) {
	query := `
		SELECT id, user_id, period, reference_date, position, points, delta, computed_at
		FROM rankings
		WHERE period = $1 AND reference_date = $2
		ORDER BY position
	`
	return r.queryEntries(ctx, query, string(period), referenceDate)
}

// ListByUser retrieves all of a user's snapshots, most recent first
func (r *RankingRepository) ListByUser(ctx context.Context, userID string) ([]*domain.RankingEntry, error) {
	query := `
		SELECT id, user_id, period, reference_date, position, points, delta, computed_at
		FROM rankings
		WHERE user_id = $1
		ORDER BY computed_at DESC
	`
	return r.queryEntries(ctx, query, userID)
}

func (r *RankingRepository) queryEntries(ctx context.Context, query string, args ...any) ([]*domain.RankingEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing rankings: %w", err)
	}
	defer rows.Close()

	var entries []*domain.RankingEntry
	for rows.Next() {
		entry, err := scanRankingEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning ranking entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
