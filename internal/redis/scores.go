package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/community-points/internal/config"
)

const scoresKey = "points:realtime"

// LiveEntry is one row of the realtime leaderboard
type LiveEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Points int    `json:"points"`
}

// ScoreCache mirrors user point totals in a Redis sorted set for cheap
// realtime leaderboard reads. The repository stays the source of
// truth: the cache is updated best-effort on every recorded engagement
// and can be rebuilt from stored totals at any time.
type ScoreCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewScoreCache creates a new realtime score cache
func NewScoreCache(cfg *config.RedisConfig, logger *slog.Logger) (*ScoreCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &ScoreCache{
		client: client,
		logger: logger,
	}, nil
}

// Client exposes the underlying Redis client for components that share
// the connection, such as the distributed locker.
func (c *ScoreCache) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *ScoreCache) Close() error {
	return c.client.Close()
}

// IncrementScore adds delta to a user's realtime score
func (c *ScoreCache) IncrementScore(ctx context.Context, userID string, delta int) error {
	err := c.client.ZIncrBy(ctx, scoresKey, float64(delta), userID).Err()
	if err != nil {
		return fmt.Errorf("incrementing realtime score: %w", err)
	}
	return nil
}

// SetScore overwrites a user's realtime score
func (c *ScoreCache) SetScore(ctx context.Context, userID string, points int) error {
	err := c.client.ZAdd(ctx, scoresKey, redis.Z{
		Score:  float64(points),
		Member: userID,
	}).Err()
	if err != nil {
		return fmt.Errorf("setting realtime score: %w", err)
	}
	return nil
}

// Remove drops a user from the realtime leaderboard
func (c *ScoreCache) Remove(ctx context.Context, userID string) error {
	err := c.client.ZRem(ctx, scoresKey, userID).Err()
	if err != nil {
		return fmt.Errorf("removing realtime score: %w", err)
	}
	return nil
}

// TopN returns the highest realtime scores in descending order
func (c *ScoreCache) TopN(ctx context.Context, n int) ([]LiveEntry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, scoresKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top scores: %w", err)
	}

	entries := make([]LiveEntry, len(results))
	for i, result := range results {
		entries[i] = LiveEntry{
			Rank:   i + 1,
			UserID: result.Member.(string),
			Points: int(result.Score),
		}
	}
	return entries, nil
}

// UserRank returns a user's realtime rank and score, or ok=false when
// the user is not cached
func (c *ScoreCache) UserRank(ctx context.Context, userID string) (LiveEntry, bool, error) {
	pipe := c.client.Pipeline()
	rankCmd := pipe.ZRevRank(ctx, scoresKey, userID)
	scoreCmd := pipe.ZScore(ctx, scoresKey, userID)
	_, err := pipe.Exec(ctx)
	if err != nil {
		if err == redis.Nil {
			return LiveEntry{}, false, nil
		}
		return LiveEntry{}, false, fmt.Errorf("getting user rank: %w", err)
	}

	rank, err := rankCmd.Result()
	if err != nil {
		if err == redis.Nil {
			return LiveEntry{}, false, nil
		}
		return LiveEntry{}, false, fmt.Errorf("getting rank result: %w", err)
	}
	score, err := scoreCmd.Result()
	if err != nil {
		return LiveEntry{}, false, fmt.Errorf("getting score result: %w", err)
	}

	return LiveEntry{
		Rank:   int(rank) + 1, // Convert 0-indexed to 1-indexed
		UserID: userID,
		Points: int(score),
	}, true, nil
}

// Count returns the number of cached users
func (c *ScoreCache) Count(ctx context.Context) (int, error) {
	count, err := c.client.ZCard(ctx, scoresKey).Result()
	if err != nil {
		return 0, fmt.Errorf("counting realtime scores: %w", err)
	}
	return int(count), nil
}

// Rebuild replaces the cached set with authoritative totals using
// pipelining. Called at startup and after ledger reconciliation.
func (c *ScoreCache) Rebuild(ctx context.Context, totals map[string]int) error {
	pipe := c.client.Pipeline()
	pipe.Del(ctx, scoresKey)
	for userID, points := range totals {
		pipe.ZAdd(ctx, scoresKey, redis.Z{
			Score:  float64(points),
			Member: userID,
		})
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("rebuilding realtime scores: %w", err)
	}

	c.logger.Info("realtime score cache rebuilt", "users", len(totals))
	return nil
}
