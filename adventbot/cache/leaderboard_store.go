package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adventbot/adventbot/adventbot/aoc"
)

// Redis keys. The snapshot lives in a single hash so one EXPIRE covers
// every field and the whole snapshot invalidates at once. Counts and
// assignments are deliberately kept outside that hash: they must
// survive snapshot expiry.
const (
	keyLeaderboard = "aoc:leaderboard"
	keyBoardCounts = "aoc:board_counts"
	keyAssignments = "aoc:assigned_board"
)

// LeaderboardStore implements aoc.Store on Redis.
type LeaderboardStore struct {
	client *Client
}

// NewLeaderboardStore creates the store.
func NewLeaderboardStore(client *Client) *LeaderboardStore {
	return &LeaderboardStore{client: client}
}

// Snapshot reads the cached leaderboard hash. A missing key yields an
// empty (incomplete) snapshot, not an error.
func (s *LeaderboardStore) Snapshot(ctx context.Context) (aoc.Snapshot, error) {
	fields, err := s.client.Redis().HGetAll(ctx, keyLeaderboard).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard hash: %w", err)
	}
	return aoc.Snapshot(fields), nil
}

// WriteSnapshot replaces the cached leaderboard hash and sets its
// expiry, atomically via a transactional pipeline.
func (s *LeaderboardStore) WriteSnapshot(ctx context.Context, snap aoc.Snapshot, ttl time.Duration) error {
	values := make(map[string]interface{}, len(snap))
	for field, value := range snap {
		values[field] = value
	}

	pipe := s.client.Redis().TxPipeline()
	pipe.Del(ctx, keyLeaderboard)
	pipe.HSet(ctx, keyLeaderboard, values)
	if ttl > 0 {
		pipe.Expire(ctx, keyLeaderboard, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write leaderboard hash: %w", err)
	}
	return nil
}

// SetBoardCount records the current participant count of one board.
func (s *LeaderboardStore) SetBoardCount(ctx context.Context, boardID string, count int) error {
	return s.client.Redis().HSet(ctx, keyBoardCounts, boardID, count).Err()
}

// BoardCounts returns all recorded board counts.
func (s *LeaderboardStore) BoardCounts(ctx context.Context) (map[string]int, error) {
	fields, err := s.client.Redis().HGetAll(ctx, keyBoardCounts).Result()
	if err != nil {
		return nil, fmt.Errorf("read board counts: %w", err)
	}
	counts := make(map[string]int, len(fields))
	for boardID, value := range fields {
		count, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid count for board %s: %w", boardID, err)
		}
		counts[boardID] = count
	}
	return counts, nil
}

// Assignment returns the board previously assigned to the user, or ""
// when the user was never assigned one.
func (s *LeaderboardStore) Assignment(ctx context.Context, userID string) (string, error) {
	boardID, err := s.client.Redis().HGet(ctx, keyAssignments, userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read assignment: %w", err)
	}
	return boardID, nil
}

// Assign records the user's board. Assignments have no expiry; they are
// only replaced when the assigned board fills up.
func (s *LeaderboardStore) Assign(ctx context.Context, userID, boardID string) error {
	return s.client.Redis().HSet(ctx, keyAssignments, userID, boardID).Err()
}
