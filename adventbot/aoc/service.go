package aoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

// BoardCapacity is the maximum number of participants one private
// leaderboard can hold.
const BoardCapacity = 200

// Snapshot fields. A cached leaderboard is only considered fresh when
// every required field is present; a partial hash means the cache has
// expired or was never written.
const (
	FieldFullLeaderboard = "full_leaderboard"
	FieldTopLeaderboard  = "top_leaderboard"
	FieldLeaderboardURL  = "full_leaderboard_url"
	FieldFetchedAt       = "leaderboard_fetched_at"
	FieldParticipants    = "number_of_participants"
	FieldDailyStats      = "daily_stats"

	// fieldEntries carries the aggregated entries as JSON so commands
	// can answer rank lookups without re-fetching. It is written on
	// every refresh but deliberately not required for freshness.
	fieldEntries = "leaderboard_entries"
)

var requiredFields = []string{
	FieldFullLeaderboard,
	FieldTopLeaderboard,
	FieldLeaderboardURL,
	FieldFetchedAt,
	FieldParticipants,
	FieldDailyStats,
}

// ErrAllBoardsFull is returned by JoinCode when every non-staff board
// has reached capacity.
var ErrAllBoardsFull = errors.New("aoc: all leaderboards are full")

// Snapshot is one cached leaderboard state.
type Snapshot map[string]string

// Complete reports whether every required field is present.
func (s Snapshot) Complete() bool {
	for _, field := range requiredFields {
		if _, ok := s[field]; !ok {
			return false
		}
	}
	return true
}

// FullLeaderboard returns the formatted full table.
func (s Snapshot) FullLeaderboard() string { return s[FieldFullLeaderboard] }

// TopLeaderboard returns the truncated top view of the table.
func (s Snapshot) TopLeaderboard() string { return s[FieldTopLeaderboard] }

// URL returns the paste-service URL of the full table, or "" when the
// upload failed.
func (s Snapshot) URL() string { return s[FieldLeaderboardURL] }

// Participants returns the combined participant count.
func (s Snapshot) Participants() int {
	n, _ := strconv.Atoi(s[FieldParticipants])
	return n
}

// FetchedAt returns when this snapshot was fetched.
func (s Snapshot) FetchedAt() (time.Time, error) {
	return time.Parse(time.RFC3339, s[FieldFetchedAt])
}

// Entries decodes the aggregated leaderboard entries, in final order.
func (s Snapshot) Entries() ([]Entry, error) {
	raw, ok := s[fieldEntries]
	if !ok {
		return nil, errors.New("aoc: snapshot has no entry data")
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}
	return entries, nil
}

// Store is the cache contract the service needs: a snapshot hash with
// expiry, per-board participant counts and sticky board assignments.
type Store interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	WriteSnapshot(ctx context.Context, snap Snapshot, ttl time.Duration) error
	SetBoardCount(ctx context.Context, boardID string, count int) error
	BoardCounts(ctx context.Context) (map[string]int, error)
	Assignment(ctx context.Context, userID string) (string, error)
	Assign(ctx context.Context, userID, boardID string) error
}

// Fetcher fetches the raw member records of all configured boards.
type Fetcher interface {
	FetchAll(ctx context.Context, boards []Board, recordCount func(boardID string, count int)) (map[string]RawMember, error)
}

// Uploader publishes the formatted full table and returns its URL, or
// "" on failure.
type Uploader interface {
	Upload(ctx context.Context, content string) string
}

// Archiver persists a copy of each refreshed table, best effort.
type Archiver interface {
	Archive(ctx context.Context, year int, fetchedAt time.Time, content string) error
}

// ServiceConfig carries the event parameters.
type ServiceConfig struct {
	Year             int
	Boards           []Board
	StaffBoardID     string
	IgnoredDays      []int
	DisplayedEntries int
	CacheTTL         time.Duration
}

// Service ties the pipeline together: it memoizes the expensive
// fetch-aggregate-format-upload sequence in the cache store and answers
// leaderboard and join-code queries from it.
type Service struct {
	cfg      ServiceConfig
	fetcher  Fetcher
	store    Store
	uploader Uploader
	archiver Archiver

	// mu serializes the refresh sequence process-wide; group lets
	// concurrent callers share the result of an in-flight refresh
	// instead of queueing up their own.
	mu    sync.Mutex
	group singleflight.Group

	statsCache *lru.Cache
}

// NewService creates the leaderboard service. archiver may be nil.
func NewService(cfg ServiceConfig, fetcher Fetcher, store Store, uploader Uploader, archiver Archiver) *Service {
	statsCache, _ := lru.New(8)
	return &Service{
		cfg:        cfg,
		fetcher:    fetcher,
		store:      store,
		uploader:   uploader,
		archiver:   archiver,
		statsCache: statsCache,
	}
}

// Leaderboard returns the current combined leaderboard snapshot. The
// snapshot is cached and only rebuilt from the API when the cached data
// has expired, is incomplete, or invalidate is set. Only one rebuild
// runs at a time; concurrent callers wait for it and reuse its result.
func (s *Service) Leaderboard(ctx context.Context, invalidate bool) (Snapshot, error) {
	key := "leaderboard"
	if invalidate {
		key = "leaderboard:invalidate"
	}
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.refresh(ctx, invalidate)
	})
	if err != nil {
		return nil, err
	}
	return v.(Snapshot), nil
}

func (s *Service) refresh(ctx context.Context, invalidate bool) (Snapshot, error) {
	cached, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cached leaderboard: %w", err)
	}
	if !invalidate && cached.Complete() {
		return cached, nil
	}

	slog.Info("No leaderboard cache available, fetching leaderboards",
		slog.String("type", "cache"),
		slog.Bool("invalidated", invalidate),
	)

	raw, err := s.fetcher.FetchAll(ctx, s.cfg.Boards, func(boardID string, count int) {
		if err := s.store.SetBoardCount(ctx, boardID, count); err != nil {
			slog.Error("Failed to record board count",
				slog.String("type", "cache"),
				slog.String("board", boardID),
				slog.Any("error", err),
			)
		}
	})
	if err != nil {
		// The stale snapshot, if any, stays in place.
		return nil, err
	}

	entries, dailyStats := BuildLeaderboard(raw, s.cfg.IgnoredDays)
	table := FormatTable(entries)
	url := s.uploader.Upload(ctx, table)
	fetchedAt := time.Now().UTC()

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, s.cfg.Year, fetchedAt, table); err != nil {
			slog.Warn("Failed to archive leaderboard snapshot",
				slog.String("type", "sys"),
				slog.Any("error", err),
			)
		}
	}

	statsJSON, err := json.Marshal(dailyStats)
	if err != nil {
		return nil, fmt.Errorf("encode daily stats: %w", err)
	}
	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode entries: %w", err)
	}

	snap := Snapshot{
		FieldFullLeaderboard: table,
		FieldTopLeaderboard:  TopView(table, s.cfg.DisplayedEntries),
		FieldLeaderboardURL:  url,
		FieldFetchedAt:       fetchedAt.Format(time.RFC3339),
		FieldParticipants:    strconv.Itoa(len(entries)),
		FieldDailyStats:      string(statsJSON),
		fieldEntries:         string(entriesJSON),
	}
	if err := s.store.WriteSnapshot(ctx, snap, s.cfg.CacheTTL); err != nil {
		return nil, fmt.Errorf("write leaderboard cache: %w", err)
	}
	return snap, nil
}

// DailyStats decodes a snapshot's per-day counts, memoized per fetch
// timestamp so repeated stats requests don't re-parse the same JSON.
func (s *Service) DailyStats(snap Snapshot) (DailyStats, error) {
	key := snap[FieldFetchedAt]
	if v, ok := s.statsCache.Get(key); ok {
		return v.(DailyStats), nil
	}
	var stats DailyStats
	if err := json.Unmarshal([]byte(snap[FieldDailyStats]), &stats); err != nil {
		return nil, fmt.Errorf("decode daily stats: %w", err)
	}
	s.statsCache.Add(key, stats)
	return stats, nil
}

// CacheTTL returns the configured snapshot lifetime.
func (s *Service) CacheTTL() time.Duration {
	return s.cfg.CacheTTL
}

// JoinCode picks a board for the user and returns its join code. A user
// who already received a code keeps it as long as their board has room,
// so one person can never occupy slots on several boards. When every
// non-staff board has reached capacity, ErrAllBoardsFull is returned
// and no assignment is recorded.
func (s *Service) JoinCode(ctx context.Context, userID string) (string, error) {
	// Refreshing here keeps the board counts roughly in sync with the
	// actual leaderboard state; the capacity buffer absorbs the rest.
	if _, err := s.Leaderboard(ctx, false); err != nil {
		return "", err
	}

	previous, err := s.store.Assignment(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("read board assignment: %w", err)
	}
	counts, err := s.boardCounts(ctx)
	if err != nil {
		return "", err
	}

	if previous != "" {
		if counts[previous] < BoardCapacity {
			slog.Info("User already assigned to a board with open slots",
				slog.String("type", "cmd"),
				slog.String("user_id", userID),
				slog.String("board", previous),
			)
			return s.joinCodeFor(previous)
		}
		slog.Info("Previously assigned board is full, reassigning",
			slog.String("type", "cmd"),
			slog.String("user_id", userID),
			slog.String("board", previous),
		)
	}

	if len(counts) == 0 {
		// Counts should have been written by the refresh above; force
		// an uncached fetch to restore them.
		slog.Warn("Leaderboard counts were missing from the cache unexpectedly",
			slog.String("type", "cache"),
		)
		if _, err := s.Leaderboard(ctx, true); err != nil {
			return "", err
		}
		if counts, err = s.boardCounts(ctx); err != nil {
			return "", err
		}
		if len(counts) == 0 {
			return "", fmt.Errorf("%w: no board counts available", ErrFetchFailed)
		}
	}

	best := ""
	for boardID, count := range counts {
		if best == "" || count < counts[best] || (count == counts[best] && boardID < best) {
			best = boardID
		}
	}
	if counts[best] >= BoardCapacity {
		slog.Warn("Join code requested but all boards are full",
			slog.String("type", "cmd"),
			slog.String("user_id", userID),
		)
		return "", ErrAllBoardsFull
	}

	slog.Info("Assigning user to board",
		slog.String("type", "cmd"),
		slog.String("user_id", userID),
		slog.String("board", best),
	)
	if err := s.store.Assign(ctx, userID, best); err != nil {
		return "", fmt.Errorf("record board assignment: %w", err)
	}
	return s.joinCodeFor(best)
}

// boardCounts returns the cached counts with the staff board removed.
func (s *Service) boardCounts(ctx context.Context) (map[string]int, error) {
	counts, err := s.store.BoardCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("read board counts: %w", err)
	}
	delete(counts, s.cfg.StaffBoardID)
	return counts, nil
}

func (s *Service) joinCodeFor(boardID string) (string, error) {
	for _, board := range s.cfg.Boards {
		if board.ID == boardID {
			return board.JoinCode, nil
		}
	}
	return "", fmt.Errorf("aoc: unknown board %q", boardID)
}
