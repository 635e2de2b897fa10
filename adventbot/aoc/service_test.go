package aoc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	snapshot    Snapshot
	ttl         time.Duration
	counts      map[string]int
	assignments map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		snapshot:    Snapshot{},
		counts:      map[string]int{},
		assignments: map[string]string{},
	}
}

func (s *fakeStore) Snapshot(context.Context) (Snapshot, error) {
	snap := make(Snapshot, len(s.snapshot))
	for k, v := range s.snapshot {
		snap[k] = v
	}
	return snap, nil
}

func (s *fakeStore) WriteSnapshot(_ context.Context, snap Snapshot, ttl time.Duration) error {
	s.snapshot = snap
	s.ttl = ttl
	return nil
}

func (s *fakeStore) SetBoardCount(_ context.Context, boardID string, count int) error {
	s.counts[boardID] = count
	return nil
}

func (s *fakeStore) BoardCounts(context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		counts[k] = v
	}
	return counts, nil
}

func (s *fakeStore) Assignment(_ context.Context, userID string) (string, error) {
	return s.assignments[userID], nil
}

func (s *fakeStore) Assign(_ context.Context, userID, boardID string) error {
	s.assignments[userID] = boardID
	return nil
}

// fakeFetcher returns fixed members and reports fixed per-board counts.
type fakeFetcher struct {
	members map[string]RawMember
	counts  map[string]int
	err     error
	calls   int
}

func (f *fakeFetcher) FetchAll(_ context.Context, boards []Board, recordCount func(string, int)) (map[string]RawMember, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for _, board := range boards {
		if recordCount != nil {
			recordCount(board.ID, f.counts[board.ID])
		}
	}
	return f.members, nil
}

// blockingFetcher holds every fetch until release is closed, so a test
// can pile up concurrent callers before the first refresh completes.
type blockingFetcher struct {
	fakeFetcher
	release chan struct{}
}

func (f *blockingFetcher) FetchAll(ctx context.Context, boards []Board, recordCount func(string, int)) (map[string]RawMember, error) {
	<-f.release
	return f.fakeFetcher.FetchAll(ctx, boards, recordCount)
}

type fakeUploader struct {
	url   string
	calls int
}

func (u *fakeUploader) Upload(context.Context, string) string {
	u.calls++
	return u.url
}

func testServiceConfig() ServiceConfig {
	return ServiceConfig{
		Year: 2024,
		Boards: []Board{
			{ID: "111", JoinCode: "111-aaa"},
			{ID: "222", JoinCode: "222-bbb"},
			{ID: "999", JoinCode: "999-staff"},
		},
		StaffBoardID:     "999",
		DisplayedEntries: 10,
		CacheTTL:         15 * time.Minute,
	}
}

func testMembers() map[string]RawMember {
	return map[string]RawMember{
		"1": {
			Name: "Alice",
			CompletionDayLevel: map[string]map[string]StarCompletion{
				"1": {"1": star(100)},
			},
		},
		"2": {Name: "Bob"},
	}
}

func TestService_Leaderboard_WritesSnapshot(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{
		members: testMembers(),
		counts:  map[string]int{"111": 2, "222": 0, "999": 5},
	}
	uploader := &fakeUploader{url: "https://paste.example/raw/abc"}
	svc := NewService(testServiceConfig(), fetcher, store, uploader, nil)

	snap, err := svc.Leaderboard(context.Background(), false)
	require.NoError(t, err)
	require.True(t, snap.Complete())

	assert.Equal(t, 2, snap.Participants())
	assert.Equal(t, "https://paste.example/raw/abc", snap.URL())
	assert.NotEmpty(t, snap.FullLeaderboard())
	assert.NotEmpty(t, snap.TopLeaderboard())
	_, err = snap.FetchedAt()
	assert.NoError(t, err)

	entries, err := snap.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Alice", entries[0].Name)

	assert.Equal(t, 15*time.Minute, store.ttl)
	assert.Equal(t, map[string]int{"111": 2, "222": 0, "999": 5}, store.counts)
}

func TestService_Leaderboard_CacheHitSkipsFetch(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{members: testMembers(), counts: map[string]int{}}
	svc := NewService(testServiceConfig(), fetcher, store, &fakeUploader{}, nil)

	_, err := svc.Leaderboard(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, fetcher.calls)

	_, err = svc.Leaderboard(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
}

func TestService_Leaderboard_ConcurrentCallersShareOneRefresh(t *testing.T) {
	store := newFakeStore()
	fetcher := &blockingFetcher{
		fakeFetcher: fakeFetcher{members: testMembers(), counts: map[string]int{}},
		release:     make(chan struct{}),
	}
	svc := NewService(testServiceConfig(), fetcher, store, &fakeUploader{}, nil)

	const callers = 8
	snapshots := make([]Snapshot, callers)
	errs := make([]error, callers)

	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			snapshots[i], errs[i] = svc.Leaderboard(context.Background(), false)
		}(i)
	}

	// The fetch cannot complete until every caller has at least been
	// launched, so the cache stays cold while they pile up.
	started.Wait()
	close(fetcher.release)
	done.Wait()

	assert.Equal(t, 1, fetcher.calls)
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, snapshots[0], snapshots[i])
	}
}

func TestService_Leaderboard_InvalidateForcesFetch(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{members: testMembers(), counts: map[string]int{}}
	svc := NewService(testServiceConfig(), fetcher, store, &fakeUploader{}, nil)

	_, err := svc.Leaderboard(context.Background(), false)
	require.NoError(t, err)

	_, err = svc.Leaderboard(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}

func TestService_Leaderboard_KeepsStaleCacheOnFetchFailure(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{members: testMembers(), counts: map[string]int{}}
	svc := NewService(testServiceConfig(), fetcher, store, &fakeUploader{}, nil)

	_, err := svc.Leaderboard(context.Background(), false)
	require.NoError(t, err)
	previous := store.snapshot

	fetcher.err = ErrFetchFailed
	_, err = svc.Leaderboard(context.Background(), true)
	require.ErrorIs(t, err, ErrFetchFailed)

	assert.Equal(t, previous, store.snapshot)
}

func TestService_Leaderboard_EmptyURLOnUploadFailure(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{members: testMembers(), counts: map[string]int{}}
	svc := NewService(testServiceConfig(), fetcher, store, &fakeUploader{url: ""}, nil)

	snap, err := svc.Leaderboard(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, snap.Complete())
	assert.Empty(t, snap.URL())
}

func TestService_DailyStats(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{members: testMembers(), counts: map[string]int{}}
	svc := NewService(testServiceConfig(), fetcher, store, &fakeUploader{}, nil)

	snap, err := svc.Leaderboard(context.Background(), false)
	require.NoError(t, err)

	stats, err := svc.DailyStats(snap)
	require.NoError(t, err)
	require.Len(t, stats, TotalDays)
	assert.Equal(t, DayStats{StarOne: 1}, stats["1"])

	// Second call is served from the memo and must agree.
	again, err := svc.DailyStats(snap)
	require.NoError(t, err)
	assert.Equal(t, stats, again)
}

func TestService_JoinCode_AssignsLeastFilledBoard(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{
		members: testMembers(),
		counts:  map[string]int{"111": 50, "222": 10, "999": 3},
	}
	svc := NewService(testServiceConfig(), fetcher, store, &fakeUploader{}, nil)

	code, err := svc.JoinCode(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "222-bbb", code)
	assert.Equal(t, "222", store.assignments["user-1"])
}

func TestService_JoinCode_Sticky(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{
		members: testMembers(),
		counts:  map[string]int{"111": 50, "222": 10},
	}
	svc := NewService(testServiceConfig(), fetcher, store, &fakeUploader{}, nil)
	store.assignments["user-1"] = "111"

	// 111 is fuller than 222, but the user already has a code for it.
	code, err := svc.JoinCode(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "111-aaa", code)
	assert.Equal(t, "111", store.assignments["user-1"])
}

func TestService_JoinCode_ReassignsWhenBoardFull(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{
		members: testMembers(),
		counts:  map[string]int{"111": BoardCapacity, "222": 10},
	}
	svc := NewService(testServiceConfig(), fetcher, store, &fakeUploader{}, nil)
	store.assignments["user-1"] = "111"

	code, err := svc.JoinCode(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "222-bbb", code)
	assert.Equal(t, "222", store.assignments["user-1"])
}

func TestService_JoinCode_AllBoardsFull(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{
		members: testMembers(),
		counts:  map[string]int{"111": BoardCapacity, "222": BoardCapacity, "999": 0},
	}
	svc := NewService(testServiceConfig(), fetcher, store, &fakeUploader{}, nil)

	_, err := svc.JoinCode(context.Background(), "user-1")
	require.ErrorIs(t, err, ErrAllBoardsFull)
	assert.Empty(t, store.assignments)
}

func TestService_JoinCode_StaffBoardExcluded(t *testing.T) {
	store := newFakeStore()
	// The staff board is the emptiest one, but must never be handed out.
	fetcher := &fakeFetcher{
		members: testMembers(),
		counts:  map[string]int{"111": 50, "222": 40, "999": 0},
	}
	svc := NewService(testServiceConfig(), fetcher, store, &fakeUploader{}, nil)

	code, err := svc.JoinCode(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "222-bbb", code)
}

func TestService_JoinCode_RefetchesWhenCountsMissing(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{
		members: testMembers(),
		counts:  map[string]int{"111": 5, "222": 3},
	}
	svc := NewService(testServiceConfig(), fetcher, store, &fakeUploader{}, nil)

	// Simulate a warm snapshot with no recorded counts: the first
	// Leaderboard call inside JoinCode is a cache hit, so the counts can
	// only come from the forced second fetch.
	_, err := svc.Leaderboard(context.Background(), false)
	require.NoError(t, err)
	store.counts = map[string]int{}

	code, err := svc.JoinCode(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "222-bbb", code)
	assert.Equal(t, 2, fetcher.calls)
}

func TestService_JoinCode_FetchFailure(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{err: errors.New("boom")}
	svc := NewService(testServiceConfig(), fetcher, store, &fakeUploader{}, nil)

	_, err := svc.JoinCode(context.Background(), "user-1")
	require.Error(t, err)
	assert.Empty(t, store.assignments)
}

func TestSnapshot_Complete(t *testing.T) {
	snap := Snapshot{}
	assert.False(t, snap.Complete())

	for _, field := range requiredFields {
		snap[field] = "x"
	}
	assert.True(t, snap.Complete())

	delete(snap, FieldDailyStats)
	assert.False(t, snap.Complete())
}
