package aoc

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func star(ts int64) StarCompletion {
	return StarCompletion{GetStarTS: UnixTime{Time: time.Unix(ts, 0).UTC()}}
}

func TestRawMember_Parsing(t *testing.T) {
	jsonData := `{
    "members": {
        "123456": {
            "name": "Alice",
            "completion_day_level": {
                "1": {
                    "1": {"get_star_ts": 1701410400},
                    "2": {"get_star_ts": "1701412200"}
                }
            }
        },
        "654321": {
            "name": null,
            "completion_day_level": {}
        }
    }
}`

	var board rawLeaderboard
	err := json.Unmarshal([]byte(jsonData), &board)
	require.NoError(t, err)
	require.Len(t, board.Members, 2)

	alice := board.Members["123456"]
	assert.Equal(t, "Alice", alice.Name)
	assert.Equal(t, int64(1701410400), alice.CompletionDayLevel["1"]["1"].GetStarTS.Unix())
	assert.Equal(t, int64(1701412200), alice.CompletionDayLevel["1"]["2"].GetStarTS.Unix())

	anon := board.Members["654321"]
	assert.Empty(t, anon.Name)
	assert.Empty(t, anon.CompletionDayLevel)
}

func TestBuildLeaderboard_RankScores(t *testing.T) {
	raw := map[string]RawMember{
		"1": {
			Name: "A",
			CompletionDayLevel: map[string]map[string]StarCompletion{
				"1": {"1": star(100)},
			},
		},
		"2": {
			Name: "B",
			CompletionDayLevel: map[string]map[string]StarCompletion{
				"1": {"1": star(200)},
			},
		},
	}

	entries, _ := BuildLeaderboard(raw, nil)
	require.Len(t, entries, 2)

	assert.Equal(t, "A", entries[0].Name)
	assert.Equal(t, 2, entries[0].Score)
	assert.Equal(t, "B", entries[1].Name)
	assert.Equal(t, 1, entries[1].Score)
}

func TestBuildLeaderboard_ScoresPerStar(t *testing.T) {
	// Three members, each star awards 3/2/1 in completion order, and
	// each of the two stars of the day is ranked independently.
	raw := map[string]RawMember{
		"1": {
			Name: "first",
			CompletionDayLevel: map[string]map[string]StarCompletion{
				"1": {"1": star(100), "2": star(600)},
			},
		},
		"2": {
			Name: "second",
			CompletionDayLevel: map[string]map[string]StarCompletion{
				"1": {"1": star(200), "2": star(400)},
			},
		},
		"3": {
			Name: "third",
			CompletionDayLevel: map[string]map[string]StarCompletion{
				"1": {"1": star(300)},
			},
		},
	}

	entries, _ := BuildLeaderboard(raw, nil)
	require.Len(t, entries, 3)

	byName := map[string]Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}

	// first: star 1 rank 1 (3) + star 2 rank 2 (2) = 5
	assert.Equal(t, 5, byName["first"].Score)
	// second: star 1 rank 2 (2) + star 2 rank 1 (3) = 5
	assert.Equal(t, 5, byName["second"].Score)
	// third: star 1 rank 3 (1)
	assert.Equal(t, 1, byName["third"].Score)

	// Tied score, first has 2 stars like second: stable order falls back
	// to member id.
	assert.Equal(t, "first", entries[0].Name)
	assert.Equal(t, "second", entries[1].Name)
}

func TestBuildLeaderboard_IgnoredDays(t *testing.T) {
	raw := map[string]RawMember{
		"1": {
			Name: "A",
			CompletionDayLevel: map[string]map[string]StarCompletion{
				"1": {"1": star(100)},
				"2": {"1": star(100), "2": star(200)},
			},
		},
	}

	entries, stats := BuildLeaderboard(raw, []int{1})
	require.Len(t, entries, 1)

	// Day 1 awards nothing, day 2 awards 1 point per star.
	assert.Equal(t, 2, entries[0].Score)
	// Stars still count, ignored or not.
	assert.Equal(t, 2, entries[0].Star1)
	assert.Equal(t, 1, entries[0].Star2)

	// Daily stats are raw counts and unaffected by ignoring.
	assert.Equal(t, DayStats{StarOne: 1, StarTwo: 0}, stats["1"])
	assert.Equal(t, DayStats{StarOne: 1, StarTwo: 1}, stats["2"])
}

func TestBuildLeaderboard_Ordering(t *testing.T) {
	raw := map[string]RawMember{
		// Two stars on an ignored day: 0 points, 2 stars.
		"1": {
			Name: "stars-no-score",
			CompletionDayLevel: map[string]map[string]StarCompletion{
				"1": {"1": star(100), "2": star(200)},
			},
		},
		// One star on a scored day: 2 points (rank 1 of 2 finishers), 1 star.
		"2": {
			Name: "score",
			CompletionDayLevel: map[string]map[string]StarCompletion{
				"2": {"1": star(100)},
			},
		},
		// One star on a scored day, later: 1 point, 1 star.
		"3": {
			Name: "less-score",
			CompletionDayLevel: map[string]map[string]StarCompletion{
				"2": {"1": star(200)},
			},
		},
		// Nothing at all.
		"4": {Name: "empty"},
	}

	entries, _ := BuildLeaderboard(raw, []int{1})
	require.Len(t, entries, 4)

	names := []string{entries[0].Name, entries[1].Name, entries[2].Name, entries[3].Name}
	assert.Equal(t, []string{"score", "less-score", "stars-no-score", "empty"}, names)
}

func TestBuildLeaderboard_AnonymousNaming(t *testing.T) {
	raw := map[string]RawMember{
		"987654": {Name: ""},
	}

	entries, _ := BuildLeaderboard(raw, nil)
	require.Len(t, entries, 1)
	assert.Equal(t, "Anonymous #987654", entries[0].Name)
}

func TestBuildLeaderboard_DailyStatsCoverAllDays(t *testing.T) {
	entries, stats := BuildLeaderboard(map[string]RawMember{}, nil)
	assert.Empty(t, entries)
	require.Len(t, stats, TotalDays)
	assert.Equal(t, DayStats{}, stats["25"])
}
