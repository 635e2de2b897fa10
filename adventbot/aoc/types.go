// Package aoc implements the Advent of Code private-leaderboard pipeline:
// fetching raw member data, computing rank-based scores, formatting the
// combined leaderboard and assigning users to joinable boards.
package aoc

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Board is one independently joinable private leaderboard.
type Board struct {
	ID       string `toml:"id"`
	Session  string `toml:"session"`
	JoinCode string `toml:"join_code"`
}

// UnixTime decodes the `get_star_ts` field, which the AoC API has served
// both as a JSON number and as a quoted string over the years.
type UnixTime struct {
	time.Time
}

func (t *UnixTime) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	secs, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid star timestamp %q: %w", data, err)
	}
	t.Time = time.Unix(secs, 0).UTC()
	return nil
}

func (t UnixTime) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(t.Unix(), 10)), nil
}

// StarCompletion records when a member collected one star.
type StarCompletion struct {
	GetStarTS UnixTime `json:"get_star_ts"`
}

// RawMember is one member record as returned by the AoC leaderboard API.
// CompletionDayLevel is keyed by day ("1".."25"), then star ("1" or "2").
type RawMember struct {
	Name               string                               `json:"name"`
	CompletionDayLevel map[string]map[string]StarCompletion `json:"completion_day_level"`
}

// rawLeaderboard is the response body of one leaderboard endpoint.
// Members are keyed by their member id.
type rawLeaderboard struct {
	Members map[string]RawMember `json:"members"`
}

// Entry is one row of the aggregated leaderboard.
type Entry struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Star1    int    `json:"star_1"`
	Star2    int    `json:"star_2"`
}

// Stars returns the total number of stars this member collected.
func (e Entry) Stars() int {
	return e.Star1 + e.Star2
}

// DayStats holds the raw completion counts for one event day. These are
// plain counts, not rank-weighted scores.
type DayStats struct {
	StarOne int `json:"star_one"`
	StarTwo int `json:"star_two"`
}

// DailyStats maps event day ("1".."25") to its completion counts.
type DailyStats map[string]DayStats
