package aoc

import (
	"sort"
	"strconv"
	"time"
)

// TotalDays is the number of puzzle days in one event.
const TotalDays = 25

// starResult pairs a member with their completion time for one specific
// star, used only while transposing the raw data into per-star rankings.
type starResult struct {
	memberID    string
	completedAt time.Time
}

type dayStar struct {
	day  string
	star string
}

// BuildLeaderboard transposes the pooled per-member records into per-star
// rankings and awards rank scores: with N members on the board, the
// earliest completion of a star earns N points, the next N-1, and so on.
// Days listed in ignoredDays award no score but still count as stars.
//
// The returned entries are ordered by score descending, ties broken by
// total star count descending. Daily stats are computed independently as
// raw completion counts for days 1 through 25.
func BuildLeaderboard(raw map[string]RawMember, ignoredDays []int) ([]Entry, DailyStats) {
	ignored := make(map[string]struct{}, len(ignoredDays))
	for _, day := range ignoredDays {
		ignored[strconv.Itoa(day)] = struct{}{}
	}

	// The API structures the data by member, not by day/star, so we walk
	// the members once to record star counts and collect the transposed
	// (day, star) -> completions view needed for rank scoring.
	entries := make(map[string]*Entry, len(raw))
	starResults := make(map[dayStar][]starResult)

	for memberID, member := range raw {
		name := member.Name
		if name == "" {
			name = "Anonymous #" + memberID
		}
		entry := &Entry{MemberID: memberID, Name: name}
		entries[memberID] = entry

		for day, stars := range member.CompletionDayLevel {
			for star, completion := range stars {
				switch star {
				case "1":
					entry.Star1++
				case "2":
					entry.Star2++
				}
				key := dayStar{day: day, star: star}
				starResults[key] = append(starResults[key], starResult{
					memberID:    memberID,
					completedAt: completion.GetStarTS.Time,
				})
			}
		}
	}

	maxScore := len(entries)
	for key, results := range starResults {
		if _, skip := ignored[key.day]; skip {
			continue
		}
		sort.Slice(results, func(i, j int) bool {
			if results[i].completedAt.Equal(results[j].completedAt) {
				return results[i].memberID < results[j].memberID
			}
			return results[i].completedAt.Before(results[j].completedAt)
		})
		for rank, result := range results {
			entries[result.memberID].Score += maxScore - rank
		}
	}

	sorted := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		sorted = append(sorted, *entry)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		if sorted[i].Stars() != sorted[j].Stars() {
			return sorted[i].Stars() > sorted[j].Stars()
		}
		return sorted[i].MemberID < sorted[j].MemberID
	})

	dailyStats := make(DailyStats, TotalDays)
	for day := 1; day <= TotalDays; day++ {
		d := strconv.Itoa(day)
		dailyStats[d] = DayStats{
			StarOne: len(starResults[dayStar{day: d, star: "1"}]),
			StarTwo: len(starResults[dayStar{day: d, star: "2"}]),
		}
	}

	return sorted, dailyStats
}
