package aoc

import "time"

// EST is the timezone the AoC maintainers release puzzles in (UTC-5).
var EST = time.FixedZone("EST", -5*60*60)

// InAdvent reports whether now falls on an event day, excluding the
// 25th: the puzzle published on the 25th is the last one, so nothing
// needs preparing for a next day after it.
func InAdvent(now time.Time) bool {
	now = now.In(EST)
	return now.Month() == time.December && now.Day() >= 1 && now.Day() < 25
}

// TimeToMidnight returns the next EST midnight, when a new puzzle
// unlocks, and how far away it is.
func TimeToMidnight(now time.Time) (time.Time, time.Duration) {
	now = now.In(EST)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, EST).AddDate(0, 0, 1)
	return midnight, midnight.Sub(now)
}
