package aoc

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Table layout: rank, name clipped to 25 runes, score, star pair.
const (
	tableRowFormat = "%4s | %-25.25s | %5s | %s"

	// HeaderLines is the number of lines the table header occupies.
	HeaderLines = 2
)

func tableHeader() string {
	header := fmt.Sprintf(tableRowFormat, "", "Name", "Score", "⭐, ⭐⭐")
	separator := strings.Repeat("-", utf8.RuneCountInString(header)+2)
	return header + "\n" + separator
}

// FormatTable renders the aggregated leaderboard as a fixed-width table
// with a two-line header. Ranks are 1-based.
func FormatTable(entries []Entry) string {
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, tableHeader())
	for i, entry := range entries {
		lines = append(lines, fmt.Sprintf(tableRowFormat,
			fmt.Sprintf("%d", i+1),
			entry.Name,
			fmt.Sprintf("%d", entry.Score),
			fmt.Sprintf("(%d, %d)", entry.Star1, entry.Star2),
		))
	}
	return strings.Join(lines, "\n")
}

// SplitTable separates a formatted table into its header lines and row
// lines. A table with nothing beyond the header yields no rows, so a
// malformed or empty cached table never produces out-of-range slices.
func SplitTable(table string) (header, rows []string) {
	lines := strings.Split(table, "\n")
	if len(lines) <= HeaderLines {
		return lines, nil
	}
	return lines[:HeaderLines], lines[HeaderLines:]
}

// TopView truncates a formatted table to the header plus at most
// maxEntries leading entries.
func TopView(table string, maxEntries int) string {
	lines := strings.Split(table, "\n")
	limit := HeaderLines + maxEntries
	if len(lines) > limit {
		lines = lines[:limit]
	}
	return strings.Join(lines, "\n")
}

// FormatDailyStats renders the per-day completion counts as a compact
// fixed-width table.
func FormatDailyStats(stats DailyStats) string {
	header := fmt.Sprintf("%4s | %6s | %6s", "Day", "⭐", "⭐⭐")
	lines := []string{header, strings.Repeat("-", utf8.RuneCountInString(header)+2)}
	for day := 1; day <= TotalDays; day++ {
		d := fmt.Sprintf("%d", day)
		s := stats[d]
		lines = append(lines, fmt.Sprintf("%4s | %6d | %6d", d, s.StarOne, s.StarTwo))
	}
	return strings.Join(lines, "\n")
}
