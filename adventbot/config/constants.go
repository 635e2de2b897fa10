package config

import "time"

// UI and display constants
const (
	ErrorColor   = 0xFF0000
	SuccessColor = 0x00FF00
	InfoColor    = 0x0099FF
	WarningColor = 0xFFAA00

	// SoftGreen is the seasonal accent color of the leaderboard embeds.
	SoftGreen = 0x68C290

	// EmbedThumbnail decorates the leaderboard summary embed.
	EmbedThumbnail = "https://raw.githubusercontent.com/adventbot/branding/master/seasonal/festive_256.gif"

	// TableEntriesPerPage is how many leaderboard rows fit on one
	// paginator page without exceeding the embed description limit.
	TableEntriesPerPage = 15
)

// Timeouts
const (
	CommandExecutionTimeout = 30 * time.Second
	RefreshTimeout          = 2 * time.Minute
	ImageRenderTimeout      = 15 * time.Second
	ShutdownTimeout         = 10 * time.Second
)
