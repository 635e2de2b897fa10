package adventbot

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/adventbot/adventbot/adventbot/aoc"
	"github.com/adventbot/adventbot/adventbot/cache"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log     LogConfig     `toml:"log"`
	Bot     BotConfig     `toml:"bot"`
	Redis   cache.Config  `toml:"redis"`
	AoC     AoCConfig     `toml:"aoc"`
	Paste   PasteConfig   `toml:"paste"`
	Archive ArchiveConfig `toml:"archive"`
}

type BotConfig struct {
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	Token     string         `toml:"token"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type AoCConfig struct {
	Year               int         `toml:"year"`
	Leaderboards       []aoc.Board `toml:"leaderboards"`
	FallbackSession    string      `toml:"fallback_session"`
	StaffLeaderboardID string      `toml:"staff_leaderboard_id"`
	IgnoredDays        []int       `toml:"ignored_days"`
	CacheExpirySeconds int         `toml:"cache_expiry_seconds"`
	DisplayedMembers   int         `toml:"displayed_members"`
	RenderImage        bool        `toml:"render_image"`
}

type PasteConfig struct {
	UploadURL      string `toml:"upload_url"`
	RawURLTemplate string `toml:"raw_url_template"`
}

type ArchiveConfig struct {
	Enabled bool   `toml:"enabled"`
	Key     string `toml:"key"`
	Secret  string `toml:"secret"`
	Region  string `toml:"region"`
	Bucket  string `toml:"bucket"`
	Root    string `toml:"root"`
}
