package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"

	"github.com/adventbot/adventbot/adventbot"
	"github.com/adventbot/adventbot/adventbot/aoc"
	"github.com/adventbot/adventbot/adventbot/cache"
	"github.com/adventbot/adventbot/adventbot/commands"
	"github.com/adventbot/adventbot/adventbot/config"
	"github.com/adventbot/adventbot/adventbot/handlers"
	"github.com/adventbot/adventbot/adventbot/logger"
	"github.com/adventbot/adventbot/adventbot/services"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := adventbot.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}

	slog.SetDefault(slog.New(logger.NewHandler(cfg.Log.Level)))
	slog.Info("Starting AdventBot",
		slog.String("version", version),
		slog.String("commit", commit),
		slog.Int("year", cfg.AoC.Year))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	redisClient, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		slog.Error("Redis connection failed",
			slog.String("type", "cache"),
			slog.Any("error", err))
		os.Exit(-1)
	}
	defer redisClient.Close()
	slog.Info("Redis connected successfully",
		slog.String("type", "cache"),
		slog.String("addr", cfg.Redis.Addr()))

	var archiver aoc.Archiver
	if cfg.Archive.Enabled {
		archiveService, err := services.NewArchiveService(
			cfg.Archive.Key,
			cfg.Archive.Secret,
			cfg.Archive.Region,
			cfg.Archive.Bucket,
			cfg.Archive.Root,
		)
		if err != nil {
			slog.Error("Failed to initialize snapshot archive", slog.Any("error", err))
			os.Exit(-1)
		}
		archiver = archiveService
	}

	aocService := aoc.NewService(
		aoc.ServiceConfig{
			Year:             cfg.AoC.Year,
			Boards:           cfg.AoC.Leaderboards,
			StaffBoardID:     cfg.AoC.StaffLeaderboardID,
			IgnoredDays:      cfg.AoC.IgnoredDays,
			DisplayedEntries: cfg.AoC.DisplayedMembers,
			CacheTTL:         time.Duration(cfg.AoC.CacheExpirySeconds) * time.Second,
		},
		aoc.NewClient(cfg.AoC.Year, cfg.AoC.FallbackSession),
		cache.NewLeaderboardStore(redisClient),
		aoc.NewPasteClient(cfg.Paste.UploadURL, cfg.Paste.RawURLTemplate),
		archiver,
	)

	b := adventbot.New(*cfg, version, commit)
	b.Cache = redisClient
	b.AoC = aocService
	if cfg.AoC.RenderImage {
		b.ImageService = services.NewLeaderboardImageService()
	}

	h := handler.New()
	h.Command("/aoc", handlers.WrapWithLogging("aoc", commands.AoCHandler(b)))

	if err = b.SetupBot(h, bot.NewListenerFunc(b.OnReady)); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		b.Client.Close(ctx)
	}()

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds))
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err))
		}
	}

	gatewayCtx, gatewayCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer gatewayCancel()
	if err = b.Client.OpenGateway(gatewayCtx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	slog.Info("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down bot...")
}
