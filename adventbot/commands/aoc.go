package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"
	"github.com/sahilm/fuzzy"

	"github.com/adventbot/adventbot/adventbot"
	"github.com/adventbot/adventbot/adventbot/aoc"
	"github.com/adventbot/adventbot/adventbot/config"
	"github.com/adventbot/adventbot/adventbot/utils"
)

var AoC = discord.SlashCommandCreate{
	Name:        "aoc",
	Description: "🎄 Advent of Code leaderboard",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "leaderboard",
			Description: "Show the combined leaderboard summary",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "browse",
			Description: "Browse the full leaderboard page by page",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "stats",
			Description: "Show per-day star completion counts",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "rank",
			Description: "Look up a participant's rank by name",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "Participant name (fuzzy matched)",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "join",
			Description: "Get a join code for one of our leaderboards",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "countdown",
			Description: "Time left until the next puzzle unlocks",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "refresh",
			Description: "Force a leaderboard refresh (admin only)",
		},
	},
}

func AoCHandler(b *adventbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		sub := ""
		if data.SubCommandName != nil {
			sub = *data.SubCommandName
		}

		switch sub {
		case "leaderboard":
			return handleLeaderboard(b, e)
		case "browse":
			return handleBrowse(b, e)
		case "stats":
			return handleStats(b, e)
		case "rank":
			return handleRank(b, e, data.String("name"))
		case "join":
			return handleJoin(b, e)
		case "countdown":
			return handleCountdown(e)
		case "refresh":
			return handleRefresh(b, e)
		default:
			return utils.EH.CreateErrorEmbed(e, "Unknown subcommand")
		}
	}
}

func handleLeaderboard(b *adventbot.Bot, e *handler.CommandEvent) error {
	if err := e.DeferCreateMessage(false); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.RefreshTimeout)
	defer cancel()

	snap, err := b.AoC.Leaderboard(ctx, false)
	if err != nil {
		return utils.EH.UpdateWithError(e, "Leaderboard Unavailable",
			"Could not fetch the leaderboard, please try again later.")
	}

	update := discord.MessageUpdate{
		Content: utils.Ptr(fmt.Sprintf("```\n%s\n```", snap.TopLeaderboard())),
		Embeds:  utils.Ptr([]discord.Embed{summaryEmbed(b, snap)}),
	}

	if b.ImageService != nil {
		if entries, err := snap.Entries(); err == nil {
			imgCtx, imgCancel := context.WithTimeout(ctx, config.ImageRenderTimeout)
			fetchedAt, _ := snap.FetchedAt()
			if png, err := b.ImageService.Generate(imgCtx, b.Cfg.AoC.Year, fetchedAt, entries); err == nil {
				update.Files = []*discord.File{discord.NewFile("leaderboard.png", "", bytes.NewReader(png))}
			}
			imgCancel()
		}
	}

	_, err = e.UpdateInteractionResponse(update)
	return err
}

// summaryEmbed builds the embed with the current summary stats of the
// leaderboard.
func summaryEmbed(b *adventbot.Bot, snap aoc.Snapshot) discord.Embed {
	refreshMinutes := int(b.AoC.CacheTTL().Minutes())

	builder := discord.NewEmbedBuilder().
		SetColor(config.SoftGreen).
		SetDescription(fmt.Sprintf("*The leaderboard is refreshed every %d minutes.*", refreshMinutes)).
		AddField("Number of Participants", utils.FormatNumber(int64(snap.Participants())), true).
		SetAuthorName("Advent of Code").
		SetFooterText("Last Updated").
		SetThumbnail(config.EmbedThumbnail)

	if url := snap.URL(); url != "" {
		builder.AddField("Full Leaderboard", fmt.Sprintf("[Combined Leaderboard](%s)", url), true)
		builder.SetAuthorURL(url)
	}
	if fetchedAt, err := snap.FetchedAt(); err == nil {
		builder.SetTimestamp(fetchedAt)
	}

	return builder.Build()
}

func handleBrowse(b *adventbot.Bot, e *handler.CommandEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), config.RefreshTimeout)
	defer cancel()

	snap, err := b.AoC.Leaderboard(ctx, false)
	if err != nil {
		return utils.EH.CreateErrorEmbed(e, "Could not fetch the leaderboard, please try again later.")
	}

	header, rows := aoc.SplitTable(snap.FullLeaderboard())
	if len(rows) == 0 {
		return utils.EH.CreateInfoEmbed(e, "The leaderboard is empty so far.")
	}

	totalPages := int(math.Ceil(float64(len(rows)) / float64(config.TableEntriesPerPage)))

	return b.Paginator.Create(e.Respond, paginator.Pages{
		ID:      e.ID().String(),
		Creator: e.User().ID,
		PageFunc: func(page int, embed *discord.EmbedBuilder) {
			start := page * config.TableEntriesPerPage
			end := start + config.TableEntriesPerPage
			if end > len(rows) {
				end = len(rows)
			}
			table := strings.Join(append(append([]string{}, header...), rows[start:end]...), "\n")
			embed.
				SetTitle("🎄 Advent of Code Leaderboard").
				SetDescription(fmt.Sprintf("```\n%s\n```", table)).
				SetColor(config.SoftGreen).
				SetFooter(fmt.Sprintf("Page %d/%d • %d participants", page+1, totalPages, snap.Participants()), "")
		},
		Pages:      totalPages,
		ExpireMode: paginator.ExpireModeAfterLastUsage,
	}, false)
}

func handleStats(b *adventbot.Bot, e *handler.CommandEvent) error {
	if err := e.DeferCreateMessage(false); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.RefreshTimeout)
	defer cancel()

	snap, err := b.AoC.Leaderboard(ctx, false)
	if err != nil {
		return utils.EH.UpdateWithError(e, "Stats Unavailable",
			"Could not fetch the leaderboard, please try again later.")
	}

	stats, err := b.AoC.DailyStats(snap)
	if err != nil {
		slog.Error("Failed to decode daily stats",
			slog.String("type", "cmd"),
			slog.Any("error", err),
		)
		return utils.EH.UpdateWithError(e, "Stats Unavailable", "The cached stats could not be read.")
	}

	_, err = e.UpdateInteractionResponse(discord.MessageUpdate{
		Content: utils.Ptr(fmt.Sprintf("```\n%s\n```", aoc.FormatDailyStats(stats))),
	})
	return err
}

func handleRank(b *adventbot.Bot, e *handler.CommandEvent, query string) error {
	if err := e.DeferCreateMessage(false); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.RefreshTimeout)
	defer cancel()

	snap, err := b.AoC.Leaderboard(ctx, false)
	if err != nil {
		return utils.EH.UpdateWithError(e, "Leaderboard Unavailable",
			"Could not fetch the leaderboard, please try again later.")
	}

	entries, err := snap.Entries()
	if err != nil {
		return utils.EH.UpdateWithError(e, "Lookup Unavailable",
			"The cached leaderboard has no entry data yet, try again after the next refresh.")
	}

	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name
	}
	matches := fuzzy.Find(query, names)
	if len(matches) == 0 {
		_, err = e.UpdateInteractionResponse(discord.MessageUpdate{
			Content: utils.Ptr(fmt.Sprintf("🔍 No participant matching `%s` found.", query)),
		})
		return err
	}

	entry := entries[matches[0].Index]
	_, err = e.UpdateInteractionResponse(discord.MessageUpdate{
		Embeds: utils.Ptr([]discord.Embed{{
			Title: "🎄 Participant Rank",
			Description: fmt.Sprintf("**%s** is ranked **#%d** with **%d** points (%d⭐, %d⭐⭐).",
				entry.Name, matches[0].Index+1, entry.Score, entry.Star1, entry.Star2),
			Color: config.SoftGreen,
		}}),
	})
	return err
}

func handleJoin(b *adventbot.Bot, e *handler.CommandEvent) error {
	if err := e.DeferCreateMessage(true); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.RefreshTimeout)
	defer cancel()

	code, err := b.AoC.JoinCode(ctx, e.User().ID.String())
	if errors.Is(err, aoc.ErrAllBoardsFull) {
		_, err = e.UpdateInteractionResponse(discord.MessageUpdate{
			Content: utils.Ptr("😕 All of our boards are currently full, please check back later."),
		})
		return err
	}
	if err != nil {
		return utils.EH.UpdateWithError(e, "Join Code Unavailable",
			"Could not assign you a board, please try again later.")
	}

	_, err = e.UpdateInteractionResponse(discord.MessageUpdate{
		Content: utils.Ptr(fmt.Sprintf(
			"Your join code: `%s`\nEnter it at https://adventofcode.com/leaderboard/private to join.", code)),
	})
	return err
}

func handleCountdown(e *handler.CommandEvent) error {
	now := time.Now()
	if !aoc.InAdvent(now) {
		return utils.EH.CreateInfoEmbed(e, "The Advent of Code event is not currently running.")
	}

	midnight, remaining := aoc.TimeToMidnight(now)
	return e.CreateMessage(discord.MessageCreate{
		Embeds: []discord.Embed{{
			Title: "🎄 Next puzzle",
			Description: fmt.Sprintf("The next puzzle unlocks in **%s** (<t:%d:t> in your timezone).",
				utils.FormatCountdown(remaining), midnight.Unix()),
			Color: config.SoftGreen,
		}},
	})
}

func handleRefresh(b *adventbot.Bot, e *handler.CommandEvent) error {
	if member := e.Member(); member == nil || !member.Permissions.Has(discord.PermissionAdministrator) {
		return utils.EH.CreateErrorEmbed(e, "You don't have permission to refresh the leaderboard.")
	}

	if err := e.DeferCreateMessage(true); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.RefreshTimeout)
	defer cancel()

	snap, err := b.AoC.Leaderboard(ctx, true)
	if err != nil {
		return utils.EH.UpdateWithError(e, "Refresh Failed",
			"Could not refresh the leaderboard, the previous cache is kept.")
	}

	_, err = e.UpdateInteractionResponse(discord.MessageUpdate{
		Content: utils.Ptr(fmt.Sprintf("✅ Leaderboard refreshed, %d participants.", snap.Participants())),
	})
	return err
}
