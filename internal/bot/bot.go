package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bananium-fr/botguette/internal/announce"
	"github.com/bananium-fr/botguette/internal/discord"
	"github.com/bananium-fr/botguette/internal/msgcat"
	"github.com/bananium-fr/botguette/internal/obslog"
)

// Responder is the slice of the Discord client the command surface needs
// beyond what the lifecycle controller already drives.
type Responder interface {
	Respond(ctx context.Context, interactionID discord.Snowflake, token, content string, ephemeral bool) error
	RegisterCommands(ctx context.Context, appID, guildID int64, cmds []discord.ApplicationCommand) error
}

// Bot routes slash-command interactions to the announcement lifecycle and
// the ban list.
type Bot struct {
	responder  Responder
	controller *announce.Controller
	store      announce.Store
	catalog    *msgcat.Catalog
}

func New(responder Responder, controller *announce.Controller, store announce.Store, catalog *msgcat.Catalog) *Bot {
	return &Bot{
		responder:  responder,
		controller: controller,
		store:      store,
		catalog:    catalog,
	}
}

// permission bit for "Ban Members"; gates the ban commands in the Discord UI.
var banMembersPermission = "4"

// Commands is the application command set this bot registers.
func Commands() []discord.ApplicationCommand {
	return []discord.ApplicationCommand{
		{
			Name:        "archipelago",
			Description: "Announce an Archipelago game",
			Options: []discord.CommandOption{
				{
					Type:        discord.OptionTypeString,
					Name:        "room_url",
					Description: "The URL of the lobby room",
					Required:    true,
				},
				{
					Type:        discord.OptionTypeString,
					Name:        "game_type",
					Description: "Sync (everyone plays at the same time) or async (play at your own pace)",
					Required:    true,
					Choices: []discord.CommandChoice{
						{Name: "sync", Value: "sync"},
						{Name: "async", Value: "async"},
					},
				},
			},
		},
		{
			Name:                     "botguette-ban",
			Description:              "Ban a user from using the bot",
			DefaultMemberPermissions: &banMembersPermission,
			Options: []discord.CommandOption{
				{Type: discord.OptionTypeUser, Name: "user", Description: "The user to ban", Required: true},
				{Type: discord.OptionTypeString, Name: "reason", Description: "Reason for the ban"},
			},
		},
		{
			Name:                     "botguette-unban",
			Description:              "Unban a user from using the bot",
			DefaultMemberPermissions: &banMembersPermission,
			Options: []discord.CommandOption{
				{Type: discord.OptionTypeUser, Name: "user", Description: "The user to unban", Required: true},
			},
		},
	}
}

// RegisterCommands publishes the command set; a non-zero devGuildID scopes
// registration to that guild so changes show up immediately.
func (b *Bot) RegisterCommands(ctx context.Context, appID, devGuildID int64) error {
	if devGuildID != 0 {
		obslog.L().Info("syncing_commands", zap.Int64("guild_id", devGuildID))
	} else {
		obslog.L().Info("syncing_commands_global")
	}
	return b.responder.RegisterCommands(ctx, appID, devGuildID, Commands())
}

// HandleInteraction dispatches one gateway interaction. Unknown commands and
// non-command interactions are ignored.
func (b *Bot) HandleInteraction(ctx context.Context, in *discord.Interaction) {
	if in == nil || in.Data == nil || in.Type != 2 {
		return
	}
	switch in.Data.Name {
	case "archipelago":
		b.handleArchipelago(ctx, in)
	case "botguette-ban":
		b.handleBan(ctx, in)
	case "botguette-unban":
		b.handleUnban(ctx, in)
	}
}

func (b *Bot) handleArchipelago(ctx context.Context, in *discord.Interaction) {
	invoker := in.Invoker()
	if invoker == nil {
		return
	}

	req := announce.Request{
		GuildID:     int64(in.GuildID),
		ChannelID:   int64(in.ChannelID),
		InThread:    in.Channel.IsThread(),
		RequesterID: int64(invoker.ID),
		RoomURL:     in.Data.StringOption("room_url"),
		Async:       in.Data.StringOption("game_type") == "async",
	}

	_, err := b.controller.Announce(ctx, req)
	if err != nil {
		b.reply(ctx, in, b.rejectionText(err))
		return
	}
	b.reply(ctx, in, b.catalog.MustRender("archipelago.announced", nil, "Announcement posted."))
}

// rejectionText maps a lifecycle error to the user-facing string. Anything
// that is not a policy rejection comes back as a generic failure and is
// logged here with the command context.
func (b *Bot) rejectionText(err error) string {
	switch {
	case errors.Is(err, announce.ErrBanned):
		return b.catalog.MustRender("archipelago.banned", nil, "You are not allowed to use this command.")
	case errors.Is(err, announce.ErrThreadChannel):
		return b.catalog.MustRender("archipelago.thread", nil, "This command doesn't work in threads.")
	case errors.Is(err, announce.ErrChannelNotAllowed):
		return b.catalog.MustRender("archipelago.channel_not_allowed", nil, "This command is not allowed in this channel.")
	case errors.Is(err, announce.ErrInvalidRoomURL):
		return b.catalog.MustRender("archipelago.invalid_url",
			map[string]string{"Reason": errDetail(err, announce.ErrInvalidRoomURL)},
			"Invalid room URL.")
	case errors.Is(err, announce.ErrLobbyNotAllowed):
		return b.catalog.MustRender("archipelago.lobby_not_allowed",
			map[string]string{"Lobby": errDetail(err, announce.ErrLobbyNotAllowed)},
			"This lobby is not allowed.")
	case errors.Is(err, announce.ErrAlreadyAnnounced):
		return b.catalog.MustRender("archipelago.already_announced", nil, "This room was already announced.")
	case errors.Is(err, announce.ErrRoleMissing):
		return b.catalog.MustRender("archipelago.role_missing",
			map[string]string{"Role": errDetail(err, announce.ErrRoleMissing)},
			"The announcement role is missing.")
	case errors.Is(err, announce.ErrRoomUnavailable):
		return b.catalog.MustRender("archipelago.room_unavailable", nil, "Couldn't fetch room info from lobby.")
	case errors.Is(err, announce.ErrRoomTooSoon):
		return b.catalog.MustRender("archipelago.too_soon",
			map[string]string{"CloseTime": errDetail(err, announce.ErrRoomTooSoon)},
			"This room's date is too soon.")
	default:
		obslog.L().Error("archipelago_command_failed", zap.Error(err))
		return b.catalog.MustRender("archipelago.failed", nil, "Something went wrong. Please try again later.")
	}
}

func (b *Bot) handleBan(ctx context.Context, in *discord.Interaction) {
	target := in.Data.SnowflakeOption("user")
	if target == 0 {
		return
	}
	reason := in.Data.StringOption("reason")
	if err := b.store.BanUser(ctx, int64(target), reason); err != nil {
		obslog.L().Error("ban_failed", zap.Int64("user_id", int64(target)), zap.Error(err))
		b.reply(ctx, in, b.catalog.MustRender("archipelago.failed", nil, "Something went wrong."))
		return
	}
	obslog.L().Info("user_banned", zap.Int64("user_id", int64(target)), zap.String("reason", reason))
	if reason == "" {
		reason = b.catalog.MustRender("ban.no_reason", nil, "No reason")
	}
	b.reply(ctx, in, b.catalog.MustRender("ban.done",
		map[string]string{"User": announce.UserMention(int64(target)), "Reason": reason},
		fmt.Sprintf("Banned %s", announce.UserMention(int64(target)))))
}

func (b *Bot) handleUnban(ctx context.Context, in *discord.Interaction) {
	target := in.Data.SnowflakeOption("user")
	if target == 0 {
		return
	}
	if err := b.store.UnbanUser(ctx, int64(target)); err != nil {
		obslog.L().Error("unban_failed", zap.Int64("user_id", int64(target)), zap.Error(err))
		b.reply(ctx, in, b.catalog.MustRender("archipelago.failed", nil, "Something went wrong."))
		return
	}
	obslog.L().Info("user_unbanned", zap.Int64("user_id", int64(target)))
	b.reply(ctx, in, b.catalog.MustRender("ban.undone",
		map[string]string{"User": announce.UserMention(int64(target))},
		fmt.Sprintf("Unbanned %s", announce.UserMention(int64(target)))))
}

// reply is always ephemeral: rejections, confirmations and moderation
// results are for the invoker only, the announcement itself is the only
// public output.
func (b *Bot) reply(ctx context.Context, in *discord.Interaction, content string) {
	if err := b.responder.Respond(ctx, in.ID, in.Token, content, true); err != nil {
		obslog.L().Warn("interaction_reply_failed", zap.Int64("interaction_id", int64(in.ID)), zap.Error(err))
	}
}

// errDetail strips the sentinel prefix a wrapped policy error carries,
// leaving the human-readable detail.
func errDetail(err, sentinel error) string {
	return strings.TrimPrefix(strings.TrimPrefix(err.Error(), sentinel.Error()), ": ")
}
