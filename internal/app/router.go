package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JohnTitor998/chiya/internal/domain/model"
	discordinfra "github.com/JohnTitor998/chiya/internal/infra/discord"
	modsvc "github.com/JohnTitor998/chiya/internal/services/moderation"
	ticketsvc "github.com/JohnTitor998/chiya/internal/services/tickets"
	"github.com/JohnTitor998/chiya/internal/ui"
)

const (
	commandMute       = "mute"
	commandUnmute     = "unmute"
	commandClose      = "close"
	commandPrefix     = "prefix"
	commandGraceDelay = "gracedelay"
)

const prefixCacheTTL = 30 * time.Second

// commandPrefix returns the active prefix from a short-lived cache so the
// gateway loop does not hit the settings table on every message.
func (a *App) commandPrefix(ctx context.Context) string {
	a.prefixMu.Lock()
	defer a.prefixMu.Unlock()

	if a.prefixValue != "" && time.Now().Before(a.prefixExpiry) {
		return a.prefixValue
	}

	prefix, err := a.systemService.CommandPrefix(ctx)
	if err != nil {
		a.logger.Warn("read command prefix, using configured default", zap.Error(err))
		prefix = a.cfg.Discord.Prefix
	}
	a.prefixValue = prefix
	a.prefixExpiry = time.Now().Add(prefixCacheTTL)
	return prefix
}

func (a *App) setCachedPrefix(prefix string) {
	a.prefixMu.Lock()
	a.prefixValue = prefix
	a.prefixExpiry = time.Now().Add(prefixCacheTTL)
	a.prefixMu.Unlock()
}

func (a *App) route(ctx context.Context, msg discordinfra.IncomingMessage) {
	prefix := a.commandPrefix(ctx)

	if !strings.HasPrefix(msg.Content, prefix) {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(msg.Content, prefix))
	if len(fields) == 0 {
		return
	}
	command := strings.ToLower(fields[0])
	args := fields[1:]

	switch command {
	case commandMute:
		go a.handleMute(ctx, msg, args)
	case commandUnmute:
		go a.handleUnmute(ctx, msg, args)
	case commandClose:
		go a.handleClose(ctx, msg)
	case commandPrefix:
		go a.handlePrefix(ctx, msg, args)
	case commandGraceDelay:
		go a.handleGraceDelay(ctx, msg, args)
	}
}

func (a *App) isModerator(member model.Member) bool {
	return member.HasRole(a.cfg.Roles.Staff) || member.HasRole(a.cfg.Roles.TrialMod)
}

func (a *App) handleMute(ctx context.Context, msg discordinfra.IncomingMessage, args []string) {
	if !a.isModerator(msg.Author) {
		a.replyError(ctx, msg, "You do not have permission to use that command.")
		return
	}
	if len(args) == 0 {
		a.replyError(ctx, msg, "Usage: mute @member [reason]")
		return
	}

	target, bot, ok := a.resolveActionPair(ctx, msg, args[0])
	if !ok {
		return
	}

	_, err := a.moderationService.Mute(ctx, modsvc.MuteInput{
		Invoker:   msg.Author,
		Target:    target,
		Bot:       bot,
		ChannelID: msg.ChannelID,
		MessageID: msg.MessageID,
		Reason:    strings.Join(args[1:], " "),
	})
	if err != nil {
		a.reportFailure(ctx, msg, "mute", target.ID, err)
		return
	}

	a.logger.Info("member muted",
		zap.String("actor_id", msg.Author.ID),
		zap.String("target_id", target.ID),
	)
}

func (a *App) handleUnmute(ctx context.Context, msg discordinfra.IncomingMessage, args []string) {
	if !a.isModerator(msg.Author) {
		a.replyError(ctx, msg, "You do not have permission to use that command.")
		return
	}
	if len(args) == 0 {
		a.replyError(ctx, msg, "Usage: unmute @member [reason]")
		return
	}

	target, bot, ok := a.resolveActionPair(ctx, msg, args[0])
	if !ok {
		return
	}

	_, err := a.moderationService.Unmute(ctx, modsvc.UnmuteInput{
		Invoker:   msg.Author,
		Target:    target,
		Bot:       bot,
		ChannelID: msg.ChannelID,
		MessageID: msg.MessageID,
		Reason:    strings.Join(args[1:], " "),
	})
	if err != nil {
		a.reportFailure(ctx, msg, "unmute", target.ID, err)
		return
	}

	a.logger.Info("member unmuted",
		zap.String("actor_id", msg.Author.ID),
		zap.String("target_id", target.ID),
	)
}

func (a *App) handleClose(ctx context.Context, msg discordinfra.IncomingMessage) {
	if !a.isModerator(msg.Author) {
		a.replyError(ctx, msg, "You do not have permission to use that command.")
		return
	}

	channel, err := a.discord.Channel(ctx, msg.ChannelID)
	if err != nil {
		a.reportFailure(ctx, msg, "close", "", err)
		return
	}

	input := ticketsvc.CloseInput{Invoker: msg.Author, Channel: channel}
	if grace, err := a.systemService.CloseGraceDelay(ctx); err == nil {
		input.GraceDelay = &grace
	}

	result, err := a.ticketService.Close(ctx, input)
	if err != nil {
		a.reportFailure(ctx, msg, "close", channel.Name, err)
		return
	}

	a.logger.Info("ticket closed",
		zap.String("actor_id", msg.Author.ID),
		zap.String("channel", channel.Name),
		zap.String("log_url", result.LogURL),
	)
}

func (a *App) handlePrefix(ctx context.Context, msg discordinfra.IncomingMessage, args []string) {
	if !msg.Author.HasRole(a.cfg.Roles.Staff) {
		a.replyError(ctx, msg, "You do not have permission to use that command.")
		return
	}
	if len(args) != 1 {
		a.replyError(ctx, msg, "Usage: prefix <new prefix>")
		return
	}

	if err := a.systemService.SetCommandPrefix(ctx, args[0]); err != nil {
		a.replyError(ctx, msg, err.Error())
		return
	}
	a.setCachedPrefix(args[0])
	a.reply(ctx, msg, ui.Success("Prefix updated", "Command prefix is now "+args[0]))
}

func (a *App) handleGraceDelay(ctx context.Context, msg discordinfra.IncomingMessage, args []string) {
	if !msg.Author.HasRole(a.cfg.Roles.Staff) {
		a.replyError(ctx, msg, "You do not have permission to use that command.")
		return
	}
	if len(args) != 1 {
		a.replyError(ctx, msg, "Usage: gracedelay <duration, e.g. 60s>")
		return
	}

	delay, err := time.ParseDuration(args[0])
	if err != nil {
		a.replyError(ctx, msg, "Invalid duration: "+args[0])
		return
	}
	if err := a.systemService.SetCloseGraceDelay(ctx, delay); err != nil {
		a.replyError(ctx, msg, err.Error())
		return
	}
	a.reply(ctx, msg, ui.Success("Grace delay updated", "Ticket channels are now deleted "+delay.String()+" after closing."))
}

// resolveActionPair fetches the mentioned target and the bot's own
// membership; both are needed for hierarchy checks.
func (a *App) resolveActionPair(ctx context.Context, msg discordinfra.IncomingMessage, rawTarget string) (model.Member, model.Member, bool) {
	targetID, ok := parseMention(rawTarget)
	if !ok {
		a.replyError(ctx, msg, "Could not parse the member mention.")
		return model.Member{}, model.Member{}, false
	}

	target, err := a.discord.Member(ctx, targetID)
	if err != nil {
		a.replyError(ctx, msg, "That member could not be found on this server.")
		return model.Member{}, model.Member{}, false
	}

	bot, err := a.discord.BotMember(ctx)
	if err != nil {
		a.reportFailure(ctx, msg, "resolve bot member", targetID, err)
		return model.Member{}, model.Member{}, false
	}

	return target, bot, true
}

// parseMention accepts <@id>, <@!id>, or a bare numeric id.
func parseMention(raw string) (string, bool) {
	id := strings.TrimSuffix(strings.TrimPrefix(raw, "<@"), ">")
	id = strings.TrimPrefix(id, "!")
	if id == "" {
		return "", false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return id, true
}

// reportFailure maps workflow sentinels to user-facing replies and logs
// everything else as an internal failure.
func (a *App) reportFailure(ctx context.Context, msg discordinfra.IncomingMessage, action, target string, err error) {
	if message, ok := userMessage(err); ok {
		a.replyError(ctx, msg, message)
		return
	}

	a.logger.Error("command failed",
		zap.String("action", action),
		zap.String("actor_id", msg.Author.ID),
		zap.String("target", target),
		zap.Error(err),
	)
	a.replyError(ctx, msg, "Something went wrong while running that command.")
}

func userMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, modsvc.ErrHierarchy):
		return "You cannot action that member.", true
	case errors.Is(err, modsvc.ErrBotHierarchy):
		return "The bot cannot action that member.", true
	case errors.Is(err, modsvc.ErrAlreadyMuted):
		return "That member is already muted.", true
	case errors.Is(err, modsvc.ErrNotMuted):
		return "That member is not muted.", true
	case errors.Is(err, modsvc.ErrReasonTooLong):
		return "Reason must be less than 512 characters. Please use a shorter reason.", true
	case errors.Is(err, ticketsvc.ErrNotTicketChannel):
		return "You can only run that command in ticket channels.", true
	case errors.Is(err, ticketsvc.ErrTicketNotFound):
		return "No open ticket was found for this channel.", true
	case errors.Is(err, ticketsvc.ErrTicketNotInProgress):
		return "This ticket has already been closed.", true
	case errors.Is(err, ticketsvc.ErrCloseInProgress):
		return "This ticket is already being closed.", true
	default:
		return "", false
	}
}

func (a *App) replyError(ctx context.Context, msg discordinfra.IncomingMessage, description string) {
	a.reply(ctx, msg, ui.Error(description))
}

func (a *App) reply(ctx context.Context, msg discordinfra.IncomingMessage, embed model.Embed) {
	if err := a.discord.SendReply(ctx, msg.ChannelID, msg.MessageID, embed); err != nil {
		a.logger.Warn("send reply",
			zap.String("channel_id", msg.ChannelID),
			zap.Error(err),
		)
	}
}
