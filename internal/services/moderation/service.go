package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/JohnTitor998/chiya/internal/domain/enums"
	"github.com/JohnTitor998/chiya/internal/domain/model"
	"github.com/JohnTitor998/chiya/internal/ui"
)

const defaultReason = "No reason provided."
const maxReasonLength = 512

var ErrHierarchy = errors.New("cannot action member due to hierarchy")
var ErrBotHierarchy = errors.New("bot cannot action member")
var ErrAlreadyMuted = errors.New("member is already muted")
var ErrNotMuted = errors.New("member is not muted")
var ErrReasonTooLong = errors.New("reason must be less than 512 characters")

// Platform is the slice of chat-platform operations the mute workflows
// need. infra/discord.Client satisfies it.
type Platform interface {
	GuildName() string
	CreateChannel(ctx context.Context, name, categoryID string) (string, error)
	AllowRoleRead(ctx context.Context, channelID, roleID string) error
	AllowMemberRead(ctx context.Context, channelID, userID string) error
	SendEmbed(ctx context.Context, channelID string, embed model.Embed) error
	SendReply(ctx context.Context, channelID, messageID string, embed model.Embed) error
	SendDirectEmbed(ctx context.Context, userID string, embed model.Embed) error
	AddRole(ctx context.Context, userID, roleID, reason string) error
	RemoveRole(ctx context.Context, userID, roleID, reason string) error
	FindChannelByName(ctx context.Context, categoryID, name string) (string, error)
	MoveChannel(ctx context.Context, channelID, categoryID string) error
}

type Repo interface {
	Insert(ctx context.Context, entry model.ModLogEntry) error
}

type Config struct {
	StaffRoleID       string
	TrialModRoleID    string
	MutedRoleID       string
	TicketCategoryID  string
	ArchiveCategoryID string
	MuteIconURL       string
	UnmuteIconURL     string
}

type Service struct {
	repo     Repo
	platform Platform
	cfg      Config
}

func NewService(repo Repo, platform Platform, cfg Config) *Service {
	return &Service{repo: repo, platform: platform, cfg: cfg}
}

// CanAction decides whether invoker may moderate target. False when the
// target is the bot itself, when the target outranks or ties the invoker,
// or when the target outranks or ties the bot.
func CanAction(invoker, target, bot model.Member) bool {
	return actionGuard(invoker, target, bot) == nil
}

func actionGuard(invoker, target, bot model.Member) error {
	if target.ID == bot.ID {
		return ErrHierarchy
	}
	if target.TopRole >= invoker.TopRole {
		return ErrHierarchy
	}
	if target.TopRole >= bot.TopRole {
		return ErrBotHierarchy
	}
	return nil
}

func normalizeReason(raw string) (string, error) {
	if raw == "" {
		return defaultReason, nil
	}
	if utf8.RuneCountInString(raw) > maxReasonLength {
		return "", ErrReasonTooLong
	}
	return raw, nil
}

func muteChannelName(userID string) string {
	return "mute-" + userID
}

type MuteInput struct {
	Invoker   model.Member
	Target    model.Member
	Bot       model.Member
	ChannelID string
	MessageID string
	Reason    string
}

type MuteResult struct {
	MuteChannelID string
	Reason        string
	Notice        string
}

// Mute runs the full mute workflow. Platform side effects are sequential
// and best-effort: there is no compensation once a step has succeeded, so a
// later failure leaves earlier effects in place.
func (s *Service) Mute(ctx context.Context, input MuteInput) (MuteResult, error) {
	if err := actionGuard(input.Invoker, input.Target, input.Bot); err != nil {
		return MuteResult{}, err
	}
	if input.Target.HasRole(s.cfg.MutedRoleID) {
		return MuteResult{}, ErrAlreadyMuted
	}

	reason, err := normalizeReason(input.Reason)
	if err != nil {
		return MuteResult{}, err
	}

	muteChannelID, err := s.platform.CreateChannel(ctx, muteChannelName(input.Target.ID), s.cfg.TicketCategoryID)
	if err != nil {
		return MuteResult{}, fmt.Errorf("create mute channel: %w", err)
	}

	if err := s.platform.AllowRoleRead(ctx, muteChannelID, s.cfg.TrialModRoleID); err != nil {
		return MuteResult{}, fmt.Errorf("grant trial mod access to mute channel: %w", err)
	}
	if err := s.platform.AllowRoleRead(ctx, muteChannelID, s.cfg.StaffRoleID); err != nil {
		return MuteResult{}, fmt.Errorf("grant staff access to mute channel: %w", err)
	}
	if err := s.platform.AllowMemberRead(ctx, muteChannelID, input.Target.ID); err != nil {
		return MuteResult{}, fmt.Errorf("grant member access to mute channel: %w", err)
	}

	if err := s.platform.SendEmbed(ctx, muteChannelID, ui.MuteChannelNotice(input.Invoker, reason)); err != nil {
		return MuteResult{}, fmt.Errorf("post mute channel notice: %w", err)
	}

	var notice string
	dm := ui.MuteDM(s.platform.GuildName(), input.Invoker, muteChannelID, reason, s.cfg.MuteIconURL)
	if err := s.platform.SendDirectEmbed(ctx, input.Target.ID, dm); err != nil {
		if !errors.Is(err, model.ErrUndeliverable) {
			return MuteResult{}, fmt.Errorf("send mute dm: %w", err)
		}
		notice = fmt.Sprintf("Unable to message %s about this action. "+
			"This can be caused by the user not being in the server, having DMs disabled, or having the bot blocked.",
			input.Target.Mention())
	}

	confirmation := ui.MuteConfirmation(input.Target, input.Invoker, reason, s.cfg.MuteIconURL)
	if notice != "" {
		confirmation.AddField("Notice:", notice, false)
	}
	if err := s.platform.SendReply(ctx, input.ChannelID, input.MessageID, confirmation); err != nil {
		return MuteResult{}, fmt.Errorf("send mute confirmation: %w", err)
	}

	if err := s.platform.AddRole(ctx, input.Target.ID, s.cfg.MutedRoleID, reason); err != nil {
		return MuteResult{}, fmt.Errorf("add muted role: %w", err)
	}

	entry := model.ModLogEntry{
		UserID:      input.Target.ID,
		ModeratorID: input.Invoker.ID,
		Reason:      reason,
		Action:      enums.ActionMute,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		return MuteResult{}, fmt.Errorf("insert mute log: %w", err)
	}

	return MuteResult{MuteChannelID: muteChannelID, Reason: reason, Notice: notice}, nil
}

type UnmuteInput struct {
	Invoker   model.Member
	Target    model.Member
	Bot       model.Member
	ChannelID string
	MessageID string
	Reason    string
}

type UnmuteResult struct {
	Reason string
	Notice string
}

func (s *Service) Unmute(ctx context.Context, input UnmuteInput) (UnmuteResult, error) {
	if err := actionGuard(input.Invoker, input.Target, input.Bot); err != nil {
		return UnmuteResult{}, err
	}
	if !input.Target.HasRole(s.cfg.MutedRoleID) {
		return UnmuteResult{}, ErrNotMuted
	}

	reason, err := normalizeReason(input.Reason)
	if err != nil {
		return UnmuteResult{}, err
	}

	var notice string
	dm := ui.UnmuteDM(s.platform.GuildName(), input.Invoker, reason, s.cfg.UnmuteIconURL)
	if err := s.platform.SendDirectEmbed(ctx, input.Target.ID, dm); err != nil {
		if !errors.Is(err, model.ErrUndeliverable) {
			return UnmuteResult{}, fmt.Errorf("send unmute dm: %w", err)
		}
		notice = fmt.Sprintf("Unable to message %s about this action. "+
			"User either has DMs disabled or the bot blocked.", input.Target.Mention())
	}

	confirmation := ui.UnmuteConfirmation(input.Target, input.Invoker, reason, s.cfg.UnmuteIconURL)
	if notice != "" {
		confirmation.AddField("Notice:", notice, false)
	}
	if err := s.platform.SendReply(ctx, input.ChannelID, input.MessageID, confirmation); err != nil {
		return UnmuteResult{}, fmt.Errorf("send unmute confirmation: %w", err)
	}

	if err := s.platform.RemoveRole(ctx, input.Target.ID, s.cfg.MutedRoleID, reason); err != nil {
		return UnmuteResult{}, fmt.Errorf("remove muted role: %w", err)
	}

	muteChannelID, err := s.platform.FindChannelByName(ctx, s.cfg.TicketCategoryID, muteChannelName(input.Target.ID))
	if err != nil {
		return UnmuteResult{}, fmt.Errorf("find mute channel: %w", err)
	}
	if err := s.platform.MoveChannel(ctx, muteChannelID, s.cfg.ArchiveCategoryID); err != nil {
		return UnmuteResult{}, fmt.Errorf("archive mute channel: %w", err)
	}

	entry := model.ModLogEntry{
		UserID:      input.Target.ID,
		ModeratorID: input.Invoker.ID,
		Reason:      reason,
		Action:      enums.ActionUnmute,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		return UnmuteResult{}, fmt.Errorf("insert unmute log: %w", err)
	}

	return UnmuteResult{Reason: reason, Notice: notice}, nil
}
