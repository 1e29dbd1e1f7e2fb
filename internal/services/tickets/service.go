package tickets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JohnTitor998/chiya/internal/domain/model"
	pgrepo "github.com/JohnTitor998/chiya/internal/repo/postgres"
	redrepo "github.com/JohnTitor998/chiya/internal/repo/redis"
	"github.com/JohnTitor998/chiya/internal/ui"
)

var ErrNotTicketChannel = errors.New("not an active ticket channel")
var ErrTicketNotFound = errors.New("no in-progress ticket for this channel")
var ErrTicketNotInProgress = errors.New("ticket is not in progress")
var ErrCloseInProgress = errors.New("ticket close already in progress")

// Platform is the slice of chat-platform operations the close workflow
// needs. infra/discord.Client satisfies it.
type Platform interface {
	GuildID() string
	Member(ctx context.Context, userID string) (model.Member, error)
	SendEmbed(ctx context.Context, channelID string, embed model.Embed) error
	ChannelRoleOverwrites(ctx context.Context, channelID string) ([]string, error)
	SetRoleReadOnly(ctx context.Context, channelID, roleID string) error
	ChannelMessages(ctx context.Context, channelID string) ([]model.Message, error)
	DeleteChannel(ctx context.Context, channelID string) error
}

type Repo interface {
	FindInProgress(ctx context.Context, userID string) (model.Ticket, error)
	Complete(ctx context.Context, ticketID int64, logURL string) error
}

type Paster interface {
	Submit(ctx context.Context, text string) (string, error)
}

type Locks interface {
	Acquire(ctx context.Context, key, token string, ttl time.Duration) error
	Release(ctx context.Context, key, token string) error
}

type Config struct {
	StaffRoleID        string
	TrialModRoleID     string
	TicketCategoryID   string
	TicketLogChannelID string
	CloseIconURL       string
	PencilIconURL      string
	GraceDelay         time.Duration
	ClaimTTL           time.Duration
}

type Service struct {
	repo     Repo
	platform Platform
	paster   Paster
	locks    Locks
	cfg      Config
}

func NewService(repo Repo, platform Platform, paster Paster, locks Locks, cfg Config) *Service {
	if cfg.ClaimTTL <= cfg.GraceDelay {
		cfg.ClaimTTL = cfg.GraceDelay + time.Minute
	}
	return &Service{repo: repo, platform: platform, paster: paster, locks: locks, cfg: cfg}
}

type CloseInput struct {
	Invoker model.Member
	Channel model.Channel

	// GraceDelay overrides the configured deletion delay when set.
	GraceDelay *time.Duration
}

type CloseResult struct {
	LogURL       string
	Participants []string
}

// Close archives a ticket channel: read-only lockdown, transcript upload,
// archive embed, record completion, grace delay, deletion. Closes for the
// same ticket are serialized by a redis claim; the conditional status
// update is the second line of defense.
func (s *Service) Close(ctx context.Context, input CloseInput) (CloseResult, error) {
	userID, err := s.ticketOwner(input.Channel)
	if err != nil {
		return CloseResult{}, err
	}

	token := uuid.NewString()
	claimKey := "ticket:close:" + userID
	if err := s.locks.Acquire(ctx, claimKey, token, s.cfg.ClaimTTL); err != nil {
		if errors.Is(err, redrepo.ErrAlreadyClaimed) {
			return CloseResult{}, ErrCloseInProgress
		}
		return CloseResult{}, fmt.Errorf("claim ticket close: %w", err)
	}
	defer func() {
		_ = s.locks.Release(context.WithoutCancel(ctx), claimKey, token)
	}()

	ticket, err := s.repo.FindInProgress(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrTicketNotFound) {
			return CloseResult{}, ErrTicketNotFound
		}
		return CloseResult{}, fmt.Errorf("find ticket: %w", err)
	}

	creator, err := s.platform.Member(ctx, ticket.UserID)
	if err != nil {
		// Creator may have left the server; the archive embed still needs
		// a mention, so fall back to the bare id.
		creator = model.Member{ID: ticket.UserID, Username: ticket.UserID}
	}

	if err := s.platform.SendEmbed(ctx, input.Channel.ID, ui.TicketClosedNotice(s.cfg.CloseIconURL)); err != nil {
		return CloseResult{}, fmt.Errorf("post close notice: %w", err)
	}

	if err := s.lockDownChannel(ctx, input.Channel); err != nil {
		return CloseResult{}, err
	}

	transcript, participants, err := s.buildTranscript(ctx, input.Channel, creator, ticket.Topic)
	if err != nil {
		return CloseResult{}, err
	}

	logURL, err := s.paster.Submit(ctx, transcript)
	if err != nil {
		return CloseResult{}, fmt.Errorf("submit transcript: %w", err)
	}

	archiveEmbed := ui.TicketArchiveLog(input.Channel.Name, creator, ticket.Topic, participants, logURL, s.cfg.PencilIconURL)
	if err := s.platform.SendEmbed(ctx, s.cfg.TicketLogChannelID, archiveEmbed); err != nil {
		return CloseResult{}, fmt.Errorf("post archive embed: %w", err)
	}

	if err := s.repo.Complete(ctx, ticket.ID, logURL); err != nil {
		if errors.Is(err, pgrepo.ErrTicketNotInProgress) {
			return CloseResult{}, ErrTicketNotInProgress
		}
		return CloseResult{}, fmt.Errorf("complete ticket: %w", err)
	}

	// Grace period before deletion so members can read the notice. Each
	// close runs in its own goroutine, so this blocks nobody else.
	grace := s.cfg.GraceDelay
	if input.GraceDelay != nil {
		grace = *input.GraceDelay
	}
	if grace > 0 {
		select {
		case <-ctx.Done():
			return CloseResult{}, ctx.Err()
		case <-time.After(grace):
		}
	}

	if err := s.platform.DeleteChannel(ctx, input.Channel.ID); err != nil {
		return CloseResult{}, fmt.Errorf("delete ticket channel: %w", err)
	}

	return CloseResult{LogURL: logURL, Participants: participants}, nil
}

func (s *Service) ticketOwner(channel model.Channel) (string, error) {
	if channel.CategoryID != s.cfg.TicketCategoryID {
		return "", ErrNotTicketChannel
	}
	if !strings.HasPrefix(channel.Name, "ticket-") {
		return "", ErrNotTicketChannel
	}

	rawID := strings.TrimPrefix(channel.Name, "ticket-")
	if _, err := strconv.ParseInt(rawID, 10, 64); err != nil {
		return "", ErrNotTicketChannel
	}

	return rawID, nil
}

func (s *Service) lockDownChannel(ctx context.Context, channel model.Channel) error {
	roleIDs, err := s.platform.ChannelRoleOverwrites(ctx, channel.ID)
	if err != nil {
		return fmt.Errorf("list channel overwrites: %w", err)
	}

	for _, roleID := range roleIDs {
		// The implicit everyone role shares its id with the guild.
		if roleID == s.platform.GuildID() {
			continue
		}
		if err := s.platform.SetRoleReadOnly(ctx, channel.ID, roleID); err != nil {
			return fmt.Errorf("set channel read-only for role %s: %w", roleID, err)
		}
	}

	return nil
}

func (s *Service) buildTranscript(ctx context.Context, channel model.Channel, creator model.Member, topic string) (string, []string, error) {
	messages, err := s.platform.ChannelMessages(ctx, channel.ID)
	if err != nil {
		return "", nil, fmt.Errorf("fetch channel history: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ticket Creator: %s\nUser ID: %s\nTicket Topic: %s\n\n", creator.Username, creator.ID, topic)

	participantSet := make(map[string]struct{})
	for _, message := range messages {
		if message.AuthorBot {
			continue
		}

		fmt.Fprintf(&b, "[%s] %s: %s\n",
			message.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			message.AuthorName,
			message.Content,
		)

		if message.AuthorHasRole(s.cfg.StaffRoleID) || message.AuthorHasRole(s.cfg.TrialModRoleID) {
			participantSet[message.AuthorID] = struct{}{}
		}
	}

	participants := make([]string, 0, len(participantSet))
	for id := range participantSet {
		participants = append(participants, id)
	}
	sort.Strings(participants)

	return b.String(), participants, nil
}
