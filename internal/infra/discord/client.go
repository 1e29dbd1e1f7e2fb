package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/JohnTitor998/chiya/internal/domain/model"
)

// MessageHandler receives every guild message the bot can see. The router
// decides whether it is a command.
type MessageHandler func(ctx context.Context, msg IncomingMessage)

// IncomingMessage is a gateway message with its author already resolved to
// the domain member shape.
type IncomingMessage struct {
	MessageID string
	ChannelID string
	Content   string
	Author    model.Member
}

type Client struct {
	session *discordgo.Session
	guildID string
	logger  *zap.Logger
	handler MessageHandler

	mu        sync.RWMutex
	guildName string
	rolePos   map[string]int
}

func NewClient(token, guildID string, logger *zap.Logger, handler MessageHandler) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("discord token is required")
	}
	if strings.TrimSpace(guildID) == "" {
		return nil, errors.New("discord guild id is required")
	}
	if handler == nil {
		return nil, errors.New("discord message handler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	return &Client{
		session: session,
		guildID: guildID,
		logger:  logger,
		handler: handler,
		rolePos: make(map[string]int),
	}, nil
}

// Start opens the gateway connection and dispatches messages until ctx is
// cancelled.
func (c *Client) Start(ctx context.Context) error {
	c.session.AddHandler(func(_ *discordgo.Session, event *discordgo.MessageCreate) {
		c.onMessage(ctx, event)
	})

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}

	if err := c.refreshGuild(ctx); err != nil {
		_ = c.session.Close()
		return err
	}

	c.logger.Info("discord gateway connected",
		zap.String("guild_id", c.guildID),
		zap.String("guild_name", c.GuildName()),
	)

	<-ctx.Done()
	return c.session.Close()
}

func (c *Client) onMessage(ctx context.Context, event *discordgo.MessageCreate) {
	if event.Author == nil || event.Author.Bot {
		return
	}
	if event.GuildID != c.guildID {
		return
	}

	author := model.Member{
		ID:       event.Author.ID,
		Username: event.Author.Username,
	}
	if event.Member != nil {
		author.RoleIDs = event.Member.Roles
		author.TopRole = c.topRolePosition(event.Member.Roles)
	}

	c.handler(ctx, IncomingMessage{
		MessageID: event.ID,
		ChannelID: event.ChannelID,
		Content:   event.Content,
		Author:    author,
	})
}

// refreshGuild caches the guild name and the role position table used for
// hierarchy comparisons.
func (c *Client) refreshGuild(ctx context.Context) error {
	guild, err := c.session.Guild(c.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("fetch guild %s: %w", c.guildID, err)
	}

	roles := guild.Roles
	if len(roles) == 0 {
		roles, err = c.session.GuildRoles(c.guildID, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("fetch guild roles: %w", err)
		}
	}

	positions := make(map[string]int, len(roles))
	for _, role := range roles {
		positions[role.ID] = role.Position
	}

	c.mu.Lock()
	c.guildName = guild.Name
	c.rolePos = positions
	c.mu.Unlock()
	return nil
}

func (c *Client) topRolePosition(roleIDs []string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	top := 0
	for _, id := range roleIDs {
		if pos, ok := c.rolePos[id]; ok && pos > top {
			top = pos
		}
	}
	return top
}

func (c *Client) GuildID() string { return c.guildID }

func (c *Client) GuildName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.guildName
}

// BotMember returns the bot's own guild membership for hierarchy checks.
func (c *Client) BotMember(ctx context.Context) (model.Member, error) {
	if c.session.State == nil || c.session.State.User == nil {
		return model.Member{}, errors.New("bot user not available before gateway open")
	}
	return c.Member(ctx, c.session.State.User.ID)
}

func (c *Client) Member(ctx context.Context, userID string) (model.Member, error) {
	member, err := c.session.GuildMember(c.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return model.Member{}, fmt.Errorf("fetch guild member %s: %w", userID, err)
	}
	return c.toMember(member), nil
}

func (c *Client) toMember(member *discordgo.Member) model.Member {
	out := model.Member{
		RoleIDs: member.Roles,
		TopRole: c.topRolePosition(member.Roles),
	}
	if member.User != nil {
		out.ID = member.User.ID
		out.Username = member.User.Username
		out.Bot = member.User.Bot
	}
	return out
}

func toMessageEmbed(embed model.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       embed.Title,
		Description: embed.Description,
		Color:       embed.Color,
	}
	if embed.ImageURL != "" {
		out.Image = &discordgo.MessageEmbedImage{URL: embed.ImageURL}
	}
	for _, field := range embed.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{
			Name:   field.Name,
			Value:  field.Value,
			Inline: field.Inline,
		})
	}
	return out
}
