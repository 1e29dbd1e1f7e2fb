package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/JohnTitor998/chiya/internal/domain/model"
)

const readPermissions = int64(discordgo.PermissionViewChannel |
	discordgo.PermissionSendMessages |
	discordgo.PermissionReadMessageHistory)

const readOnlyPermissions = int64(discordgo.PermissionViewChannel |
	discordgo.PermissionReadMessageHistory)

const readOnlyDenied = int64(discordgo.PermissionSendMessages |
	discordgo.PermissionAddReactions |
	discordgo.PermissionManageMessages)

const historyPageSize = 100

func (c *Client) Channel(ctx context.Context, channelID string) (model.Channel, error) {
	channel, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return model.Channel{}, fmt.Errorf("fetch channel %s: %w", channelID, err)
	}
	return model.Channel{
		ID:         channel.ID,
		Name:       channel.Name,
		GuildID:    channel.GuildID,
		CategoryID: channel.ParentID,
	}, nil
}

// CreateChannel creates a text channel under categoryID that only the bot
// can see; the callers grant read access explicitly afterwards.
func (c *Client) CreateChannel(ctx context.Context, name, categoryID string) (string, error) {
	data := discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildText,
		ParentID: categoryID,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{
				ID:   c.guildID,
				Type: discordgo.PermissionOverwriteTypeRole,
				Deny: int64(discordgo.PermissionViewChannel),
			},
		},
	}
	channel, err := c.session.GuildChannelCreateComplex(c.guildID, data, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create channel %s: %w", name, err)
	}
	return channel.ID, nil
}

func (c *Client) AllowRoleRead(ctx context.Context, channelID, roleID string) error {
	err := c.session.ChannelPermissionSet(channelID, roleID,
		discordgo.PermissionOverwriteTypeRole, readPermissions, 0,
		discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("grant read to role %s: %w", roleID, err)
	}
	return nil
}

func (c *Client) AllowMemberRead(ctx context.Context, channelID, userID string) error {
	err := c.session.ChannelPermissionSet(channelID, userID,
		discordgo.PermissionOverwriteTypeMember, readPermissions, 0,
		discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("grant read to member %s: %w", userID, err)
	}
	return nil
}

func (c *Client) SetRoleReadOnly(ctx context.Context, channelID, roleID string) error {
	err := c.session.ChannelPermissionSet(channelID, roleID,
		discordgo.PermissionOverwriteTypeRole, readOnlyPermissions, readOnlyDenied,
		discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("set read-only for role %s: %w", roleID, err)
	}
	return nil
}

// ChannelRoleOverwrites returns the ids of roles with an explicit
// permission overwrite on the channel.
func (c *Client) ChannelRoleOverwrites(ctx context.Context, channelID string) ([]string, error) {
	channel, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch channel %s: %w", channelID, err)
	}

	var roleIDs []string
	for _, overwrite := range channel.PermissionOverwrites {
		if overwrite.Type == discordgo.PermissionOverwriteTypeRole {
			roleIDs = append(roleIDs, overwrite.ID)
		}
	}
	return roleIDs, nil
}

func (c *Client) SendEmbed(ctx context.Context, channelID string, embed model.Embed) error {
	_, err := c.session.ChannelMessageSendEmbed(channelID, toMessageEmbed(embed), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send embed to %s: %w", channelID, err)
	}
	return nil
}

func (c *Client) SendReply(ctx context.Context, channelID, messageID string, embed model.Embed) error {
	send := &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{toMessageEmbed(embed)},
		Reference: &discordgo.MessageReference{
			MessageID: messageID,
			ChannelID: channelID,
			GuildID:   c.guildID,
		},
	}
	if _, err := c.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send reply to %s: %w", channelID, err)
	}
	return nil
}

// SendDirectEmbed delivers an embed to the user's DM channel. A user with
// DMs disabled surfaces as model.ErrUndeliverable so callers can degrade
// instead of failing.
func (c *Client) SendDirectEmbed(ctx context.Context, userID string, embed model.Embed) error {
	dm, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm channel for %s: %w", userID, err)
	}

	if _, err := c.session.ChannelMessageSendEmbed(dm.ID, toMessageEmbed(embed), discordgo.WithContext(ctx)); err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Message != nil &&
			restErr.Message.Code == discordgo.ErrCodeCannotSendMessagesToThisUser {
			return model.ErrUndeliverable
		}
		return fmt.Errorf("send dm to %s: %w", userID, err)
	}
	return nil
}

func (c *Client) AddRole(ctx context.Context, userID, roleID, reason string) error {
	err := c.session.GuildMemberRoleAdd(c.guildID, userID, roleID,
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	if err != nil {
		return fmt.Errorf("add role %s to %s: %w", roleID, userID, err)
	}
	return nil
}

func (c *Client) RemoveRole(ctx context.Context, userID, roleID, reason string) error {
	err := c.session.GuildMemberRoleRemove(c.guildID, userID, roleID,
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	if err != nil {
		return fmt.Errorf("remove role %s from %s: %w", roleID, userID, err)
	}
	return nil
}

func (c *Client) FindChannelByName(ctx context.Context, categoryID, name string) (string, error) {
	channels, err := c.session.GuildChannels(c.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("list guild channels: %w", err)
	}

	for _, channel := range channels {
		if channel.Name == name && channel.ParentID == categoryID {
			return channel.ID, nil
		}
	}
	return "", fmt.Errorf("channel %s not found under category %s", name, categoryID)
}

// MoveChannel re-parents the channel and syncs its overwrites with the
// target category, so the channel inherits the category's visibility.
func (c *Client) MoveChannel(ctx context.Context, channelID, categoryID string) error {
	category, err := c.session.Channel(categoryID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("fetch category %s: %w", categoryID, err)
	}

	if _, err := c.session.ChannelEdit(channelID, moveEdit(category), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("move channel %s to category %s: %w", channelID, categoryID, err)
	}
	return nil
}

// moveEdit re-parents a channel under the category and replaces its
// overwrites with the category's own, mirroring a synced child channel.
func moveEdit(category *discordgo.Channel) *discordgo.ChannelEdit {
	return &discordgo.ChannelEdit{
		ParentID:             category.ID,
		PermissionOverwrites: category.PermissionOverwrites,
	}
}

// ChannelMessages fetches the full channel history oldest-first. REST
// messages do not carry guild member data, so author roles are resolved
// once per distinct author.
func (c *Client) ChannelMessages(ctx context.Context, channelID string) ([]model.Message, error) {
	var raw []*discordgo.Message
	beforeID := ""
	for {
		page, err := c.session.ChannelMessages(channelID, historyPageSize, beforeID, "", "",
			discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("fetch channel history: %w", err)
		}
		raw = append(raw, page...)
		if len(page) < historyPageSize {
			break
		}
		beforeID = page[len(page)-1].ID
	}

	// Pages arrive newest-first.
	for i, j := 0, len(raw)-1; i < j; i, j = i+1, j-1 {
		raw[i], raw[j] = raw[j], raw[i]
	}

	roleCache := make(map[string][]string)
	messages := make([]model.Message, 0, len(raw))
	for _, msg := range raw {
		if msg.Author == nil {
			continue
		}

		out := model.Message{
			ID:        msg.ID,
			AuthorID:  msg.Author.ID,
			AuthorBot: msg.Author.Bot,
			Content:   msg.Content,
			CreatedAt: msg.Timestamp,
		}
		out.AuthorName = msg.Author.Username

		if !msg.Author.Bot {
			roles, ok := roleCache[msg.Author.ID]
			if !ok {
				if member, err := c.session.GuildMember(c.guildID, msg.Author.ID, discordgo.WithContext(ctx)); err == nil {
					roles = member.Roles
				}
				// Authors who left the guild keep nil roles.
				roleCache[msg.Author.ID] = roles
			}
			out.AuthorRoleIDs = roles
		}

		messages = append(messages, out)
	}

	return messages, nil
}

func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	if _, err := c.session.ChannelDelete(channelID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete channel %s: %w", channelID, err)
	}
	return nil
}
