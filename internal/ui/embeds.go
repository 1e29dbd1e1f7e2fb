package ui

import (
	"fmt"
	"strings"

	"github.com/JohnTitor998/chiya/internal/domain/model"
)

const (
	ColorSoftRed     = 0xcd6d6d
	ColorSoftGreen   = 0x68c290
	ColorMuteDM      = 0x8083b0
	ColorUnmuteDM    = 0x8a3ac5
	ColorTicketClose = 0xffffc3
	ColorTicketLog   = 0x00ffdf
)

func ChannelMention(channelID string) string {
	return "<#" + channelID + ">"
}

func Success(title, description string) model.Embed {
	return model.Embed{
		Title:       title,
		Description: description,
		Color:       ColorSoftGreen,
	}
}

func Error(description string) model.Embed {
	return model.Embed{
		Title:       "Error",
		Description: description,
		Color:       ColorSoftRed,
	}
}

func MuteConfirmation(target, invoker model.Member, reason, iconURL string) model.Embed {
	return model.Embed{
		Title:       fmt.Sprintf("Muting member: %s", target.Username),
		Description: fmt.Sprintf("%s was muted by %s for: %s", target.Mention(), invoker.Mention(), reason),
		Color:       ColorSoftRed,
		ImageURL:    iconURL,
	}
}

func MuteChannelNotice(invoker model.Member, reason string) model.Embed {
	embed := model.Embed{
		Title:       "🤐 You were muted",
		Description: "If you have any questions or concerns about your mute, you may voice them here.",
		Color:       ColorMuteDM,
	}
	embed.AddField("Moderator:", invoker.Mention(), true)
	embed.AddField("Length:", "Indefinite", true)
	embed.AddField("Reason:", reason, false)
	return embed
}

func MuteDM(guildName string, invoker model.Member, muteChannelID, reason, imageURL string) model.Embed {
	embed := model.Embed{
		Title:       "Uh-oh, you've been muted!",
		Description: "If you believe this was a mistake, contact staff.",
		Color:       ColorMuteDM,
		ImageURL:    imageURL,
	}
	embed.AddField("Server:", guildName, true)
	embed.AddField("Moderator:", invoker.Mention(), true)
	embed.AddField("Length:", "Indefinite", true)
	embed.AddField("Mute Channel:", ChannelMention(muteChannelID), true)
	embed.AddField("Reason:", reason, false)
	return embed
}

func UnmuteConfirmation(target, invoker model.Member, reason, iconURL string) model.Embed {
	return model.Embed{
		Title:       fmt.Sprintf("Unmuting member: %s", target.Username),
		Description: fmt.Sprintf("%s was unmuted by %s for: %s", target.Mention(), invoker.Mention(), reason),
		Color:       ColorSoftGreen,
		ImageURL:    iconURL,
	}
}

func UnmuteDM(guildName string, invoker model.Member, reason, imageURL string) model.Embed {
	embed := model.Embed{
		Title:       "Yay, you've been unmuted!",
		Description: "Review our server rules to avoid being actioned again in the future.",
		Color:       ColorUnmuteDM,
		ImageURL:    imageURL,
	}
	embed.AddField("Server:", guildName, true)
	embed.AddField("Moderator:", invoker.Mention(), true)
	embed.AddField("Reason:", reason, false)
	return embed
}

func TicketClosedNotice(imageURL string) model.Embed {
	return model.Embed{
		Title: "🔒 Your ticket has been closed.",
		Description: "The channel has been marked read-only and will be archived in one minute. " +
			"If you have additional comments or concerns, feel free to open another ticket.",
		Color:    ColorTicketClose,
		ImageURL: imageURL,
	}
}

func TicketArchiveLog(channelName string, creator model.Member, topic string, participantIDs []string, logURL, iconURL string) model.Embed {
	mentions := make([]string, 0, len(participantIDs))
	for _, id := range participantIDs {
		mentions = append(mentions, "<@"+id+">")
	}
	participants := strings.Join(mentions, "\n")
	if participants == "" {
		participants = "None"
	}

	embed := model.Embed{
		Title:    fmt.Sprintf("%s archived", channelName),
		Color:    ColorTicketLog,
		ImageURL: iconURL,
	}
	embed.AddField("Ticket Creator:", creator.Mention(), false)
	embed.AddField("Ticket Topic:", topic, false)
	embed.AddField("Participating Moderators:", participants, false)
	embed.AddField("Ticket Log:", logURL, false)
	return embed
}
