package enums

type ActionType string

const (
	ActionMute   ActionType = "mute"
	ActionUnmute ActionType = "unmute"
)
