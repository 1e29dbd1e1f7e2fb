package model

import (
	"time"

	"github.com/JohnTitor998/chiya/internal/domain/enums"
)

type Ticket struct {
	ID        int64
	UserID    string
	Status    enums.TicketStatus
	GuildID   string
	Topic     string
	LogURL    string
	CreatedAt time.Time
}
