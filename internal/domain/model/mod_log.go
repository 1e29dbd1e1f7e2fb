package model

import (
	"time"

	"github.com/JohnTitor998/chiya/internal/domain/enums"
)

type ModLogEntry struct {
	ID          int64
	UserID      string
	ModeratorID string
	Reason      string
	Action      enums.ActionType
	CreatedAt   time.Time
}
