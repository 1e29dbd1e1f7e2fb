package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JohnTitor998/chiya/internal/domain/enums"
	"github.com/JohnTitor998/chiya/internal/domain/model"
)

var ErrTicketNotFound = errors.New("ticket not found")
var ErrTicketNotInProgress = errors.New("ticket is not in progress")

type TicketsRepo struct {
	pool *pgxpool.Pool
}

func NewTicketsRepo(pool *pgxpool.Pool) *TicketsRepo {
	return &TicketsRepo{pool: pool}
}

func (r *TicketsRepo) FindInProgress(ctx context.Context, rawUserID string) (model.Ticket, error) {
	if r.pool == nil {
		return model.Ticket{}, fmt.Errorf("postgres pool is nil")
	}

	userID, err := parseSnowflake(rawUserID)
	if err != nil {
		return model.Ticket{}, fmt.Errorf("parse ticket user id: %w", err)
	}

	var ticket model.Ticket
	var ownerID, guildID, unix int64
	var status string
	err = r.pool.QueryRow(ctx, `
SELECT id, user_id, status, COALESCE(guild, 0), COALESCE(timestamp, 0),
       COALESCE(ticket_topic, ''), COALESCE(log_url, '')
FROM tickets
WHERE user_id = $1 AND status = $2
ORDER BY id DESC
LIMIT 1
`, userID, string(enums.TicketInProgress)).Scan(
		&ticket.ID,
		&ownerID,
		&status,
		&guildID,
		&unix,
		&ticket.Topic,
		&ticket.LogURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Ticket{}, ErrTicketNotFound
		}
		return model.Ticket{}, fmt.Errorf("find in-progress ticket: %w", err)
	}

	ticket.UserID = strconv.FormatInt(ownerID, 10)
	ticket.Status = enums.TicketStatus(status)
	if guildID != 0 {
		ticket.GuildID = strconv.FormatInt(guildID, 10)
	}
	if unix != 0 {
		ticket.CreatedAt = time.Unix(unix, 0).UTC()
	}

	return ticket, nil
}

// Complete flips the ticket to completed and records the transcript URL.
// The WHERE clause keeps the transition one-shot: a concurrent close that
// lost the race sees ErrTicketNotInProgress instead of overwriting.
func (r *TicketsRepo) Complete(ctx context.Context, ticketID int64, logURL string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if ticketID <= 0 {
		return fmt.Errorf("invalid ticket id")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE tickets
SET status = $2, log_url = $3
WHERE id = $1 AND status = $4
`, ticketID, string(enums.TicketCompleted), logURL, string(enums.TicketInProgress))
	if err != nil {
		return fmt.Errorf("complete ticket: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if existsErr := r.pool.QueryRow(ctx, `
SELECT EXISTS(SELECT 1 FROM tickets WHERE id = $1)
`, ticketID).Scan(&exists); existsErr != nil {
			return fmt.Errorf("check ticket existence: %w", existsErr)
		}
		if !exists {
			return ErrTicketNotFound
		}
		return ErrTicketNotInProgress
	}

	return nil
}
