package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JohnTitor998/chiya/internal/domain/model"
)

type ModLogsRepo struct {
	pool *pgxpool.Pool
}

func NewModLogsRepo(pool *pgxpool.Pool) *ModLogsRepo {
	return &ModLogsRepo{pool: pool}
}

func (r *ModLogsRepo) Insert(ctx context.Context, entry model.ModLogEntry) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	userID, err := parseSnowflake(entry.UserID)
	if err != nil {
		return fmt.Errorf("parse mod log user id: %w", err)
	}
	modID, err := parseSnowflake(entry.ModeratorID)
	if err != nil {
		return fmt.Errorf("parse mod log moderator id: %w", err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO mod_logs (user_id, mod_id, timestamp, reason, type)
VALUES ($1, $2, $3, $4, $5)
`, userID, modID, createdAt.Unix(), entry.Reason, string(entry.Action)); err != nil {
		return fmt.Errorf("insert mod log: %w", err)
	}

	return nil
}

func parseSnowflake(raw string) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("empty id")
	}
	value, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", raw, err)
	}
	return value, nil
}
