package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements are all IF NOT EXISTS, so EnsureSchema can run on every
// startup. Existing columns are never migrated.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS mod_logs (
		id        BIGSERIAL PRIMARY KEY,
		user_id   BIGINT NOT NULL,
		mod_id    BIGINT NOT NULL,
		timestamp BIGINT NOT NULL,
		reason    TEXT,
		type      TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS remind_me (
		id                BIGSERIAL PRIMARY KEY,
		reminder_location BIGINT,
		author_id         BIGINT,
		date_to_remind    BIGINT,
		message           TEXT,
		sent              BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS timed_mod_actions (
		id          BIGSERIAL PRIMARY KEY,
		user_id     BIGINT,
		mod_id      BIGINT,
		action_type TEXT,
		start_time  BIGINT,
		end_time    BIGINT,
		is_done     BOOLEAN NOT NULL DEFAULT FALSE,
		reason      TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id           BIGSERIAL PRIMARY KEY,
		user_id      BIGINT NOT NULL,
		status       TEXT NOT NULL,
		guild        BIGINT,
		timestamp    BIGINT,
		ticket_topic TEXT,
		log_url      TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		id       BIGSERIAL PRIMARY KEY,
		name     TEXT NOT NULL UNIQUE,
		value    TEXT,
		censored BOOLEAN NOT NULL DEFAULT FALSE
	)`,
}

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	return nil
}
