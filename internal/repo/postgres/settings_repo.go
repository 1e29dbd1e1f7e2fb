package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSettingNotFound = errors.New("setting not found")

type SettingsRepo struct {
	pool *pgxpool.Pool
}

func NewSettingsRepo(pool *pgxpool.Pool) *SettingsRepo {
	return &SettingsRepo{pool: pool}
}

func (r *SettingsRepo) Get(ctx context.Context, name string) (string, error) {
	if r.pool == nil {
		return "", fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("setting name is required")
	}

	var value string
	err := r.pool.QueryRow(ctx, `
SELECT COALESCE(value, '')
FROM settings
WHERE name = $1
LIMIT 1
`, name).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrSettingNotFound
		}
		return "", fmt.Errorf("get setting %q: %w", name, err)
	}

	return value, nil
}

func (r *SettingsRepo) Upsert(ctx context.Context, name, value string, censored bool) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("setting name is required")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO settings (name, value, censored)
VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET
	value = EXCLUDED.value,
	censored = EXCLUDED.censored
`, name, value, censored); err != nil {
		return fmt.Errorf("upsert setting %q: %w", name, err)
	}

	return nil
}
