package system

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	SettingCommandPrefix   = "command_prefix"
	SettingCloseGraceDelay = "ticket_close_grace_delay"
)

type Repo interface {
	Get(ctx context.Context, name string) (string, error)
	Upsert(ctx context.Context, name, value string, censored bool) error
}

type Service struct {
	repo       Repo
	notFound   error
	prefix     string
	graceDelay time.Duration
}

// NewService wraps the settings table with typed accessors. Defaults come
// from static config; stored values override them at runtime. notFound is
// the repo's missing-row sentinel.
func NewService(repo Repo, notFound error, defaultPrefix string, defaultGrace time.Duration) *Service {
	return &Service{
		repo:       repo,
		notFound:   notFound,
		prefix:     defaultPrefix,
		graceDelay: defaultGrace,
	}
}

// CommandPrefix returns the stored prefix override, or the configured
// default when none is stored.
func (s *Service) CommandPrefix(ctx context.Context) (string, error) {
	value, err := s.repo.Get(ctx, SettingCommandPrefix)
	if err != nil {
		if errors.Is(err, s.notFound) {
			return s.prefix, nil
		}
		return "", fmt.Errorf("read command prefix: %w", err)
	}
	if strings.TrimSpace(value) == "" {
		return s.prefix, nil
	}
	return value, nil
}

func (s *Service) SetCommandPrefix(ctx context.Context, prefix string) error {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return errors.New("command prefix cannot be empty")
	}
	if len(prefix) > 3 {
		return errors.New("command prefix must be at most 3 characters")
	}
	return s.repo.Upsert(ctx, SettingCommandPrefix, prefix, false)
}

// CloseGraceDelay returns the stored deletion delay override, or the
// configured default.
func (s *Service) CloseGraceDelay(ctx context.Context) (time.Duration, error) {
	value, err := s.repo.Get(ctx, SettingCloseGraceDelay)
	if err != nil {
		if errors.Is(err, s.notFound) {
			return s.graceDelay, nil
		}
		return 0, fmt.Errorf("read close grace delay: %w", err)
	}

	delay, err := time.ParseDuration(value)
	if err != nil || delay < 0 {
		return s.graceDelay, nil
	}
	return delay, nil
}

func (s *Service) SetCloseGraceDelay(ctx context.Context, delay time.Duration) error {
	if delay < 0 {
		return errors.New("grace delay cannot be negative")
	}
	return s.repo.Upsert(ctx, SettingCloseGraceDelay, delay.String(), false)
}
