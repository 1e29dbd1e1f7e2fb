package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JohnTitor998/chiya/internal/config"
	discordinfra "github.com/JohnTitor998/chiya/internal/infra/discord"
	"github.com/JohnTitor998/chiya/internal/infra/pastebin"
	pgrepo "github.com/JohnTitor998/chiya/internal/repo/postgres"
	redrepo "github.com/JohnTitor998/chiya/internal/repo/redis"
	modsvc "github.com/JohnTitor998/chiya/internal/services/moderation"
	systemsvc "github.com/JohnTitor998/chiya/internal/services/system"
	ticketsvc "github.com/JohnTitor998/chiya/internal/services/tickets"
	opshttp "github.com/JohnTitor998/chiya/internal/transport/http"
)

type App struct {
	cfg    config.Config
	logger *zap.Logger

	pool    *pgxpool.Pool
	redis   *goredis.Client
	discord *discordinfra.Client
	ops     *http.Server

	moderationService *modsvc.Service
	ticketService     *ticketsvc.Service
	systemService     *systemsvc.Service

	prefixMu     sync.Mutex
	prefixValue  string
	prefixExpiry time.Time
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pgrepo.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	modLogsRepo := pgrepo.NewModLogsRepo(pool)
	ticketsRepo := pgrepo.NewTicketsRepo(pool)
	settingsRepo := pgrepo.NewSettingsRepo(pool)
	claimsRepo := redrepo.NewClaimsRepo(redisClient)

	paster, err := pastebin.NewClient(cfg.Paste.BaseURL, cfg.Paste.Expiration, cfg.Paste.Timeout)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create pastebin client: %w", err)
	}

	app := &App{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		redis:  redisClient,
	}

	app.discord, err = discordinfra.NewClient(cfg.Discord.Token, cfg.Discord.GuildID, logger, app.route)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create discord client: %w", err)
	}

	app.moderationService = modsvc.NewService(modLogsRepo, app.discord, modsvc.Config{
		StaffRoleID:       cfg.Roles.Staff,
		TrialModRoleID:    cfg.Roles.TrialMod,
		MutedRoleID:       cfg.Roles.Muted,
		TicketCategoryID:  cfg.Channels.TicketCategory,
		ArchiveCategoryID: cfg.Channels.ArchiveCategory,
		MuteIconURL:       cfg.Icons.UserMute,
		UnmuteIconURL:     cfg.Icons.UserUnmute,
	})
	app.ticketService = ticketsvc.NewService(ticketsRepo, app.discord, paster, claimsRepo, ticketsvc.Config{
		StaffRoleID:        cfg.Roles.Staff,
		TrialModRoleID:     cfg.Roles.TrialMod,
		TicketCategoryID:   cfg.Channels.TicketCategory,
		TicketLogChannelID: cfg.Channels.TicketLog,
		CloseIconURL:       cfg.Icons.UserMute,
		PencilIconURL:      cfg.Icons.Pencil,
		GraceDelay:         cfg.Tickets.CloseGraceDelay,
		ClaimTTL:           cfg.Tickets.ClaimTTL,
	})
	app.systemService = systemsvc.NewService(settingsRepo, pgrepo.ErrSettingNotFound,
		cfg.Discord.Prefix, cfg.Tickets.CloseGraceDelay)

	app.ops = &http.Server{
		Addr:         cfg.Ops.Addr,
		Handler:      opshttp.NewOpsServer(logger, app.pgPinger(), app.redisPinger()).Handler(),
		ReadTimeout:  cfg.Ops.ReadTimeout,
		WriteTimeout: cfg.Ops.WriteTimeout,
		IdleTimeout:  cfg.Ops.IdleTimeout,
	}

	return app, nil
}

// Run blocks until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return a.discord.Start(ctx)
	})

	group.Go(func() error {
		a.logger.Info("ops server listening", zap.String("addr", a.ops.Addr))
		if err := a.ops.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Ops.WriteTimeout)
		defer cancel()
		return a.ops.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func (a *App) close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("close redis", zap.Error(err))
		}
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func (a *App) pgPinger() opshttp.Pinger {
	return pingFunc(func(ctx context.Context) error {
		return a.pool.Ping(ctx)
	})
}

func (a *App) redisPinger() opshttp.Pinger {
	return pingFunc(func(ctx context.Context) error {
		return a.redis.Ping(ctx).Err()
	})
}
