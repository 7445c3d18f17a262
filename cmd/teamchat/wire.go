package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/GetStream/teamchat/chat"
	"github.com/GetStream/teamchat/config"
	"github.com/GetStream/teamchat/memory"
	"github.com/GetStream/teamchat/postgres"
	"github.com/GetStream/teamchat/redis"
)

// core is the wired set of chat components.
type core struct {
	logger        *slog.Logger
	store         chat.Store
	cache         chat.ProfileCache
	demo          chat.DemoDirectory
	resolver      *chat.Resolver
	accounts      *chat.Accounts
	memberships   *chat.Memberships
	conversations *chat.Conversations
	reactions     *chat.Reactions
	closers       []io.Closer
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newCore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*core, error) {
	c := &core{logger: logger}

	switch cfg.Store.Driver {
	case "memory":
		c.store = memory.New()
	default:
		pg, err := postgres.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		c.closers = append(c.closers, pg)
		if cfg.Postgres.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				c.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		c.store = pg
	}

	if cfg.Redis.Address != "" {
		rc, err := redis.Connect(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			logger.Warn("Profile cache disabled", "error", err.Error())
		} else {
			c.closers = append(c.closers, rc)
			c.cache = rc
		}
	}

	if cfg.Sync.DemoUsers {
		c.demo = chat.DefaultDemoDirectory
	}

	c.resolver = &chat.Resolver{
		Logger:   logger,
		Profiles: c.store,
		Cache:    c.cache,
		CacheTTL: cfg.Redis.TTL,
		Demo:     c.demo,
	}
	c.memberships = &chat.Memberships{Logger: logger, Store: c.store}
	c.accounts = &chat.Accounts{
		Logger:      logger,
		Profiles:    c.store,
		Memberships: c.memberships,
		Cache:       c.cache,
		Demo:        c.demo,
	}
	c.conversations = &chat.Conversations{Logger: logger, Store: c.store, Resolver: c.resolver}
	c.reactions = &chat.Reactions{Logger: logger, Store: c.store, Resolver: c.resolver}
	return c, nil
}

func (c *core) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			c.logger.Warn("Close failed", "error", err.Error())
		}
	}
}
