package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/GetStream/teamchat/api"
	"github.com/GetStream/teamchat/api/validator"
	"github.com/GetStream/teamchat/config"
)

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "config/config.yaml", "path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	logger := newLogger(cfg.Log)

	c, err := newCore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	handler := &api.API{
		Logger:        logger,
		Auth:          api.JWTAuth{Secret: []byte(cfg.Auth.JWTSecret)},
		Sessions:      &api.Sessions{Demo: c.demo},
		Accounts:      c.accounts,
		Memberships:   c.memberships,
		Conversations: c.conversations,
		Reactions:     c.reactions,
		Val:           validator.New(),
		MessageLimit:  cfg.Sync.MessageLimit,
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Starting teamchat", "addr", srv.Addr, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server exited")
	return nil
}
