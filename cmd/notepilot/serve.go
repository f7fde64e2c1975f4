package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mklimuk/notepilot/pkg/api"
	"github.com/mklimuk/notepilot/pkg/capture"
	"github.com/mklimuk/notepilot/pkg/httpserver"
	"github.com/mklimuk/notepilot/pkg/integration/discord"
	"github.com/mklimuk/notepilot/pkg/integration/telegram"
	"github.com/mklimuk/notepilot/pkg/logger/slogx"
	"github.com/mklimuk/notepilot/pkg/projection"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the configured chat bots",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	if len(cfg.Auth.Tokens) == 0 {
		return errors.New("AUTH_TOKENS must map at least one bearer token to an owner")
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	eg, runCtx := errgroup.WithContext(ctx)

	lists := projection.NewRegistry(a.store)
	deps := a.deps
	deps.OnNote = lists.Created
	hub := capture.NewHub(deps)
	// pending calendar calls finish before the database closes
	defer hub.Wait()

	handler := &api.Handler{
		Notes:        a.store,
		Captures:     hub,
		Settings:     a.repo,
		Lists:        lists,
		Shutdown:     runCtx.Done(),
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	}
	srv, err := httpserver.New(cfg.HTTP.Addr, api.NewRouter(handler, cfg.Auth.Tokens),
		httpserver.WithLogger(slogx.Default()))
	if err != nil {
		return err
	}

	// nothing runs until every component is built
	runners := []func(context.Context) error{srv.Run}

	if cfg.Telegram.Token != "" {
		bot, err := telegram.NewBot(cfg.Telegram.Token, hub, cfg.STT.MaxBytes)
		if err != nil {
			return err
		}
		runners = append(runners, bot.Run)
	}

	if cfg.Discord.Token != "" {
		bot, err := discord.NewBot(cfg.Discord.Token, hub, cfg.STT.MaxBytes)
		if err != nil {
			return err
		}
		runners = append(runners, bot.Run)
	}

	backup, err := a.backup(ctx, cfg)
	if err != nil {
		return err
	}
	if backup != nil {
		runners = append(runners, backup.Run)
	}

	for _, run := range runners {
		eg.Go(func() error {
			return run(runCtx)
		})
	}

	slogx.Info(ctx, "notepilot started", slog.String("addr", cfg.HTTP.Addr))
	err = eg.Wait()
	slogx.Info(context.Background(), "notepilot stopped")
	return err
}
