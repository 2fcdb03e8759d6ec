package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/pysugar/hipchat-connect/internal/auth/token"
	"github.com/pysugar/hipchat-connect/internal/db"
	"github.com/pysugar/hipchat-connect/internal/descriptor"
	"github.com/pysugar/hipchat-connect/internal/glance"
	"github.com/pysugar/hipchat-connect/internal/handlers"
	"github.com/pysugar/hipchat-connect/internal/hipchat"
	"github.com/pysugar/hipchat-connect/internal/install"
	"github.com/pysugar/hipchat-connect/internal/lifecycle"
	"github.com/pysugar/hipchat-connect/internal/logging"
	"github.com/pysugar/hipchat-connect/internal/notify"
	"github.com/pysugar/hipchat-connect/internal/version"
)

var serveSeed string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the descriptor, install callbacks and glances",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return serve(cmd.Context(), a)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveSeed, "seed", "", "seed file applied before serving (overrides seed.path)")
}

func serve(parent context.Context, a *app) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := a.cfg

	seedPath := serveSeed
	if seedPath == "" {
		seedPath = cfg.Seed.Path
	}
	if seedPath != "" {
		res, err := db.SeedFromPath(a.db, seedPath, a.log)
		if err != nil {
			return err
		}
		a.log.Info("seed applied", "path", seedPath, "addons", res.Addons, "glances", res.Glances)
	}

	store, err := a.tokenStore(ctx)
	if err != nil {
		return err
	}

	client := a.hipchatClient()
	var enqueuer notify.Enqueuer
	if cfg.Notifications.Async {
		queue := asynq.NewClient(a.redisOpt())
		defer queue.Close()
		enqueuer = queue
	}
	dispatcher := notify.NewDispatcher(a.notifier(client), enqueuer, cfg.Notifications.Queue, a.log)

	log := a.log
	if cfg.Logger.RoomID != "" {
		level := logging.ParseLevel(cfg.Logger.RoomLevel)
		log = slog.New(logging.NewRoomHandler(a.log.Handler(), dispatcher.RoomSender(), cfg.Logger.RoomID, level))
	}

	exchanger := token.NewExchanger(cfg.HipChat.TokenURL(), client.HTTPClient(), cfg.HipChat.TokenTimeout, log)
	tokens := token.NewManager(a.db, store, exchanger, cfg.Cache.KeyPrefix, log)
	registry := install.NewRegistry(a.db, log)
	publisher := glance.NewPublisher(a.db, tokens, client, cfg.Glance.AutoRefresh, log)

	sources := glance.NewKeyedDataSource()
	sources.Fallback = glance.LastPublished{History: publisher, Fallback: glance.DefaultDataSource{}}

	router := handlers.NewRouter(handlers.Deps{
		DB:            a.db,
		Registry:      registry,
		Lifecycle:     lifecycle.NewService(registry, tokens, cfg.Install.StrictTokenExchange, log),
		Descriptors:   descriptor.NewBuilder(cfg.Server.BaseURL),
		Publisher:     publisher,
		Verifier:      glance.NewVerifier(a.db),
		DataSource:    sources,
		Tokens:        tokens,
		Messenger:     dispatcher,
		AdminPassword: cfg.Server.AdminPassword,
		Log:           log,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("hipconnect listening",
			"addr", srv.Addr,
			"base_url", cfg.Server.BaseURL,
			"version", version.Version,
			"strict_token_exchange", cfg.Install.StrictTokenExchange,
			"cache", cfg.Cache.Backend,
			"async_notifications", dispatcher.Async())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	announce(ctx, dispatcher, cfg.Notifications.InfoRoom, log)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// announce posts a start-up line to the info room, if one is configured.
func announce(ctx context.Context, messenger handlers.RoomMessenger, room string, log *slog.Logger) {
	if room == "" {
		return
	}
	msg := hipchat.NewMessage("hipconnect "+version.String()+" started",
		hipchat.WithColor("gray"),
		hipchat.WithFormat("text"))
	if err := messenger.SendRoomMessage(ctx, room, msg); err != nil {
		log.Warn("failed to announce start-up", "room", room, "error", err)
	}
}
