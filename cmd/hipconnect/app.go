package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/pysugar/hipchat-connect/internal/auth/token"
	"github.com/pysugar/hipchat-connect/internal/config"
	"github.com/pysugar/hipchat-connect/internal/db"
	"github.com/pysugar/hipchat-connect/internal/hipchat"
	"github.com/pysugar/hipchat-connect/internal/logging"
)

// app holds what every subcommand needs: configuration, logger and database.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	db     *gorm.DB
	redis  *redis.Client
	closer io.Closer
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, closer, err := logging.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	database, err := db.Open(cfg.Database, log)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return &app{cfg: cfg, log: log, db: database, closer: closer}, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	a.closer.Close()
}

// redisClient connects lazily; only the redis cache and the queue need it.
func (a *app) redisClient(ctx context.Context) (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", a.cfg.Redis.Addr, err)
	}
	a.redis = client
	return client, nil
}

func (a *app) tokenStore(ctx context.Context) (token.Store, error) {
	if a.cfg.Cache.Backend != "redis" {
		return token.NewMemoryStore(), nil
	}
	client, err := a.redisClient(ctx)
	if err != nil {
		return nil, err
	}
	return token.NewRedisStore(client), nil
}

func (a *app) redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	}
}

// hipchatClient and notifier use the base logger so that forwarded log
// lines are never produced by the forwarding path itself.
func (a *app) hipchatClient() *hipchat.Client {
	return hipchat.NewClient(a.cfg.HipChat.APIBase, a.cfg.HipChat.RequestTimeout, a.log)
}

func (a *app) notifier(client *hipchat.Client) *hipchat.Notifier {
	n := a.cfg.Notifications
	return hipchat.NewNotifier(client, hipchat.NewTokenPool(n.APITokens, n.APIToken))
}
