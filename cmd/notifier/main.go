package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/campusnotify/pkg/clientip"
	"github.com/dmitrymomot/campusnotify/pkg/config"
	"github.com/dmitrymomot/campusnotify/pkg/environment"
	"github.com/dmitrymomot/campusnotify/pkg/httpserver"
	"github.com/dmitrymomot/campusnotify/pkg/jwt"
	"github.com/dmitrymomot/campusnotify/pkg/logger"
	"github.com/dmitrymomot/campusnotify/pkg/notifications"
	"github.com/dmitrymomot/campusnotify/pkg/presence"
	"github.com/dmitrymomot/campusnotify/pkg/ratelimiter"
	"github.com/dmitrymomot/campusnotify/pkg/realtime"
	"github.com/dmitrymomot/campusnotify/pkg/redis"
	"github.com/dmitrymomot/campusnotify/pkg/requestid"
	"github.com/dmitrymomot/campusnotify/svc/notifier"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("notifier stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg notifier.Config
	if err := config.Load(&cfg); err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	logger.SetAsDefault(log)

	var (
		httpCfg     httpserver.Config
		realtimeCfg realtime.Config
		redisCfg    redis.Config
	)
	if err := config.Load(&httpCfg); err != nil {
		return err
	}
	if err := config.Load(&realtimeCfg); err != nil {
		return err
	}
	if err := config.Load(&redisCfg); err != nil {
		return err
	}

	backendCfg := notifier.BackendConfig{Driver: cfg.StoreDriver}
	switch cfg.StoreDriver {
	case notifier.DriverSQLite:
		err = config.Load(&backendCfg.SQLite)
	case notifier.DriverPostgres:
		err = config.Load(&backendCfg.Postgres)
	}
	if err != nil {
		return err
	}

	backend, err := notifier.OpenBackend(ctx, backendCfg, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	checks := backend.Checks
	var rdb goredis.UniversalClient
	if redisCfg.Enabled() {
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer client.Close()
		rdb = client
		checks["redis"] = redis.Healthcheck(client)
	}

	tokens, err := jwt.New(cfg.JWTSecret)
	if err != nil {
		return err
	}

	limiters, stopLimiters, err := notifier.NewLimiters(cfg, rdb)
	if err != nil {
		return err
	}
	defer stopLimiters()

	gatewayOpts := []realtime.Option{realtime.WithLogger(log)}
	if rdb != nil && realtimeCfg.MessageBurst > 0 {
		bucket, err := ratelimiter.NewBucket(
			ratelimiter.NewRedisStore(rdb, cfg.AppName+":rl:msg:"),
			ratelimiter.Config{Capacity: realtimeCfg.MessageBurst, RefillRate: realtimeCfg.MessageRate, RefillInterval: time.Second},
		)
		if err != nil {
			return err
		}
		gatewayOpts = append(gatewayOpts, realtime.WithMessageLimiter(bucket))
	}
	gateway, err := realtime.New(realtimeCfg, presence.NewRegistry(), tokens, backend.Users, gatewayOpts...)
	if err != nil {
		return err
	}

	store := notifications.NewStore(backend.Notifications, backend.Users)
	service := notifications.NewService(store, backend.Users, gateway, notifications.WithLogger(log))

	router := notifier.NewRouter(notifier.Deps{
		Environment:  environment.Parse(cfg.AppEnv),
		Service:      service,
		Verifier:     tokens,
		Realtime:     gateway,
		Limiters:     limiters,
		TrustProxy:   cfg.TrustProxyHeaders,
		Checks:       checks,
		ReadyTimeout: cfg.ReadyTimeout,
		Logger:       log,
	})

	log.InfoContext(ctx, "starting notifier",
		slog.String("store", cfg.StoreDriver),
		slog.Bool("redis", rdb != nil),
		slog.String("realtime_path", gateway.Path()),
	)
	return httpserver.New(httpCfg, router,
		httpserver.WithLogger(log),
		httpserver.WithShutdownHook(gateway.Shutdown),
	).Run(ctx)
}

func newLogger(cfg notifier.Config) (*slog.Logger, error) {
	env := environment.Parse(cfg.AppEnv)
	opts := []logger.Option{
		logger.WithEnvironment(env, cfg.AppName),
		logger.WithContextExtractors(requestid.LoggerExtractor(), clientip.LoggerExtractor()),
	}
	if cfg.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, fmt.Errorf("parsing LOG_LEVEL: %w", err)
		}
		opts = append(opts, logger.WithLevel(level))
	}
	return logger.New(opts...), nil
}
