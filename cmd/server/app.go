package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/fieldsync/internal/config"
	"github.com/prudhvinik1/fieldsync/internal/connectivity"
	"github.com/prudhvinik1/fieldsync/internal/database"
	"github.com/prudhvinik1/fieldsync/internal/logging"
	"github.com/prudhvinik1/fieldsync/internal/metrics"
	"github.com/prudhvinik1/fieldsync/internal/repositories"
	"github.com/prudhvinik1/fieldsync/internal/services"
	"github.com/redis/go-redis/v9"
)

// app holds everything a command needs. Each command builds one, uses it,
// and closes it.
type app struct {
	cfg     *config.Config
	local   *sql.DB
	pool    *pgxpool.Pool
	redis   *redis.Client
	oracle  connectivity.Oracle
	metrics *metrics.Metrics
	engine  *services.SyncEngine
	auth    *services.AuthService
	logs    io.Closer
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logs, err := logging.Init(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		logging.Warn("invalid log level, using info", logging.Fields{"level": cfg.LogLevel})
	}

	a := &app{cfg: cfg, logs: logs}

	a.local, err = database.NewSQLite(cfg.LocalDBPath)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.pool, err = database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := database.EnsureRemoteSchema(ctx, a.pool); err != nil {
		// The tree is created on the next start that finds the server.
		logging.Warn("remote schema not ensured", logging.Fields{"error": err.Error()})
	}

	a.redis, err = database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.oracle, err = connectivity.New(cfg.ConnectivityMode, cfg.ConnectivityPollInterval)
	if err != nil {
		a.Close()
		return nil, err
	}

	feed := repositories.NewChangeFeed()
	a.metrics = metrics.New()
	a.engine = services.NewSyncEngine(
		repositories.NewSQLiteBeneficiaryRepository(a.local, feed),
		repositories.NewSQLiteChildRepository(a.local, feed),
		repositories.NewSQLiteSyncQueueRepository(a.local),
		repositories.NewPostgresDocumentStore(a.pool),
		a.oracle,
		services.SyncEngineConfig{
			OwnerID:    cfg.OwnerID,
			DeviceID:   cfg.DeviceID,
			Metrics:    a.metrics,
			Heartbeats: repositories.NewRedisHeartbeatRepository(a.redis, repositories.DefaultHeartbeatTTL),
		},
	)
	a.auth = services.NewAuthService(
		repositories.NewPostgresAccountRepository(a.pool),
		repositories.NewRedisSessionRepository(a.redis),
		cfg.JWTSecret,
		cfg.JWTExpiry,
		cfg.DeviceID,
	)

	logging.Info("fieldsync initialised", logging.Fields{
		"device_id":     cfg.DeviceID,
		"local_db":      cfg.LocalDBPath,
		"connectivity":  cfg.ConnectivityMode,
		"sync_interval": cfg.SyncInterval.String(),
	})
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.local != nil {
		if err := a.local.Close(); err != nil {
			logging.Error("failed to close local store", err)
		}
	}
	if a.logs != nil {
		a.logs.Close()
	}
}
