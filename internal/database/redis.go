package database

import (
	"context"
	"fmt"

	"github.com/prudhvinik1/fieldsync/internal/logging"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses redisURL and pings the server. As with Postgres, a
// failed ping only logs; go-redis reconnects on demand.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logging.Warn("redis unreachable at startup", logging.Fields{"error": err.Error()})
		return client, nil
	}

	logging.Info("redis client created")
	return client, nil
}
