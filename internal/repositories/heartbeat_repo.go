package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prudhvinik1/fieldsync/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	heartbeatKeyPrefix  = "heartbeat:"
	DefaultHeartbeatTTL = 45 * time.Minute
)

// RedisHeartbeatRepository publishes per-device sync health with a TTL, so a
// handset that stops reconciling drops out on its own.
type RedisHeartbeatRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisHeartbeatRepository(client *redis.Client, ttl time.Duration) *RedisHeartbeatRepository {
	if ttl <= 0 {
		ttl = DefaultHeartbeatTTL
	}
	return &RedisHeartbeatRepository{client: client, ttl: ttl}
}

func (r *RedisHeartbeatRepository) Publish(ctx context.Context, hb *models.DeviceHeartbeat) error {
	if hb.LastSyncAt.IsZero() {
		hb.LastSyncAt = time.Now()
	}
	if hb.Status == "" {
		hb.Status = string(models.DeviceOnline)
	}

	data, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("failed to marshal heartbeat: %w", err)
	}

	if err := r.client.Set(ctx, heartbeatKey(hb.DeviceID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set heartbeat: %w", err)
	}
	return nil
}

// Get returns the last heartbeat, or an offline placeholder when it expired.
func (r *RedisHeartbeatRepository) Get(ctx context.Context, deviceID string) (*models.DeviceHeartbeat, error) {
	data, err := r.client.Get(ctx, heartbeatKey(deviceID)).Result()
	if err == redis.Nil {
		return offlineHeartbeat(deviceID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get heartbeat: %w", err)
	}

	var hb models.DeviceHeartbeat
	if err := json.Unmarshal([]byte(data), &hb); err != nil {
		return nil, fmt.Errorf("failed to unmarshal heartbeat: %w", err)
	}
	return &hb, nil
}

func (r *RedisHeartbeatRepository) Delete(ctx context.Context, deviceID string) error {
	if err := r.client.Del(ctx, heartbeatKey(deviceID)).Err(); err != nil {
		return fmt.Errorf("failed to delete heartbeat: %w", err)
	}
	return nil
}

func offlineHeartbeat(deviceID string) *models.DeviceHeartbeat {
	return &models.DeviceHeartbeat{DeviceID: deviceID, Status: string(models.DeviceOffline)}
}

func heartbeatKey(deviceID string) string {
	return heartbeatKeyPrefix + deviceID
}
