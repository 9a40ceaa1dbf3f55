package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Connectivity modes. "auto" inspects the host's network interfaces; the other
// two pin the oracle, which is handy on gateways and in field training.
const (
	ConnectivityAuto    = "auto"
	ConnectivityOnline  = "online"
	ConnectivityOffline = "offline"
)

type Config struct {
	ServerPort  string
	LocalDBPath string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	JWTExpiry   time.Duration

	SyncInterval   time.Duration
	SyncMinBackoff time.Duration

	ConnectivityMode         string
	ConnectivityPollInterval time.Duration

	DeviceID string
	OwnerID  string

	LogLevel string
	LogFile  string
}

// LoadConfig resolves configuration from the environment (a .env file should
// already be loaded by the caller) and an optional fieldsync.yaml in the
// working directory.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("fieldsync")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return Load(v)
}

// Load builds a Config from an already prepared viper instance.
func Load(v *viper.Viper) (*Config, error) {
	jwtExpiry, err := parseDuration(v, "JWT_EXPIRY")
	if err != nil {
		return nil, err
	}
	syncInterval, err := parseDuration(v, "SYNC_INTERVAL")
	if err != nil {
		return nil, err
	}
	minBackoff, err := parseDuration(v, "SYNC_MIN_BACKOFF")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parseDuration(v, "CONNECTIVITY_POLL_INTERVAL")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:               v.GetString("SERVER_PORT"),
		LocalDBPath:              v.GetString("LOCAL_DB_PATH"),
		DatabaseURL:              v.GetString("DATABASE_URL"),
		RedisURL:                 v.GetString("REDIS_URL"),
		JWTSecret:                v.GetString("JWT_SECRET"),
		JWTExpiry:                jwtExpiry,
		SyncInterval:             syncInterval,
		SyncMinBackoff:           minBackoff,
		ConnectivityMode:         strings.ToLower(v.GetString("CONNECTIVITY_MODE")),
		ConnectivityPollInterval: pollInterval,
		DeviceID:                 v.GetString("DEVICE_ID"),
		OwnerID:                  v.GetString("OWNER_ID"),
		LogLevel:                 v.GetString("LOG_LEVEL"),
		LogFile:                  v.GetString("LOG_FILE"),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.SyncInterval <= 0 {
		return nil, errors.New("SYNC_INTERVAL must be positive")
	}
	switch cfg.ConnectivityMode {
	case ConnectivityAuto, ConnectivityOnline, ConnectivityOffline:
	default:
		return nil, fmt.Errorf("invalid CONNECTIVITY_MODE %q", cfg.ConnectivityMode)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOCAL_DB_PATH", "data/fieldsync.db")
	v.SetDefault("JWT_EXPIRY", "24h")
	v.SetDefault("SYNC_INTERVAL", "15m")
	v.SetDefault("SYNC_MIN_BACKOFF", "10s")
	v.SetDefault("CONNECTIVITY_MODE", ConnectivityAuto)
	v.SetDefault("CONNECTIVITY_POLL_INTERVAL", "5s")
	v.SetDefault("DEVICE_ID", "handset")
	v.SetDefault("OWNER_ID", "ALL_USERS")
	v.SetDefault("LOG_LEVEL", "info")
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s format", key)
	}
	return d, nil
}
