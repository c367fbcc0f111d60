package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/canopy-network/tokenscope/pkg/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultKeyPrefix namespaces every key written by this service.
const DefaultKeyPrefix = "tokenscope"

// Client wraps the Redis client used as the shared ledger cache across query replicas.
type Client struct {
	client    redis.UniversalClient
	logger    *zap.Logger
	keyPrefix string
}

// NewClient creates a new Redis client using environment variables for configuration.
// Environment variables:
//   - REDIS_HOST: Redis host (default: "localhost")
//   - REDIS_PORT: Redis port (default: "6379")
//   - REDIS_PASSWORD: Redis password (default: "")
//   - REDIS_DB: Redis database number (default: "0")
//   - REDIS_KEY_PREFIX: Key namespace (default: "tokenscope")
//   - REDIS_DIAL_TIMEOUT, REDIS_READ_TIMEOUT, REDIS_WRITE_TIMEOUT: durations such as "3s"
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("REDIS_HOST", "localhost")
	port := utils.Env("REDIS_PORT", "6379")
	password := utils.Env("REDIS_PASSWORD", "")
	db := utils.EnvInt("REDIS_DB", 0)

	addr := fmt.Sprintf("%s:%s", host, port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		// Connection pool
		PoolSize:     10,
		MinIdleConns: 2,

		// Timeouts
		DialTimeout:  utils.EnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  utils.EnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: utils.EnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
	})

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logger.Info("Connected to Redis",
		zap.String("addr", addr),
		zap.Int("db", db))

	return NewWithClient(rdb, logger, utils.Env("REDIS_KEY_PREFIX", DefaultKeyPrefix)), nil
}

// NewWithClient wraps an already configured client, e.g. a cluster client or a test server.
func NewWithClient(rdb redis.UniversalClient, logger *zap.Logger, keyPrefix string) *Client {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Client{
		client:    rdb,
		logger:    logger,
		keyPrefix: keyPrefix,
	}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	c.logger.Info("Closing Redis connection", zap.String("keyPrefix", c.keyPrefix))
	return c.client.Close()
}

// GetClient returns the underlying Redis client.
func (c *Client) GetClient() redis.UniversalClient {
	return c.client
}

// Key joins parts under the configured prefix: "<prefix>:<part>:<part>...".
func (c *Client) Key(parts ...string) string {
	key := c.keyPrefix
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// Health checks if Redis is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetBytes returns the value stored at key. ok is false when the key does not exist.
func (c *Client) GetBytes(ctx context.Context, key string) (value []byte, ok bool, err error) {
	value, err = c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

// SetBytes stores value at key. A zero ttl keeps the key until it is overwritten.
func (c *Client) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

