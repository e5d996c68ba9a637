// storage/redis_storage.go

package storage

import (
	"context"
	"strings"
	"time"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultRedisPort = "6379"
	maxPingAttempts  = 30
	maxPingBackoff   = 30 * time.Second
)

// RedisStorage stores cart payloads as plain Redis strings.
type RedisStorage struct {
	client *redis.Client
	log    logrus.FieldLogger

	// baseBackoff is the first wait between Initialize ping attempts.
	baseBackoff time.Duration
}

// NewRedisStorage accepts a Redis connection string ("redis://..." or "hostname[:port]")
// and returns a storage instance. No connection is made until the first command.
func NewRedisStorage(redisAddr string, log logrus.FieldLogger) *RedisStorage {
	opts, err := redis.ParseURL(redisAddr)
	if err != nil {
		// Not a "redis://..." URL, use it as a plain Addr.
		if !strings.Contains(redisAddr, ":") {
			redisAddr = redisAddr + ":" + defaultRedisPort
		}
		opts = &redis.Options{
			Addr:         redisAddr,
			MinIdleConns: 1,
			MaxRetries:   3,
			DialTimeout:  30 * time.Second,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			PoolSize:     10,
			PoolTimeout:  4 * time.Second,
			IdleTimeout:  180 * time.Second,
		}
	}

	client := redis.NewClient(opts)
	client.AddHook(redisotel.NewTracingHook())

	return &RedisStorage{
		client:      client,
		log:         log.WithField("storage", "redis"),
		baseBackoff: time.Second,
	}
}

// Initialize waits until Redis answers a ping, backing off exponentially between attempts.
func (r *RedisStorage) Initialize(ctx context.Context) error {
	r.log.Info("initializing connection")

	for i := 0; i < maxPingAttempts; i++ {
		if r.Ping(ctx) {
			r.log.WithField("attempt", i+1).Info("ping successful")
			return nil
		}

		backoff := r.baseBackoff * time.Duration(1<<uint(i))
		if backoff > maxPingBackoff || backoff <= 0 {
			backoff = maxPingBackoff
		}
		r.log.WithField("attempt", i+1).Warnf("ping failed, retrying in %v", backoff)

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "redis initialize")
		case <-time.After(backoff):
		}
	}
	return errors.Errorf("failed to connect to redis after %d attempts", maxPingAttempts)
}

// Get reads key. A missing key is reported as ok=false, not an error.
func (r *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "redis GET %q", key)
	}
	return val, true, nil
}

// Set overwrites key without expiration.
func (r *RedisStorage) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return errors.Wrapf(err, "redis SET %q", key)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (r *RedisStorage) Ping(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.client.Ping(pingCtx).Err(); err != nil {
		r.log.WithError(err).Debug("ping failed")
		return false
	}
	return true
}

// Close releases the client's connections.
func (r *RedisStorage) Close() error {
	return r.client.Close()
}
