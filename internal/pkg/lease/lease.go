// Package lease guards the history table with a single-writer lease.
package lease

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Vodeneev/openingline/internal/pkg/config"
)

// ErrNotAcquired means another writer holds the lease.
var ErrNotAcquired = errors.New("lease held by another writer")

// Release gives the lease back. It is a no-op if the lease already expired.
type Release func(ctx context.Context) error

type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (Release, error)
	Close() error
}

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Close() error
}

// RedisLocker implements Locker with SET NX PX and a compare-and-delete release.
type RedisLocker struct {
	client redisClient
}

var _ Locker = (*RedisLocker)(nil)

func NewRedisLocker(addr, password string, db int) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Check connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisLocker{client: client}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Release, error) {
	key := "lease:" + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease %s: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotAcquired)
	}

	return func(ctx context.Context) error {
		n, err := l.client.Eval(ctx, releaseScript, []string{key}, token).Int64()
		if err != nil {
			return fmt.Errorf("failed to release lease %s: %w", name, err)
		}
		if n == 0 {
			slog.Warn("Lease expired before release", "lease", name)
		}
		return nil
	}, nil
}

// Close closes connection with Redis
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// NoopLocker always grants the lease. Nothing stops a second writer.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string, time.Duration) (Release, error) {
	return func(context.Context) error { return nil }, nil
}

func (NoopLocker) Close() error { return nil }

// Open returns a Redis locker when an address is configured, otherwise a no-op one.
func Open(cfg config.LeaseConfig) (Locker, error) {
	if cfg.RedisAddr == "" {
		slog.Warn("lease.redis_addr not set: single history writer is NOT enforced, run only one daily-trigger instance")
		return NoopLocker{}, nil
	}
	return NewRedisLocker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}
