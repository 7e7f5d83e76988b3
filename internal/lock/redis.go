package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL      = 10 * time.Minute
	defaultInterval = 100 * time.Millisecond
	releaseTimeout  = 3 * time.Second
)

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every instance using the same Redis server.
// A lock expires after its TTL if the holder dies.
type Redis struct {
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewRedis connects to redisURL and checks the server is reachable
func NewRedis(ctx context.Context, redisURL string, ttl time.Duration, logger *slog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis unreachable at %s: %w", opts.Addr, err)
	}

	if ttl <= 0 {
		ttl = defaultTTL
	}
	logger.Info("redis lock connected", slog.String("addr", opts.Addr), slog.Duration("ttl", ttl))
	return &Redis{
		client:   client,
		prefix:   "summer:lock:",
		ttl:      ttl,
		interval: defaultInterval,
		logger:   logger,
	}, nil
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		unlock, ok, err := r.TryLock(ctx, key)
		if err != nil || ok {
			return unlock, err
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (r *Redis) TryLock(ctx context.Context, key string) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.prefix+key, token, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return r.releaser(key, token), true, nil
}

func (r *Redis) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { r.release(key, token) })
	}
}

func (r *Redis) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := releaseScript.Run(ctx, r.client, []string{r.prefix + key}, token).Err(); err != nil {
		r.logger.Warn("failed to release lock", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Close closes the Redis connection
func (r *Redis) Close() error {
	return r.client.Close()
}
