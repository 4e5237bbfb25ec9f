package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"timezone-scheduler/core/constants"
	"timezone-scheduler/core/logger"
	"timezone-scheduler/core/utils"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache backs named locks with SET NX PX and a compare-and-delete release.
type RedisCache struct {
	client *redis.Client
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisCache(ctx context.Context, config RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Cache:NewRedisCache:Ping", "addr", config.Addr, "error", err)
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("Cache:NewRedisCache:Connected", "addr", config.Addr, "db", config.DB)
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Acquire(ctx context.Context, key string, wait, ttl time.Duration) (Lock, error) {
	token := utils.GenerateRandomString(24)
	deadline := time.Now().Add(wait)

	for {
		ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			logger.Error("Cache:Acquire:SetNX", "key", key, "error", err)
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return &redisLock{client: c.client, key: key, token: token}, nil
		}
		if !time.Now().Before(deadline) {
			logger.Warn("Cache:Acquire:Timeout", "key", key, "wait", wait.String())
			return nil, ErrLockNotAcquired
		}

		timer := time.NewTimer(constants.LockPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(ErrLockNotAcquired, ctx.Err())
		case <-timer.C:
		}
	}
}

type redisLock struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLock) Key() string {
	return l.key
}

func (l *redisLock) Release(ctx context.Context) error {
	deleted, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return err
	}
	if deleted == 0 {
		// Expired and possibly taken by someone else; nothing of ours left to delete.
		logger.Warn("Cache:Release:NotOwner", "key", l.key)
	}
	return nil
}
