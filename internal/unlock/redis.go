package unlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "portfolio:session:"
	// each failed WATCH means another writer committed, so this bounds contention
	redisMaxAttempts = 10
)

// RedisStorage keeps each session as a hash that expires after ttl of inactivity.
type RedisStorage struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewRedisStorage connects to addr and verifies the connection.
func NewRedisStorage(ctx context.Context, addr string, ttl time.Duration) (*RedisStorage, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStorage{rdb: rdb, ttl: ttl}, nil
}

func redisSessionKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}

func (r *RedisStorage) Get(ctx context.Context, sessionID, key string) (string, error) {
	v, err := r.rdb.HGet(ctx, redisSessionKey(sessionID), key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrNoValue
	}
	if err != nil {
		return "", fmt.Errorf("redis hget: %w", err)
	}
	return v, nil
}

func (r *RedisStorage) Update(ctx context.Context, sessionID, key string, fn func(string, bool) string) error {
	hkey := redisSessionKey(sessionID)
	txf := func(tx *goredis.Tx) error {
		current, err := tx.HGet(ctx, hkey, key).Result()
		found := true
		if errors.Is(err, goredis.Nil) {
			found = false
		} else if err != nil {
			return err
		}
		next := fn(current, found)
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, hkey, key, next)
			if r.ttl > 0 {
				pipe.Expire(ctx, hkey, r.ttl)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < redisMaxAttempts; attempt++ {
		err := r.rdb.Watch(ctx, txf, hkey)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("redis update: %w", err)
		}
		return nil
	}
	return fmt.Errorf("redis update: %w", goredis.TxFailedErr)
}

func (r *RedisStorage) Clear(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, redisSessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Touch restarts the idle TTL of the session hash.
func (r *RedisStorage) Touch(ctx context.Context, sessionID string) error {
	if r.ttl <= 0 {
		return nil
	}
	if err := r.rdb.Expire(ctx, redisSessionKey(sessionID), r.ttl).Err(); err != nil {
		return fmt.Errorf("redis expire: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	return r.rdb.Close()
}
