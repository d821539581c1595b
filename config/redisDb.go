package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Redis bundles the client with its lock client. A nil *Redis means redis is
// not configured; every method is safe to call on it and reports a miss.
type Redis struct {
	Client *redis.Client
	Locker *redislock.Client
}

// ConnectRedisWithRetry returns nil when REDIS_ADDRESS is empty.
func ConnectRedisWithRetry(ctx context.Context, s Settings, maxAttempts int) (*Redis, error) {
	if s.RedisAddress == "" {
		log.Printf("REDIS_ADDRESS not set; running without redis")
		return nil, nil
	}

	var attempt int
	for {
		attempt++
		rdb := redis.NewClient(&redis.Options{
			Addr:     s.RedisAddress,
			Password: "",
			DB:       0,
			PoolSize: 20,
		})
		err := rdb.Ping(ctx).Err()
		if err == nil {
			log.Printf("connected to redis (attempt=%d addr=%s)", attempt, s.RedisAddress)
			return &Redis{Client: rdb, Locker: redislock.New(rdb)}, nil
		}
		_ = rdb.Close()

		if maxAttempts > 0 && attempt >= maxAttempts {
			return nil, err
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect redis (attempt=%d addr=%s): %v; retrying in %s", attempt, s.RedisAddress, err, sleep)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func (r *Redis) GetValue(ctx context.Context, key string) (string, bool, error) {
	if r == nil || r.Client == nil {
		return "", false, nil
	}
	val, err := r.Client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

func (r *Redis) SetValue(ctx context.Context, key string, value string, exp time.Duration) error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Set(ctx, key, value, exp).Err()
}

func (r *Redis) GetObject(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, ok, err := r.GetValue(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) SetObject(ctx context.Context, key string, obj interface{}, exp time.Duration) error {
	if r == nil || r.Client == nil {
		return nil
	}
	objInByte, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key, objInByte, exp).Err()
}

func (r *Redis) RemoveKey(ctx context.Context, keys ...string) error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Del(ctx, keys...).Err()
}

func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
