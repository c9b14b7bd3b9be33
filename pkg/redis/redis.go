package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// releaseScript deletes the key only while it still belongs to owner, so an
// expired lock taken over by another session is never released by mistake.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type IRedis interface {
	AcquireLock(ctx context.Context, key string, owner string, ttl time.Duration) (bool, error)
	RefreshLock(ctx context.Context, key string, owner string, ttl time.Duration) error
	ReleaseLock(ctx context.Context, key string, owner string) error
	Ping(ctx context.Context) error
}

type redisClient struct {
	client *redis.Client
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client}
}

func (r *redisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisClient) AcquireLock(ctx context.Context, key string, owner string, ttl time.Duration) (bool, error) {
	logrus.Debug(fmt.Sprintf("Acquiring lock %s for %s", key, owner))
	ok, err := r.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error acquiring lock %s: %v", key, err))
		return false, err
	}
	if !ok {
		logrus.Debug(fmt.Sprintf("Lock %s is already held", key))
	}
	return ok, nil
}

func (r *redisClient) RefreshLock(ctx context.Context, key string, owner string, ttl time.Duration) error {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("lock %s expired", key)
	} else if err != nil {
		return err
	}
	if val != owner {
		return fmt.Errorf("lock %s is held by another owner", key)
	}
	return r.client.PExpire(ctx, key, ttl).Err()
}

func (r *redisClient) ReleaseLock(ctx context.Context, key string, owner string) error {
	logrus.Debug(fmt.Sprintf("Releasing lock %s for %s", key, owner))
	result, err := releaseScript.Run(ctx, r.client, []string{key}, owner).Int()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error releasing lock %s: %v", key, err))
		return err
	}

	if result == 0 {
		logrus.Debug(fmt.Sprintf("Lock %s was not held by %s", key, owner))
	}
	return nil
}
