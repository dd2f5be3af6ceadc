package localstore

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/lms/core"
)

type redisStore struct {
	client *redis.Client
}

// NewRedis returns a Storage backed by a redis server, shared by every frontend instance.
func NewRedis(client *redis.Client) core.Storage {
	return &redisStore{client: client}
}

func (r *redisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", core.ErrKeyNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "redis get %s", key)
	}
	return val, nil
}

func (r *redisStore) Set(ctx context.Context, key, value string) error {
	return errors.Wrapf(r.client.Set(ctx, key, value, 0).Err(), "redis set %s", key)
}

func (r *redisStore) Remove(ctx context.Context, key string) error {
	return errors.Wrapf(r.client.Del(ctx, key).Err(), "redis del %s", key)
}
