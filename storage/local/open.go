// Package localstore holds the drivers of the per-client durable key-value store.
package localstore

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/lms/core"
)

// Open builds the Storage named by conf.Driver and scopes it under conf.Prefix.
// The returned closer releases the driver's resources.
func Open(ctx context.Context, conf core.StorageConfig, workDir string) (core.Storage, func() error, error) {
	nopClose := func() error { return nil }

	var (
		storage core.Storage
		closer  = nopClose
	)
	switch conf.Driver {
	case "", "memory":
		storage = NewMemory()
	case "file":
		path := conf.Path
		if path == "" {
			path = filepath.Join(workDir, ".lms", "storage.json")
		}
		fs, err := NewFile(path)
		if err != nil {
			return nil, nil, err
		}
		storage = fs
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     conf.RedisAddr,
			Password: conf.RedisPassword,
			DB:       conf.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, errors.Wrapf(err, "connecting to redis at %s", conf.RedisAddr)
		}
		storage, closer = NewRedis(client), client.Close
	default:
		return nil, nil, errors.Errorf("unknown storage driver %q", conf.Driver)
	}

	if conf.Prefix != "" {
		storage = Scoped(storage, conf.Prefix)
	}
	return storage, closer, nil
}
