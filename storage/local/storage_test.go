package localstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/lms/core"
)

var ctx = context.Background()

func testStorage(t *testing.T, storage core.Storage) {
	t.Helper()

	_, err := storage.Get(ctx, "theme")
	assert.Equal(t, core.ErrKeyNotFound, err)

	require.NoError(t, storage.Set(ctx, "theme", "dark"))
	val, err := storage.Get(ctx, "theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", val)

	require.NoError(t, storage.Set(ctx, "theme", "light"))
	val, _ = storage.Get(ctx, "theme")
	assert.Equal(t, "light", val)

	require.NoError(t, storage.Remove(ctx, "theme"))
	require.NoError(t, storage.Remove(ctx, "theme"))
	_, err = storage.Get(ctx, "theme")
	assert.Equal(t, core.ErrKeyNotFound, err)
}

func TestMemory(t *testing.T) {
	testStorage(t, NewMemory())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storage.json")

	storage, err := NewFile(path)
	require.NoError(t, err)
	testStorage(t, storage)

	require.NoError(t, storage.Set(ctx, "token", "tok-123"))

	reopened, err := NewFile(path)
	require.NoError(t, err)
	val, err := reopened.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", val)

	t.Run("corrupt file", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
		_, err := NewFile(bad)
		assert.Error(t, err)
	})
}

func TestScoped(t *testing.T) {
	parent := NewMemory()
	alice, bob := Scoped(parent, "alice"), Scoped(parent, "bob")
	testStorage(t, alice)

	require.NoError(t, alice.Set(ctx, "token", "a"))
	require.NoError(t, bob.Set(ctx, "token", "b"))

	val, _ := alice.Get(ctx, "token")
	assert.Equal(t, "a", val)
	val, _ = parent.Get(ctx, "bob:token")
	assert.Equal(t, "b", val)

	require.NoError(t, bob.Remove(ctx, "token"))
	val, _ = alice.Get(ctx, "token")
	assert.Equal(t, "a", val)
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		conf    core.StorageConfig
		wantErr bool
	}{
		{name: "memory", conf: core.StorageConfig{Driver: "memory", Prefix: "lms"}},
		{name: "default driver", conf: core.StorageConfig{}},
		{name: "file", conf: core.StorageConfig{Driver: "file", Prefix: "lms"}},
		{name: "unknown", conf: core.StorageConfig{Driver: "etcd"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, closer, err := Open(ctx, tt.conf, t.TempDir())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer closer()
			testStorage(t, storage)
		})
	}
}

// TestRedis runs against a live server named by LMS_TEST_REDIS_ADDR.
func TestRedis(t *testing.T) {
	addr := os.Getenv("LMS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LMS_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	testStorage(t, Scoped(NewRedis(client), "lms-test"))
}
