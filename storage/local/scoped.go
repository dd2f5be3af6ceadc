package localstore

import (
	"context"

	"github.com/trezcool/lms/core"
)

const sep = ":"

type scoped struct {
	parent core.Storage
	prefix string
}

// Scoped returns a view of parent where every key is prefixed with prefix and ":".
// Each browser client gets its own view of a shared Storage.
func Scoped(parent core.Storage, prefix string) core.Storage {
	return &scoped{parent: parent, prefix: prefix + sep}
}

func (s *scoped) Get(ctx context.Context, key string) (string, error) {
	return s.parent.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key, value string) error {
	return s.parent.Set(ctx, s.prefix+key, value)
}

func (s *scoped) Remove(ctx context.Context, key string) error {
	return s.parent.Remove(ctx, s.prefix+key)
}
