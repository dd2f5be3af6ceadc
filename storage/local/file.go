package localstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/lms/core"
)

// file keeps every key in one JSON document, rewritten atomically on each change.
type file struct {
	mutex sync.Mutex
	path  string
	table map[string]string
}

// NewFile returns a Storage persisted to path. A missing file is an empty store.
func NewFile(path string) (core.Storage, error) {
	f := &file{path: path, table: make(map[string]string)}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return f, nil
	case err != nil:
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	if len(data) > 0 {
		if err = json.Unmarshal(data, &f.table); err != nil {
			return nil, errors.Wrapf(err, "decoding %s", path)
		}
	}
	return f, nil
}

func (f *file) Get(_ context.Context, key string) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if val, ok := f.table[key]; ok {
		return val, nil
	}
	return "", core.ErrKeyNotFound
}

func (f *file) Set(_ context.Context, key, value string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	prev, existed := f.table[key]
	f.table[key] = value
	if err := f.flush(); err != nil {
		if existed {
			f.table[key] = prev
		} else {
			delete(f.table, key)
		}
		return err
	}
	return nil
}

func (f *file) Remove(_ context.Context, key string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	prev, existed := f.table[key]
	if !existed {
		return nil
	}
	delete(f.table, key)
	if err := f.flush(); err != nil {
		f.table[key] = prev
		return err
	}
	return nil
}

func (f *file) flush() error {
	data, err := json.MarshalIndent(f.table, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding store")
	}

	dir := filepath.Dir(f.path)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing temp file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	return errors.Wrapf(os.Rename(tmp.Name(), f.path), "replacing %s", f.path)
}
