package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coocood/freecache"
)

const megabyte = 1024 * 1024

// Local is an in-process cache, backed by freecache.
type Local struct {
	cache *freecache.Cache
}

func NewLocal(sizeMB int) *Local {
	if sizeMB <= 0 {
		sizeMB = 64
	}
	return &Local{
		cache: freecache.NewCache(sizeMB * megabyte),
	}
}

func (l *Local) Get(_ context.Context, key string) ([]byte, error) {
	value, err := l.cache.Get([]byte(key))
	if errors.Is(err, freecache.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("local cache get: %w", err)
	}
	return value, nil
}

func (l *Local) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	expireSeconds := int(ttl.Seconds())
	if ttl > 0 && expireSeconds == 0 {
		expireSeconds = 1
	}
	if err := l.cache.Set([]byte(key), value, expireSeconds); err != nil {
		return fmt.Errorf("local cache set: %w", err)
	}
	return nil
}

func (l *Local) EntryCount() int64 {
	return l.cache.EntryCount()
}
