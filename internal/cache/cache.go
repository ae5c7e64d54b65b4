package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found in cache")

// Cache stores raw bytes under a string key, with an expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// QueryKey derives a fixed size cache key from the query text.
func QueryKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return "fitdash::query::" + hex.EncodeToString(sum[:])
}
