// ABOUTME: Short-lived keyed storage used by the verification code service
// ABOUTME: Defines the Store interface shared by the memory and badger backends
package verify

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key is missing or has expired.
var ErrNotFound = errors.New("key not found")

// Store holds values that disappear after a TTL.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
