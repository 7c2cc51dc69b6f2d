package cache

import "context"

// Cache is the read-through cache used in front of document reads. Implementations
// must be safe for concurrent use. A miss is reported via the boolean, not an error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Invalidate(ctx context.Context, key string) error
}
