package state

import "context"

// Store is the persistence contract for small operational state: notifier
// dedup signatures and the warm-start snapshot of the latest result bundle.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
