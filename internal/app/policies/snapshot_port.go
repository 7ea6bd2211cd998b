package policies

import "context"

// SnapshotStore persists exported catalog snapshots as opaque blobs.
type SnapshotStore interface {
	Put(ctx context.Context, key string, payload []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}
