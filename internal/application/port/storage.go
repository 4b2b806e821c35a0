package port

import (
	"context"
	"time"
)

// ObjectStore is durable blob storage keyed by path. The pipeline only
// uploads, removes and signs; reads go through signed URLs or Read when a
// document needs to be attached to an outbound email.
type ObjectStore interface {
	// Put stores content under key, creating any intermediate structure.
	Put(ctx context.Context, key string, content []byte) error

	Read(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object. Deleting a missing object is not an error;
	// the compensating cleanup path relies on that.
	Delete(ctx context.Context, key string) error

	// SignURL produces a time-limited URL granting read access to key.
	// It is the only mechanism for external reads.
	SignURL(key string, ttl time.Duration) (string, error)
}
