// Package blob abstracts the content-addressed byte store holding recording
// payloads. The sync pipeline reads and writes whole blobs by storage key;
// everything else about recordings is relational metadata.
package blob

import "context"

type Store interface {
	// Put stores data under key, overwriting any previous content. Keys are
	// content-addressed upstream, so overwrites are idempotent.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the blob or common.ErrNotFound. Absent content is an
	// error, never a zero-length success.
	Get(ctx context.Context, key string) ([]byte, error)

	// PresignGet returns a short-lived URL external consumers can fetch the
	// blob from directly.
	PresignGet(ctx context.Context, key string) (string, error)
}
