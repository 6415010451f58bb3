package engine

import (
	"context"
	"io"
)

// ObjectStore is the narrow upload primitive Executor depends on. Object
// storage upload is out-of-core (§1): the concrete GCS implementation lives
// under internal/storage/gcs.
//
// NewWriter mirrors the shape of cloud.google.com/go/storage's own
// obj.NewWriter so a streaming CSV encoder can write directly into the
// returned io.WriteCloser without ever holding the full object in memory;
// the write is only durable once Close returns nil.
type ObjectStore interface {
	NewWriter(ctx context.Context, path string) (io.WriteCloser, error)
}
