// Package gcs adapts cloud.google.com/go/storage into the engine's narrow
// ObjectStore primitive: one method, NewWriter, returning a streaming
// io.WriteCloser for a single object path.
package gcs

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"github.com/rezkam/mono/internal/engine"
)

var _ engine.ObjectStore = (*Store)(nil)

// Store is a GCS-backed engine.ObjectStore.
type Store struct {
	client *storage.Client
	bucket string
}

// NewStore creates a new GCS-backed object store. It assumes the client is
// authenticated (e.g. via GOOGLE_APPLICATION_CREDENTIALS).
func NewStore(ctx context.Context, bucketName string) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &Store{
		client: client,
		bucket: bucketName,
	}, nil
}

// NewWriter returns a writer for path; the upload is only durable once the
// returned writer's Close returns nil.
func (s *Store) NewWriter(ctx context.Context, path string) (io.WriteCloser, error) {
	obj := s.client.Bucket(s.bucket).Object(path)
	return obj.NewWriter(ctx), nil
}

// Close releases the underlying GCS client.
func (s *Store) Close() error {
	return s.client.Close()
}
