// Package datasource abstracts where a CSV stream comes from. The ingestion
// core only needs an open reader and a descriptor of the object.
package datasource

import (
	"context"
	"io"

	"csvingest/internal/config"
)

// Source yields one object to ingest.
type Source interface {
	// Open returns a reader positioned at offset 0.
	Open(ctx context.Context) (io.ReadCloser, error)
	// Describe returns the object's identity and size.
	Describe(ctx context.Context) (config.FileDescriptor, error)
}
