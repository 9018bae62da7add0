// Package objectstore defines the object store capability the key repository
// is built on, together with its backends: S3 (or any S3-compatible service
// such as MinIO), PostgreSQL and an in-process map.
//
// Backends only move bytes. They never retry on their own; retries are the
// caller's business.
package objectstore

import (
	"context"
	"time"
)

// ObjectInfo describes a stored object as returned by List.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
}

// Store is a flat key space of objects.
//
// List returns every object whose key starts with prefix, ordered by key.
// Download fails with an error wrapping common.ErrorNotFound when the key is
// absent. Upload creates or replaces an object atomically: readers observe
// either the previous content or the new one, never a partial write.
type Store interface {
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key, contentType string, data []byte) error
}
