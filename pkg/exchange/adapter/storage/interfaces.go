// Package storage declares the object storage ports used to publish backup archives.
package storage

import (
	"context"
	"io"
)

// StorageProviderGroup is the Fx value group all StorageProviders are collected in.
const StorageProviderGroup = "storage_providers"

// StorageExecutor is the set of object operations.
type StorageExecutor interface {
	// Upload stores data under bucket/objectName. The object becomes visible only once complete.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download opens bucket/objectName for reading. The caller closes the reader.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for every object under bucket whose name starts with prefix.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject removes bucket/objectName. Deleting a missing object is not an error.
	DeleteObject(ctx context.Context, bucket, objectName string) error
}

// StorageConnection is an open, named storage connection.
type StorageConnection interface {
	StorageExecutor

	Type() string
	Name() string
	Close() error
}

// StorageProvider opens and caches connections of one storage type.
type StorageProvider interface {
	GetConnection(name string) (StorageConnection, error)
	ForceReconnect(name string) (StorageConnection, error)
	CloseAll() error
	Type() string
}

// StorageConnectionResolver resolves a connection by name across all providers.
type StorageConnectionResolver interface {
	ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error)
}
