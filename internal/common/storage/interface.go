// Package storage reads the problem database from S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned when the bucket or object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage is the read side of an object store.
type ObjectStorage interface {
	// GetObject opens the object for reading; the caller closes it.
	GetObject(ctx context.Context, bucket, objectKey string) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error)
}

// ObjectStat is the metadata used to detect a changed problem database.
type ObjectStat struct {
	SizeBytes    int64
	ETag         string
	ContentType  string
	LastModified time.Time
}
