package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig locates the problem database object.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"useSSL"`
	Bucket    string `yaml:"bucket"`
	ObjectKey string `yaml:"objectKey"`
}

// Enabled reports whether the database should be read from object storage
// instead of local disk.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != "" && c.ObjectKey != ""
}

func (c MinIOConfig) validate() error {
	var errs []error
	for _, field := range []struct{ name, value string }{
		{"endpoint", c.Endpoint},
		{"accessKey", c.AccessKey},
		{"secretKey", c.SecretKey},
	} {
		if field.value == "" {
			errs = append(errs, fmt.Errorf("minio %s is required", field.name))
		}
	}
	return errors.Join(errs...)
}

// MinIOStorage is an ObjectStorage backed by minio-go.
type MinIOStorage struct {
	client *minio.Client
}

func NewMinIOStorage(cfg MinIOConfig) (*MinIOStorage, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOStorage{client: client}, nil
}

// GetObject stats the object first so a missing key fails here rather than on
// the first Read.
func (s *MinIOStorage) GetObject(ctx context.Context, bucket, objectKey string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, objectError("get", bucket, objectKey, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, objectError("get", bucket, objectKey, err)
	}
	return obj, nil
}

func (s *MinIOStorage) StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error) {
	info, err := s.client.StatObject(ctx, bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		return ObjectStat{}, objectError("stat", bucket, objectKey, err)
	}
	return ObjectStat{
		SizeBytes:    info.Size,
		ETag:         info.ETag,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

// objectError maps missing buckets and keys to ErrObjectNotFound.
func objectError(op, bucket, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.StatusCode == http.StatusNotFound,
		resp.Code == "NoSuchKey",
		resp.Code == "NoSuchBucket":
		return fmt.Errorf("minio %s %s/%s: %w", op, bucket, key, ErrObjectNotFound)
	}
	return fmt.Errorf("minio %s %s/%s: %w", op, bucket, key, err)
}
