package problemstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"offlinejudge/internal/common/storage"
	appErr "offlinejudge/pkg/errors"
	"offlinejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// Source produces problem database snapshots.
type Source interface {
	// Version returns a token that changes whenever the content changes.
	Version(ctx context.Context) (string, error)
	Load(ctx context.Context) (*Snapshot, error)
	Name() string
}

// FileSource reads database.json or database.json.zst from local disk.
type FileSource struct {
	Path string
}

func (f FileSource) Name() string { return "file:" + f.Path }

func (f FileSource) Version(_ context.Context) (string, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.ProblemStoreInvalid, "stat problem database failed")
	}
	return fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size()), nil
}

func (f FileSource) Load(ctx context.Context) (*Snapshot, error) {
	version, err := f.Version(ctx)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ProblemStoreInvalid, "open problem database failed")
	}
	defer file.Close()

	snap, err := Decode(file)
	if err != nil {
		return nil, err
	}
	snap.version = version
	return snap, nil
}

// ObjectSource reads the database from object storage.
type ObjectSource struct {
	Storage storage.ObjectStorage
	Bucket  string
	Key     string
	// SHA256, when set, must match the hex digest of the downloaded object.
	SHA256  string
	Timeout time.Duration
}

func (o ObjectSource) Name() string { return "object:" + o.Bucket + "/" + o.Key }

func (o ObjectSource) Version(ctx context.Context) (string, error) {
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()
	stat, err := o.Storage.StatObject(ctx, o.Bucket, o.Key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return "", appErr.Wrapf(err, appErr.ProblemStoreInvalid, "problem database %s does not exist", o.Name())
	}
	if err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "stat problem database object failed")
	}
	return stat.ETag, nil
}

func (o ObjectSource) Load(ctx context.Context) (*Snapshot, error) {
	version, err := o.Version(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()
	reader, err := o.Storage.GetObject(ctx, o.Bucket, o.Key)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "download problem database failed")
	}
	defer reader.Close()

	hasher := sha256.New()
	snap, err := Decode(io.TeeReader(reader, hasher))
	if err != nil {
		return nil, err
	}
	if o.SHA256 != "" {
		// Drain so the digest covers the whole object.
		if _, err := io.Copy(hasher, reader); err != nil {
			return nil, appErr.Wrapf(err, appErr.StorageError, "read problem database failed")
		}
		if actual := hex.EncodeToString(hasher.Sum(nil)); !strings.EqualFold(actual, o.SHA256) {
			return nil, appErr.New(appErr.ProblemStoreInvalid).WithMessage("problem database hash mismatch")
		}
	}
	snap.version = version
	return snap, nil
}

func (o ObjectSource) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.Timeout)
}

// Open loads the first snapshot from src.
func Open(ctx context.Context, src Source) (*Store, error) {
	snap, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	logLoaded(ctx, src, snap)
	return NewStore(snap), nil
}

// Watch polls src every interval and swaps in a new snapshot when its
// version changes. A failed reload keeps the current snapshot.
func Watch(ctx context.Context, store *Store, src Source, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		version, err := src.Version(ctx)
		if err != nil {
			logger.Warn(ctx, "problem database version check failed", zap.String("source", src.Name()), zap.Error(err))
			continue
		}
		if version == store.Snapshot().Version() {
			continue
		}
		snap, err := src.Load(ctx)
		if err != nil {
			logger.Error(ctx, "problem database reload failed", zap.String("source", src.Name()), zap.Error(err))
			continue
		}
		store.Swap(snap)
		logLoaded(ctx, src, snap)
	}
}

func logLoaded(ctx context.Context, src Source, snap *Snapshot) {
	logger.Info(ctx, "problem database loaded",
		zap.String("source", src.Name()),
		zap.String("version", snap.Version()),
		zap.Int("problems", snap.Len()),
	)
	for id, reason := range snap.invalid {
		logger.Warn(ctx, "problem cannot be judged", zap.String("question_id", id), zap.String("reason", reason))
	}
}
