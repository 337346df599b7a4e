package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
)

// Store persists downloaded artifacts in a blob bucket. Local output
// directories map to file:// buckets; s3:// and friends work unchanged.
// Bucket drivers are registered by the importing binary.
type Store struct {
	bucket *blob.Bucket
	url    string
}

// Open opens a bucket by URL. A plain path (no scheme) is treated as a
// local directory and created if missing.
func Open(ctx context.Context, urlstr string) (*Store, error) {
	if !strings.Contains(urlstr, "://") {
		abs, err := filepath.Abs(urlstr)
		if err != nil {
			return nil, fmt.Errorf("resolve output dir: %w", err)
		}
		// metadata=skip keeps the directory free of .attrs sidecars.
		urlstr = "file://" + filepath.ToSlash(abs) + "?create_dir=true&metadata=skip"
	}

	bucket, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", urlstr, err)
	}
	return &Store{bucket: bucket, url: urlstr}, nil
}

// NewStore wraps an already-open bucket. Used by tests with mem://.
func NewStore(bucket *blob.Bucket) *Store {
	return &Store{bucket: bucket}
}

// Exists reports whether an artifact with the given key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", key, err)
	}
	return ok, nil
}

// Save streams r into the bucket under key and returns the byte count.
// The write is all-or-nothing: Close on a blob writer commits, so a
// failed copy cancels the writer's context before closing, which aborts
// the write and no partial artifact becomes visible.
func (s *Store) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := s.bucket.NewWriter(wctx, key, nil)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", key, err)
	}

	n, err := io.Copy(w, r)
	if err != nil {
		cancel()
		w.Close()
		return 0, fmt.Errorf("write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("commit %s: %w", key, err)
	}
	return n, nil
}

// Close releases the bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}
