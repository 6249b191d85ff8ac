package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"

	"github.com/desertthunder/imgset/internal/shared"
)

// OpenBucket returns a [blob.Bucket] for the given reference.
// The reference should be of the form:
//
//	file://<dir>     local directory, created when missing (relative paths allowed)
//	mem://           in-process bucket, used by tests
//	<scheme>://...   any other URL registered with gocloud
func OpenBucket(ctx context.Context, ref string) (*blob.Bucket, error) {
	switch {
	case strings.HasPrefix(ref, "file://"):
		dir := strings.TrimPrefix(ref, "file://")
		if dir == "" {
			return nil, fmt.Errorf("%w: file bucket needs a directory", shared.ErrInvalidConfig)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: create bucket directory %s: %v", shared.ErrStorage, dir, err)
		}
		bucket, err := fileblob.OpenBucket(dir, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: open bucket %q: %v", shared.ErrStorage, ref, err)
		}
		return bucket, nil
	case ref == "mem://" || strings.HasPrefix(ref, "mem://"):
		return memblob.OpenBucket(nil), nil
	default:
		bucket, err := blob.OpenBucket(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("%w: open bucket %q: %v", shared.ErrStorage, ref, err)
		}
		return bucket, nil
	}
}

// Store saves, reads and deletes blobs in a bucket.
type Store struct {
	bucket *blob.Bucket
	logger *log.Logger
}

// NewStore wraps bucket. The store owns the bucket and closes it in [Store.Close].
func NewStore(bucket *blob.Bucket, logger *log.Logger) *Store {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Store{bucket: bucket, logger: logger}
}

// Open is [OpenBucket] followed by [NewStore].
func Open(ctx context.Context, ref string, logger *log.Logger) (*Store, error) {
	bucket, err := OpenBucket(ctx, ref)
	if err != nil {
		return nil, err
	}
	return NewStore(bucket, logger), nil
}

// Save writes data under a fresh key derived from filenameHint and returns that key.
//
// field names the record column the blob belongs to and is kept as object metadata.
// The key is only returned once the writer has been closed successfully.
func (s *Store) Save(ctx context.Context, field, filenameHint string, data []byte) (string, error) {
	key := shared.UploadPath(filenameHint)

	opts := &blob.WriterOptions{
		ContentType: contentType(key),
		Metadata:    map[string]string{"field": field, "filename": path.Base(filenameHint)},
	}

	w, err := s.bucket.NewWriter(ctx, key, opts)
	if err != nil {
		return "", fmt.Errorf("%w: open writer for %s: %v", shared.ErrStorage, key, err)
	}

	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("%w: write %s: %v", shared.ErrStorage, key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: commit %s: %v", shared.ErrStorage, key, err)
	}

	s.logger.Debug("saved blob", "field", field, "key", key, "size", humanize.Bytes(uint64(len(data))))
	return key, nil
}

// Read returns the full contents stored under key.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, s.classify("read", key, err)
	}
	return data, nil
}

// Reader opens key for streaming. Callers close the returned reader.
func (s *Store) Reader(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, s.classify("open", key, err)
	}
	return r, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.bucket.Delete(ctx, key); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil
		}
		return fmt.Errorf("%w: delete %s: %v", shared.ErrStorage, key, err)
	}
	return nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %v", shared.ErrStorage, key, err)
	}
	return ok, nil
}

// Close releases the bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}

func (s *Store) classify(op, key string, err error) error {
	if gcerrors.Code(err) == gcerrors.NotFound {
		return fmt.Errorf("%w: blob %s", shared.ErrNotFound, key)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %s %s: %v", shared.ErrStorage, op, key, err)
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".bmp":
		return "image/bmp"
	case ".csv":
		return "text/csv"
	}
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}
