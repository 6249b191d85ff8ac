package tasks

import (
	"bytes"
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/imgset/internal/convert"
	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/shared"
)

// CsvfileUpdater persists a csvfile's attached source. Implemented by the csvfile repository.
type CsvfileUpdater interface {
	Update(ctx context.Context, csvfile *models.Csvfile) error
}

// SourceUploader accepts a CSV for a csvfile: it stores the file, attaches it and runs the [UploadEngine].
type SourceUploader struct {
	store    BlobStore
	csvfiles CsvfileUpdater
	engine   *UploadEngine
	logger   *log.Logger
}

// NewSourceUploader creates a [SourceUploader].
func NewSourceUploader(store BlobStore, csvfiles CsvfileUpdater, engine *UploadEngine, logger *log.Logger) *SourceUploader {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SourceUploader{store: store, csvfiles: csvfiles, engine: engine, logger: logger}
}

// Upload stores data under a randomized "uploads/dataset" key, points csvfile at it and converts every row.
//
// Invalid geometry is rejected before anything is stored. Once stored, the file stays attached
// even when a row later aborts the conversion. A previously attached file is removed.
func (u *SourceUploader) Upload(ctx context.Context, csvfile *models.Csvfile, filename string, data []byte, progress chan<- ProgressUpdate) (*UploadResult, error) {
	if _, err := convert.Validate(csvfile.ImgColStart(), csvfile.ImgColEnd()); err != nil {
		sendProgress(progress, failedUpdate(0, 0, err))
		return nil, err
	}

	key, err := u.store.Save(ctx, "file", filename, data)
	if err != nil {
		return nil, storageErr(err)
	}

	previous := csvfile.File()
	csvfile.SetFile(key)
	if err := u.csvfiles.Update(ctx, csvfile); err != nil {
		csvfile.SetFile(previous)
		if derr := u.store.Delete(ctx, key); derr != nil {
			u.logger.Warn("failed to discard upload", "key", key, "error", derr)
		}
		return nil, fmt.Errorf("failed to attach upload: %w", err)
	}
	if previous != "" && previous != key {
		if err := u.store.Delete(ctx, previous); err != nil {
			u.logger.Warn("failed to delete replaced upload", "key", previous, "error", err)
		}
	}

	return u.engine.Process(ctx, csvfile, bytes.NewReader(data), progress)
}
