package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/imgset/internal/convert"
	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/repositories"
	"github.com/desertthunder/imgset/internal/shared"
)

// BlobStore is the subset of [storage.Store] the upload pipeline writes through.
type BlobStore interface {
	Save(ctx context.Context, field, filenameHint string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// TxBeginner starts database transactions. Satisfied by [sql.DB].
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// ImageUpserter persists one converted row as an image record plus two blobs.
type ImageUpserter struct {
	db     TxBeginner
	images *repositories.ImageRepository
	store  BlobStore
	logger *log.Logger
}

// NewImageUpserter creates an upserter writing records through images and blobs through store.
func NewImageUpserter(db TxBeginner, images *repositories.ImageRepository, store BlobStore, logger *log.Logger) *ImageUpserter {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ImageUpserter{db: db, images: images, store: store, logger: logger}
}

// Upsert stores encoded under key, creating the record or overwriting its artifacts.
//
// Both blobs are written before the transaction that points the record at them,
// so a stored record never references a partial artifact. Blobs replaced by this
// call are removed after commit. Failures wrap [shared.ErrStorage].
func (u *ImageUpserter) Upsert(ctx context.Context, key models.ImageKey, encoded *convert.Encoded) (*models.Image, error) {
	bitmap, err := encoded.Bitmap()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}
	array, err := encoded.Array()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}

	imagePath, err := u.store.Save(ctx, "image", "image.bmp", bitmap)
	if err != nil {
		return nil, storageErr(err)
	}
	arrayPath, err := u.store.Save(ctx, "img_array", "image.bin", array)
	if err != nil {
		u.discard(imagePath)
		return nil, storageErr(err)
	}

	image, previous, err := u.attach(ctx, key, imagePath, arrayPath)
	if err != nil {
		u.discard(imagePath, arrayPath)
		return nil, storageErr(err)
	}

	u.discard(previous...)
	return image, nil
}

// attach gets or creates the record for key and points it at the new blobs in one transaction.
// It returns the blob keys the record referenced before.
func (u *ImageUpserter) attach(ctx context.Context, key models.ImageKey, imagePath, arrayPath string) (*models.Image, []string, error) {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	images := u.images.WithTx(tx)

	image, _, err := images.GetOrCreate(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	previous := []string{}
	for _, old := range []string{image.ImagePath(), image.ArrayPath()} {
		if old != "" && old != imagePath && old != arrayPath {
			previous = append(previous, old)
		}
	}

	image.SetArtifacts(imagePath, arrayPath)
	if err := images.Update(ctx, image); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return image, previous, nil
}

// discard deletes orphaned blobs. Failures are logged and otherwise ignored.
func (u *ImageUpserter) discard(keys ...string) {
	for _, k := range keys {
		if err := u.store.Delete(context.Background(), k); err != nil {
			u.logger.Warn("failed to remove orphaned blob", "key", k, "error", err)
		}
	}
}

func storageErr(err error) error {
	if errors.Is(err, shared.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %v", shared.ErrStorage, err)
}
