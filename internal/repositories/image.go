package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/shared"
)

// ImageRepository implements [models.Repository] for [models.Image] persistence.
//
// Images are derived data and are hard-deleted.
type ImageRepository struct {
	db DBTX
}

// NewImageRepository creates a new [ImageRepository] with the given database connection
func NewImageRepository(db DBTX) *ImageRepository {
	return &ImageRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *ImageRepository) WithTx(tx DBTX) *ImageRepository {
	return &ImageRepository{db: tx}
}

const imageColumns = `id, sequence, user_id, name, csvfile_id, row_index, label_id, image, img_array, created_at, updated_at`

// Create inserts a new image with generated ID and sequence
func (r *ImageRepository) Create(ctx context.Context, image *models.Image) error {
	sequence, err := NextSequence(ctx, r.db, "images")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	image.SetID(shared.GenerateID())
	image.SetSequence(sequence)

	if err := image.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO images (id, sequence, user_id, name, csvfile_id, row_index, label_id, image, img_array, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		image.ID(),
		sequence,
		image.UserID(),
		image.Name(),
		image.CsvfileID(),
		image.Row(),
		image.LabelID(),
		image.ImagePath(),
		image.ArrayPath(),
		image.CreatedAt(),
		image.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: image %s already exists for this label", shared.ErrInvalidInput, image.Name())
		}
		return fmt.Errorf("failed to insert image: %w", err)
	}

	return nil
}

// Get retrieves an image by ID
func (r *ImageRepository) Get(ctx context.Context, id string) (*models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = ?`

	image, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "image", id)
	}
	return image, nil
}

// GetByKey retrieves the image stored under the full upsert key.
func (r *ImageRepository) GetByKey(ctx context.Context, key models.ImageKey) (*models.Image, error) {
	query := `
		SELECT ` + imageColumns + ` FROM images
		WHERE user_id = ? AND name = ? AND csvfile_id = ? AND row_index = ? AND label_id = ?
	`

	image, err := r.scan(r.db.QueryRowContext(ctx, query, key.UserID, key.Name, key.CsvfileID, key.Row, key.LabelID))
	if err != nil {
		return nil, notFound(err, "image", key.Name)
	}
	return image, nil
}

// GetOrCreate returns the image stored under key, inserting an empty one when none exists.
// The boolean reports whether a row was inserted.
func (r *ImageRepository) GetOrCreate(ctx context.Context, key models.ImageKey) (*models.Image, bool, error) {
	image, err := r.GetByKey(ctx, key)
	if err == nil {
		return image, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, false, err
	}

	image = models.NewImage(0, key)
	if err := r.Create(ctx, image); err != nil {
		return nil, false, err
	}
	return image, true, nil
}

// Update writes both artifact paths of an existing image in a single statement
func (r *ImageRepository) Update(ctx context.Context, image *models.Image) error {
	if err := image.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	image.SetUpdatedAt(now)

	query := `
		UPDATE images
		SET image = ?, img_array = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, image.ImagePath(), image.ArrayPath(), now, image.ID())
	if err != nil {
		return fmt.Errorf("failed to update image: %w", err)
	}

	return checkAffected(result, "image", image.ID())
}

// Delete removes an image row by ID. Stored artifacts are left to the caller.
func (r *ImageRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM images WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	return checkAffected(result, "image", id)
}

// List retrieves images ordered by name descending.
//
// Supported criteria: "user_id", "csvfile_id", "label_id", "csvfile_ids" ([]string),
// "label_ids" ([]string), "limit" (int) and "offset" (int).
func (r *ImageRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Image, error) {
	where, args := imageFilter(criteria)
	query := `SELECT ` + imageColumns + ` FROM images` + where + " ORDER BY name DESC, label_id ASC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
		if offset, ok := criteria["offset"].(int); ok && offset > 0 {
			query += " OFFSET ?"
			args = append(args, offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	images := []*models.Image{}
	for rows.Next() {
		image, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, image)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return images, nil
}

// Count returns the number of images matching criteria, using the same filters as [ImageRepository.List].
func (r *ImageRepository) Count(ctx context.Context, criteria map[string]any) (int, error) {
	where, args := imageFilter(criteria)

	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM images"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return count, nil
}

func imageFilter(criteria map[string]any) (string, []any) {
	where := " WHERE 1 = 1"
	args := []any{}

	for _, column := range []string{"user_id", "csvfile_id", "label_id"} {
		if v, ok := criteria[column].(string); ok && v != "" {
			where += " AND " + column + " = ?"
			args = append(args, v)
		}
	}

	for key, column := range map[string]string{"csvfile_ids": "csvfile_id", "label_ids": "label_id"} {
		ids, ok := criteria[key].([]string)
		if !ok {
			continue
		}
		if len(ids) == 0 {
			where += " AND 1 = 0"
			continue
		}
		where += " AND " + column + " IN (" + placeholders(len(ids)) + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}

	return where, args
}

func (r *ImageRepository) scan(row rowScanner) (*models.Image, error) {
	var (
		key       models.ImageKey
		id        string
		sequence  int
		imagePath string
		arrayPath string
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(&id, &sequence, &key.UserID, &key.Name, &key.CsvfileID, &key.Row, &key.LabelID, &imagePath, &arrayPath, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	image := models.NewImage(sequence, key)
	image.SetID(id)
	image.SetArtifacts(imagePath, arrayPath)
	image.SetCreatedAt(createdAt)
	image.SetUpdatedAt(updatedAt)

	return image, nil
}
