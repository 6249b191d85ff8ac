package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/shared"
)

// CsvfileRepository implements [models.Repository] for [models.Csvfile] persistence.
type CsvfileRepository struct {
	db DBTX
}

// NewCsvfileRepository creates a new [CsvfileRepository] with the given database connection
func NewCsvfileRepository(db DBTX) *CsvfileRepository {
	return &CsvfileRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *CsvfileRepository) WithTx(tx DBTX) *CsvfileRepository {
	return &CsvfileRepository{db: tx}
}

const csvfileColumns = `id, sequence, user_id, name, description, labelcol, imgcolstart, imgcolend, file, created_at, updated_at, deleted_at`

// Create inserts a new csvfile with generated ID and sequence
func (r *CsvfileRepository) Create(ctx context.Context, csvfile *models.Csvfile) error {
	sequence, err := NextSequence(ctx, r.db, "csvfiles")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	csvfile.SetID(shared.GenerateID())
	csvfile.SetSequence(sequence)

	if err := csvfile.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO csvfiles (id, sequence, user_id, name, description, labelcol, imgcolstart, imgcolend, file, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		csvfile.ID(),
		sequence,
		csvfile.UserID(),
		csvfile.Name(),
		csvfile.Description(),
		csvfile.LabelCol(),
		csvfile.ImgColStart(),
		csvfile.ImgColEnd(),
		csvfile.File(),
		csvfile.CreatedAt(),
		csvfile.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert csvfile: %w", err)
	}

	return nil
}

// Get retrieves a csvfile by ID, excluding soft-deleted csvfiles
func (r *CsvfileRepository) Get(ctx context.Context, id string) (*models.Csvfile, error) {
	query := `SELECT ` + csvfileColumns + ` FROM csvfiles WHERE id = ? AND deleted_at IS NULL`

	csvfile, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "csvfile", id)
	}
	return csvfile, nil
}

// Update modifies name, description and the stored file key.
//
// The column layout is fixed at creation so images already derived from it stay consistent.
func (r *CsvfileRepository) Update(ctx context.Context, csvfile *models.Csvfile) error {
	if err := csvfile.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	csvfile.SetUpdatedAt(now)

	query := `
		UPDATE csvfiles
		SET name = ?, description = ?, file = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, csvfile.Name(), csvfile.Description(), csvfile.File(), now, csvfile.ID())
	if err != nil {
		return fmt.Errorf("failed to update csvfile: %w", err)
	}

	return checkAffected(result, "csvfile", csvfile.ID())
}

// Delete soft-deletes a csvfile by ID
func (r *CsvfileRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE csvfiles
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete csvfile: %w", err)
	}

	return checkAffected(result, "csvfile", id)
}

// List retrieves csvfiles matching the given criteria ordered by name descending.
//
// Supported criteria: "user_id", "ids" ([]string) and "assigned_only" (bool).
func (r *CsvfileRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Csvfile, error) {
	query := `SELECT ` + csvfileColumns + ` FROM csvfiles WHERE deleted_at IS NULL`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	if ids, ok := criteria["ids"].([]string); ok {
		if len(ids) == 0 {
			return []*models.Csvfile{}, nil
		}
		query += " AND id IN (" + placeholders(len(ids)) + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}

	if assignedOnly(criteria) {
		query += " AND EXISTS (SELECT 1 FROM dataset_csvfiles dc JOIN datasets d ON d.id = dc.dataset_id WHERE dc.csvfile_id = csvfiles.id AND d.deleted_at IS NULL)"
	}

	query += " ORDER BY name DESC, sequence ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query csvfiles: %w", err)
	}
	defer rows.Close()

	csvfiles := []*models.Csvfile{}
	for rows.Next() {
		csvfile, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan csvfile: %w", err)
		}
		csvfiles = append(csvfiles, csvfile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return csvfiles, nil
}

func (r *CsvfileRepository) scan(row rowScanner) (*models.Csvfile, error) {
	var (
		id          string
		sequence    int
		userID      string
		name        string
		description string
		labelCol    int
		imgColStart int
		imgColEnd   int
		file        string
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	err := row.Scan(&id, &sequence, &userID, &name, &description, &labelCol, &imgColStart, &imgColEnd, &file, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	csvfile := models.NewCsvfile(sequence, userID, name, description, labelCol, imgColStart, imgColEnd)
	csvfile.SetID(id)
	csvfile.SetFile(file)
	csvfile.SetCreatedAt(createdAt)
	csvfile.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		csvfile.SetDeletedAt(&deletedAt.Time)
	}

	return csvfile, nil
}
