package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/shared"
)

// DatasetRepository implements [models.Repository] for [models.Dataset] persistence.
//
// Label and csvfile membership lives in the dataset_labels and dataset_csvfiles junction tables.
// Callers writing membership should bind the repository to a transaction with [DatasetRepository.WithTx].
type DatasetRepository struct {
	db DBTX
}

// NewDatasetRepository creates a new [DatasetRepository] with the given database connection
func NewDatasetRepository(db DBTX) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *DatasetRepository) WithTx(tx DBTX) *DatasetRepository {
	return &DatasetRepository{db: tx}
}

const datasetColumns = `id, sequence, user_id, name, description, created_at, updated_at, deleted_at`

// Create inserts a new dataset with its label and csvfile membership
func (r *DatasetRepository) Create(ctx context.Context, dataset *models.Dataset) error {
	sequence, err := NextSequence(ctx, r.db, "datasets")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	dataset.SetID(shared.GenerateID())
	dataset.SetSequence(sequence)

	if err := dataset.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO datasets (id, sequence, user_id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		dataset.ID(), sequence, dataset.UserID(), dataset.Name(), dataset.Description(), dataset.CreatedAt(), dataset.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert dataset: %w", err)
	}

	return r.writeMembers(ctx, dataset)
}

// Get retrieves a dataset by ID with its member ids, excluding soft-deleted datasets
func (r *DatasetRepository) Get(ctx context.Context, id string) (*models.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets WHERE id = ? AND deleted_at IS NULL`

	dataset, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "dataset", id)
	}

	if err := r.loadMembers(ctx, dataset); err != nil {
		return nil, err
	}
	return dataset, nil
}

// Update modifies name and description and replaces the membership sets
func (r *DatasetRepository) Update(ctx context.Context, dataset *models.Dataset) error {
	if err := dataset.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	dataset.SetUpdatedAt(now)

	query := `
		UPDATE datasets
		SET name = ?, description = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, dataset.Name(), dataset.Description(), now, dataset.ID())
	if err != nil {
		return fmt.Errorf("failed to update dataset: %w", err)
	}
	if err := checkAffected(result, "dataset", dataset.ID()); err != nil {
		return err
	}

	for _, table := range []string{"dataset_labels", "dataset_csvfiles"} {
		if _, err := r.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE dataset_id = ?", dataset.ID()); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	return r.writeMembers(ctx, dataset)
}

// Delete soft-deletes a dataset by ID. Membership rows are kept for audit.
func (r *DatasetRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE datasets
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}

	return checkAffected(result, "dataset", id)
}

// List retrieves datasets ordered by name descending, each with its member ids.
//
// Supported criteria: "user_id".
func (r *DatasetRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets WHERE deleted_at IS NULL`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	query += " ORDER BY name DESC, sequence ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}

	datasets := []*models.Dataset{}
	for rows.Next() {
		dataset, err := r.scan(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		datasets = append(datasets, dataset)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	// release the connection before the membership queries
	rows.Close()

	for _, dataset := range datasets {
		if err := r.loadMembers(ctx, dataset); err != nil {
			return nil, err
		}
	}

	return datasets, nil
}

func (r *DatasetRepository) writeMembers(ctx context.Context, dataset *models.Dataset) error {
	for _, labelID := range dataset.LabelIDs() {
		_, err := r.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO dataset_labels (dataset_id, label_id) VALUES (?, ?)", dataset.ID(), labelID,
		)
		if err != nil {
			return fmt.Errorf("failed to add label %s to dataset: %w", labelID, err)
		}
	}

	for _, csvfileID := range dataset.CsvfileIDs() {
		_, err := r.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO dataset_csvfiles (dataset_id, csvfile_id) VALUES (?, ?)", dataset.ID(), csvfileID,
		)
		if err != nil {
			return fmt.Errorf("failed to add csvfile %s to dataset: %w", csvfileID, err)
		}
	}

	return nil
}

func (r *DatasetRepository) loadMembers(ctx context.Context, dataset *models.Dataset) error {
	labelIDs, err := r.memberIDs(ctx, "SELECT label_id FROM dataset_labels WHERE dataset_id = ? ORDER BY label_id", dataset.ID())
	if err != nil {
		return fmt.Errorf("failed to load dataset labels: %w", err)
	}

	csvfileIDs, err := r.memberIDs(ctx, "SELECT csvfile_id FROM dataset_csvfiles WHERE dataset_id = ? ORDER BY csvfile_id", dataset.ID())
	if err != nil {
		return fmt.Errorf("failed to load dataset csvfiles: %w", err)
	}

	dataset.SetLabelIDs(labelIDs)
	dataset.SetCsvfileIDs(csvfileIDs)
	return nil
}

func (r *DatasetRepository) memberIDs(ctx context.Context, query, datasetID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, datasetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *DatasetRepository) scan(row rowScanner) (*models.Dataset, error) {
	var (
		id          string
		sequence    int
		userID      string
		name        string
		description string
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	if err := row.Scan(&id, &sequence, &userID, &name, &description, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}

	dataset := models.NewDataset(sequence, userID, name, description, nil, nil)
	dataset.SetID(id)
	dataset.SetCreatedAt(createdAt)
	dataset.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		dataset.SetDeletedAt(&deletedAt.Time)
	}

	return dataset, nil
}
