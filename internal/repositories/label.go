package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/shared"
)

// LabelRepository implements [models.Repository] for [models.Label] persistence.
type LabelRepository struct {
	db DBTX
}

// NewLabelRepository creates a new [LabelRepository] with the given database connection
func NewLabelRepository(db DBTX) *LabelRepository {
	return &LabelRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *LabelRepository) WithTx(tx DBTX) *LabelRepository {
	return &LabelRepository{db: tx}
}

const labelColumns = `id, sequence, user_id, name, created_at, updated_at, deleted_at`

// Create inserts a new label with generated ID and sequence
func (r *LabelRepository) Create(ctx context.Context, label *models.Label) error {
	sequence, err := NextSequence(ctx, r.db, "labels")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	label.SetID(shared.GenerateID())
	label.SetSequence(sequence)

	if err := label.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO labels (id, sequence, user_id, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query, label.ID(), sequence, label.UserID(), label.Name(), label.CreatedAt(), label.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert label: %w", err)
	}

	return nil
}

// Get retrieves a label by ID, excluding soft-deleted labels
func (r *LabelRepository) Get(ctx context.Context, id string) (*models.Label, error) {
	query := `SELECT ` + labelColumns + ` FROM labels WHERE id = ? AND deleted_at IS NULL`

	label, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "label", id)
	}
	return label, nil
}

// GetAny retrieves a label by ID even when it has been soft-deleted.
//
// Images keep referencing a label after it is deleted, so their detail views use this.
func (r *LabelRepository) GetAny(ctx context.Context, id string) (*models.Label, error) {
	query := `SELECT ` + labelColumns + ` FROM labels WHERE id = ?`

	label, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "label", id)
	}
	return label, nil
}

// FindByName returns every label owned by userID whose name equals name exactly, oldest first.
//
// Zero matches yield an empty slice and a nil error.
func (r *LabelRepository) FindByName(ctx context.Context, userID, name string) ([]*models.Label, error) {
	return r.List(ctx, map[string]any{"user_id": userID, "name": name, "order": "sequence"})
}

// Update renames an existing label
func (r *LabelRepository) Update(ctx context.Context, label *models.Label) error {
	if err := label.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	label.SetUpdatedAt(now)

	query := `
		UPDATE labels
		SET name = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, label.Name(), now, label.ID())
	if err != nil {
		return fmt.Errorf("failed to update label: %w", err)
	}

	return checkAffected(result, "label", label.ID())
}

// Delete soft-deletes a label by ID
func (r *LabelRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE labels
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete label: %w", err)
	}

	return checkAffected(result, "label", id)
}

// List retrieves labels matching the given criteria, excluding soft-deleted labels
// unless "include_deleted" is true.
//
// Supported criteria: "user_id", "name", "ids" ([]string), "assigned_only" (bool),
// "include_deleted" (bool) and "order" ("sequence" for oldest first; default is name descending).
func (r *LabelRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Label, error) {
	query := `SELECT ` + labelColumns + ` FROM labels WHERE 1 = 1`
	args := []any{}

	if deleted, _ := criteria["include_deleted"].(bool); !deleted {
		query += " AND deleted_at IS NULL"
	}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	if name, ok := criteria["name"].(string); ok {
		query += " AND name = ?"
		args = append(args, name)
	}

	if ids, ok := criteria["ids"].([]string); ok {
		if len(ids) == 0 {
			return []*models.Label{}, nil
		}
		query += " AND id IN (" + placeholders(len(ids)) + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}

	if assignedOnly(criteria) {
		query += " AND EXISTS (SELECT 1 FROM dataset_labels dl JOIN datasets d ON d.id = dl.dataset_id WHERE dl.label_id = labels.id AND d.deleted_at IS NULL)"
	}

	if order, _ := criteria["order"].(string); order == "sequence" {
		query += " ORDER BY sequence ASC"
	} else {
		query += " ORDER BY name DESC, sequence ASC"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	labels := []*models.Label{}
	for rows.Next() {
		label, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		labels = append(labels, label)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return labels, nil
}

func (r *LabelRepository) scan(row rowScanner) (*models.Label, error) {
	var (
		id        string
		sequence  int
		userID    string
		name      string
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	if err := row.Scan(&id, &sequence, &userID, &name, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}

	label := models.NewLabel(sequence, userID, name)
	label.SetID(id)
	label.SetCreatedAt(createdAt)
	label.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		label.SetDeletedAt(&deletedAt.Time)
	}

	return label, nil
}
