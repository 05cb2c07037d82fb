// model_repository.go implements ModelRepository, providing owner-scoped queries for
// listing, creating, and reading model records.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/next-cloud-ai/console/internal/db/models"
)

// Field limits for model records
const (
	MaxModelNameLength        = 255
	MaxModelTypeLength        = 100
	MaxModelDescriptionLength = 2000
)

// ModelRepository handles model database operations
type ModelRepository struct {
	db *sqlx.DB
}

// NewModelRepository creates a new ModelRepository
func NewModelRepository(db *sqlx.DB) *ModelRepository {
	return &ModelRepository{db: db}
}

const modelColumns = `id, owner_id, name, type, description, status, accuracy, created_at, updated_at`

// ListModels returns the owner's models ordered by id
func (r *ModelRepository) ListModels(ctx context.Context, ownerID int64) ([]*models.Model, error) {
	query := r.db.Rebind(`
		SELECT ` + modelColumns + `
		FROM models
		WHERE owner_id = ?
		ORDER BY id
	`)

	result := make([]*models.Model, 0)
	if err := r.db.SelectContext(ctx, &result, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return result, nil
}

// CreateModel inserts a draft model with zero accuracy for the owner.
// Name and type are required; surrounding whitespace is trimmed.
func (r *ModelRepository) CreateModel(ctx context.Context, ownerID int64, name, modelType, description string) (*models.Model, error) {
	name = strings.TrimSpace(name)
	modelType = strings.TrimSpace(modelType)
	description = strings.TrimSpace(description)

	switch {
	case name == "":
		return nil, validationError("name is required")
	case modelType == "":
		return nil, validationError("type is required")
	case len(name) > MaxModelNameLength:
		return nil, validationError("name must be at most %d characters", MaxModelNameLength)
	case len(modelType) > MaxModelTypeLength:
		return nil, validationError("type must be at most %d characters", MaxModelTypeLength)
	case len(description) > MaxModelDescriptionLength:
		return nil, validationError("description must be at most %d characters", MaxModelDescriptionLength)
	}

	now := time.Now().UTC()
	model := &models.Model{
		OwnerID:     ownerID,
		Name:        name,
		Type:        modelType,
		Description: description,
		Status:      models.ModelStatusDraft,
		Accuracy:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	query := r.db.Rebind(`
		INSERT INTO models (owner_id, name, type, description, status, accuracy, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := r.db.QueryRowxContext(ctx, query,
		model.OwnerID,
		model.Name,
		model.Type,
		model.Description,
		string(model.Status),
		model.Accuracy,
		model.CreatedAt,
		model.UpdatedAt,
	).Scan(&model.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	return model, nil
}

// GetModel returns the owner's model by id, or ErrNotFound when it does not exist
// or belongs to someone else.
func (r *ModelRepository) GetModel(ctx context.Context, ownerID, modelID int64) (*models.Model, error) {
	query := r.db.Rebind(`
		SELECT ` + modelColumns + `
		FROM models
		WHERE id = ? AND owner_id = ?
	`)

	model := &models.Model{}
	err := r.db.GetContext(ctx, model, query, modelID, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}
	return model, nil
}

// Count returns the total number of models across all owners
func (r *ModelRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM models`); err != nil {
		return 0, err
	}
	return count, nil
}
