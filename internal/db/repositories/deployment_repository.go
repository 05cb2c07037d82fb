// deployment_repository.go implements DeploymentRepository. Deployments are owned
// transitively through their model, so every query joins or filters on models.owner_id.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/next-cloud-ai/console/internal/auth"
	"github.com/next-cloud-ai/console/internal/db/models"
)

// MaxDeploymentNameLength bounds deployment names
const MaxDeploymentNameLength = 255

// DeploymentRepository handles deployment database operations
type DeploymentRepository struct {
	db              *sqlx.DB
	endpointBaseURL string
	apiKeyPrefix    string
	generateKey     func(prefix string) (string, error)
}

// NewDeploymentRepository creates a new DeploymentRepository. Endpoint URLs are
// built as <endpointBaseURL>/v1/deployments/<id>/predict.
func NewDeploymentRepository(db *sqlx.DB, endpointBaseURL, apiKeyPrefix string) *DeploymentRepository {
	return &DeploymentRepository{
		db:              db,
		endpointBaseURL: strings.TrimRight(endpointBaseURL, "/"),
		apiKeyPrefix:    apiKeyPrefix,
		generateKey:     auth.GenerateDeploymentKey,
	}
}

// EndpointURL returns the predict URL for a deployment id
func (r *DeploymentRepository) EndpointURL(deploymentID int64) string {
	return fmt.Sprintf("%s/v1/deployments/%d/predict", r.endpointBaseURL, deploymentID)
}

// CreateDeployment deploys one of the owner's models. The ownership check and the
// insert are a single INSERT ... SELECT, so a model owned by someone else behaves
// exactly like a missing one (ErrNotFound). The parent model is marked running.
func (r *DeploymentRepository) CreateDeployment(ctx context.Context, ownerID, modelID int64, name string) (*models.Deployment, error) {
	name = strings.TrimSpace(name)
	switch {
	case modelID <= 0:
		return nil, validationError("model_id must be a positive integer")
	case name == "":
		return nil, validationError("name is required")
	case len(name) > MaxDeploymentNameLength:
		return nil, validationError("name must be at most %d characters", MaxDeploymentNameLength)
	}

	apiKey, err := r.generateKey(r.apiKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to generate api key: %w", err)
	}

	deployment := &models.Deployment{
		ModelID:       modelID,
		Name:          name,
		Status:        models.DeploymentStatusRunning,
		APIKey:        apiKey,
		RequestsCount: 0,
		CreatedAt:     time.Now().UTC(),
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertQuery := tx.Rebind(`
		INSERT INTO deployments (model_id, name, status, endpoint_url, api_key, requests_count, created_at)
		SELECT id, ?, ?, '', ?, 0, ?
		FROM models
		WHERE id = ? AND owner_id = ?
		RETURNING id
	`)
	err = tx.QueryRowxContext(ctx, insertQuery,
		deployment.Name,
		string(deployment.Status),
		deployment.APIKey,
		deployment.CreatedAt,
		modelID,
		ownerID,
	).Scan(&deployment.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create deployment: %w", err)
	}

	deployment.EndpointURL = r.EndpointURL(deployment.ID)
	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE deployments SET endpoint_url = ? WHERE id = ?`),
		deployment.EndpointURL, deployment.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to set endpoint url: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE models SET status = ?, updated_at = ? WHERE id = ? AND owner_id = ?`),
		string(models.ModelStatusRunning), deployment.CreatedAt, modelID, ownerID,
	); err != nil {
		return nil, fmt.Errorf("failed to update model status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit deployment: %w", err)
	}

	return deployment, nil
}

// ListDeployments returns the owner's deployments with their model name and type, ordered by id
func (r *DeploymentRepository) ListDeployments(ctx context.Context, ownerID int64) ([]*models.DeploymentWithModel, error) {
	query := r.db.Rebind(`
		SELECT d.id, d.model_id, d.name, d.status, d.endpoint_url, d.api_key,
			d.requests_count, d.created_at,
			m.name AS model_name, m.type AS model_type
		FROM deployments d
		JOIN models m ON m.id = d.model_id
		WHERE m.owner_id = ?
		ORDER BY d.id
	`)

	result := make([]*models.DeploymentWithModel, 0)
	if err := r.db.SelectContext(ctx, &result, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	return result, nil
}

// Count returns the total number of deployments across all owners
func (r *DeploymentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM deployments`); err != nil {
		return 0, err
	}
	return count, nil
}
