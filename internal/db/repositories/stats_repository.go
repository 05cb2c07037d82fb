// stats_repository.go implements StatsRepository, computing per-owner dashboard
// aggregates in a single round-trip.
package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/next-cloud-ai/console/internal/db/models"
)

// StatsRepository handles aggregate queries
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository creates a new StatsRepository
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// GetStats returns counts strictly scoped to ownerID
func (r *StatsRepository) GetStats(ctx context.Context, ownerID int64) (*models.Stats, error) {
	query := r.db.Rebind(`
		SELECT
			(SELECT COUNT(*) FROM models WHERE owner_id = ?) AS total_models,
			(SELECT COUNT(*) FROM models WHERE owner_id = ? AND status = 'running') AS running_models,
			(SELECT COUNT(*) FROM deployments d JOIN models m ON m.id = d.model_id
				WHERE m.owner_id = ?) AS total_deployments,
			(SELECT COUNT(*) FROM deployments d JOIN models m ON m.id = d.model_id
				WHERE m.owner_id = ? AND d.status = 'running') AS running_deployments,
			(SELECT COALESCE(SUM(d.requests_count), 0) FROM deployments d JOIN models m ON m.id = d.model_id
				WHERE m.owner_id = ?) AS total_requests
	`)

	stats := &models.Stats{}
	if err := r.db.GetContext(ctx, stats, query, ownerID, ownerID, ownerID, ownerID, ownerID); err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}
