// Package dashboard serves the per-user statistics shown on the console dashboard.
package dashboard

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/next-cloud-ai/console/internal/api/apierr"
	"github.com/next-cloud-ai/console/internal/db/repositories"
	"github.com/next-cloud-ai/console/internal/middleware"
)

// StatsHandler handles stats-related API requests
type StatsHandler struct {
	stats *repositories.StatsRepository
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(stats *repositories.StatsRepository) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// @Summary      Get dashboard statistics
// @Description  Returns model, deployment and request counts for the caller's resources only.
// @Tags         Stats
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "stats: models.Stats, timestamp: RFC3339"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/stats [get]
func (h *StatsHandler) GetStats(c *gin.Context) {
	ownerID := c.GetInt64(middleware.UserIDKey)

	stats, err := h.stats.GetStats(c.Request.Context(), ownerID)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":     stats,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
