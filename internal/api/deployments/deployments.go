// Package deployments serves deployments of the caller's models.
package deployments

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/next-cloud-ai/console/internal/api/apierr"
	"github.com/next-cloud-ai/console/internal/db/repositories"
	"github.com/next-cloud-ai/console/internal/middleware"
	"github.com/next-cloud-ai/console/internal/telemetry"
	"github.com/next-cloud-ai/console/internal/validation"
)

// CreateDeploymentRequest is the body of POST /api/deployments
type CreateDeploymentRequest struct {
	ModelID int64  `json:"model_id" binding:"required,gt=0"`
	Name    string `json:"name" binding:"required"`
}

// Handler serves /api/deployments
type Handler struct {
	deployments *repositories.DeploymentRepository
}

// NewHandler creates a deployment handler
func NewHandler(deployments *repositories.DeploymentRepository) *Handler {
	return &Handler{deployments: deployments}
}

// @Summary      List deployments
// @Tags         Deployments
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "deployments: []models.DeploymentWithModel, count: int"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/deployments [get]
func (h *Handler) List(c *gin.Context) {
	ownerID := c.GetInt64(middleware.UserIDKey)

	list, err := h.deployments.ListDeployments(c.Request.Context(), ownerID)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deployments": list,
		"count":       len(list),
	})
}

// @Summary      Deploy a model
// @Tags         Deployments
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  CreateDeploymentRequest  true  "Deployment"
// @Success      201  {object}  map[string]interface{}  "deployment: models.Deployment"
// @Failure      400  {object}  map[string]interface{}  "Invalid input"
// @Failure      404  {object}  map[string]interface{}  "Model not found"
// @Router       /api/deployments [post]
// Create deploys one of the caller's models and marks it running
func (h *Handler) Create(c *gin.Context) {
	var req CreateDeploymentRequest
	if err := validation.DecodeJSON(c.Request, &req); err != nil {
		apierr.Respond(c, err)
		return
	}

	ownerID := c.GetInt64(middleware.UserIDKey)
	deployment, err := h.deployments.CreateDeployment(c.Request.Context(), ownerID, req.ModelID, req.Name)
	if err != nil {
		apierr.Respond(c, apierr.WithResource("Model", err))
		return
	}

	telemetry.DeploymentsCreatedTotal.Inc()
	c.Set(middleware.AuditResourceIDKey, strconv.FormatInt(deployment.ID, 10))
	c.JSON(http.StatusCreated, gin.H{"deployment": deployment})
}
