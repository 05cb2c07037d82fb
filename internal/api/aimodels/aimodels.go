// Package aimodels serves the caller's AI model records.
package aimodels

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

// CreateModelRequest is the body of POST /api/models
type CreateModelRequest struct {
	Name        string `json:"name" binding:"required"`
	Type        string `json:"type" binding:"required"`
	Description string `json:"description"`
}

// Handler serves /api/models. Every route runs behind AuthMiddleware.
type Handler struct {
	models *repositories.ModelRepository
}

// NewHandler creates a model handler
func NewHandler(models *repositories.ModelRepository) *Handler {
	return &Handler{models: models}
}

// @Summary      List models
// @Tags         Models
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "models: []models.Model, count: int"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/models [get]
// List returns the caller's models ordered by id
func (h *Handler) List(c *gin.Context) {
	ownerID := c.GetInt64(middleware.UserIDKey)

	list, err := h.models.ListModels(c.Request.Context(), ownerID)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"models": list,
		"count":  len(list),
	})
}

// @Summary      Create model
// @Tags         Models
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  CreateModelRequest  true  "Model"
// @Success      201  {object}  map[string]interface{}  "model: models.Model"
// @Failure      400  {object}  map[string]interface{}  "Invalid input"
// @Router       /api/models [post]
// Create stores a new draft model owned by the caller
func (h *Handler) Create(c *gin.Context) {
	var req CreateModelRequest
	if err := validation.DecodeJSON(c.Request, &req); err != nil {
		apierr.Respond(c, err)
		return
	}

	ownerID := c.GetInt64(middleware.UserIDKey)
	model, err := h.models.CreateModel(c.Request.Context(), ownerID, req.Name, req.Type, req.Description)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	telemetry.ModelsCreatedTotal.Inc()
	c.Set(middleware.AuditResourceIDKey, strconv.FormatInt(model.ID, 10))
	c.JSON(http.StatusCreated, gin.H{"model": model})
}

// @Summary      Get model
// @Tags         Models
// @Security     Bearer
// @Produce      json
// @Param        id  path  int  true  "Model ID"
// @Success      200  {object}  map[string]interface{}  "model: models.Model"
// @Failure      400  {object}  map[string]interface{}  "Invalid id"
// @Failure      404  {object}  map[string]interface{}  "Model not found"
// @Router       /api/models/{id} [get]
// Get returns one of the caller's models. Another user's model is reported as not found.
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		apierr.BadID(c, "id")
		return
	}

	ownerID := c.GetInt64(middleware.UserIDKey)
	model, err := h.models.GetModel(c.Request.Context(), ownerID, id)
	if err != nil {
		apierr.Respond(c, apierr.WithResource("Model", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"model": model})
}
