package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/next-cloud-ai/console/internal/db/models"
	"github.com/next-cloud-ai/console/internal/safego"
)

// AuditResourceIDKey lets a handler name the resource it created or changed
const AuditResourceIDKey = "audit_resource_id"

const auditWriteTimeout = 5 * time.Second

// AuditRecorder persists audit entries. *repositories.AuditRepository satisfies it.
type AuditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditMiddleware records successful authenticated mutations (POST, PUT, PATCH, DELETE).
// Writes happen on the background group so they never delay or fail the response.
func AuditMiddleware(recorder AuditRecorder, group *safego.Group) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			return
		}
		status := c.Writer.Status()
		if status >= http.StatusBadRequest {
			return
		}
		userID := c.GetInt64(UserIDKey)
		if userID == 0 {
			return
		}

		entry := buildAuditEntry(c, userID, status)
		group.Go("audit", func() {
			ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
			defer cancel()
			if err := recorder.CreateAuditLog(ctx, entry); err != nil {
				slog.Error("failed to write audit log", "action", entry.Action, "error", err)
			}
		})
	}
}

func buildAuditEntry(c *gin.Context, userID int64, status int) *models.AuditLog {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	ip := c.ClientIP()

	entry := &models.AuditLog{
		UserID:    &userID,
		Action:    c.Request.Method + " " + route,
		IPAddress: &ip,
		Metadata: map[string]interface{}{
			"status_code": status,
		},
		CreatedAt: time.Now().UTC(),
	}
	if rt := resourceTypeFor(route); rt != "" {
		entry.ResourceType = &rt
	}
	if id := c.GetString(AuditResourceIDKey); id != "" {
		entry.ResourceID = &id
	}
	if rid := GetRequestID(c); rid != "" {
		entry.Metadata["request_id"] = rid
	}
	return entry
}

// resourceTypeFor maps an /api route to the resource kind it manages
func resourceTypeFor(route string) string {
	switch {
	case strings.HasPrefix(route, "/api/models"):
		return "model"
	case strings.HasPrefix(route, "/api/deployments"):
		return "deployment"
	case strings.HasPrefix(route, "/api/auth"):
		return "user"
	default:
		return ""
	}
}
