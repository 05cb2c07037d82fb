// Package models - audit_log.go defines the AuditLog model for recording security-relevant
// events, capturing actor, action, affected resource, client IP, and arbitrary metadata.
package models

import "time"

// AuditLog represents an audit log entry for tracking user actions
type AuditLog struct {
	ID           int64
	UserID       *int64                 // Nullable for anonymous actions (register, login)
	Action       string                 // "POST /api/models", "auth.register"
	ResourceType *string                // "model", "deployment", "user"
	ResourceID   *string                // ID of affected resource
	Metadata     map[string]interface{} // JSON: additional context
	IPAddress    *string                // Client IP
	CreatedAt    time.Time
}
