// Package models - model.go defines the Model record: a named AI model owned by a user.
// Models carry no real weights; status and accuracy are bookkeeping fields.
package models

import "time"

// ModelStatus is the lifecycle state of a model
type ModelStatus string

// Model statuses
const (
	ModelStatusDraft    ModelStatus = "draft"
	ModelStatusTraining ModelStatus = "training"
	ModelStatusRunning  ModelStatus = "running"
	ModelStatusStopped  ModelStatus = "stopped"
)

// IsValid reports whether s is a known model status
func (s ModelStatus) IsValid() bool {
	switch s {
	case ModelStatusDraft, ModelStatusTraining, ModelStatusRunning, ModelStatusStopped:
		return true
	}
	return false
}

// Model represents a user-owned model record
type Model struct {
	ID          int64       `db:"id" json:"id"`
	OwnerID     int64       `db:"owner_id" json:"owner_id"`
	Name        string      `db:"name" json:"name"`
	Type        string      `db:"type" json:"type"`
	Description string      `db:"description" json:"description"`
	Status      ModelStatus `db:"status" json:"status"`
	Accuracy    float64     `db:"accuracy" json:"accuracy"` // 0-100
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}
