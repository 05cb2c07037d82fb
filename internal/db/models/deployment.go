// Package models - deployment.go defines the Deployment record: a mock serving endpoint
// for a model, addressed by a generated endpoint URL and API key.
package models

import "time"

// DeploymentStatus is the serving state of a deployment
type DeploymentStatus string

// Deployment statuses
const (
	DeploymentStatusStopped DeploymentStatus = "stopped"
	DeploymentStatusRunning DeploymentStatus = "running"
)

// IsValid reports whether s is a known deployment status
func (s DeploymentStatus) IsValid() bool {
	return s == DeploymentStatusStopped || s == DeploymentStatusRunning
}

// Deployment represents a deployed model endpoint
type Deployment struct {
	ID            int64            `db:"id" json:"id"`
	ModelID       int64            `db:"model_id" json:"model_id"`
	Name          string           `db:"name" json:"name"`
	Status        DeploymentStatus `db:"status" json:"status"`
	EndpointURL   string           `db:"endpoint_url" json:"endpoint_url"`
	APIKey        string           `db:"api_key" json:"api_key"`
	RequestsCount int64            `db:"requests_count" json:"requests_count"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}

// DeploymentWithModel is a deployment joined with its parent model's display fields
type DeploymentWithModel struct {
	Deployment
	ModelName string `db:"model_name" json:"model_name"`
	ModelType string `db:"model_type" json:"model_type"`
}

// Stats holds per-owner aggregate counters for the dashboard
type Stats struct {
	TotalModels        int64 `db:"total_models" json:"total_models"`
	RunningModels      int64 `db:"running_models" json:"running_models"`
	TotalDeployments   int64 `db:"total_deployments" json:"total_deployments"`
	RunningDeployments int64 `db:"running_deployments" json:"running_deployments"`
	TotalRequests      int64 `db:"total_requests" json:"total_requests"`
}
