package dto

import (
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CollaborationTaskRequest describes one sub-assignment of a split.
type CollaborationTaskRequest struct {
	Description string          `json:"description" binding:"required"`
	ItemNames   []string        `json:"itemNames"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
}

// CreateCollaborationRequest splits an assigned job among several contractors.
type CreateCollaborationRequest struct {
	ParentJobID string                     `json:"parentJobId" binding:"required"`
	Tasks       []CollaborationTaskRequest `json:"tasks" binding:"required,min=2,dive"`
}

// UpdateCollaborationTasksRequest replaces the tasks of an open collaboration.
type UpdateCollaborationTasksRequest struct {
	Tasks []CollaborationTaskRequest `json:"tasks" binding:"required,min=2,dive"`
}

// CollaborationResponse defines the data returned for a collaboration.
type CollaborationResponse struct {
	CollaborationID string                     `json:"collaborationId"`
	ParentJobID     string                     `json:"parentJobId"`
	RequesterID     string                     `json:"requesterId"`
	Status          domain.CollaborationStatus `json:"status"`
	Tasks           []domain.CollaborationTask `json:"tasks"`
	TotalAmount     decimal.Decimal            `json:"totalAmount"`
	Version         int64                      `json:"version"`
	ActivatedAt     *time.Time                 `json:"activatedAt,omitempty"`
	CompletedAt     *time.Time                 `json:"completedAt,omitempty"`
	CreatedAt       time.Time                  `json:"createdAt"`
	LastUpdatedAt   time.Time                  `json:"lastUpdatedAt"`
}

// ToCollaborationResponse converts a domain.CollaborationRequest to its DTO.
func ToCollaborationResponse(c *domain.CollaborationRequest) CollaborationResponse {
	return CollaborationResponse{
		CollaborationID: c.CollaborationID,
		ParentJobID:     c.ParentJobID,
		RequesterID:     c.RequesterID,
		Status:          c.Status,
		Tasks:           c.Tasks,
		TotalAmount:     c.TasksTotal(),
		Version:         c.Version,
		ActivatedAt:     c.ActivatedAt,
		CompletedAt:     c.CompletedAt,
		CreatedAt:       c.CreatedAt,
		LastUpdatedAt:   c.LastUpdatedAt,
	}
}
