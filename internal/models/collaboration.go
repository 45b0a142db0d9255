package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CollaborationTask is stored inside the collaborations.tasks JSONB column.
type CollaborationTask struct {
	TaskID      string          `json:"taskId"`
	Description string          `json:"description"`
	ItemNames   []string        `json:"itemNames,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	AssigneeID  *string         `json:"assigneeId,omitempty"`
	Status      string          `json:"status"`
	AcceptedAt  *time.Time      `json:"acceptedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// Collaboration represents a row of the collaborations table.
type Collaboration struct {
	CollaborationID string              `db:"collaboration_id"`
	ParentJobID     string              `db:"parent_job_id"`
	RequesterID     string              `db:"requester_id"`
	Tasks           []CollaborationTask `db:"tasks"`
	Status          string              `db:"status"`
	Version         int64               `db:"version"`
	ActivatedAt     *time.Time          `db:"activated_at"`
	CompletedAt     *time.Time          `db:"completed_at"`
	AuditFields
}
