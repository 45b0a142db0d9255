package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
	"github.com/shopspring/decimal"
)

// CollaborationStatus is the lifecycle status of a collaboration split.
type CollaborationStatus string

const (
	CollaborationStatusOpen      CollaborationStatus = "open"
	CollaborationStatusActive    CollaborationStatus = "active"
	CollaborationStatusCompleted CollaborationStatus = "completed"
	CollaborationStatusCancelled CollaborationStatus = "cancelled"
)

// TaskStatus is the status of a single collaboration task.
type TaskStatus string

const (
	TaskStatusOffered   TaskStatus = "offered"
	TaskStatusAccepted  TaskStatus = "accepted"
	TaskStatusCompleted TaskStatus = "completed"
)

// CollaborationTask is one sub-assignment of a split job.
type CollaborationTask struct {
	TaskID      string          `json:"taskId"`
	Description string          `json:"description"`
	ItemNames   []string        `json:"itemNames,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	AssigneeID  *string         `json:"assigneeId,omitempty"`
	Status      TaskStatus      `json:"status"`
	AcceptedAt  *time.Time      `json:"acceptedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// CollaborationRequest splits a parent job's work and payment among contractors.
type CollaborationRequest struct {
	CollaborationID string              `json:"collaborationId"`
	ParentJobID     string              `json:"parentJobId"`
	RequesterID     string              `json:"requesterId"`
	Tasks           []CollaborationTask `json:"tasks"`
	Status          CollaborationStatus `json:"status"`
	Version         int64               `json:"version"`
	ActivatedAt     *time.Time          `json:"activatedAt,omitempty"`
	CompletedAt     *time.Time          `json:"completedAt,omitempty"`
	AuditFields
}

// TasksTotal sums the task amounts.
func (c CollaborationRequest) TasksTotal() decimal.Decimal {
	total := decimal.Zero
	for _, task := range c.Tasks {
		total = total.Add(task.Amount)
	}
	return total
}

// VerifyTotal returns an AmountMismatchError unless the tasks sum to expected.
func (c CollaborationRequest) VerifyTotal(expected decimal.Decimal) error {
	actual := c.TasksTotal()
	if !actual.Equal(expected) {
		return &apperrors.AmountMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}

// IsLocked reports whether the split can no longer be edited or cancelled.
func (c CollaborationRequest) IsLocked() bool {
	return c.Status == CollaborationStatusActive || c.Status == CollaborationStatusCompleted
}

// IsLive reports whether the collaboration still governs its parent job.
func (c CollaborationRequest) IsLive() bool {
	return c.Status != CollaborationStatusCancelled
}

// HasAssignee reports whether actorID was assigned any task.
func (c CollaborationRequest) HasAssignee(actorID string) bool {
	for _, task := range c.Tasks {
		if task.AssigneeID != nil && *task.AssigneeID == actorID {
			return true
		}
	}
	return false
}

func (c CollaborationRequest) taskIndex(taskID string) (int, error) {
	for i, task := range c.Tasks {
		if task.TaskID == taskID {
			return i, nil
		}
	}
	return -1, apperrors.NewNotFoundError("collaboration task", taskID)
}

func (c CollaborationRequest) lockedError() error {
	return &apperrors.CollaborationLockedError{CollaborationID: c.CollaborationID, Status: string(c.Status)}
}

// ValidateTasks checks task shape before a split is published or replaced.
func ValidateTasks(tasks []CollaborationTask) error {
	if len(tasks) < 2 {
		return fmt.Errorf("%w: a collaboration needs at least two tasks", apperrors.ErrValidation)
	}
	seen := make(map[string]struct{}, len(tasks))
	for _, task := range tasks {
		if strings.TrimSpace(task.Description) == "" {
			return fmt.Errorf("%w: task description is required", apperrors.ErrValidation)
		}
		if !task.Amount.IsPositive() {
			return fmt.Errorf("%w: task %q amount must be positive", apperrors.ErrValidation, task.Description)
		}
		if _, dup := seen[task.TaskID]; dup {
			return fmt.Errorf("%w: duplicate task id %s", apperrors.ErrValidation, task.TaskID)
		}
		seen[task.TaskID] = struct{}{}
	}
	return nil
}

// ReplaceTasks swaps the task list of an open collaboration, re-checking the total.
// Acceptances made against the old split are discarded.
func (c CollaborationRequest) ReplaceTasks(tasks []CollaborationTask, expectedTotal decimal.Decimal, actorID string, now time.Time) (CollaborationRequest, error) {
	if c.Status != CollaborationStatusOpen {
		return c, c.lockedError()
	}
	if err := ValidateTasks(tasks); err != nil {
		return c, err
	}
	next := c.Clone()
	next.Tasks = make([]CollaborationTask, len(tasks))
	for i, task := range tasks {
		task.Status = TaskStatusOffered
		task.AssigneeID = nil
		task.AcceptedAt = nil
		task.CompletedAt = nil
		next.Tasks[i] = task
	}
	if err := next.VerifyTotal(expectedTotal); err != nil {
		return c, err
	}
	next.Touch(actorID, now)
	return next, nil
}

// AcceptTask assigns contractorID to an offered task. Accepting the last offered task
// activates the collaboration.
func (c CollaborationRequest) AcceptTask(taskID, contractorID string, now time.Time) (CollaborationRequest, error) {
	if c.Status != CollaborationStatusOpen {
		return c, c.lockedError()
	}
	idx, err := c.taskIndex(taskID)
	if err != nil {
		return c, err
	}
	if c.Tasks[idx].Status != TaskStatusOffered {
		return c, fmt.Errorf("%w: task %s is already %s", apperrors.ErrValidation, taskID, c.Tasks[idx].Status)
	}

	next := c.Clone()
	next.Tasks[idx].AssigneeID = stringPtr(contractorID)
	next.Tasks[idx].Status = TaskStatusAccepted
	next.Tasks[idx].AcceptedAt = timePtr(now)

	allAccepted := true
	for _, task := range next.Tasks {
		if task.AssigneeID == nil || task.Status != TaskStatusAccepted {
			allAccepted = false
			break
		}
	}
	if allAccepted {
		next.Status = CollaborationStatusActive
		next.ActivatedAt = timePtr(now)
	}
	next.Touch(contractorID, now)
	return next, nil
}

// CompleteTask marks an accepted task completed. Completing the last task completes the
// collaboration. Only the task assignee, an admin or the system may complete a task.
func (c CollaborationRequest) CompleteTask(taskID string, actor Actor, now time.Time) (CollaborationRequest, error) {
	if c.Status != CollaborationStatusActive {
		return c, fmt.Errorf("%w: collaboration %s is %s, not active", apperrors.ErrValidation, c.CollaborationID, c.Status)
	}
	idx, err := c.taskIndex(taskID)
	if err != nil {
		return c, err
	}
	task := c.Tasks[idx]
	if !actor.IsAdmin() && !actor.IsSystem() && (task.AssigneeID == nil || *task.AssigneeID != actor.ID) {
		return c, fmt.Errorf("%w: only the task assignee may complete task %s", apperrors.ErrForbidden, taskID)
	}
	if task.Status != TaskStatusAccepted {
		return c, fmt.Errorf("%w: task %s is %s, not accepted", apperrors.ErrValidation, taskID, task.Status)
	}

	next := c.Clone()
	next.Tasks[idx].Status = TaskStatusCompleted
	next.Tasks[idx].CompletedAt = timePtr(now)

	allCompleted := true
	for _, t := range next.Tasks {
		if t.Status != TaskStatusCompleted {
			allCompleted = false
			break
		}
	}
	if allCompleted {
		next.Status = CollaborationStatusCompleted
		next.CompletedAt = timePtr(now)
	}
	next.Touch(actor.ID, now)
	return next, nil
}

// Cancel withdraws an open collaboration.
func (c CollaborationRequest) Cancel(actorID string, now time.Time) (CollaborationRequest, error) {
	if c.IsLocked() {
		return c, c.lockedError()
	}
	if c.Status == CollaborationStatusCancelled {
		return c, nil
	}
	next := c.Clone()
	next.Status = CollaborationStatusCancelled
	next.Touch(actorID, now)
	return next, nil
}

// Clone returns a deep copy.
func (c CollaborationRequest) Clone() CollaborationRequest {
	out := c
	out.Tasks = make([]CollaborationTask, len(c.Tasks))
	for i, task := range c.Tasks {
		t := task
		t.ItemNames = append([]string(nil), task.ItemNames...)
		if task.AssigneeID != nil {
			t.AssigneeID = stringPtr(*task.AssigneeID)
		}
		if task.AcceptedAt != nil {
			t.AcceptedAt = timePtr(*task.AcceptedAt)
		}
		if task.CompletedAt != nil {
			t.CompletedAt = timePtr(*task.CompletedAt)
		}
		out.Tasks[i] = t
	}
	if c.ActivatedAt != nil {
		out.ActivatedAt = timePtr(*c.ActivatedAt)
	}
	if c.CompletedAt != nil {
		out.CompletedAt = timePtr(*c.CompletedAt)
	}
	return out
}
