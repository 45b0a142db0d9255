package domain

import (
	"fmt"
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
)

// permission describes who may take a transition edge.
type permission int

const (
	// permAssign: the seller names a contractor, or a contractor accepts a marketplace job.
	permAssign permission = iota
	// permContractor: the assigned contractor (or the system on its behalf).
	permContractor
	// permSeller: the owning seller (or an admin).
	permSeller
	permSellerOrContractor
)

var jobTransitions = map[JobStatus]map[JobStatus]permission{
	JobStatusPending: {
		JobStatusAssigned:  permAssign,
		JobStatusCancelled: permSeller,
	},
	JobStatusAssigned: {
		JobStatusProductPreparing:    permContractor,
		JobStatusCancelled:           permSeller,
		JobStatusRescheduleRequested: permSellerOrContractor,
	},
	JobStatusProductPreparing: {
		JobStatusProductReady:        permContractor,
		JobStatusRescheduleRequested: permSellerOrContractor,
	},
	JobStatusProductReady: {
		JobStatusPickupCompleted:     permContractor,
		JobStatusRescheduleRequested: permSellerOrContractor,
	},
	JobStatusPickupCompleted: {
		JobStatusInProgress:      permContractor,
		JobStatusCompleted:       permContractor,
		JobStatusProductNotReady: permContractor,
		JobStatusCustomerAbsent:  permContractor,
	},
	JobStatusInProgress: {
		JobStatusCompleted:       permContractor,
		JobStatusCancelled:       permSeller,
		JobStatusProductNotReady: permContractor,
		JobStatusCustomerAbsent:  permContractor,
	},
	JobStatusRescheduleRequested: {
		JobStatusAssigned: permSeller,
	},
	JobStatusProductNotReady: {
		JobStatusAssigned:  permSeller,
		JobStatusCancelled: permSeller,
	},
	JobStatusCustomerAbsent: {
		JobStatusAssigned:  permSeller,
		JobStatusCancelled: permSeller,
	},
}

// statuses past assignment that a collaborative job may only reach once its split is active.
var workStatuses = map[JobStatus]bool{
	JobStatusProductPreparing: true,
	JobStatusProductReady:     true,
	JobStatusPickupCompleted:  true,
	JobStatusInProgress:       true,
}

// CanTransition reports whether from -> to is an edge of the job lifecycle.
func CanTransition(from, to JobStatus) bool {
	_, ok := jobTransitions[from][to]
	return ok
}

// NextStatuses lists the statuses reachable from status, in lifecycle order.
func NextStatuses(status JobStatus) []JobStatus {
	var next []JobStatus
	for _, candidate := range AllJobStatuses {
		if CanTransition(status, candidate) {
			next = append(next, candidate)
		}
	}
	return next
}

// TransitionRequest carries everything a transition is decided on.
type TransitionRequest struct {
	To    JobStatus
	Actor Actor
	Now   time.Time
	// ContractorID names the contractor when a seller assigns a pending job.
	ContractorID *string
	Note         *string
	// Collaboration is the job's collaboration when CollaborationID is set.
	Collaboration *CollaborationRequest
}

// Transition validates req against job and returns the updated job together with the progress
// entry recorded for it. The input job is not modified and its version is left unchanged; the
// store bumps it when the write succeeds.
func Transition(job Job, req TransitionRequest) (Job, ProgressEntry, error) {
	from := job.Status
	if !req.To.IsValid() {
		return job, ProgressEntry{}, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, req.To)
	}
	if from.IsTerminal() {
		return job, ProgressEntry{}, illegal(from, req.To, "job is "+string(from))
	}
	perm, ok := jobTransitions[from][req.To]
	if !ok {
		return job, ProgressEntry{}, illegal(from, req.To, "")
	}

	contractorID := job.ContractorID
	if perm == permAssign {
		assignee, err := resolveAssignee(job, req)
		if err != nil {
			return job, ProgressEntry{}, err
		}
		contractorID = &assignee
	} else if err := authorize(job, perm, req.Actor, from, req.To); err != nil {
		return job, ProgressEntry{}, err
	}

	if err := checkCollaboration(job, req, from); err != nil {
		return job, ProgressEntry{}, err
	}

	next := job.Clone()
	next.Status = req.To
	if contractorID != nil {
		next.ContractorID = stringPtr(*contractorID)
	}
	if req.To == JobStatusCompleted {
		next.CompletedAt = timePtr(req.Now)
	}
	next.Touch(req.Actor.ID, req.Now)

	entry := ProgressEntry{
		Status:    req.To,
		Timestamp: req.Now,
		ActorID:   req.Actor.ID,
		Note:      req.Note,
	}
	if next.ContractorID != nil {
		entry.ContractorID = stringPtr(*next.ContractorID)
	}
	next.ProgressHistory = append(next.ProgressHistory, entry)
	return next, entry, nil
}

func illegal(from, to JobStatus, reason string) error {
	return &apperrors.IllegalTransitionError{From: string(from), To: string(to), Reason: reason}
}

func forbidden(from, to JobStatus, who string) error {
	return fmt.Errorf("%w: only %s may move a job from %s to %s", apperrors.ErrForbidden, who, from, to)
}

func authorize(job Job, perm permission, actor Actor, from, to JobStatus) error {
	isSeller := actor.IsAdmin() || (actor.Role == RoleSeller && job.IsSeller(actor.ID))
	isContractor := actor.IsSystem() || (actor.Role == RoleContractor && job.IsContractor(actor.ID))

	switch perm {
	case permSeller:
		if !isSeller {
			return forbidden(from, to, "the owning seller")
		}
	case permContractor:
		if !isContractor {
			return forbidden(from, to, "the assigned contractor")
		}
	case permSellerOrContractor:
		if !isSeller && !isContractor {
			return forbidden(from, to, "the owning seller or the assigned contractor")
		}
	}
	return nil
}

func resolveAssignee(job Job, req TransitionRequest) (string, error) {
	if job.ContractorID != nil {
		return "", illegal(job.Status, req.To, "job already has a contractor")
	}
	actor := req.Actor

	if actor.IsAdmin() || (actor.Role == RoleSeller && job.IsSeller(actor.ID)) {
		if req.ContractorID == nil || *req.ContractorID == "" {
			return "", fmt.Errorf("%w: contractorId is required to assign a job", apperrors.ErrValidation)
		}
		return *req.ContractorID, nil
	}

	if actor.Role == RoleContractor {
		if job.IsInternal {
			return "", fmt.Errorf("%w: internal jobs are assigned by their seller", apperrors.ErrForbidden)
		}
		if req.ContractorID != nil && *req.ContractorID != actor.ID {
			return "", fmt.Errorf("%w: a contractor can only accept a job for themselves", apperrors.ErrForbidden)
		}
		return actor.ID, nil
	}
	return "", forbidden(job.Status, req.To, "the owning seller or a contractor")
}

func checkCollaboration(job Job, req TransitionRequest, from JobStatus) error {
	if job.CollaborationID == nil {
		return nil
	}
	collab := req.Collaboration
	if collab == nil {
		return fmt.Errorf("collaboration %s of job %s was not loaded", *job.CollaborationID, job.JobID)
	}
	if !collab.IsLive() {
		return nil
	}
	switch {
	case req.To == JobStatusCancelled && collab.IsLocked():
		return &apperrors.CollaborationLockedError{CollaborationID: collab.CollaborationID, Status: string(collab.Status)}
	case workStatuses[req.To] && !collab.IsLocked():
		return illegal(from, req.To, "collaboration is not active yet")
	case req.To == JobStatusCompleted && collab.Status != CollaborationStatusCompleted:
		return illegal(from, req.To, "collaboration tasks are not all completed")
	}
	return nil
}
