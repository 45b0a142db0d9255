package services_test

import (
	"errors"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	"github.com/SscSPs/curtain_escrow_app/internal/dto"
)

func split(amounts ...int64) []dto.CollaborationTaskRequest {
	names := []string{"living room blinds", "bedroom blinds", "study curtains"}
	tasks := make([]dto.CollaborationTaskRequest, len(amounts))
	for i, amount := range amounts {
		tasks[i] = dto.CollaborationTaskRequest{Description: names[i%len(names)], Amount: points(amount)}
	}
	return tasks
}

func (s *EscrowTestSuite) assignedJob() *domain.Job {
	s.fund(seller.ID, 100000)
	job := s.createJob()
	return s.assign(job.JobID, contractorX)
}

func (s *EscrowTestSuite) TestCollaborationSplitMustMatchAmount() {
	job := s.assignedJob()

	_, err := s.svc.Collaboration.CreateCollaboration(s.ctx, dto.CreateCollaborationRequest{
		ParentJobID: job.JobID, Tasks: split(70000, 40000),
	}, contractorX)
	var mismatch *apperrors.AmountMismatchError
	s.Require().True(errors.As(err, &mismatch))
	s.True(mismatch.Expected.Equal(points(100000)))
	s.True(mismatch.Actual.Equal(points(110000)))

	collab, err := s.svc.Collaboration.CreateCollaboration(s.ctx, dto.CreateCollaborationRequest{
		ParentJobID: job.JobID, Tasks: split(60000, 40000),
	}, contractorX)
	s.Require().NoError(err)
	s.Equal(domain.CollaborationStatusOpen, collab.Status)
	s.True(collab.TasksTotal().Equal(points(100000)))

	_, err = s.svc.Collaboration.UpdateTasks(s.ctx, collab.CollaborationID, dto.UpdateCollaborationTasksRequest{Tasks: split(70000, 40000)}, contractorX)
	s.ErrorIs(err, apperrors.ErrAmountMismatch)

	stored, err := s.repos.CollaborationRepo.FindCollaborationByID(s.ctx, collab.CollaborationID)
	s.Require().NoError(err)
	s.True(stored.TasksTotal().Equal(points(100000)))

	parent, err := s.repos.JobRepo.FindJobByID(s.ctx, job.JobID)
	s.Require().NoError(err)
	s.Equal(collab.CollaborationID, *parent.CollaborationID)

	_, err = s.svc.Collaboration.CreateCollaboration(s.ctx, dto.CreateCollaborationRequest{
		ParentJobID: job.JobID, Tasks: split(50000, 50000),
	}, contractorX)
	s.ErrorIs(err, apperrors.ErrDuplicate)
}

func (s *EscrowTestSuite) TestCollaborationRequiresAssignedParent() {
	s.fund(seller.ID, 100000)
	job := s.createJob()

	_, err := s.svc.Collaboration.CreateCollaboration(s.ctx, dto.CreateCollaborationRequest{
		ParentJobID: job.JobID, Tasks: split(60000, 40000),
	}, arbiter)
	s.ErrorIs(err, apperrors.ErrValidation)

	assigned := s.assign(job.JobID, contractorX)
	_, err = s.svc.Collaboration.CreateCollaboration(s.ctx, dto.CreateCollaborationRequest{
		ParentJobID: assigned.JobID, Tasks: split(60000, 40000),
	}, contractorY)
	s.ErrorIs(err, apperrors.ErrForbidden)
}

func (s *EscrowTestSuite) TestCollaborationPaysEachTask() {
	job := s.assignedJob()
	collab, err := s.svc.Collaboration.CreateCollaboration(s.ctx, dto.CreateCollaborationRequest{
		ParentJobID: job.JobID, Tasks: split(60000, 40000),
	}, contractorX)
	s.Require().NoError(err)

	_, err = s.transition(job.JobID, domain.JobStatusProductPreparing, contractorX)
	s.ErrorIs(err, apperrors.ErrIllegalTransition, "work waits for the split to be accepted")

	first, second := collab.Tasks[0].TaskID, collab.Tasks[1].TaskID
	_, err = s.svc.Collaboration.AcceptTask(s.ctx, collab.CollaborationID, first, seller)
	s.ErrorIs(err, apperrors.ErrForbidden)

	open, err := s.svc.Collaboration.AcceptTask(s.ctx, collab.CollaborationID, first, contractorY)
	s.Require().NoError(err)
	s.Equal(domain.CollaborationStatusOpen, open.Status)

	active, err := s.svc.Collaboration.AcceptTask(s.ctx, collab.CollaborationID, second, contractorZ)
	s.Require().NoError(err)
	s.Equal(domain.CollaborationStatusActive, active.Status)
	s.Equal(1, s.events.count(domain.EventCollaborationActivated))

	_, err = s.svc.Collaboration.UpdateTasks(s.ctx, collab.CollaborationID, dto.UpdateCollaborationTasksRequest{Tasks: split(50000, 50000)}, contractorX)
	s.ErrorIs(err, apperrors.ErrCollaborationLocked)
	_, err = s.svc.Collaboration.CancelCollaboration(s.ctx, collab.CollaborationID, seller)
	s.ErrorIs(err, apperrors.ErrCollaborationLocked)
	_, err = s.transition(job.JobID, domain.JobStatusCancelled, seller)
	s.ErrorIs(err, apperrors.ErrCollaborationLocked)

	s.workUntil(job.JobID, domain.JobStatusInProgress, contractorX)
	_, err = s.transition(job.JobID, domain.JobStatusCompleted, contractorX)
	s.ErrorIs(err, apperrors.ErrIllegalTransition, "the parent completes with its last task")

	_, err = s.svc.Collaboration.CompleteTask(s.ctx, collab.CollaborationID, second, contractorY)
	s.ErrorIs(err, apperrors.ErrForbidden)

	partial, err := s.svc.Collaboration.CompleteTask(s.ctx, collab.CollaborationID, first, contractorY)
	s.Require().NoError(err)
	s.Equal(domain.CollaborationStatusActive, partial.Status)

	done, err := s.svc.Collaboration.CompleteTask(s.ctx, collab.CollaborationID, second, contractorZ)
	s.Require().NoError(err)
	s.Equal(domain.CollaborationStatusCompleted, done.Status)

	parent, err := s.repos.JobRepo.FindJobByID(s.ctx, job.JobID)
	s.Require().NoError(err)
	s.Equal(domain.JobStatusCompleted, parent.Status)
	last := parent.ProgressHistory[len(parent.ProgressHistory)-1]
	s.Equal(domain.SystemActorID, last.ActorID)

	payments := s.jobTransactions(job.JobID, domain.TransactionTypePayment)
	s.Require().Len(payments, 2)
	paid := map[string]string{}
	for _, p := range payments {
		s.Equal(domain.TransactionStatusPending, p.Status)
		paid[p.AccountID] = p.Amount.String()
	}
	s.Equal(map[string]string{contractorY.ID: "60000", contractorZ.ID: "40000"}, paid)

	s.clock.Advance(domain.DisputeWindow)
	result, err := s.svc.Escrow.TrySettle(s.ctx, job.JobID)
	s.Require().NoError(err)
	s.Equal(domain.SettlementOutcomeSettled, result.Outcome)
	s.requireBalance(contractorY.ID, 60000)
	s.requireBalance(contractorZ.ID, 40000)
	s.requireBalance(contractorX.ID, 0)
	s.requireConsistent(seller.ID, contractorY.ID, contractorZ.ID)
}

func (s *EscrowTestSuite) TestCancellingJobCancelsOpenCollaboration() {
	job := s.assignedJob()
	collab, err := s.svc.Collaboration.CreateCollaboration(s.ctx, dto.CreateCollaborationRequest{
		ParentJobID: job.JobID, Tasks: split(60000, 40000),
	}, contractorX)
	s.Require().NoError(err)

	cancelled := s.mustTransition(job.JobID, domain.JobStatusCancelled, seller)
	s.Nil(cancelled.CollaborationID)
	s.requireBalance(seller.ID, 100000)

	stored, err := s.repos.CollaborationRepo.FindCollaborationByID(s.ctx, collab.CollaborationID)
	s.Require().NoError(err)
	s.Equal(domain.CollaborationStatusCancelled, stored.Status)

	_, err = s.svc.Collaboration.AcceptTask(s.ctx, collab.CollaborationID, collab.Tasks[0].TaskID, contractorY)
	s.ErrorIs(err, apperrors.ErrValidation, "the parent job is cancelled")
}

func (s *EscrowTestSuite) TestCancelledCollaborationAllowsANewSplit() {
	job := s.assignedJob()
	first, err := s.svc.Collaboration.CreateCollaboration(s.ctx, dto.CreateCollaborationRequest{
		ParentJobID: job.JobID, Tasks: split(60000, 40000),
	}, contractorX)
	s.Require().NoError(err)

	_, err = s.svc.Collaboration.CancelCollaboration(s.ctx, first.CollaborationID, contractorX)
	s.Require().NoError(err)

	parent, err := s.repos.JobRepo.FindJobByID(s.ctx, job.JobID)
	s.Require().NoError(err)
	s.Nil(parent.CollaborationID)

	second, err := s.svc.Collaboration.CreateCollaboration(s.ctx, dto.CreateCollaborationRequest{
		ParentJobID: job.JobID, Tasks: split(30000, 30000, 40000),
	}, contractorX)
	s.Require().NoError(err)
	s.Len(second.Tasks, 3)

	view, err := s.svc.Collaboration.GetCollaboration(s.ctx, second.CollaborationID, contractorY)
	s.Require().NoError(err, "open splits are visible to contractors")
	s.Equal(second.CollaborationID, view.CollaborationID)

	_, err = s.svc.Collaboration.GetCollaboration(s.ctx, second.CollaborationID, otherSeller)
	s.ErrorIs(err, apperrors.ErrForbidden)
}

// completedCollaboration splits a job 60000/40000 between contractorY and contractorZ and
// completes both tasks, which completes the parent job.
func (s *EscrowTestSuite) completedCollaboration() (*domain.Job, *domain.CollaborationRequest) {
	job := s.assignedJob()
	collab, err := s.svc.Collaboration.CreateCollaboration(s.ctx, dto.CreateCollaborationRequest{
		ParentJobID: job.JobID, Tasks: split(60000, 40000),
	}, contractorX)
	s.Require().NoError(err)
	first, second := collab.Tasks[0].TaskID, collab.Tasks[1].TaskID
	_, err = s.svc.Collaboration.AcceptTask(s.ctx, collab.CollaborationID, first, contractorY)
	s.Require().NoError(err)
	_, err = s.svc.Collaboration.AcceptTask(s.ctx, collab.CollaborationID, second, contractorZ)
	s.Require().NoError(err)

	s.workUntil(job.JobID, domain.JobStatusInProgress, contractorX)
	_, err = s.svc.Collaboration.CompleteTask(s.ctx, collab.CollaborationID, first, contractorY)
	s.Require().NoError(err)
	done, err := s.svc.Collaboration.CompleteTask(s.ctx, collab.CollaborationID, second, contractorZ)
	s.Require().NoError(err)
	s.Require().Equal(domain.CollaborationStatusCompleted, done.Status)

	parent, err := s.repos.JobRepo.FindJobByID(s.ctx, job.JobID)
	s.Require().NoError(err)
	s.Require().Equal(domain.JobStatusCompleted, parent.Status)
	return parent, done
}

func (s *EscrowTestSuite) TestTaskAssigneeCanDisputeCollaborativeJob() {
	job, _ := s.completedCollaboration()

	_, err := s.svc.Escrow.FileDispute(s.ctx, job.JobID, dto.FileDisputeRequest{Reason: "short paid"}, otherSeller)
	s.ErrorIs(err, apperrors.ErrForbidden)

	disputed, err := s.svc.Escrow.FileDispute(s.ctx, job.JobID, dto.FileDisputeRequest{Reason: "short paid"}, contractorY)
	s.Require().NoError(err)
	s.True(disputed.Dispute.IsOpen())
	s.Equal(contractorY.ID, disputed.Dispute.RaisedBy)

	s.clock.Advance(domain.DisputeWindow)
	_, err = s.svc.Escrow.TrySettle(s.ctx, job.JobID)
	s.ErrorIs(err, apperrors.ErrDisputeOpen)

	result, err := s.svc.Escrow.ResolveDispute(s.ctx, job.JobID, dto.ResolveDisputeRequest{Decision: dto.DisputeDecisionRefund}, arbiter)
	s.Require().NoError(err)
	s.Equal(domain.SettlementOutcomeRefunded, result.Outcome)

	s.requireBalance(seller.ID, 100000)
	s.requireBalance(contractorY.ID, 0)
	s.requireBalance(contractorZ.ID, 0)
	for _, p := range s.jobTransactions(job.JobID, domain.TransactionTypePayment) {
		s.Equal(domain.TransactionStatusCancelled, p.Status)
	}
	s.requireConsistent(seller.ID, contractorY.ID, contractorZ.ID)
}

func (s *EscrowTestSuite) TestTaskAssigneeSeesJobTransactions() {
	job, _ := s.completedCollaboration()

	txs, err := s.svc.Escrow.ListJobTransactions(s.ctx, job.JobID, contractorZ)
	s.Require().NoError(err)
	s.Len(txs, 3)

	_, err = s.svc.Escrow.ListJobTransactions(s.ctx, job.JobID, otherSeller)
	s.ErrorIs(err, apperrors.ErrForbidden)
}
