package services_test

import (
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	"github.com/SscSPs/curtain_escrow_app/internal/dto"
)

func (s *EscrowTestSuite) TestCreateJobOnlyBySellers() {
	_, err := s.svc.Job.CreateJob(s.ctx, blindJobRequest(), contractorX)
	s.ErrorIs(err, apperrors.ErrForbidden)

	req := blindJobRequest()
	wrong := points(90000)
	req.Items[0].TotalPrice = &wrong
	_, err = s.svc.Job.CreateJob(s.ctx, req, seller)
	s.ErrorIs(err, apperrors.ErrValidation)

	job := s.createJob()
	s.Equal(domain.JobStatusPending, job.Status)
	s.Equal(int64(1), job.Version)
	s.Require().Len(job.ProgressHistory, 1)
	s.Equal(seller.ID, job.ProgressHistory[0].ActorID)
}

func (s *EscrowTestSuite) TestUpdateJobChecksVersion() {
	job := s.createJob()
	final := points(95000)

	updated, err := s.svc.Job.UpdateJob(s.ctx, job.JobID, dto.UpdateJobRequest{Version: job.Version, FinalAmount: &final}, seller)
	s.Require().NoError(err)
	s.Equal(int64(2), updated.Version)
	s.True(updated.FinalAmount.Equal(final))

	_, err = s.svc.Job.UpdateJob(s.ctx, job.JobID, dto.UpdateJobRequest{Version: job.Version, FinalAmount: &final}, seller)
	var conflict *apperrors.ConflictError
	s.Require().ErrorAs(err, &conflict)
	s.Equal(job.Version, conflict.ExpectedVersion)

	_, err = s.svc.Job.UpdateJob(s.ctx, job.JobID, dto.UpdateJobRequest{Version: updated.Version, FinalAmount: &final}, otherSeller)
	s.ErrorIs(err, apperrors.ErrForbidden)

	outside := points(150000)
	_, err = s.svc.Job.UpdateJob(s.ctx, job.JobID, dto.UpdateJobRequest{Version: updated.Version, FinalAmount: &outside}, seller)
	s.ErrorIs(err, apperrors.ErrValidation)
}

func (s *EscrowTestSuite) TestFinalAmountDrivesEscrow() {
	s.fund(seller.ID, 100000)
	job := s.createJob()
	final := points(90000)
	_, err := s.svc.Job.UpdateJob(s.ctx, job.JobID, dto.UpdateJobRequest{Version: job.Version, FinalAmount: &final}, seller)
	s.Require().NoError(err)

	assigned := s.assign(job.JobID, contractorX)
	s.requireBalance(seller.ID, 10000)

	_, err = s.svc.Job.UpdateJob(s.ctx, job.JobID, dto.UpdateJobRequest{Version: assigned.Version, FinalAmount: &final}, seller)
	s.ErrorIs(err, apperrors.ErrValidation, "pricing is fixed once escrow is held")
}

func (s *EscrowTestSuite) TestTransitionRules() {
	s.fund(seller.ID, 100000)
	job := s.createJob()

	_, err := s.transition(job.JobID, domain.JobStatusCompleted, seller)
	s.ErrorIs(err, apperrors.ErrIllegalTransition)

	_, err = s.transition(job.JobID, domain.JobStatusCancelled, otherSeller)
	s.ErrorIs(err, apperrors.ErrForbidden)

	_, err = s.transition(job.JobID, domain.JobStatus("teleported"), seller)
	s.ErrorIs(err, apperrors.ErrValidation)

	_, err = s.svc.Job.TransitionJob(s.ctx, job.JobID, dto.TransitionJobRequest{
		Status: domain.JobStatusAssigned, ContractorID: &contractorX.ID, Version: 7,
	}, seller)
	s.ErrorIs(err, apperrors.ErrConflict)

	s.assign(job.JobID, contractorX)
	_, err = s.transition(job.JobID, domain.JobStatusProductPreparing, contractorY)
	s.ErrorIs(err, apperrors.ErrForbidden)

	s.mustTransition(job.JobID, domain.JobStatusRescheduleRequested, contractorX)
	s.mustTransition(job.JobID, domain.JobStatusAssigned, seller)
	s.Len(s.jobTransactions(job.JobID, domain.TransactionTypeEscrow), 1, "re-entering assigned holds nothing new")
	s.requireBalance(seller.ID, 0)

	stored, err := s.repos.JobRepo.FindJobByID(s.ctx, job.JobID)
	s.Require().NoError(err)
	statuses := make([]domain.JobStatus, 0, len(stored.ProgressHistory))
	for _, entry := range stored.ProgressHistory {
		statuses = append(statuses, entry.Status)
	}
	s.Equal([]domain.JobStatus{
		domain.JobStatusPending,
		domain.JobStatusAssigned,
		domain.JobStatusRescheduleRequested,
		domain.JobStatusAssigned,
	}, statuses)
}

func (s *EscrowTestSuite) TestJobVisibility() {
	job := s.createJob()

	_, err := s.svc.Job.GetJob(s.ctx, job.JobID, contractorY)
	s.NoError(err, "pending marketplace jobs are visible to contractors")
	_, err = s.svc.Job.GetJob(s.ctx, job.JobID, otherSeller)
	s.ErrorIs(err, apperrors.ErrForbidden)
	_, err = s.svc.Job.GetJob(s.ctx, "missing", seller)
	s.ErrorIs(err, apperrors.ErrNotFound)

	internal := blindJobRequest()
	internal.IsInternal = true
	hidden, err := s.svc.Job.CreateJob(s.ctx, internal, seller)
	s.Require().NoError(err)
	_, err = s.svc.Job.GetJob(s.ctx, hidden.JobID, contractorY)
	s.ErrorIs(err, apperrors.ErrForbidden)
	_, err = s.transition(hidden.JobID, domain.JobStatusAssigned, contractorY)
	s.ErrorIs(err, apperrors.ErrForbidden)
}

func (s *EscrowTestSuite) TestListJobsPages() {
	for i := 0; i < 3; i++ {
		s.createJob()
		s.clock.Advance(time.Second)
	}

	first, next, err := s.svc.Job.ListJobs(s.ctx, dto.ListJobsParams{Limit: 2}, seller)
	s.Require().NoError(err)
	s.Len(first, 2)
	s.Require().NotNil(next)

	rest, next, err := s.svc.Job.ListJobs(s.ctx, dto.ListJobsParams{Limit: 2, NextToken: next}, seller)
	s.Require().NoError(err)
	s.Len(rest, 1)
	s.Nil(next)

	mine, _, err := s.svc.Job.ListJobs(s.ctx, dto.ListJobsParams{As: "contractor"}, contractorX)
	s.Require().NoError(err)
	s.Empty(mine)
}
