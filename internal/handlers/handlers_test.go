package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	portssvc "github.com/SscSPs/curtain_escrow_app/internal/core/ports/services"
	"github.com/SscSPs/curtain_escrow_app/internal/dto"
	"github.com/SscSPs/curtain_escrow_app/internal/handlers"
	"github.com/SscSPs/curtain_escrow_app/internal/middleware"
	"github.com/SscSPs/curtain_escrow_app/internal/platform/config"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

const (
	testSecret = "test-secret-key-that-is-long-enough"
	testIssuer = "escrow-test"
)

var (
	seller     = domain.Actor{ID: "seller-1", Role: domain.RoleSeller}
	contractor = domain.Actor{ID: "contractor-1", Role: domain.RoleContractor}
	admin      = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	system     = domain.SystemActor()
)

type HandlerTestSuite struct {
	suite.Suite
	router            *gin.Engine
	mockJob           *MockJobService
	mockLedger        *MockLedgerService
	mockEscrow        *MockEscrowService
	mockCollaboration *MockCollaborationService
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func (suite *HandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.router = gin.New()

	suite.mockJob = new(MockJobService)
	suite.mockLedger = new(MockLedgerService)
	suite.mockEscrow = new(MockEscrowService)
	suite.mockCollaboration = new(MockCollaborationService)

	cfg := &config.Config{JWTSecret: testSecret, JWTIssuer: testIssuer, IsProduction: true}
	handlers.RegisterRoutes(suite.router, cfg, &portssvc.ServiceContainer{
		Job:           suite.mockJob,
		Ledger:        suite.mockLedger,
		Escrow:        suite.mockEscrow,
		Collaboration: suite.mockCollaboration,
	})
}

func (suite *HandlerTestSuite) TearDownTest() {
	suite.mockJob.AssertExpectations(suite.T())
	suite.mockLedger.AssertExpectations(suite.T())
	suite.mockEscrow.AssertExpectations(suite.T())
	suite.mockCollaboration.AssertExpectations(suite.T())
}

// do sends a request as actor. A nil actor sends no Authorization header.
func (suite *HandlerTestSuite) do(method, path string, body any, actor *domain.Actor) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	suite.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		token, err := middleware.NewActorToken(testSecret, testIssuer, *actor, time.Hour)
		suite.Require().NoError(err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *HandlerTestSuite) errorBody(w *httptest.ResponseRecorder) string {
	var body map[string]string
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func pendingJob() *domain.Job {
	now := time.Now().UTC()
	amount := decimal.NewFromInt(100000)
	return &domain.Job{
		JobID:       "job-1",
		SellerID:    seller.ID,
		Status:      domain.JobStatusPending,
		Items:       []domain.JobItem{domain.NewJobItem("blackout curtain", 2, decimal.NewFromInt(50000))},
		FinalAmount: &amount,
		Version:     1,
		AuditFields: domain.NewAuditFields(seller.ID, now),
	}
}

func (suite *HandlerTestSuite) TestHealth_IsPublic() {
	w := suite.do(http.MethodGet, "/health", nil, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Equal("OK", w.Body.String())
}

func (suite *HandlerTestSuite) TestMissingToken_Unauthorized() {
	w := suite.do(http.MethodGet, "/api/v1/jobs/job-1", nil, nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlerTestSuite) TestTokenFromOtherIssuer_Unauthorized() {
	token, err := middleware.NewActorToken(testSecret, "someone-else", seller, time.Hour)
	suite.Require().NoError(err)
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/jobs/job-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlerTestSuite) TestCreateJob_Success() {
	job := pendingJob()
	suite.mockJob.On("CreateJob", mock.Anything,
		mock.MatchedBy(func(req dto.CreateJobRequest) bool {
			return len(req.Items) == 1 && req.Items[0].Quantity == 2
		}),
		seller,
	).Return(job, nil).Once()

	body := map[string]any{
		"items": []map[string]any{{"name": "blackout curtain", "quantity": 2, "unitPrice": 50000}},
	}
	w := suite.do(http.MethodPost, "/api/v1/jobs", body, &seller)

	suite.Equal(http.StatusCreated, w.Code)
	var resp dto.JobResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal("job-1", resp.JobID)
	suite.Equal(domain.JobStatusPending, resp.Status)
	suite.Contains(resp.NextStatuses, domain.JobStatusAssigned)
}

func (suite *HandlerTestSuite) TestCreateJob_InvalidBody() {
	w := suite.do(http.MethodPost, "/api/v1/jobs", map[string]any{"items": []any{}}, &seller)
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.mockJob.AssertNotCalled(suite.T(), "CreateJob", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *HandlerTestSuite) TestCreateJob_Forbidden() {
	suite.mockJob.On("CreateJob", mock.Anything, mock.Anything, contractor).
		Return(nil, fmt.Errorf("%w: only sellers create jobs", apperrors.ErrForbidden)).Once()

	body := map[string]any{
		"items": []map[string]any{{"name": "sheer", "quantity": 1, "unitPrice": 1000}},
	}
	w := suite.do(http.MethodPost, "/api/v1/jobs", body, &contractor)
	suite.Equal(http.StatusForbidden, w.Code)
}

func (suite *HandlerTestSuite) TestListJobs_PassesQuery() {
	next := "cursor-2"
	suite.mockJob.On("ListJobs", mock.Anything,
		mock.MatchedBy(func(p dto.ListJobsParams) bool {
			return p.As == "contractor" && p.Limit == 5 && p.NextToken != nil && *p.NextToken == "cursor-1"
		}),
		contractor,
	).Return([]domain.Job{*pendingJob()}, &next, nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/jobs?as=contractor&limit=5&nextToken=cursor-1", nil, &contractor)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.ListJobsResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Len(resp.Jobs, 1)
	suite.Require().NotNil(resp.NextToken)
	suite.Equal(next, *resp.NextToken)
}

func (suite *HandlerTestSuite) TestListJobs_RejectsUnknownView() {
	w := suite.do(http.MethodGet, "/api/v1/jobs?as=admin", nil, &seller)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlerTestSuite) TestGetJob_NotFound() {
	suite.mockJob.On("GetJob", mock.Anything, "missing", seller).
		Return(nil, apperrors.NewNotFoundError("job", "missing")).Once()

	w := suite.do(http.MethodGet, "/api/v1/jobs/missing", nil, &seller)
	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal("job missing not found", suite.errorBody(w))
}

func (suite *HandlerTestSuite) TestUpdateJob_StaleVersion() {
	suite.mockJob.On("UpdateJob", mock.Anything, "job-1",
		mock.MatchedBy(func(req dto.UpdateJobRequest) bool { return req.Version == 3 }),
		seller,
	).Return(nil, apperrors.NewConflictError("job", "job-1", 3)).Once()

	w := suite.do(http.MethodPatch, "/api/v1/jobs/job-1", map[string]any{"version": 3}, &seller)
	suite.Equal(http.StatusConflict, w.Code)
}

func (suite *HandlerTestSuite) TestTransition_UnknownStatusRejectedByBinding() {
	w := suite.do(http.MethodPost, "/api/v1/jobs/job-1/transitions", map[string]any{"status": "teleported"}, &contractor)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlerTestSuite) TestTransition_RequiresVersion() {
	w := suite.do(http.MethodPost, "/api/v1/jobs/job-1/transitions", map[string]any{"status": "assigned"}, &contractor)
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.mockJob.AssertNotCalled(suite.T(), "TransitionJob", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *HandlerTestSuite) TestTransition_Success() {
	job := pendingJob()
	job.Status = domain.JobStatusAssigned
	job.ContractorID = &contractor.ID
	job.Version = 2
	suite.mockJob.On("TransitionJob", mock.Anything, "job-1",
		dto.TransitionJobRequest{Status: domain.JobStatusAssigned, Version: 1},
		contractor,
	).Return(job, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/jobs/job-1/transitions", map[string]any{"status": "assigned", "version": 1}, &contractor)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.JobResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(domain.JobStatusAssigned, resp.Status)
	suite.Equal(int64(2), resp.Version)
}

func (suite *HandlerTestSuite) TestTransition_ErrorMapping() {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"illegal", &apperrors.IllegalTransitionError{From: "completed", To: "assigned"}, http.StatusConflict},
		{"lost race", apperrors.NewConflictError("job", "job-1", 1), http.StatusConflict},
		{"seller broke", &apperrors.InsufficientBalanceError{AccountID: seller.ID, Available: decimal.Zero, Required: decimal.NewFromInt(100000)}, http.StatusPaymentRequired},
		{"split job", &apperrors.CollaborationLockedError{CollaborationID: "c-1", Status: "active"}, http.StatusLocked},
		{"wrong actor", fmt.Errorf("%w: not yours", apperrors.ErrForbidden), http.StatusForbidden},
		{"boom", fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		suite.Run(tc.name, func() {
			suite.mockJob.On("TransitionJob", mock.Anything, "job-1", mock.Anything, contractor).
				Return(nil, tc.err).Once()

			w := suite.do(http.MethodPost, "/api/v1/jobs/job-1/transitions", map[string]any{"status": "assigned", "version": 1}, &contractor)
			suite.Equal(tc.status, w.Code)
			if tc.status == http.StatusInternalServerError {
				suite.Equal("Failed to transition job", suite.errorBody(w))
			}
		})
	}
}

func (suite *HandlerTestSuite) TestSettle_RequiresOperatorRole() {
	w := suite.do(http.MethodPost, "/api/v1/jobs/job-1/settle", nil, &contractor)
	suite.Equal(http.StatusForbidden, w.Code)
	suite.mockEscrow.AssertNotCalled(suite.T(), "TrySettle", mock.Anything, mock.Anything)
}

func (suite *HandlerTestSuite) TestSettle_Success() {
	jobID := "job-1"
	suite.mockEscrow.On("TrySettle", mock.Anything, jobID).Return(&domain.SettlementResult{
		JobID:   jobID,
		Outcome: domain.SettlementOutcomeSettled,
		Transactions: []domain.Transaction{{
			TransactionID: "tx-1",
			AccountID:     contractor.ID,
			Type:          domain.TransactionTypePayment,
			Amount:        decimal.NewFromInt(100000),
			Status:        domain.TransactionStatusCompleted,
			JobID:         &jobID,
		}},
	}, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/jobs/job-1/settle", nil, &system)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.SettlementResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(domain.SettlementOutcomeSettled, resp.Outcome)
	suite.Require().Len(resp.Transactions, 1)
	suite.Equal(domain.TransactionStatusCompleted, resp.Transactions[0].Status)
}

func (suite *HandlerTestSuite) TestSettle_NotDueOrDisputed() {
	suite.mockEscrow.On("TrySettle", mock.Anything, "early").
		Return(nil, fmt.Errorf("%w: due in 47h", apperrors.ErrSettlementNotDue)).Once()
	suite.mockEscrow.On("TrySettle", mock.Anything, "disputed").
		Return(nil, apperrors.ErrDisputeOpen).Once()

	suite.Equal(http.StatusConflict, suite.do(http.MethodPost, "/api/v1/jobs/early/settle", nil, &admin).Code)
	suite.Equal(http.StatusConflict, suite.do(http.MethodPost, "/api/v1/jobs/disputed/settle", nil, &admin).Code)
}

func (suite *HandlerTestSuite) TestFileDispute() {
	job := pendingJob()
	job.Status = domain.JobStatusCompleted
	job.Dispute = &domain.Dispute{Status: domain.DisputeStatusOpen, Reason: "torn fabric", RaisedBy: seller.ID}
	suite.mockEscrow.On("FileDispute", mock.Anything, "job-1", dto.FileDisputeRequest{Reason: "torn fabric"}, seller).
		Return(job, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/jobs/job-1/dispute", map[string]any{"reason": "torn fabric"}, &seller)
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *HandlerTestSuite) TestResolveDispute_AdminOnly() {
	w := suite.do(http.MethodPost, "/api/v1/jobs/job-1/dispute/resolve", map[string]any{"decision": "refund"}, &seller)
	suite.Equal(http.StatusForbidden, w.Code)

	suite.mockEscrow.On("ResolveDispute", mock.Anything, "job-1", dto.ResolveDisputeRequest{Decision: dto.DisputeDecisionRefund}, admin).
		Return(&domain.SettlementResult{JobID: "job-1", Outcome: domain.SettlementOutcomeRefunded}, nil).Once()

	w = suite.do(http.MethodPost, "/api/v1/jobs/job-1/dispute/resolve", map[string]any{"decision": "refund"}, &admin)
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *HandlerTestSuite) TestRecordCharge_OperatorsOnly() {
	body := map[string]any{"accountId": seller.ID, "amount": 100000, "externalRef": "pg-1", "status": "completed"}

	w := suite.do(http.MethodPost, "/api/v1/ledger/charges", body, &seller)
	suite.Equal(http.StatusForbidden, w.Code)

	suite.mockLedger.On("RecordCharge", mock.Anything,
		mock.MatchedBy(func(req dto.RecordChargeRequest) bool {
			return req.AccountID == seller.ID && req.Amount.Equal(decimal.NewFromInt(100000)) && req.ExternalRef == "pg-1"
		}),
	).Return(&domain.Transaction{
		TransactionID: "tx-charge",
		AccountID:     seller.ID,
		Type:          domain.TransactionTypeCharge,
		Amount:        decimal.NewFromInt(100000),
		Status:        domain.TransactionStatusCompleted,
	}, nil).Once()

	w = suite.do(http.MethodPost, "/api/v1/ledger/charges", body, &system)
	suite.Equal(http.StatusCreated, w.Code)
}

func (suite *HandlerTestSuite) TestWithdrawal_InsufficientBalance() {
	suite.mockLedger.On("RequestWithdrawal", mock.Anything, mock.Anything, contractor).
		Return(nil, &apperrors.InsufficientBalanceError{AccountID: contractor.ID, Available: decimal.NewFromInt(10), Required: decimal.NewFromInt(50)}).Once()

	w := suite.do(http.MethodPost, "/api/v1/ledger/withdrawals", map[string]any{"amount": 50}, &contractor)
	suite.Equal(http.StatusPaymentRequired, w.Code)
}

func (suite *HandlerTestSuite) TestGetAccount() {
	suite.mockLedger.On("GetBalance", mock.Anything, seller.ID, seller).Return(&domain.LedgerAccount{
		AccountID: seller.ID,
		OwnerRole: domain.OwnerRoleSeller,
		Balance:   decimal.NewFromInt(250),
		Version:   4,
	}, nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/ledger/accounts/"+seller.ID, nil, &seller)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.LedgerAccountResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.True(resp.Balance.Equal(decimal.NewFromInt(250)))
}

func (suite *HandlerTestSuite) TestReconcileAccount_ReportsDrift() {
	suite.mockLedger.On("ReconcileAccount", mock.Anything, seller.ID, admin).Return(&domain.BalanceReconciliation{
		AccountID:       seller.ID,
		CachedBalance:   decimal.NewFromInt(100),
		ComputedBalance: decimal.NewFromInt(90),
	}, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/ledger/accounts/"+seller.ID+"/reconcile", nil, &admin)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.ReconcileAccountResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.False(resp.Consistent)
}

func (suite *HandlerTestSuite) TestSettleTransaction_RejectsUnknownOutcome() {
	w := suite.do(http.MethodPost, "/api/v1/ledger/transactions/tx-1/settle", map[string]any{"outcome": "pending"}, &admin)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlerTestSuite) TestSettleTransaction_JobPaymentForbidden() {
	suite.mockLedger.On("SettleTransaction", mock.Anything, "tx-payment", domain.TransactionStatusCancelled).
		Return(nil, fmt.Errorf("%w: payment transaction tx-payment is settled through its job", apperrors.ErrForbidden)).Once()

	w := suite.do(http.MethodPost, "/api/v1/ledger/transactions/tx-payment/settle", map[string]any{"outcome": "cancelled"}, &admin)

	suite.Equal(http.StatusForbidden, w.Code)
	suite.Contains(suite.errorBody(w), "settled through its job")
}

func (suite *HandlerTestSuite) TestSettleTransaction_Withdrawal() {
	now := time.Now().UTC()
	suite.mockLedger.On("SettleTransaction", mock.Anything, "tx-w", domain.TransactionStatusCompleted).Return(&domain.Transaction{
		TransactionID: "tx-w",
		AccountID:     contractor.ID,
		Type:          domain.TransactionTypeWithdrawal,
		Amount:        decimal.NewFromInt(-400),
		Status:        domain.TransactionStatusCompleted,
		CreatedAt:     now,
		SettledAt:     &now,
	}, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/ledger/transactions/tx-w/settle", map[string]any{"outcome": "completed"}, &system)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.TransactionResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(domain.TransactionStatusCompleted, resp.Status)
}

func (suite *HandlerTestSuite) TestCreateCollaboration_AmountMismatch() {
	suite.mockCollaboration.On("CreateCollaboration", mock.Anything, mock.Anything, contractor).
		Return(nil, &apperrors.AmountMismatchError{Expected: decimal.NewFromInt(100000), Actual: decimal.NewFromInt(110000)}).Once()

	body := map[string]any{
		"parentJobId": "job-1",
		"tasks": []map[string]any{
			{"description": "living room", "amount": 70000},
			{"description": "bedroom", "amount": 40000},
		},
	}
	w := suite.do(http.MethodPost, "/api/v1/collaborations", body, &contractor)
	suite.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (suite *HandlerTestSuite) TestCreateCollaboration_NeedsTwoTasks() {
	body := map[string]any{
		"parentJobId": "job-1",
		"tasks":       []map[string]any{{"description": "everything", "amount": 100000}},
	}
	w := suite.do(http.MethodPost, "/api/v1/collaborations", body, &contractor)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlerTestSuite) TestAcceptTask() {
	collab := &domain.CollaborationRequest{
		CollaborationID: "c-1",
		ParentJobID:     "job-1",
		RequesterID:     contractor.ID,
		Status:          domain.CollaborationStatusActive,
		Version:         3,
	}
	helper := domain.Actor{ID: "contractor-2", Role: domain.RoleContractor}
	suite.mockCollaboration.On("AcceptTask", mock.Anything, "c-1", "t-2", helper).Return(collab, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/collaborations/c-1/tasks/t-2/accept", nil, &helper)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.CollaborationResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.Equal(domain.CollaborationStatusActive, resp.Status)
}

func (suite *HandlerTestSuite) TestCancelCollaboration_Locked() {
	suite.mockCollaboration.On("CancelCollaboration", mock.Anything, "c-1", contractor).
		Return(nil, &apperrors.CollaborationLockedError{CollaborationID: "c-1", Status: "active"}).Once()

	w := suite.do(http.MethodPost, "/api/v1/collaborations/c-1/cancel", nil, &contractor)
	suite.Equal(http.StatusLocked, w.Code)
}
