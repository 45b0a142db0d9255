package dto

import (
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// JobItemRequest is one priced line of a job. TotalPrice is optional; when given it must equal
// quantity x unitPrice.
type JobItemRequest struct {
	Name       string           `json:"name" binding:"required"`
	Quantity   int64            `json:"quantity" binding:"required,gt=0"`
	UnitPrice  decimal.Decimal  `json:"unitPrice" binding:"required"`
	TotalPrice *decimal.Decimal `json:"totalPrice"`
}

// BudgetRequest is the seller's accepted price range.
type BudgetRequest struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// PickupInfoRequest describes where the product is collected.
type PickupInfoRequest struct {
	CompanyName       string     `json:"companyName" binding:"required"`
	Phone             string     `json:"phone" binding:"required"`
	Address           string     `json:"address" binding:"required"`
	ScheduledDateTime *time.Time `json:"scheduledDateTime"`
}

// CreateJobRequest defines the data needed to create a new job.
type CreateJobRequest struct {
	CustomerID    *string            `json:"customerId"`
	Items         []JobItemRequest   `json:"items" binding:"required,min=1,dive"`
	Budget        BudgetRequest      `json:"budget"`
	FinalAmount   *decimal.Decimal   `json:"finalAmount"`
	ScheduledDate *time.Time         `json:"scheduledDate"`
	PickupInfo    *PickupInfoRequest `json:"pickupInfo"`
	IsInternal    bool               `json:"isInternal"`
}

// UpdateJobRequest patches non-status fields of a job. Version is the job version the
// caller read; a stale version is rejected.
type UpdateJobRequest struct {
	Version              int64              `json:"version" binding:"required,gt=0"`
	CustomerID           *string            `json:"customerId"`
	Items                []JobItemRequest   `json:"items" binding:"omitempty,min=1,dive"`
	Budget               *BudgetRequest     `json:"budget"`
	FinalAmount          *decimal.Decimal   `json:"finalAmount"`
	ScheduledDate        *time.Time         `json:"scheduledDate"`
	PickupInfo           *PickupInfoRequest `json:"pickupInfo"`
	CustomerSatisfaction *int               `json:"customerSatisfaction" binding:"omitempty,min=1,max=5"`
}

// TransitionJobRequest asks the state machine to move a job to Status. The transition is
// rejected if the job changed since Version was read. Internal callers acting as the system
// leave Version zero.
type TransitionJobRequest struct {
	Status       domain.JobStatus `json:"status" binding:"required,jobstatus"`
	Version      int64            `json:"version" binding:"required,gt=0"`
	ContractorID *string          `json:"contractorId"`
	Note         *string          `json:"note" binding:"omitempty,max=500"`
}

// ListJobsParams defines query parameters for listing jobs.
type ListJobsParams struct {
	As        string  `form:"as,default=seller" binding:"omitempty,oneof=seller contractor"`
	Limit     int     `form:"limit,default=20" binding:"omitempty,min=1,max=100"`
	NextToken *string `form:"nextToken"`
}

// JobResponse defines the data returned for a job.
type JobResponse struct {
	JobID                string                 `json:"jobId"`
	SellerID             string                 `json:"sellerId"`
	ContractorID         *string                `json:"contractorId,omitempty"`
	CustomerID           *string                `json:"customerId,omitempty"`
	Status               domain.JobStatus       `json:"status"`
	NextStatuses         []domain.JobStatus     `json:"nextStatuses"`
	Items                []domain.JobItem       `json:"items"`
	Budget               domain.Budget          `json:"budget"`
	FinalAmount          *decimal.Decimal       `json:"finalAmount,omitempty"`
	ScheduledDate        *time.Time             `json:"scheduledDate,omitempty"`
	PickupInfo           *domain.PickupInfo     `json:"pickupInfo,omitempty"`
	IsInternal           bool                   `json:"isInternal"`
	CustomerSatisfaction *int                   `json:"customerSatisfaction,omitempty"`
	ProgressHistory      []domain.ProgressEntry `json:"progressHistory"`
	CollaborationID      *string                `json:"collaborationId,omitempty"`
	CompletedAt          *time.Time             `json:"completedAt,omitempty"`
	SettlementDueAt      *time.Time             `json:"settlementDueAt,omitempty"`
	Dispute              *domain.Dispute        `json:"dispute,omitempty"`
	Version              int64                  `json:"version"`
	CreatedAt            time.Time              `json:"createdAt"`
	CreatedBy            string                 `json:"createdBy"`
	LastUpdatedAt        time.Time              `json:"lastUpdatedAt"`
	LastUpdatedBy        string                 `json:"lastUpdatedBy"`
}

// ListJobsResponse wraps a page of jobs.
type ListJobsResponse struct {
	Jobs      []JobResponse `json:"jobs"`
	NextToken *string       `json:"nextToken,omitempty"`
}

// ToJobItems converts request items into domain items, computing missing totals.
func ToJobItems(items []JobItemRequest) []domain.JobItem {
	out := make([]domain.JobItem, len(items))
	for i, item := range items {
		out[i] = domain.NewJobItem(item.Name, item.Quantity, item.UnitPrice)
		if item.TotalPrice != nil {
			out[i].TotalPrice = *item.TotalPrice
		}
	}
	return out
}

// ToPickupInfo converts the request form into the domain form.
func ToPickupInfo(p *PickupInfoRequest) *domain.PickupInfo {
	if p == nil {
		return nil
	}
	return &domain.PickupInfo{
		CompanyName:       p.CompanyName,
		Phone:             p.Phone,
		Address:           p.Address,
		ScheduledDateTime: p.ScheduledDateTime,
	}
}

// ToJobResponse converts a domain.Job to JobResponse DTO
func ToJobResponse(job *domain.Job) JobResponse {
	history := job.ProgressHistory
	if history == nil {
		history = []domain.ProgressEntry{}
	}
	next := domain.NextStatuses(job.Status)
	if next == nil {
		next = []domain.JobStatus{}
	}
	return JobResponse{
		JobID:                job.JobID,
		SellerID:             job.SellerID,
		ContractorID:         job.ContractorID,
		CustomerID:           job.CustomerID,
		Status:               job.Status,
		NextStatuses:         next,
		Items:                job.Items,
		Budget:               job.Budget,
		FinalAmount:          job.FinalAmount,
		ScheduledDate:        job.ScheduledDate,
		PickupInfo:           job.PickupInfo,
		IsInternal:           job.IsInternal,
		CustomerSatisfaction: job.CustomerSatisfaction,
		ProgressHistory:      history,
		CollaborationID:      job.CollaborationID,
		CompletedAt:          job.CompletedAt,
		SettlementDueAt:      job.SettlementDueAt(),
		Dispute:              job.Dispute,
		Version:              job.Version,
		CreatedAt:            job.CreatedAt,
		CreatedBy:            job.CreatedBy,
		LastUpdatedAt:        job.LastUpdatedAt,
		LastUpdatedBy:        job.LastUpdatedBy,
	}
}

// ToListJobResponse converts a slice of domain.Job to a slice of JobResponse DTOs
func ToListJobResponse(jobs []domain.Job) []JobResponse {
	res := make([]JobResponse, len(jobs))
	for i := range jobs {
		res[i] = ToJobResponse(&jobs[i])
	}
	return res
}
