package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
	"github.com/shopspring/decimal"
)

// JobStatus is the lifecycle status of an installation job.
type JobStatus string

const (
	JobStatusPending             JobStatus = "pending"
	JobStatusAssigned            JobStatus = "assigned"
	JobStatusProductPreparing    JobStatus = "product_preparing"
	JobStatusProductReady        JobStatus = "product_ready"
	JobStatusPickupCompleted     JobStatus = "pickup_completed"
	JobStatusInProgress          JobStatus = "in_progress"
	JobStatusCompleted           JobStatus = "completed"
	JobStatusCancelled           JobStatus = "cancelled"
	JobStatusRescheduleRequested JobStatus = "reschedule_requested"
	JobStatusProductNotReady     JobStatus = "product_not_ready"
	JobStatusCustomerAbsent      JobStatus = "customer_absent"
)

// AllJobStatuses lists every status in lifecycle order.
var AllJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusAssigned,
	JobStatusProductPreparing,
	JobStatusProductReady,
	JobStatusPickupCompleted,
	JobStatusInProgress,
	JobStatusCompleted,
	JobStatusCancelled,
	JobStatusRescheduleRequested,
	JobStatusProductNotReady,
	JobStatusCustomerAbsent,
}

// IsValid reports whether s is a known status.
func (s JobStatus) IsValid() bool {
	for _, known := range AllJobStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

// DisputeWindow is how long after completion either party may dispute before payment is released.
const DisputeWindow = 48 * time.Hour

// JobItem is one priced line of a job. TotalPrice always equals Quantity * UnitPrice.
type JobItem struct {
	Name       string          `json:"name"`
	Quantity   int64           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// NewJobItem builds an item, computing TotalPrice.
func NewJobItem(name string, quantity int64, unitPrice decimal.Decimal) JobItem {
	return JobItem{
		Name:       name,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		TotalPrice: unitPrice.Mul(decimal.NewFromInt(quantity)),
	}
}

// Validate checks the item fields and the price invariant.
func (i JobItem) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("%w: item name is required", apperrors.ErrValidation)
	}
	if i.Quantity <= 0 {
		return fmt.Errorf("%w: item %q quantity must be positive", apperrors.ErrValidation, i.Name)
	}
	if i.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: item %q unit price cannot be negative", apperrors.ErrValidation, i.Name)
	}
	expected := i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
	if !i.TotalPrice.Equal(expected) {
		return fmt.Errorf("%w: item %q total price %s does not equal %d x %s", apperrors.ErrValidation, i.Name, i.TotalPrice, i.Quantity, i.UnitPrice)
	}
	return nil
}

// ValidateItems validates a non-empty list of items.
func ValidateItems(items []JobItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: a job needs at least one item", apperrors.ErrValidation)
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ItemsTotal sums the item totals.
func ItemsTotal(items []JobItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalPrice)
	}
	return total
}

// Budget is the seller's accepted price range.
type Budget struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// Validate checks that the range is non-negative and ordered.
func (b Budget) Validate() error {
	if b.Min.IsNegative() || b.Max.IsNegative() {
		return fmt.Errorf("%w: budget cannot be negative", apperrors.ErrValidation)
	}
	if b.Min.GreaterThan(b.Max) {
		return fmt.Errorf("%w: budget min %s exceeds max %s", apperrors.ErrValidation, b.Min, b.Max)
	}
	return nil
}

// Contains reports whether amount lies inside the range. A zero range accepts anything.
func (b Budget) Contains(amount decimal.Decimal) bool {
	if b.Min.IsZero() && b.Max.IsZero() {
		return true
	}
	return !amount.LessThan(b.Min) && !amount.GreaterThan(b.Max)
}

// PickupInfo tells the contractor where to collect the product.
type PickupInfo struct {
	CompanyName       string     `json:"companyName"`
	Phone             string     `json:"phone"`
	Address           string     `json:"address"`
	ScheduledDateTime *time.Time `json:"scheduledDateTime,omitempty"`
}

// ProgressEntry is one append-only record of a status change.
type ProgressEntry struct {
	Status       JobStatus `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	ContractorID *string   `json:"contractorId,omitempty"`
	ActorID      string    `json:"actorId"`
	Note         *string   `json:"note,omitempty"`
}

// DisputeStatus tracks a dispute raised inside the dispute window.
type DisputeStatus string

const (
	DisputeStatusOpen           DisputeStatus = "open"
	DisputeStatusResolvedRefund DisputeStatus = "resolved_refund"
	DisputeStatusResolvedSettle DisputeStatus = "resolved_settle"
)

// Dispute is raised by the seller or contractor after completion.
type Dispute struct {
	Status     DisputeStatus `json:"status"`
	RaisedBy   string        `json:"raisedBy"`
	Reason     string        `json:"reason"`
	RaisedAt   time.Time     `json:"raisedAt"`
	ResolvedBy *string       `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time    `json:"resolvedAt,omitempty"`
}

// IsOpen reports whether the dispute still blocks settlement.
func (d *Dispute) IsOpen() bool {
	return d != nil && d.Status == DisputeStatusOpen
}

// Job is a curtain-installation job owned by a seller.
type Job struct {
	JobID                string           `json:"jobId"`
	SellerID             string           `json:"sellerId"`
	ContractorID         *string          `json:"contractorId,omitempty"`
	CustomerID           *string          `json:"customerId,omitempty"`
	Status               JobStatus        `json:"status"`
	Items                []JobItem        `json:"items"`
	Budget               Budget           `json:"budget"`
	FinalAmount          *decimal.Decimal `json:"finalAmount,omitempty"`
	ScheduledDate        *time.Time       `json:"scheduledDate,omitempty"`
	PickupInfo           *PickupInfo      `json:"pickupInfo,omitempty"`
	IsInternal           bool             `json:"isInternal"`
	CustomerSatisfaction *int             `json:"customerSatisfaction,omitempty"`
	ProgressHistory      []ProgressEntry  `json:"progressHistory"`
	CollaborationID      *string          `json:"collaborationId,omitempty"`
	CompletedAt          *time.Time       `json:"completedAt,omitempty"`
	Dispute              *Dispute         `json:"dispute,omitempty"`
	Version              int64            `json:"version"`
	AuditFields
}

// IsSeller reports whether actorID owns the job.
func (j Job) IsSeller(actorID string) bool {
	return j.SellerID == actorID
}

// IsContractor reports whether actorID is the assigned contractor.
func (j Job) IsContractor(actorID string) bool {
	return j.ContractorID != nil && *j.ContractorID == actorID
}

// EscrowAmount is the amount held at assignment: the confirmed final amount or, before
// confirmation, the items total.
func (j Job) EscrowAmount() decimal.Decimal {
	if j.FinalAmount != nil {
		return *j.FinalAmount
	}
	return ItemsTotal(j.Items)
}

// SettlementDueAt is the end of the dispute window, or nil while the job is not completed.
func (j Job) SettlementDueAt() *time.Time {
	if j.CompletedAt == nil {
		return nil
	}
	due := j.CompletedAt.Add(DisputeWindow)
	return &due
}

// InDisputeWindow reports whether now is inside the post-completion dispute window.
func (j Job) InDisputeWindow(now time.Time) bool {
	due := j.SettlementDueAt()
	return due != nil && now.Before(*due)
}

// Validate checks the write-time invariants of a job.
func (j Job) Validate() error {
	if j.SellerID == "" {
		return fmt.Errorf("%w: seller is required", apperrors.ErrValidation)
	}
	if err := ValidateItems(j.Items); err != nil {
		return err
	}
	if err := j.Budget.Validate(); err != nil {
		return err
	}
	if j.FinalAmount != nil {
		if !j.FinalAmount.IsPositive() {
			return fmt.Errorf("%w: final amount must be positive", apperrors.ErrValidation)
		}
		if !j.Budget.Contains(*j.FinalAmount) {
			return fmt.Errorf("%w: final amount %s is outside the budget %s-%s", apperrors.ErrValidation, j.FinalAmount, j.Budget.Min, j.Budget.Max)
		}
	}
	if j.CustomerSatisfaction != nil && (*j.CustomerSatisfaction < 1 || *j.CustomerSatisfaction > 5) {
		return fmt.Errorf("%w: customer satisfaction must be between 1 and 5", apperrors.ErrValidation)
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (j Job) Clone() Job {
	c := j
	c.Items = append([]JobItem(nil), j.Items...)
	c.ProgressHistory = append([]ProgressEntry(nil), j.ProgressHistory...)
	if j.ContractorID != nil {
		c.ContractorID = stringPtr(*j.ContractorID)
	}
	if j.CustomerID != nil {
		c.CustomerID = stringPtr(*j.CustomerID)
	}
	if j.FinalAmount != nil {
		amount := *j.FinalAmount
		c.FinalAmount = &amount
	}
	if j.ScheduledDate != nil {
		c.ScheduledDate = timePtr(*j.ScheduledDate)
	}
	if j.PickupInfo != nil {
		p := *j.PickupInfo
		c.PickupInfo = &p
	}
	if j.CustomerSatisfaction != nil {
		v := *j.CustomerSatisfaction
		c.CustomerSatisfaction = &v
	}
	if j.CollaborationID != nil {
		c.CollaborationID = stringPtr(*j.CollaborationID)
	}
	if j.CompletedAt != nil {
		c.CompletedAt = timePtr(*j.CompletedAt)
	}
	if j.Dispute != nil {
		d := *j.Dispute
		c.Dispute = &d
	}
	return c
}
