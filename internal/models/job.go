package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JobItem is stored inside the jobs.items JSONB column.
type JobItem struct {
	Name       string          `json:"name"`
	Quantity   int64           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// PickupInfo is stored in the jobs.pickup_info JSONB column.
type PickupInfo struct {
	CompanyName       string     `json:"companyName"`
	Phone             string     `json:"phone"`
	Address           string     `json:"address"`
	ScheduledDateTime *time.Time `json:"scheduledDateTime,omitempty"`
}

// Dispute is stored in the jobs.dispute JSONB column.
type Dispute struct {
	Status     string     `json:"status"`
	RaisedBy   string     `json:"raisedBy"`
	Reason     string     `json:"reason"`
	RaisedAt   time.Time  `json:"raisedAt"`
	ResolvedBy *string    `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// Job represents a row of the jobs table.
type Job struct {
	JobID                string              `db:"job_id"`
	SellerID             string              `db:"seller_id"`
	ContractorID         *string             `db:"contractor_id"`
	CustomerID           *string             `db:"customer_id"`
	Status               string              `db:"status"`
	Items                []JobItem           `db:"items"`
	BudgetMin            decimal.Decimal     `db:"budget_min"`
	BudgetMax            decimal.Decimal     `db:"budget_max"`
	FinalAmount          decimal.NullDecimal `db:"final_amount"`
	ScheduledDate        *time.Time          `db:"scheduled_date"`
	PickupInfo           *PickupInfo         `db:"pickup_info"`
	IsInternal           bool                `db:"is_internal"`
	CustomerSatisfaction *int32              `db:"customer_satisfaction"`
	CollaborationID      *string             `db:"collaboration_id"`
	CompletedAt          *time.Time          `db:"completed_at"`
	Dispute              *Dispute            `db:"dispute"`
	Version              int64               `db:"version"`
	AuditFields
}

// JobProgress is one row of the append-only job_progress table.
type JobProgress struct {
	JobID        string    `db:"job_id"`
	Seq          int64     `db:"seq"`
	Status       string    `db:"status"`
	OccurredAt   time.Time `db:"occurred_at"`
	ContractorID *string   `db:"contractor_id"`
	ActorID      string    `db:"actor_id"`
	Note         *string   `db:"note"`
}
