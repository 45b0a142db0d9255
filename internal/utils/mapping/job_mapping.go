package mapping

import (
	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	"github.com/SscSPs/curtain_escrow_app/internal/models"
	"github.com/shopspring/decimal"
)

// ToModelJob converts a domain Job to a model Job. The progress history is stored separately.
func ToModelJob(d domain.Job) models.Job {
	m := models.Job{
		JobID:           d.JobID,
		SellerID:        d.SellerID,
		ContractorID:    d.ContractorID,
		CustomerID:      d.CustomerID,
		Status:          string(d.Status),
		Items:           make([]models.JobItem, len(d.Items)),
		BudgetMin:       d.Budget.Min,
		BudgetMax:       d.Budget.Max,
		ScheduledDate:   d.ScheduledDate,
		IsInternal:      d.IsInternal,
		CollaborationID: d.CollaborationID,
		CompletedAt:     d.CompletedAt,
		Version:         d.Version,
		AuditFields:     ToModelAuditFields(d.AuditFields),
	}
	for i, item := range d.Items {
		m.Items[i] = models.JobItem(item)
	}
	if d.FinalAmount != nil {
		m.FinalAmount = decimal.NullDecimal{Decimal: *d.FinalAmount, Valid: true}
	}
	if d.PickupInfo != nil {
		p := models.PickupInfo(*d.PickupInfo)
		m.PickupInfo = &p
	}
	if d.CustomerSatisfaction != nil {
		v := int32(*d.CustomerSatisfaction)
		m.CustomerSatisfaction = &v
	}
	if d.Dispute != nil {
		m.Dispute = &models.Dispute{
			Status:     string(d.Dispute.Status),
			RaisedBy:   d.Dispute.RaisedBy,
			Reason:     d.Dispute.Reason,
			RaisedAt:   d.Dispute.RaisedAt,
			ResolvedBy: d.Dispute.ResolvedBy,
			ResolvedAt: d.Dispute.ResolvedAt,
		}
	}
	return m
}

// ToDomainJob converts a model Job and its progress rows to a domain Job
func ToDomainJob(m models.Job, progress []models.JobProgress) domain.Job {
	d := domain.Job{
		JobID:           m.JobID,
		SellerID:        m.SellerID,
		ContractorID:    m.ContractorID,
		CustomerID:      m.CustomerID,
		Status:          domain.JobStatus(m.Status),
		Items:           make([]domain.JobItem, len(m.Items)),
		Budget:          domain.Budget{Min: m.BudgetMin, Max: m.BudgetMax},
		ScheduledDate:   m.ScheduledDate,
		IsInternal:      m.IsInternal,
		CollaborationID: m.CollaborationID,
		CompletedAt:     m.CompletedAt,
		ProgressHistory: ToDomainProgressSlice(progress),
		Version:         m.Version,
		AuditFields:     ToDomainAuditFields(m.AuditFields),
	}
	for i, item := range m.Items {
		d.Items[i] = domain.JobItem(item)
	}
	if m.FinalAmount.Valid {
		amount := m.FinalAmount.Decimal
		d.FinalAmount = &amount
	}
	if m.PickupInfo != nil {
		p := domain.PickupInfo(*m.PickupInfo)
		d.PickupInfo = &p
	}
	if m.CustomerSatisfaction != nil {
		v := int(*m.CustomerSatisfaction)
		d.CustomerSatisfaction = &v
	}
	if m.Dispute != nil {
		d.Dispute = &domain.Dispute{
			Status:     domain.DisputeStatus(m.Dispute.Status),
			RaisedBy:   m.Dispute.RaisedBy,
			Reason:     m.Dispute.Reason,
			RaisedAt:   m.Dispute.RaisedAt,
			ResolvedBy: m.Dispute.ResolvedBy,
			ResolvedAt: m.Dispute.ResolvedAt,
		}
	}
	return d
}

// ToModelProgress converts a progress entry of jobID to its row form.
func ToModelProgress(jobID string, e domain.ProgressEntry) models.JobProgress {
	return models.JobProgress{
		JobID:        jobID,
		Status:       string(e.Status),
		OccurredAt:   e.Timestamp,
		ContractorID: e.ContractorID,
		ActorID:      e.ActorID,
		Note:         e.Note,
	}
}

// ToDomainProgressSlice converts progress rows, already in sequence order, to entries.
func ToDomainProgressSlice(ms []models.JobProgress) []domain.ProgressEntry {
	out := make([]domain.ProgressEntry, len(ms))
	for i, m := range ms {
		out[i] = domain.ProgressEntry{
			Status:       domain.JobStatus(m.Status),
			Timestamp:    m.OccurredAt,
			ContractorID: m.ContractorID,
			ActorID:      m.ActorID,
			Note:         m.Note,
		}
	}
	return out
}
