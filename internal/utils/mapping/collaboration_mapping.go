package mapping

import (
	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	"github.com/SscSPs/curtain_escrow_app/internal/models"
)

// ToModelCollaboration converts a domain CollaborationRequest to a model Collaboration
func ToModelCollaboration(d domain.CollaborationRequest) models.Collaboration {
	m := models.Collaboration{
		CollaborationID: d.CollaborationID,
		ParentJobID:     d.ParentJobID,
		RequesterID:     d.RequesterID,
		Tasks:           make([]models.CollaborationTask, len(d.Tasks)),
		Status:          string(d.Status),
		Version:         d.Version,
		ActivatedAt:     d.ActivatedAt,
		CompletedAt:     d.CompletedAt,
		AuditFields:     ToModelAuditFields(d.AuditFields),
	}
	for i, t := range d.Tasks {
		m.Tasks[i] = models.CollaborationTask{
			TaskID:      t.TaskID,
			Description: t.Description,
			ItemNames:   t.ItemNames,
			Amount:      t.Amount,
			AssigneeID:  t.AssigneeID,
			Status:      string(t.Status),
			AcceptedAt:  t.AcceptedAt,
			CompletedAt: t.CompletedAt,
		}
	}
	return m
}

// ToDomainCollaboration converts a model Collaboration to a domain CollaborationRequest
func ToDomainCollaboration(m models.Collaboration) domain.CollaborationRequest {
	d := domain.CollaborationRequest{
		CollaborationID: m.CollaborationID,
		ParentJobID:     m.ParentJobID,
		RequesterID:     m.RequesterID,
		Tasks:           make([]domain.CollaborationTask, len(m.Tasks)),
		Status:          domain.CollaborationStatus(m.Status),
		Version:         m.Version,
		ActivatedAt:     m.ActivatedAt,
		CompletedAt:     m.CompletedAt,
		AuditFields:     ToDomainAuditFields(m.AuditFields),
	}
	for i, t := range m.Tasks {
		d.Tasks[i] = domain.CollaborationTask{
			TaskID:      t.TaskID,
			Description: t.Description,
			ItemNames:   t.ItemNames,
			Amount:      t.Amount,
			AssigneeID:  t.AssigneeID,
			Status:      domain.TaskStatus(t.Status),
			AcceptedAt:  t.AcceptedAt,
			CompletedAt: t.CompletedAt,
		}
	}
	return d
}
