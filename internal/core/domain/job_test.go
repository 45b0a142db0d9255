package domain_test

import (
	"testing"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestJobItem_Validate(t *testing.T) {
	tests := []struct {
		name    string
		item    domain.JobItem
		wantErr bool
	}{
		{"computed total", domain.NewJobItem("blind", 2, decimal.NewFromInt(50000)), false},
		{"explicit matching total", domain.JobItem{Name: "rail", Quantity: 3, UnitPrice: decimal.NewFromInt(1500), TotalPrice: decimal.NewFromInt(4500)}, false},
		{"total does not match", domain.JobItem{Name: "rail", Quantity: 3, UnitPrice: decimal.NewFromInt(1500), TotalPrice: decimal.NewFromInt(4000)}, true},
		{"zero quantity", domain.JobItem{Name: "rail", Quantity: 0, UnitPrice: decimal.NewFromInt(1500)}, true},
		{"negative price", domain.NewJobItem("rail", 1, decimal.NewFromInt(-1)), true},
		{"missing name", domain.NewJobItem(" ", 1, decimal.NewFromInt(1)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJob_Validate(t *testing.T) {
	job := newJob(domain.JobStatusPending, nil)
	assert.NoError(t, job.Validate())
	assert.True(t, decimal.NewFromInt(100000).Equal(job.EscrowAmount()))

	outside := decimal.NewFromInt(130000)
	job.FinalAmount = &outside
	assert.ErrorIs(t, job.Validate(), apperrors.ErrValidation)

	job.FinalAmount = nil
	job.Budget = domain.Budget{Min: decimal.NewFromInt(10), Max: decimal.NewFromInt(5)}
	assert.ErrorIs(t, job.Validate(), apperrors.ErrValidation)

	job = newJob(domain.JobStatusCompleted, nil)
	score := 6
	job.CustomerSatisfaction = &score
	assert.ErrorIs(t, job.Validate(), apperrors.ErrValidation)
}

func TestJob_CloneDoesNotAlias(t *testing.T) {
	job := newJob(domain.JobStatusAssigned, strPtr("c1"))
	job.ProgressHistory = []domain.ProgressEntry{{Status: domain.JobStatusAssigned, ActorID: "s"}}

	c := job.Clone()
	*c.ContractorID = "c2"
	c.Items[0].Name = "changed"
	c.ProgressHistory[0].ActorID = "changed"

	assert.Equal(t, "c1", *job.ContractorID)
	assert.Equal(t, "blind", job.Items[0].Name)
	assert.Equal(t, "s", job.ProgressHistory[0].ActorID)
}
