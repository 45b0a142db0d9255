package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	portsrepo "github.com/SscSPs/curtain_escrow_app/internal/core/ports/repositories"
	"github.com/SscSPs/curtain_escrow_app/internal/models"
	"github.com/SscSPs/curtain_escrow_app/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgxCollaborationRepository struct {
	BaseRepository
}

func newPgxCollaborationRepository(pool *pgxpool.Pool) portsrepo.CollaborationRepositoryFacade {
	return &PgxCollaborationRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.CollaborationRepositoryFacade = (*PgxCollaborationRepository)(nil)

func (r *PgxCollaborationRepository) FindCollaborationByID(ctx context.Context, collaborationID string) (*domain.CollaborationRequest, error) {
	query := `
		SELECT collaboration_id, parent_job_id, requester_id, tasks, status, version, activated_at, completed_at,
		       created_at, created_by, last_updated_at, last_updated_by
		FROM collaborations
		WHERE collaboration_id = $1;
	`
	var m models.Collaboration
	err := r.db(ctx).QueryRow(ctx, query, collaborationID).Scan(
		&m.CollaborationID,
		&m.ParentJobID,
		&m.RequesterID,
		&m.Tasks,
		&m.Status,
		&m.Version,
		&m.ActivatedAt,
		&m.CompletedAt,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.LastUpdatedAt,
		&m.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("collaboration", collaborationID)
		}
		return nil, fmt.Errorf("failed to find collaboration %s: %w", collaborationID, err)
	}
	collab := mapping.ToDomainCollaboration(m)
	return &collab, nil
}

func (r *PgxCollaborationRepository) SaveCollaboration(ctx context.Context, collab domain.CollaborationRequest) error {
	m := mapping.ToModelCollaboration(collab)
	query := `
		INSERT INTO collaborations (
			collaboration_id, parent_job_id, requester_id, tasks, status, version, activated_at, completed_at,
			created_at, created_by, last_updated_at, last_updated_by
		)
		VALUES ($1, $2, $3, $4, $5, 1, $6, $7, $8, $9, $10, $11)
		ON CONFLICT DO NOTHING;
	`
	tag, err := r.db(ctx).Exec(ctx, query,
		m.CollaborationID,
		m.ParentJobID,
		m.RequesterID,
		m.Tasks,
		m.Status,
		m.ActivatedAt,
		m.CompletedAt,
		m.CreatedAt,
		m.CreatedBy,
		m.LastUpdatedAt,
		m.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to save collaboration %s: %w", m.CollaborationID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: collaboration %s", apperrors.ErrDuplicate, m.CollaborationID)
	}
	return nil
}

func (r *PgxCollaborationRepository) UpdateCollaboration(ctx context.Context, collab domain.CollaborationRequest, expectedVersion int64) error {
	m := mapping.ToModelCollaboration(collab)
	query := `
		UPDATE collaborations
		SET tasks = $3, status = $4, activated_at = $5, completed_at = $6,
		    last_updated_at = $7, last_updated_by = $8, version = version + 1
		WHERE collaboration_id = $1 AND version = $2;
	`
	tag, err := r.db(ctx).Exec(ctx, query,
		m.CollaborationID,
		expectedVersion,
		m.Tasks,
		m.Status,
		m.ActivatedAt,
		m.CompletedAt,
		m.LastUpdatedAt,
		m.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update collaboration %s: %w", m.CollaborationID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewConflictError("collaboration", m.CollaborationID, expectedVersion)
	}
	return nil
}
