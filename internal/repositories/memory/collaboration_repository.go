package memory

import (
	"context"
	"fmt"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	portsrepo "github.com/SscSPs/curtain_escrow_app/internal/core/ports/repositories"
)

// CollaborationRepository stores collaboration splits in a Store.
type CollaborationRepository struct {
	store *Store
}

var _ portsrepo.CollaborationRepositoryFacade = (*CollaborationRepository)(nil)

func (r *CollaborationRepository) FindCollaborationByID(ctx context.Context, collaborationID string) (*domain.CollaborationRequest, error) {
	var (
		collab domain.CollaborationRequest
		ok     bool
	)
	r.store.guard(ctx, func() {
		collab, ok = r.store.collabs[collaborationID]
	})
	if !ok {
		return nil, apperrors.NewNotFoundError("collaboration", collaborationID)
	}
	collab = collab.Clone()
	return &collab, nil
}

func (r *CollaborationRepository) SaveCollaboration(ctx context.Context, collab domain.CollaborationRequest) error {
	var err error
	r.store.guard(ctx, func() {
		if _, exists := r.store.collabs[collab.CollaborationID]; exists {
			err = fmt.Errorf("%w: collaboration %s", apperrors.ErrDuplicate, collab.CollaborationID)
			return
		}
		collab.Version = 1
		r.store.collabs[collab.CollaborationID] = collab.Clone()
	})
	return err
}

func (r *CollaborationRepository) UpdateCollaboration(ctx context.Context, collab domain.CollaborationRequest, expectedVersion int64) error {
	var err error
	r.store.guard(ctx, func() {
		current, ok := r.store.collabs[collab.CollaborationID]
		if !ok {
			err = apperrors.NewNotFoundError("collaboration", collab.CollaborationID)
			return
		}
		if current.Version != expectedVersion {
			err = apperrors.NewConflictError("collaboration", collab.CollaborationID, expectedVersion)
			return
		}
		next := collab.Clone()
		next.Version = expectedVersion + 1
		r.store.collabs[collab.CollaborationID] = next
	})
	return err
}
