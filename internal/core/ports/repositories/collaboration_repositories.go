package repositories

import (
	"context"

	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
)

// CollaborationReader defines read operations for collaboration splits
type CollaborationReader interface {
	FindCollaborationByID(ctx context.Context, collaborationID string) (*domain.CollaborationRequest, error)
}

// CollaborationWriter defines write operations for collaboration splits
type CollaborationWriter interface {
	// SaveCollaboration persists a new collaboration at version 1.
	SaveCollaboration(ctx context.Context, collab domain.CollaborationRequest) error

	// UpdateCollaboration writes collab if the stored version equals expectedVersion.
	UpdateCollaboration(ctx context.Context, collab domain.CollaborationRequest, expectedVersion int64) error
}

// CollaborationRepositoryFacade combines all collaboration-related repository interfaces
type CollaborationRepositoryFacade interface {
	CollaborationReader
	CollaborationWriter
}
