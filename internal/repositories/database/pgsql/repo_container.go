package pgsql

import (
	portsrepo "github.com/SscSPs/curtain_escrow_app/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		TxManager:         NewTxManager(dbPool),
		JobRepo:           newPgxJobRepository(dbPool),
		LedgerRepo:        newPgxLedgerRepository(dbPool),
		CollaborationRepo: newPgxCollaborationRepository(dbPool),
	}
}
