// Package memory implements the repository ports on process memory. It keeps the versioning
// and idempotency semantics of the PostgreSQL repositories so the services behave the same on
// both; it is used for local runs and service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/apperrors"
	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	portsrepo "github.com/SscSPs/curtain_escrow_app/internal/core/ports/repositories"
	"github.com/SscSPs/curtain_escrow_app/internal/platform/txcontext"
	"github.com/SscSPs/curtain_escrow_app/internal/utils/pagination"
)

// Store holds all entities. One mutex serializes units of work and standalone calls, which
// gives every unit the isolation of a serializable transaction.
type Store struct {
	mu sync.Mutex

	jobs     map[string]domain.Job
	accounts map[string]domain.LedgerAccount
	txs      map[string]domain.Transaction
	keys     map[string]string
	collabs  map[string]domain.CollaborationRequest
	// seq orders transactions that share a timestamp.
	seq   int64
	txSeq map[string]int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		jobs:     make(map[string]domain.Job),
		accounts: make(map[string]domain.LedgerAccount),
		txs:      make(map[string]domain.Transaction),
		keys:     make(map[string]string),
		collabs:  make(map[string]domain.CollaborationRequest),
		txSeq:    make(map[string]int64),
	}
}

// NewRepositoryProvider exposes the store through the repository ports.
func NewRepositoryProvider(store *Store) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		TxManager:         store,
		JobRepo:           &JobRepository{store: store},
		LedgerRepo:        &LedgerRepository{store: store},
		CollaborationRepo: &CollaborationRepository{store: store},
	}
}

var _ portsrepo.TransactionManager = (*Store)(nil)

type snapshot struct {
	jobs     map[string]domain.Job
	accounts map[string]domain.LedgerAccount
	txs      map[string]domain.Transaction
	keys     map[string]string
	collabs  map[string]domain.CollaborationRequest
	seq      int64
	txSeq    map[string]int64
}

// Values are never mutated in place, so shallow map copies are enough to roll back.
func (s *Store) snapshot() snapshot {
	return snapshot{
		jobs:     copyMap(s.jobs),
		accounts: copyMap(s.accounts),
		txs:      copyMap(s.txs),
		keys:     copyMap(s.keys),
		collabs:  copyMap(s.collabs),
		seq:      s.seq,
		txSeq:    copyMap(s.txSeq),
	}
}

func (s *Store) restore(snap snapshot) {
	s.jobs = snap.jobs
	s.accounts = snap.accounts
	s.txs = snap.txs
	s.keys = snap.keys
	s.collabs = snap.collabs
	s.seq = snap.seq
	s.txSeq = snap.txSeq
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// inUnit reports whether ctx carries a unit of work started by this store.
func (s *Store) inUnit(ctx context.Context) bool {
	u, ok := txcontext.FromContext(ctx)
	return ok && u.Handle == s
}

// WithinTx runs fn with the store locked. Nested calls join the outer unit. An error restores
// the state the unit started from.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inUnit(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	snap := s.snapshot()
	txCtx, unit := txcontext.Begin(ctx, s)
	err := fn(txCtx)
	if err != nil {
		s.restore(snap)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	unit.Committed(ctx)
	return nil
}

// guard runs fn under the store lock unless ctx already holds it through a unit.
func (s *Store) guard(ctx context.Context, fn func()) {
	if s.inUnit(ctx) {
		fn()
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// page returns up to limit items after the cursor in nextToken, newest first.
func page[T any](items []T, limit int, nextToken *string, key func(T) (time.Time, string)) ([]T, *string, error) {
	sort.Slice(items, func(i, j int) bool {
		ai, ii := key(items[i])
		aj, ij := key(items[j])
		return pagination.After(aj, ij, ai, ii)
	})
	if nextToken != nil && *nextToken != "" {
		cursorAt, cursorID, err := pagination.DecodeCursor(*nextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		start := len(items)
		for i, item := range items {
			at, id := key(item)
			if pagination.After(at, id, cursorAt, cursorID) {
				start = i
				break
			}
		}
		items = items[start:]
	}
	if limit <= 0 || len(items) <= limit {
		return items, nil, nil
	}
	items = items[:limit]
	at, id := key(items[limit-1])
	token := pagination.EncodeCursor(at, id)
	return items, &token, nil
}
