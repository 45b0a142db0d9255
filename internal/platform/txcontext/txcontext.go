// Package txcontext carries the active storage transaction of a unit of work through a
// context, together with callbacks that must only run once it commits.
package txcontext

import (
	"context"
	"sync"
)

type ctxKey struct{}

// Unit is one storage transaction in flight.
type Unit struct {
	// Handle is the driver specific transaction (pgx.Tx for PostgreSQL).
	Handle any

	mu          sync.Mutex
	afterCommit []func(context.Context)
}

// Begin attaches a new unit holding handle to ctx.
func Begin(ctx context.Context, handle any) (context.Context, *Unit) {
	u := &Unit{Handle: handle}
	return context.WithValue(ctx, ctxKey{}, u), u
}

// FromContext returns the unit active in ctx, if any.
func FromContext(ctx context.Context) (*Unit, bool) {
	u, ok := ctx.Value(ctxKey{}).(*Unit)
	return u, ok && u != nil
}

// AfterCommit defers fn until the unit in ctx commits. Without an active unit fn runs now.
func AfterCommit(ctx context.Context, fn func(context.Context)) {
	u, ok := FromContext(ctx)
	if !ok {
		fn(ctx)
		return
	}
	u.mu.Lock()
	u.afterCommit = append(u.afterCommit, fn)
	u.mu.Unlock()
}

// Committed runs the deferred callbacks in registration order with ctx, which should be the
// context the unit was started from.
func (u *Unit) Committed(ctx context.Context) {
	u.mu.Lock()
	callbacks := u.afterCommit
	u.afterCommit = nil
	u.mu.Unlock()
	for _, fn := range callbacks {
		fn(ctx)
	}
}
