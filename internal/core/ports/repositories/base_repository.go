package repositories

import (
	"context"
)

// TransactionManager runs a unit of work inside one storage transaction.
type TransactionManager interface {
	// WithinTx runs fn in a transaction carried by the context passed to fn. A nested call
	// joins the outer transaction. Returning an error rolls everything back.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
