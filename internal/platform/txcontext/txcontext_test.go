package txcontext_test

import (
	"context"
	"testing"

	"github.com/SscSPs/curtain_escrow_app/internal/platform/txcontext"
	"github.com/stretchr/testify/assert"
)

func TestAfterCommitRunsImmediatelyWithoutUnit(t *testing.T) {
	ran := false
	txcontext.AfterCommit(context.Background(), func(context.Context) { ran = true })
	assert.True(t, ran)
}

func TestAfterCommitDefersUntilCommitted(t *testing.T) {
	base := context.Background()
	ctx, unit := txcontext.Begin(base, "tx")

	var order []int
	txcontext.AfterCommit(ctx, func(context.Context) { order = append(order, 1) })
	txcontext.AfterCommit(ctx, func(context.Context) { order = append(order, 2) })
	assert.Empty(t, order)

	got, ok := txcontext.FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "tx", got.Handle)

	unit.Committed(base)
	assert.Equal(t, []int{1, 2}, order)

	unit.Committed(base)
	assert.Equal(t, []int{1, 2}, order, "callbacks run once")
}
