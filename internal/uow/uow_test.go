package uow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooksRunAfterCommit(t *testing.T) {
	u := New(Direct{})

	var order []string
	err := u.Do(context.Background(), func(ctx context.Context, after func(AfterCommit)) error {
		after(func(context.Context) { order = append(order, "hook") })
		order = append(order, "body")
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"body", "hook"}, order)
}

func TestHooksSkippedOnError(t *testing.T) {
	u := New(Direct{})

	ran := false
	err := u.Do(context.Background(), func(ctx context.Context, after func(AfterCommit)) error {
		after(func(context.Context) { ran = true })
		return assert.AnError
	})

	require.ErrorIs(t, err, assert.AnError)
	assert.False(t, ran)
}

func TestNestedHooksDeferToOuterCommit(t *testing.T) {
	u := New(Direct{})

	var order []string
	err := u.Do(context.Background(), func(ctx context.Context, after func(AfterCommit)) error {
		err := u.Do(ctx, func(ctx context.Context, inner func(AfterCommit)) error {
			inner(func(context.Context) { order = append(order, "inner") })
			return nil
		})
		order = append(order, "outer-body")
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"outer-body", "inner"}, order)
}
