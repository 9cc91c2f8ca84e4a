package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"libris/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompensator_RollbackRunsInReverse(t *testing.T) {
	c := NewCompensator(logger.NewNop(), time.Second)

	var order []string
	c.Push("first", func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	c.Push("second", func(ctx context.Context) error {
		order = append(order, "second")
		return nil
	})
	require.Equal(t, 2, c.Len())

	err := c.Rollback(errors.New("boom"))
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first"}, order)
	assert.Equal(t, 0, c.Len())
}

func TestCompensator_RollbackContinuesAfterFailure(t *testing.T) {
	c := NewCompensator(logger.NewNop(), time.Second)

	undoErr := errors.New("undo failed")
	ran := false
	c.Push("restore", func(ctx context.Context) error {
		ran = true
		return nil
	})
	c.Push("broken", func(ctx context.Context) error {
		return undoErr
	})

	err := c.Rollback(errors.New("boom"))
	require.Error(t, err)
	assert.ErrorIs(t, err, undoErr)
	assert.True(t, ran)
}

func TestCompensator_RollbackIgnoresCancelledCaller(t *testing.T) {
	c := NewCompensator(logger.NewNop(), time.Second)

	var stepCtxErr error
	c.Push("restore", func(ctx context.Context) error {
		stepCtxErr = ctx.Err()
		return nil
	})

	require.NoError(t, c.Rollback(context.Canceled))
	assert.NoError(t, stepCtxErr)
}

func TestCompensator_Discard(t *testing.T) {
	c := NewCompensator(logger.NewNop(), time.Second)
	called := false
	c.Push("restore", func(ctx context.Context) error {
		called = true
		return nil
	})

	c.Discard()
	require.NoError(t, c.Rollback(errors.New("late")))
	assert.False(t, called)
}

func TestWithTimeout_UsesShorterDeadline(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ctx, cancelChild := WithTimeout(parent, time.Hour)
	defer cancelChild()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
}
