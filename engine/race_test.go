package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRace_TaskWins(t *testing.T) {
	got, err := Race(context.Background(), time.Second, func(context.Context) (string, error) {
		return "hit", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hit", got)
}

func TestRace_DeadlineWinsAndCancelsTask(t *testing.T) {
	cancelled := make(chan struct{})

	start := time.Now()
	got, err := Race(context.Background(), 30*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		close(cancelled)
		return 42, ctx.Err()
	})

	assert.ErrorIs(t, err, ErrDeadline)
	assert.Zero(t, got)
	assert.Less(t, time.Since(start), time.Second)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("losing task was not cancelled")
	}
}

func TestRace_TaskErrorReturnsEarly(t *testing.T) {
	boom := errors.New("boom")

	start := time.Now()
	_, err := Race(context.Background(), 5*time.Second, func(context.Context) (int, error) {
		return 0, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRace_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Race(ctx, time.Second, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
}
