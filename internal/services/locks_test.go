package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funetec/internal/core"
)

func TestContractLocks(t *testing.T) {
	locks := newContractLocks()
	ctx := context.Background()

	release, err := locks.acquire(ctx, "0001/2025", time.Second)
	require.NoError(t, err)

	other, err := locks.acquire(ctx, "0002/2025", 10*time.Millisecond)
	require.NoError(t, err, "different contracts must not share a lock")
	other()

	_, err = locks.acquire(ctx, "0001/2025", 10*time.Millisecond)
	assert.ErrorIs(t, err, core.ErrConcurrentModification)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = locks.acquire(cancelled, "0001/2025", time.Second)
	assert.ErrorIs(t, err, context.Canceled)

	release()
	release()
	assert.Zero(t, locks.size(), "no lock entries after release")

	again, err := locks.acquire(ctx, "0001/2025", 10*time.Millisecond)
	require.NoError(t, err)
	again()
}
