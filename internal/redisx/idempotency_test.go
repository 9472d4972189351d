package redisx_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/skillbridge/internal/redisx"
)

// Runs against a live server only when REDIS_ADDR is set.
func TestIdempotencyAgainstRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redisx.New(addr)
	defer rdb.Close()
	require.NoError(t, redisx.Ping(ctx, rdb))

	idem := redisx.NewIdempotency(rdb, time.Minute)
	buyer := "buyer-" + uuid.NewString()
	key := uuid.NewString()
	t.Cleanup(func() { rdb.Del(ctx, redisx.IdemOrderPlaceKey(buyer, key)) })

	got, reserved, err := idem.Reserve(ctx, buyer, key, "pending:a")
	require.NoError(t, err)
	assert.True(t, reserved)
	assert.Equal(t, "pending:a", got)

	got, reserved, err = idem.Reserve(ctx, buyer, key, "pending:b")
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.Equal(t, "pending:a", got)

	// A stale token must not drop someone else's reservation.
	require.NoError(t, idem.Release(ctx, buyer, key, "pending:b"))
	got, _, err = idem.Reserve(ctx, buyer, key, "pending:c")
	require.NoError(t, err)
	assert.Equal(t, "pending:a", got)

	require.NoError(t, idem.Remember(ctx, buyer, key, "order-1"))
	got, reserved, err = idem.Reserve(ctx, buyer, key, "pending:d")
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.Equal(t, "order-1", got)

	_, reserved, err = idem.Reserve(ctx, "someone-else-"+buyer, key, "pending:e")
	require.NoError(t, err)
	assert.True(t, reserved)
	t.Cleanup(func() { rdb.Del(ctx, redisx.IdemOrderPlaceKey("someone-else-"+buyer, key)) })

	require.NoError(t, idem.Release(ctx, "someone-else-"+buyer, key, "pending:e"))
	_, reserved, err = idem.Reserve(ctx, "someone-else-"+buyer, key, "pending:f")
	require.NoError(t, err)
	assert.True(t, reserved, "released key can be claimed again")
}
