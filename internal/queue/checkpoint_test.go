package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCheckpoint(t *testing.T) {
	c := NewMemoryCheckpoint()
	ctx := context.Background()

	seq, err := c.Get(ctx, "shard-0")
	require.NoError(t, err)
	assert.Empty(t, seq)

	require.NoError(t, c.Set(ctx, "shard-0", "49590338271"))

	seq, err = c.Get(ctx, "shard-0")
	require.NoError(t, err)
	assert.Equal(t, "49590338271", seq)

	// Other shards are independent.
	seq, err = c.Get(ctx, "shard-1")
	require.NoError(t, err)
	assert.Empty(t, seq)
}

func TestEntryTime(t *testing.T) {
	assert.Equal(t, time.UnixMilli(1710501234567), entryTime("1710501234567-0"))
	assert.True(t, entryTime("garbage").IsZero())
}
