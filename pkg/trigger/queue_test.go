package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queueContract exercises behaviour every PendingQueue must share.
func queueContract(t *testing.T, q PendingQueue) {
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, q.Upsert(ctx, 1, base))
	require.NoError(t, q.Upsert(ctx, 2, base.Add(time.Second)))
	require.NoError(t, q.Upsert(ctx, 1, base.Add(3*time.Second)))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "upsert never duplicates")

	list, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint64(2), list[0].Subject)
	assert.True(t, list[1].ChangedAt.Equal(base.Add(3*time.Second)))

	_, ok, err := q.PopDue(ctx, base)
	require.NoError(t, err)
	assert.False(t, ok, "nothing changed at or before base any more")

	e, ok, err := q.PopDue(ctx, base.Add(5*time.Second))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(2), e.Subject, "oldest first")

	removed, err := q.Remove(ctx, 1)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = q.Remove(ctx, 1)
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, q.Upsert(ctx, 3, base))
	require.NoError(t, q.Upsert(ctx, 4, base))
	cleared, err := q.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cleared)

	n, err = q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryQueue(t *testing.T) {
	queueContract(t, NewMemoryQueue())
}
