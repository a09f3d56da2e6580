//go:build integration

package trigger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newRedisQueue(t *testing.T, key string) *RedisQueue {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	q, err := NewRedisQueue(ctx, RedisConfig{Addr: endpoint, Key: key})
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestRedisQueue(t *testing.T) {
	queueContract(t, newRedisQueue(t, "rolesync:test"))
}

func TestRedisQueueConcurrentPopClaimsEachSubjectOnce(t *testing.T) {
	q := newRedisQueue(t, "rolesync:pop")
	ctx := context.Background()
	now := time.Now()

	const due = 50
	for i := uint64(1); i <= due; i++ {
		require.NoError(t, q.Upsert(ctx, i, now.Add(-time.Minute)))
	}
	require.NoError(t, q.Upsert(ctx, 999, now.Add(time.Hour)))

	var (
		mu      sync.Mutex
		claimed = map[uint64]int{}
		wg      sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				e, ok, err := q.PopDue(ctx, now)
				if !assert.NoError(t, err) || !ok {
					return
				}
				mu.Lock()
				claimed[e.Subject]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, claimed, due)
	for subject, n := range claimed {
		assert.Equal(t, 1, n, "subject %d", subject)
	}
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the entry that is not yet due stays queued")
}

func TestRedisQueuePopSkipsRescoredSubject(t *testing.T) {
	q := newRedisQueue(t, "rolesync:rescore")
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, q.Upsert(ctx, 7, now.Add(-time.Minute)))
	require.NoError(t, q.Upsert(ctx, 7, now.Add(time.Minute)))

	_, ok, err := q.PopDue(ctx, now)
	require.NoError(t, err)
	assert.False(t, ok)

	e, ok, err := q.PopDue(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(7), e.Subject)
	assert.Equal(t, now.Add(time.Minute).UnixMilli(), e.ChangedAt.UnixMilli())
}

func TestRedisQueueFromClient(t *testing.T) {
	q := NewRedisQueueFromClient(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "")
	require.Equal(t, DefaultRedisKey, q.key)
	_ = q.Close()
}
