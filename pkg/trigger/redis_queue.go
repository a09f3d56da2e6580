package trigger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the sorted set holding pending subjects.
const DefaultRedisKey = "rolesync:pending"

// RedisConfig configures a RedisQueue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisQueue keeps pending subjects in a sorted set scored by the unix
// milliseconds of the last change, so several processes can share a queue
// and ZADD gives upsert semantics for free.
type RedisQueue struct {
	rdb redis.UniversalClient
	key string
}

// NewRedisQueue connects to Redis and verifies the connection.
func NewRedisQueue(ctx context.Context, cfg RedisConfig) (*RedisQueue, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.Addr, err)
	}
	return NewRedisQueueFromClient(rdb, cfg.Key), nil
}

// NewRedisQueueFromClient wraps an existing client.
func NewRedisQueueFromClient(rdb redis.UniversalClient, key string) *RedisQueue {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisQueue{rdb: rdb, key: key}
}

func (q *RedisQueue) Close() error { return q.rdb.Close() }

func member(subject uint64) string { return strconv.FormatUint(subject, 10) }

func (q *RedisQueue) Upsert(ctx context.Context, subject uint64, at time.Time) error {
	return q.rdb.ZAdd(ctx, q.key, redis.Z{Score: float64(at.UnixMilli()), Member: member(subject)}).Err()
}

func (q *RedisQueue) Remove(ctx context.Context, subject uint64) (bool, error) {
	n, err := q.rdb.ZRem(ctx, q.key, member(subject)).Result()
	return n > 0, err
}

// popDueScript removes and returns the lowest scored member at or below
// ARGV[1] in one step, so a member re-scored by a concurrent Upsert is never
// claimed on its old score.
var popDueScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'WITHSCORES', 'LIMIT', 0, 1)
if #due == 0 then
	return false
end
redis.call('ZREM', KEYS[1], due[1])
return due
`)

func (q *RedisQueue) PopDue(ctx context.Context, cutoff time.Time) (PendingEntry, bool, error) {
	due, err := popDueScript.Run(ctx, q.rdb, []string{q.key}, cutoff.UnixMilli()).StringSlice()
	if errors.Is(err, redis.Nil) {
		return PendingEntry{}, false, nil
	}
	if err != nil {
		return PendingEntry{}, false, err
	}
	if len(due) != 2 {
		return PendingEntry{}, false, fmt.Errorf("unexpected pop reply %q", due)
	}
	score, err := strconv.ParseFloat(due[1], 64)
	if err != nil {
		return PendingEntry{}, false, fmt.Errorf("invalid pending score %q: %w", due[1], err)
	}
	entry, err := toEntry(redis.Z{Member: due[0], Score: score})
	if err != nil {
		return PendingEntry{}, false, err
	}
	return entry, true, nil
}

func (q *RedisQueue) List(ctx context.Context) ([]PendingEntry, error) {
	zs, err := q.rdb.ZRangeWithScores(ctx, q.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]PendingEntry, 0, len(zs))
	for _, z := range zs {
		e, err := toEntry(z)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.rdb.ZCard(ctx, q.key).Result()
	return int(n), err
}

func (q *RedisQueue) Clear(ctx context.Context) (int, error) {
	pipe := q.rdb.TxPipeline()
	card := pipe.ZCard(ctx, q.key)
	pipe.Del(ctx, q.key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(card.Val()), nil
}

func toEntry(z redis.Z) (PendingEntry, error) {
	s, ok := z.Member.(string)
	if !ok {
		return PendingEntry{}, errors.New("unexpected pending member type")
	}
	subject, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return PendingEntry{}, fmt.Errorf("invalid pending member %q: %w", s, err)
	}
	return PendingEntry{Subject: subject, ChangedAt: time.UnixMilli(int64(z.Score))}, nil
}

var _ PendingQueue = (*RedisQueue)(nil)
