package battle

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/redis/go-redis/v9"
)

const (
	redisQueuePrefix = "battle:queue:"
	redisPoolsKey    = "battle:pools"
)

// removeScript drops one raw entry and forgets the pool once it is empty, so
// a concurrent enqueue can never be left out of the pool set.
var removeScript = redis.NewScript(`
local n = redis.call('LREM', KEYS[1], 1, ARGV[1])
if redis.call('LLEN', KEYS[1]) == 0 then
	redis.call('SREM', KEYS[2], ARGV[2])
end
return n`)

// RedisQueue stores each pool as a JSON list. Its errors are surfaced to the
// fallback wrapper, never to matchmaking callers.
type RedisQueue struct {
	rdb *redis.Client
}

func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

func poolKey(poolID string) string {
	return redisQueuePrefix + poolID
}

func (q *RedisQueue) Enqueue(ctx context.Context, poolID string, e QueueEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode queue entry: %w", err)
	}
	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, poolKey(poolID), b)
		pipe.SAdd(ctx, redisPoolsKey, poolID)
		return nil
	})
	return err
}

func (q *RedisQueue) Entries(ctx context.Context, poolID string) ([]QueueEntry, error) {
	raws, err := q.rdb.LRange(ctx, poolKey(poolID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]QueueEntry, 0, len(raws))
	for _, raw := range raws {
		var e QueueEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			log.Printf("[QUEUE] Skipping malformed entry in %s: %v", poolID, err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Remove deletes the first stored entry with e's connection identity.
func (q *RedisQueue) Remove(ctx context.Context, poolID string, e QueueEntry) (bool, error) {
	raws, err := q.rdb.LRange(ctx, poolKey(poolID), 0, -1).Result()
	if err != nil {
		return false, err
	}
	for _, raw := range raws {
		var stored QueueEntry
		if err := json.Unmarshal([]byte(raw), &stored); err != nil || !stored.sameEntry(e) {
			continue
		}
		n, err := removeScript.Run(ctx, q.rdb, []string{poolKey(poolID), redisPoolsKey}, raw, poolID).Int()
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}
	return false, nil
}

func (q *RedisQueue) Length(ctx context.Context, poolID string) (int, error) {
	n, err := q.rdb.LLen(ctx, poolKey(poolID)).Result()
	return int(n), err
}

func (q *RedisQueue) Pools(ctx context.Context) ([]string, error) {
	pools, err := q.rdb.SMembers(ctx, redisPoolsKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(pools)
	return pools, nil
}
