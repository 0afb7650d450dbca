package service

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chiefnavajo/aimoviez-sub010/internal/cache"
	"github.com/chiefnavajo/aimoviez-sub010/internal/model"
)

// counterTTL bounds how long an unreconciled counter hash can linger.
const counterTTL = 7 * 24 * time.Hour

// CounterCache holds the eventually-consistent per-clip tallies serving
// read traffic. Increments are lossy under races and restarts; the
// reconciler overwrites from the authoritative store, last writer wins.
type CounterCache struct {
	rdb *redis.Client
}

func NewCounterCache(rdb *redis.Client) *CounterCache {
	return &CounterCache{rdb: rdb}
}

// Increment bumps a clip's tally after a vote event is recorded.
func (c *CounterCache) Increment(ctx context.Context, clipID string, weight float64) error {
	key := cache.ClipCounterKey(clipID)
	pipe := c.rdb.Pipeline()
	pipe.HIncrBy(ctx, key, "votes", 1)
	pipe.HIncrByFloat(ctx, key, "weighted", weight)
	pipe.Expire(ctx, key, counterTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Decrement reverses an increment after an unvote.
func (c *CounterCache) Decrement(ctx context.Context, clipID string, weight float64) error {
	key := cache.ClipCounterKey(clipID)
	pipe := c.rdb.Pipeline()
	pipe.HIncrBy(ctx, key, "votes", -1)
	pipe.HIncrByFloat(ctx, key, "weighted", -weight)
	_, err := pipe.Exec(ctx)
	return err
}

// Get reads a clip's cached tally. The second return is false on a miss.
func (c *CounterCache) Get(ctx context.Context, clipID string) (*model.ClipCounter, bool, error) {
	vals, err := c.rdb.HGetAll(ctx, cache.ClipCounterKey(clipID)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(vals) == 0 {
		return nil, false, nil
	}

	counter := &model.ClipCounter{ClipID: clipID}
	if v, err := strconv.ParseInt(vals["votes"], 10, 64); err == nil {
		counter.VoteCount = v
	}
	if v, err := strconv.ParseFloat(vals["weighted"], 64); err == nil {
		counter.WeightedScore = v
	}
	return counter, true, nil
}

// Set overwrites a clip's tally with authoritative values. This is the
// reconciler's corrective write.
func (c *CounterCache) Set(ctx context.Context, counter model.ClipCounter) error {
	key := cache.ClipCounterKey(counter.ClipID)
	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key,
		"votes", counter.VoteCount,
		"weighted", counter.WeightedScore)
	pipe.Expire(ctx, key, counterTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// MarkActive flags a clip as having recent vote activity so the next
// reconciliation pass picks it up.
func (c *CounterCache) MarkActive(ctx context.Context, clipID string) error {
	return c.rdb.SAdd(ctx, cache.ActiveClipsKey, clipID).Err()
}

// ActiveClips returns the clips awaiting reconciliation.
func (c *CounterCache) ActiveClips(ctx context.Context) ([]string, error) {
	return c.rdb.SMembers(ctx, cache.ActiveClipsKey).Result()
}

// ClearActive removes a reconciled clip from the active set.
func (c *CounterCache) ClearActive(ctx context.Context, clipID string) error {
	return c.rdb.SRem(ctx, cache.ActiveClipsKey, clipID).Err()
}
