package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chiefnavajo/aimoviez-sub010/internal/cache"
	"github.com/chiefnavajo/aimoviez-sub010/internal/model"
)

// QueueItem pairs a decoded event with the exact payload it was stored
// under. Acknowledge, requeue and dead-letter all need the raw bytes to
// LREM the right processing entry.
type QueueItem struct {
	Event model.VoteEvent
	Raw   string
}

// Queue is the durable-enough event queue on Redis lists: LPUSH pending,
// LMOVE pending→processing on pop, LREM processing on acknowledge. The
// durability boundary stays the Postgres votes table; the queue only has
// to survive a worker crash, which the processing list plus orphan
// recovery provides.
type Queue struct {
	rdb           *redis.Client
	orphanTimeout time.Duration
}

func NewQueue(rdb *redis.Client, orphanTimeout time.Duration) *Queue {
	return &Queue{rdb: rdb, orphanTimeout: orphanTimeout}
}

// Push appends an event to the pending list.
func (q *Queue) Push(ctx context.Context, ev model.VoteEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal vote event: %w", err)
	}
	return q.rdb.LPush(ctx, cache.QueuePendingKey, raw).Err()
}

// Pop moves up to max entries from pending to processing and stamps each
// with a recovery deadline. Entries stay in processing until acknowledged.
func (q *Queue) Pop(ctx context.Context, max int) ([]QueueItem, error) {
	deadline := time.Now().Add(q.orphanTimeout).Unix()
	items := make([]QueueItem, 0, max)

	for len(items) < max {
		raw, err := q.rdb.LMove(ctx, cache.QueuePendingKey, cache.QueueProcessingKey, "RIGHT", "LEFT").Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return items, err
		}

		if err := q.rdb.HSet(ctx, cache.QueueDeadlinesKey, raw, deadline).Err(); err != nil {
			return items, err
		}

		var ev model.VoteEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			// Unparsable payload: straight to the dead-letter list.
			q.dropProcessing(ctx, raw)
			q.rdb.LPush(ctx, cache.QueueDeadKey, raw)
			continue
		}

		items = append(items, QueueItem{Event: ev, Raw: raw})
	}

	return items, nil
}

// Acknowledge removes durably-applied entries from processing. This must
// be the caller's last action for a batch: a crash before acknowledge
// redelivers, a crash after loses nothing.
func (q *Queue) Acknowledge(ctx context.Context, items []QueueItem) error {
	if len(items) == 0 {
		return nil
	}
	pipe := q.rdb.Pipeline()
	for _, it := range items {
		pipe.LRem(ctx, cache.QueueProcessingKey, 1, it.Raw)
		pipe.HDel(ctx, cache.QueueDeadlinesKey, it.Raw)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Requeue puts a failed entry back on pending with a bumped retry count,
// removing the old processing entry.
func (q *Queue) Requeue(ctx context.Context, item QueueItem, retryCount int) error {
	ev := item.Event
	ev.RetryCount = retryCount
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal vote event: %w", err)
	}

	pipe := q.rdb.Pipeline()
	pipe.LPush(ctx, cache.QueuePendingKey, raw)
	pipe.LRem(ctx, cache.QueueProcessingKey, 1, item.Raw)
	pipe.HDel(ctx, cache.QueueDeadlinesKey, item.Raw)
	_, err = pipe.Exec(ctx)
	return err
}

// MoveToDeadLetter parks a poison event with its final retry count. Dead
// entries never re-enter the drain cycle; they wait for an operator.
func (q *Queue) MoveToDeadLetter(ctx context.Context, item QueueItem, finalRetryCount int) error {
	ev := item.Event
	ev.RetryCount = finalRetryCount
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal vote event: %w", err)
	}

	pipe := q.rdb.Pipeline()
	pipe.LPush(ctx, cache.QueueDeadKey, raw)
	pipe.LRem(ctx, cache.QueueProcessingKey, 1, item.Raw)
	pipe.HDel(ctx, cache.QueueDeadlinesKey, item.Raw)
	_, err = pipe.Exec(ctx)
	return err
}

// RecoverOrphans returns processing entries whose owner died (deadline
// passed without acknowledge) to the pending list. Returns how many were
// recovered.
func (q *Queue) RecoverOrphans(ctx context.Context) (int, error) {
	deadlines, err := q.rdb.HGetAll(ctx, cache.QueueDeadlinesKey).Result()
	if err != nil {
		return 0, err
	}

	// A crash between the LMove and the deadline stamp in Pop leaves an
	// entry in processing with no hash entry. Stamp those on first sight;
	// if they are still unacknowledged next sweep, they get requeued like
	// any other orphan.
	processing, err := q.rdb.LRange(ctx, cache.QueueProcessingKey, 0, -1).Result()
	if err != nil {
		return 0, err
	}
	stampDeadline := time.Now().Add(q.orphanTimeout).Unix()
	for _, raw := range processing {
		if _, ok := deadlines[raw]; ok {
			continue
		}
		// HSetNX so a concurrent Pop that just stamped wins.
		if err := q.rdb.HSetNX(ctx, cache.QueueDeadlinesKey, raw, stampDeadline).Err(); err != nil {
			return 0, err
		}
	}

	now := time.Now().Unix()
	recovered := 0
	for raw, stamp := range deadlines {
		dl, err := strconv.ParseInt(stamp, 10, 64)
		if err != nil || dl > now {
			continue
		}

		// Only requeue if the entry is still in processing; a concurrent
		// acknowledge may have raced us.
		n, err := q.rdb.LRem(ctx, cache.QueueProcessingKey, 1, raw).Result()
		if err != nil {
			return recovered, err
		}
		q.rdb.HDel(ctx, cache.QueueDeadlinesKey, raw)
		if n > 0 {
			if err := q.rdb.LPush(ctx, cache.QueuePendingKey, raw).Err(); err != nil {
				return recovered, err
			}
			recovered++
		}
	}

	return recovered, nil
}

// Depth returns the pending list length, for health and metrics.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, cache.QueuePendingKey).Result()
}

// DeadDepth returns the dead-letter list length.
func (q *Queue) DeadDepth(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, cache.QueueDeadKey).Result()
}

func (q *Queue) dropProcessing(ctx context.Context, raw string) {
	q.rdb.LRem(ctx, cache.QueueProcessingKey, 1, raw)
	q.rdb.HDel(ctx, cache.QueueDeadlinesKey, raw)
}
