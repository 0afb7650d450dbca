package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chiefnavajo/aimoviez-sub010/internal/cache"
	"github.com/chiefnavajo/aimoviez-sub010/internal/model"
)

const decrFloorAttempts = 3

// Recorder performs the cache-local vote write: atomic dedup marker,
// daily counter, durable event enqueue, counter bump. Two concurrent
// votes for the same (voter, clip) are totally ordered by the SETNX on
// the dedup marker — exactly one wins.
type Recorder struct {
	rdb      *redis.Client
	queue    *Queue
	counters *CounterCache
	dedupTTL time.Duration
	dailyTTL time.Duration
}

func NewRecorder(rdb *redis.Client, queue *Queue, counters *CounterCache, dedupTTL, dailyTTL time.Duration) *Recorder {
	return &Recorder{
		rdb:      rdb,
		queue:    queue,
		counters: counters,
		dedupTTL: dedupTTL,
		dailyTTL: dailyTTL,
	}
}

// Record marks the vote as seen and enqueues it for durable application.
// Returns (accepted, dailyCount, err). If the post-dedup batch fails, the
// marker is rolled back so the voter is not locked out of a vote that was
// never recorded.
func (r *Recorder) Record(ctx context.Context, ev model.VoteEvent, date string) (bool, int, error) {
	dedupKey := cache.DedupKey(ev.VoterKey, ev.ClipID)

	ok, err := r.rdb.SetNX(ctx, dedupKey, "1", r.dedupTTL).Result()
	if err != nil {
		return false, 0, fmt.Errorf("dedup setnx: %w", err)
	}
	if !ok {
		return false, 0, nil
	}

	dailyCount, err := r.recordTail(ctx, ev, date)
	if err != nil {
		// Integrity hazard: the marker exists but nothing was recorded.
		// Remove it before propagating, or the voter is locked out.
		if delErr := r.rdb.Del(ctx, dedupKey).Err(); delErr != nil {
			log.Printf("recorder: dedup rollback failed for %s: %v", dedupKey, delErr)
		}
		return false, 0, err
	}

	return true, dailyCount, nil
}

// recordTail is the non-atomic second batch after the dedup write.
func (r *Recorder) recordTail(ctx context.Context, ev model.VoteEvent, date string) (int, error) {
	dailyKey := cache.DailyKey(date, ev.VoterKey)

	pipe := r.rdb.Pipeline()
	incrCmd := pipe.Incr(ctx, dailyKey)
	pipe.Expire(ctx, dailyKey, r.dailyTTL)
	pipe.SAdd(ctx, cache.ActiveClipsKey, ev.ClipID)
	counterKey := cache.ClipCounterKey(ev.ClipID)
	pipe.HIncrBy(ctx, counterKey, "votes", 1)
	pipe.HIncrByFloat(ctx, counterKey, "weighted", ev.Weight)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("record batch: %w", err)
	}

	if err := r.queue.Push(ctx, ev); err != nil {
		// The pipeline already landed: give the daily quota slot back.
		// The clip counters and active set need no rollback here; the
		// reconciler overwrites them from the votes table.
		if decErr := r.decrFloor(ctx, dailyKey); decErr != nil {
			log.Printf("recorder: daily rollback failed for %s: %v", dailyKey, decErr)
		}
		return 0, fmt.Errorf("enqueue vote event: %w", err)
	}

	return int(incrCmd.Val()), nil
}

// Unrecord reverses a recorded vote: deletes the dedup marker, decrements
// the daily counter (floor-clamped at zero), pushes a retract event and
// drops the cached tally. Returns false when no marker existed.
func (r *Recorder) Unrecord(ctx context.Context, ev model.VoteEvent, date string) (bool, error) {
	deleted, err := r.rdb.Del(ctx, cache.DedupKey(ev.VoterKey, ev.ClipID)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup delete: %w", err)
	}
	if deleted == 0 {
		return false, nil
	}

	if err := r.decrFloor(ctx, cache.DailyKey(date, ev.VoterKey)); err != nil {
		return false, fmt.Errorf("daily decrement: %w", err)
	}

	if err := r.queue.Push(ctx, ev); err != nil {
		return false, fmt.Errorf("enqueue retract event: %w", err)
	}

	if err := r.counters.Decrement(ctx, ev.ClipID, ev.Weight); err != nil {
		log.Printf("recorder: counter decrement failed for %s: %v", ev.ClipID, err)
	}
	if err := r.counters.MarkActive(ctx, ev.ClipID); err != nil {
		log.Printf("recorder: mark active failed for %s: %v", ev.ClipID, err)
	}

	return true, nil
}

// decrFloor decrements a counter without letting it go negative, as a
// WATCH-based compare-and-set loop. A plain DECR would let concurrent
// unvotes drive the count below zero and grant extra quota.
func (r *Recorder) decrFloor(ctx context.Context, key string) error {
	txn := func(tx *redis.Tx) error {
		n, err := tx.Get(ctx, key).Int64()
		if err == redis.Nil || (err == nil && n <= 0) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Decr(ctx, key)
			return nil
		})
		return err
	}

	var err error
	for range decrFloorAttempts {
		err = r.rdb.Watch(ctx, txn, key)
		if err != redis.TxFailedErr {
			return err
		}
	}
	return err
}
