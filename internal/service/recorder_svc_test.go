package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/chiefnavajo/aimoviez-sub010/internal/cache"
	"github.com/chiefnavajo/aimoviez-sub010/internal/model"
)

// applyFloorDecrements is a pure-logic helper that mirrors the
// WATCH-based decrFloor algorithm for unit testing without redis: each
// decrement observes the current value and only applies when positive.
func applyFloorDecrements(start int64, exists bool, decrements int) int64 {
	if !exists {
		return 0
	}
	n := start
	for i := 0; i < decrements; i++ {
		if n <= 0 {
			continue
		}
		n--
	}
	return n
}

func TestDailyCounterFloor_NormalDecrement(t *testing.T) {
	if got := applyFloorDecrements(3, true, 1); got != 2 {
		t.Errorf("3 - 1 = %d, want 2", got)
	}
}

func TestDailyCounterFloor_ClampsAtZero(t *testing.T) {
	// More unvotes than votes must never drive the count negative, or a
	// voter would mint extra daily quota.
	if got := applyFloorDecrements(2, true, 5); got != 0 {
		t.Errorf("clamped count = %d, want 0", got)
	}
}

func TestDailyCounterFloor_MissingKeyIsNoop(t *testing.T) {
	if got := applyFloorDecrements(0, false, 3); got != 0 {
		t.Errorf("missing key count = %d, want 0", got)
	}
}

func TestDailyCounterFloor_ZeroStaysZero(t *testing.T) {
	if got := applyFloorDecrements(0, true, 1); got != 0 {
		t.Errorf("zero count = %d, want 0", got)
	}
}

func TestDailyCounterFloor_ExactDrain(t *testing.T) {
	// Unvoting exactly as many times as voted lands on zero, not below.
	if got := applyFloorDecrements(4, true, 4); got != 0 {
		t.Errorf("drained count = %d, want 0", got)
	}
}

func newTestRecorder(t *testing.T) (*Recorder, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	queue := NewQueue(client, time.Minute)
	counters := NewCounterCache(client)
	return NewRecorder(client, queue, counters, 72*time.Hour, 26*time.Hour), client
}

func recorderEvent() model.VoteEvent {
	return model.VoteEvent{
		VoteID:    "vote-1",
		ClipID:    "clip-1",
		VoterKey:  "u_abcd1234",
		SeasonID:  "season-1",
		Direction: model.DirectionCast,
		Weight:    1.5,
	}
}

func TestRecord_Accepted(t *testing.T) {
	r, client := newTestRecorder(t)
	ctx := context.Background()

	accepted, dailyCount, err := r.Record(ctx, recorderEvent(), "2026-08-30")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !accepted || dailyCount != 1 {
		t.Fatalf("accepted=%v dailyCount=%d, want true/1", accepted, dailyCount)
	}

	if n, _ := client.Exists(ctx, cache.DedupKey("u_abcd1234", "clip-1")).Result(); n != 1 {
		t.Error("dedup marker missing after accepted vote")
	}
	if n, _ := client.LLen(ctx, cache.QueuePendingKey).Result(); n != 1 {
		t.Errorf("pending queue length = %d, want 1", n)
	}
}

func TestRecord_DuplicateRejected(t *testing.T) {
	r, client := newTestRecorder(t)
	ctx := context.Background()

	if _, _, err := r.Record(ctx, recorderEvent(), "2026-08-30"); err != nil {
		t.Fatalf("first record: %v", err)
	}
	accepted, _, err := r.Record(ctx, recorderEvent(), "2026-08-30")
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if accepted {
		t.Error("duplicate vote accepted")
	}

	// No double-charging: one enqueue, one quota slot.
	if n, _ := client.LLen(ctx, cache.QueuePendingKey).Result(); n != 1 {
		t.Errorf("pending queue length = %d, want 1", n)
	}
	daily, _ := client.Get(ctx, cache.DailyKey("2026-08-30", "u_abcd1234")).Int()
	if daily != 1 {
		t.Errorf("daily count = %d, want 1", daily)
	}
}

func TestRecord_EnqueueFailureRollsBackMarkerAndQuota(t *testing.T) {
	// When the enqueue fails after the counter pipeline landed, the
	// rollback must restore both: the dedup marker (or the voter is
	// locked out) and the daily counter (or a never-recorded vote costs
	// a quota slot).
	r, client := newTestRecorder(t)
	ctx := context.Background()

	// Wrong-type pending key makes the LPUSH, and nothing else, fail.
	if err := client.Set(ctx, cache.QueuePendingKey, "blocked", 0).Err(); err != nil {
		t.Fatal(err)
	}

	if _, _, err := r.Record(ctx, recorderEvent(), "2026-08-30"); err == nil {
		t.Fatal("expected record to fail when the enqueue fails")
	}

	if n, _ := client.Exists(ctx, cache.DedupKey("u_abcd1234", "clip-1")).Result(); n != 0 {
		t.Error("dedup marker survived the rollback")
	}
	daily, _ := client.Get(ctx, cache.DailyKey("2026-08-30", "u_abcd1234")).Int()
	if daily != 0 {
		t.Errorf("daily count = %d after rollback, want 0", daily)
	}

	// With the queue healthy again the same vote goes through cleanly.
	if err := client.Del(ctx, cache.QueuePendingKey).Err(); err != nil {
		t.Fatal(err)
	}
	accepted, dailyCount, err := r.Record(ctx, recorderEvent(), "2026-08-30")
	if err != nil {
		t.Fatalf("retry record: %v", err)
	}
	if !accepted || dailyCount != 1 {
		t.Fatalf("retry accepted=%v dailyCount=%d, want true/1", accepted, dailyCount)
	}
}

func TestUnrecord_RestoresQuotaAndMarker(t *testing.T) {
	r, client := newTestRecorder(t)
	ctx := context.Background()

	if _, _, err := r.Record(ctx, recorderEvent(), "2026-08-30"); err != nil {
		t.Fatalf("record: %v", err)
	}

	ev := recorderEvent()
	ev.Direction = model.DirectionRetract
	removed, err := r.Unrecord(ctx, ev, "2026-08-30")
	if err != nil {
		t.Fatalf("unrecord: %v", err)
	}
	if !removed {
		t.Fatal("unrecord did not find the vote")
	}

	daily, _ := client.Get(ctx, cache.DailyKey("2026-08-30", "u_abcd1234")).Int()
	if daily != 0 {
		t.Errorf("daily count = %d after unrecord, want 0", daily)
	}
	if n, _ := client.Exists(ctx, cache.DedupKey("u_abcd1234", "clip-1")).Result(); n != 0 {
		t.Error("dedup marker survived unrecord")
	}

	// Retracting again is a no-op, and the floor holds.
	removed, err = r.Unrecord(ctx, ev, "2026-08-30")
	if err != nil {
		t.Fatalf("second unrecord: %v", err)
	}
	if removed {
		t.Error("second unrecord reported a removal")
	}
	daily, _ = client.Get(ctx, cache.DailyKey("2026-08-30", "u_abcd1234")).Int()
	if daily != 0 {
		t.Errorf("daily count = %d after double unrecord, want 0", daily)
	}
}
