package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/chiefnavajo/aimoviez-sub010/internal/model"
)

// fakeQueue records the order of queue operations so tests can assert
// that acknowledge is the last side effect of a drain cycle.
type fakeQueue struct {
	items []QueueItem
	ops   []string

	acked        []QueueItem
	requeued     map[string]int
	deadLettered map[string]int
}

func newFakeQueue(events ...model.VoteEvent) *fakeQueue {
	q := &fakeQueue{
		requeued:     make(map[string]int),
		deadLettered: make(map[string]int),
	}
	for _, ev := range events {
		q.items = append(q.items, QueueItem{Event: ev, Raw: ev.VoteID})
	}
	return q
}

func (q *fakeQueue) Pop(ctx context.Context, max int) ([]QueueItem, error) {
	q.ops = append(q.ops, "pop")
	if len(q.items) > max {
		return q.items[:max], nil
	}
	return q.items, nil
}

func (q *fakeQueue) Acknowledge(ctx context.Context, items []QueueItem) error {
	q.ops = append(q.ops, "ack")
	q.acked = append(q.acked, items...)
	return nil
}

func (q *fakeQueue) Requeue(ctx context.Context, item QueueItem, retryCount int) error {
	q.ops = append(q.ops, "requeue:"+item.Event.VoteID)
	q.requeued[item.Event.VoteID] = retryCount
	return nil
}

func (q *fakeQueue) MoveToDeadLetter(ctx context.Context, item QueueItem, finalRetryCount int) error {
	q.ops = append(q.ops, "deadletter:"+item.Event.VoteID)
	q.deadLettered[item.Event.VoteID] = finalRetryCount
	return nil
}

func (q *fakeQueue) RecoverOrphans(ctx context.Context) (int, error) {
	q.ops = append(q.ops, "recover")
	return 0, nil
}

// fakeStore fails batches and per-event applies on demand.
type fakeStore struct {
	batchErr error
	failOne  map[string]bool
	applied  []string
}

func (s *fakeStore) ApplyBatch(ctx context.Context, events []model.VoteEvent) error {
	if s.batchErr != nil {
		return s.batchErr
	}
	for _, ev := range events {
		s.applied = append(s.applied, ev.VoteID)
	}
	return nil
}

func (s *fakeStore) ApplyOne(ctx context.Context, ev model.VoteEvent) error {
	if s.failOne[ev.VoteID] {
		return fmt.Errorf("apply %s: connection refused", ev.VoteID)
	}
	s.applied = append(s.applied, ev.VoteID)
	return nil
}

func event(id string, retryCount int) model.VoteEvent {
	return model.VoteEvent{VoteID: id, ClipID: "clip-1", VoterKey: "d_ab12", Direction: model.DirectionCast, RetryCount: retryCount}
}

func TestDrain_BatchSuccess(t *testing.T) {
	q := newFakeQueue(event("e1", 0), event("e2", 0))
	s := &fakeStore{}
	w := NewDrainWorker(q, s, nil, 100, 5)

	res, err := w.Drain(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Applied != 2 || res.Requeued != 0 || res.DeadLettered != 0 {
		t.Errorf("result = %+v, want 2 applied", res)
	}
	if len(q.acked) != 2 {
		t.Errorf("acked %d items, want 2", len(q.acked))
	}
}

func TestDrain_BatchFailureFallsBackToIndividual(t *testing.T) {
	q := newFakeQueue(event("e1", 0), event("e2", 0), event("e3", 0))
	s := &fakeStore{
		batchErr: errors.New("batch write failed"),
		failOne:  map[string]bool{"e2": true},
	}
	w := NewDrainWorker(q, s, nil, 100, 5)

	res, err := w.Drain(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Applied != 2 {
		t.Errorf("applied = %d, want 2", res.Applied)
	}
	if res.Requeued != 1 {
		t.Errorf("requeued = %d, want 1", res.Requeued)
	}
	if got := q.requeued["e2"]; got != 1 {
		t.Errorf("e2 requeued with retryCount %d, want 1", got)
	}
	if len(q.acked) != 2 {
		t.Errorf("acked %d items, want only the applied 2", len(q.acked))
	}
}

func TestDrain_RetryCountIncrementsOnRequeue(t *testing.T) {
	q := newFakeQueue(event("e1", 4))
	s := &fakeStore{
		batchErr: errors.New("batch write failed"),
		failOne:  map[string]bool{"e1": true},
	}
	w := NewDrainWorker(q, s, nil, 100, 5)

	if _, err := w.Drain(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := q.requeued["e1"]; got != 5 {
		t.Errorf("retryCount = %d, want 5", got)
	}
	if len(q.deadLettered) != 0 {
		t.Error("event at retry 4 must be requeued, not dead-lettered")
	}
}

func TestDrain_DeadLetterBeyondRetryBound(t *testing.T) {
	q := newFakeQueue(event("e1", 5))
	s := &fakeStore{
		batchErr: errors.New("batch write failed"),
		failOne:  map[string]bool{"e1": true},
	}
	w := NewDrainWorker(q, s, nil, 100, 5)

	res, err := w.Drain(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DeadLettered != 1 {
		t.Errorf("deadLettered = %d, want 1", res.DeadLettered)
	}
	if got := q.deadLettered["e1"]; got != 6 {
		t.Errorf("dead-lettered with final retryCount %d, want 6", got)
	}
	if len(q.requeued) != 0 {
		t.Error("poison event must not be requeued")
	}
}

func TestDrain_AcknowledgeIsLast(t *testing.T) {
	q := newFakeQueue(event("e1", 0), event("e2", 5), event("e3", 2))
	s := &fakeStore{
		batchErr: errors.New("batch write failed"),
		failOne:  map[string]bool{"e2": true, "e3": true},
	}
	w := NewDrainWorker(q, s, nil, 100, 5)

	if _, err := w.Drain(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(q.ops) == 0 || q.ops[len(q.ops)-1] != "ack" {
		t.Fatalf("acknowledge must be the last operation, got %v", q.ops)
	}
	// Dead-letter and requeue both happen-before the ack.
	ackIdx := len(q.ops) - 1
	for i, op := range q.ops {
		if (op == "deadletter:e2" || op == "requeue:e3") && i > ackIdx {
			t.Errorf("%s at %d happened after ack at %d", op, i, ackIdx)
		}
	}
}

func TestDrain_EmptyQueueIsNoop(t *testing.T) {
	q := newFakeQueue()
	s := &fakeStore{}
	w := NewDrainWorker(q, s, nil, 100, 5)

	res, err := w.Drain(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Applied != 0 {
		t.Errorf("applied = %d, want 0", res.Applied)
	}
	for _, op := range q.ops {
		if op == "ack" {
			t.Error("nothing popped, nothing should be acknowledged")
		}
	}
}

func TestDrain_BatchSizeRespected(t *testing.T) {
	q := newFakeQueue(event("e1", 0), event("e2", 0), event("e3", 0))
	s := &fakeStore{}
	w := NewDrainWorker(q, s, nil, 2, 5)

	res, err := w.Drain(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Applied != 2 {
		t.Errorf("applied = %d, want 2 (batch size)", res.Applied)
	}
}
