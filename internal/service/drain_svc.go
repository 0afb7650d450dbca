package service

import (
	"context"
	"log"

	"github.com/chiefnavajo/aimoviez-sub010/internal/model"
)

// eventQueue is the queue surface the drain worker needs. Narrowed to an
// interface so the failure-handling order can be tested with a fake.
type eventQueue interface {
	Pop(ctx context.Context, max int) ([]QueueItem, error)
	Acknowledge(ctx context.Context, items []QueueItem) error
	Requeue(ctx context.Context, item QueueItem, retryCount int) error
	MoveToDeadLetter(ctx context.Context, item QueueItem, finalRetryCount int) error
	RecoverOrphans(ctx context.Context) (int, error)
}

// voteStore is the authoritative-store surface the drain worker needs.
type voteStore interface {
	ApplyBatch(ctx context.Context, events []model.VoteEvent) error
	ApplyOne(ctx context.Context, ev model.VoteEvent) error
}

// auditEmitter receives fire-and-forget pipeline notifications.
type auditEmitter interface {
	VoteApplied(ev model.VoteEvent)
	VoteDeadLettered(ev model.VoteEvent)
}

// DrainResult summarizes one drain invocation for the scheduler response.
type DrainResult struct {
	Recovered    int `json:"recovered"`
	Applied      int `json:"applied"`
	Requeued     int `json:"requeued"`
	DeadLettered int `json:"deadLettered"`
}

// DrainWorker moves queued vote events into the authoritative store:
// batch write first, per-event fallback, bounded retries, dead-letter
// beyond the bound. Acknowledge is always the last side effect of a
// cycle, so a crash mid-drain redelivers instead of losing votes.
type DrainWorker struct {
	queue      eventQueue
	store      voteStore
	audit      auditEmitter
	batchSize  int
	maxRetries int
}

func NewDrainWorker(queue eventQueue, store voteStore, audit auditEmitter, batchSize, maxRetries int) *DrainWorker {
	return &DrainWorker{
		queue:      queue,
		store:      store,
		audit:      audit,
		batchSize:  batchSize,
		maxRetries: maxRetries,
	}
}

// Drain runs one cycle. It is triggered by the scheduler endpoint and
// serialized across instances by the distributed lock in the handler.
func (w *DrainWorker) Drain(ctx context.Context) (DrainResult, error) {
	var res DrainResult

	recovered, err := w.queue.RecoverOrphans(ctx)
	if err != nil {
		return res, err
	}
	res.Recovered = recovered

	items, err := w.queue.Pop(ctx, w.batchSize)
	if err != nil {
		return res, err
	}
	if len(items) == 0 {
		return res, nil
	}

	events := make([]model.VoteEvent, len(items))
	for i, it := range items {
		events[i] = it.Event
	}

	applied := items
	if err := w.store.ApplyBatch(ctx, events); err != nil {
		log.Printf("drain: batch of %d failed, retrying individually: %v", len(items), err)
		applied = w.applyIndividually(ctx, items, &res)
	}

	// Failure handling above is complete; acknowledging is the final
	// action of the cycle.
	if err := w.queue.Acknowledge(ctx, applied); err != nil {
		return res, err
	}

	res.Applied = len(applied)
	if w.audit != nil {
		for _, it := range applied {
			w.audit.VoteApplied(it.Event)
		}
	}

	return res, nil
}

// applyIndividually retries each event of a failed batch on its own and
// returns the subset that succeeded (and should be acknowledged). Events
// that still fail are requeued with a bumped retry count, or dead-lettered
// once the count exceeds the bound.
func (w *DrainWorker) applyIndividually(ctx context.Context, items []QueueItem, res *DrainResult) []QueueItem {
	applied := make([]QueueItem, 0, len(items))

	for _, it := range items {
		err := w.store.ApplyOne(ctx, it.Event)
		if err == nil {
			applied = append(applied, it)
			continue
		}

		next := it.Event.RetryCount + 1
		if next > w.maxRetries {
			if dlErr := w.queue.MoveToDeadLetter(ctx, it, next); dlErr != nil {
				log.Printf("drain: dead-letter failed for %s: %v", it.Event.VoteID, dlErr)
				continue
			}
			res.DeadLettered++
			log.Printf("drain: dead-lettered %s after %d attempts: %v", it.Event.VoteID, next, err)
			if w.audit != nil {
				w.audit.VoteDeadLettered(it.Event)
			}
		} else {
			if rqErr := w.queue.Requeue(ctx, it, next); rqErr != nil {
				log.Printf("drain: requeue failed for %s: %v", it.Event.VoteID, rqErr)
				continue
			}
			res.Requeued++
		}
	}

	return applied
}
