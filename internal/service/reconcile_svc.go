package service

import (
	"context"
	"log"

	"github.com/chiefnavajo/aimoviez-sub010/internal/model"
)

// counterStore is the counter-cache surface the reconciler needs.
type counterStore interface {
	ActiveClips(ctx context.Context) ([]string, error)
	Set(ctx context.Context, counter model.ClipCounter) error
	ClearActive(ctx context.Context, clipID string) error
}

// aggregateStore recomputes authoritative tallies.
type aggregateStore interface {
	ClipAggregates(ctx context.Context, clipID string) (int64, float64, error)
}

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Scanned    int `json:"scanned"`
	Reconciled int `json:"reconciled"`
}

// Reconciler is the correctness backstop for the counter cache: it
// recomputes tallies for recently-active clips from the votes table and
// overwrites the cache, last writer wins. Increments racing a pass may be
// briefly lost; the next pass heals them.
type Reconciler struct {
	counters counterStore
	votes    aggregateStore
}

func NewReconciler(counters counterStore, votes aggregateStore) *Reconciler {
	return &Reconciler{counters: counters, votes: votes}
}

// Reconcile runs one pass over the active-clips set. Idempotent: a second
// pass with no intervening votes writes identical values.
func (r *Reconciler) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult

	clips, err := r.counters.ActiveClips(ctx)
	if err != nil {
		return res, err
	}
	res.Scanned = len(clips)

	for _, clipID := range clips {
		count, weighted, err := r.votes.ClipAggregates(ctx, clipID)
		if err != nil {
			log.Printf("reconciler: aggregate query failed for %s: %v", clipID, err)
			continue
		}

		if err := r.counters.Set(ctx, model.ClipCounter{
			ClipID:        clipID,
			VoteCount:     count,
			WeightedScore: weighted,
		}); err != nil {
			log.Printf("reconciler: cache write failed for %s: %v", clipID, err)
			continue
		}

		// Only drop the activity marker once the corrected value landed.
		if err := r.counters.ClearActive(ctx, clipID); err != nil {
			log.Printf("reconciler: clear active failed for %s: %v", clipID, err)
			continue
		}

		res.Reconciled++
	}

	return res, nil
}
