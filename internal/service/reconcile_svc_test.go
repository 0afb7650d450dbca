package service

import (
	"context"
	"errors"
	"testing"

	"github.com/chiefnavajo/aimoviez-sub010/internal/model"
)

// fakeCounters is an in-memory counter cache with the reconciler's view.
type fakeCounters struct {
	active   map[string]bool
	counters map[string]model.ClipCounter
	setErr   map[string]error
}

func newFakeCounters(active ...string) *fakeCounters {
	f := &fakeCounters{
		active:   make(map[string]bool),
		counters: make(map[string]model.ClipCounter),
		setErr:   make(map[string]error),
	}
	for _, clip := range active {
		f.active[clip] = true
	}
	return f
}

func (f *fakeCounters) ActiveClips(ctx context.Context) ([]string, error) {
	var clips []string
	for clip := range f.active {
		clips = append(clips, clip)
	}
	return clips, nil
}

func (f *fakeCounters) Set(ctx context.Context, counter model.ClipCounter) error {
	if err := f.setErr[counter.ClipID]; err != nil {
		return err
	}
	f.counters[counter.ClipID] = counter
	return nil
}

func (f *fakeCounters) ClearActive(ctx context.Context, clipID string) error {
	delete(f.active, clipID)
	return nil
}

// fakeAggregates serves fixed authoritative tallies.
type fakeAggregates struct {
	tallies map[string]model.ClipCounter
}

func (f *fakeAggregates) ClipAggregates(ctx context.Context, clipID string) (int64, float64, error) {
	t, ok := f.tallies[clipID]
	if !ok {
		return 0, 0, nil
	}
	return t.VoteCount, t.WeightedScore, nil
}

func TestReconcile_OverwritesDriftedCounters(t *testing.T) {
	counters := newFakeCounters("clip-1", "clip-2")
	// clip-1 drifted in the cache; authoritative says 10 votes.
	counters.counters["clip-1"] = model.ClipCounter{ClipID: "clip-1", VoteCount: 13, WeightedScore: 19.5}

	votes := &fakeAggregates{tallies: map[string]model.ClipCounter{
		"clip-1": {VoteCount: 10, WeightedScore: 14.0},
		"clip-2": {VoteCount: 3, WeightedScore: 4.5},
	}}

	r := NewReconciler(counters, votes)
	res, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Reconciled != 2 {
		t.Errorf("reconciled = %d, want 2", res.Reconciled)
	}

	got := counters.counters["clip-1"]
	if got.VoteCount != 10 || got.WeightedScore != 14.0 {
		t.Errorf("clip-1 = %+v, want authoritative values", got)
	}
	if len(counters.active) != 0 {
		t.Errorf("active set not cleared: %v", counters.active)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	counters := newFakeCounters("clip-1")
	votes := &fakeAggregates{tallies: map[string]model.ClipCounter{
		"clip-1": {VoteCount: 7, WeightedScore: 9.0},
	}}

	r := NewReconciler(counters, votes)
	if _, err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	first := counters.counters["clip-1"]

	// Re-mark as active with no intervening votes; values must not change.
	counters.active["clip-1"] = true
	if _, err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	second := counters.counters["clip-1"]

	if first != second {
		t.Errorf("second pass changed values: %+v -> %+v", first, second)
	}
}

func TestReconcile_KeepsActiveMarkerOnWriteFailure(t *testing.T) {
	counters := newFakeCounters("clip-1")
	counters.setErr["clip-1"] = errors.New("cache down")

	votes := &fakeAggregates{tallies: map[string]model.ClipCounter{
		"clip-1": {VoteCount: 7, WeightedScore: 9.0},
	}}

	r := NewReconciler(counters, votes)
	res, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Reconciled != 0 {
		t.Errorf("reconciled = %d, want 0", res.Reconciled)
	}
	// The marker survives so the next pass retries this clip.
	if !counters.active["clip-1"] {
		t.Error("active marker must not be cleared when the corrective write failed")
	}
}

func TestReconcile_ZeroVoteClip(t *testing.T) {
	// A clip whose votes were all retracted reconciles to zero, not to
	// a stale cached positive value.
	counters := newFakeCounters("clip-1")
	counters.counters["clip-1"] = model.ClipCounter{ClipID: "clip-1", VoteCount: 4, WeightedScore: 6.0}

	votes := &fakeAggregates{tallies: map[string]model.ClipCounter{}}

	r := NewReconciler(counters, votes)
	if _, err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := counters.counters["clip-1"]
	if got.VoteCount != 0 || got.WeightedScore != 0 {
		t.Errorf("clip-1 = %+v, want zeros", got)
	}
}
