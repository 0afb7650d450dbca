package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chiefnavajo/aimoviez-sub010/internal/cache"
	"github.com/chiefnavajo/aimoviez-sub010/internal/model"
	"github.com/chiefnavajo/aimoviez-sub010/internal/repository"
)

// slotTransitions is the legal edge set of the slot lifecycle. The
// voting → waiting_for_clips back-edge covers a slot losing its last
// eligible clip mid-vote.
var slotTransitions = map[model.SlotStatus][]model.SlotStatus{
	model.SlotUpcoming:        {model.SlotWaitingForClips},
	model.SlotWaitingForClips: {model.SlotVoting},
	model.SlotVoting:          {model.SlotLocked, model.SlotWaitingForClips},
	model.SlotLocked:          {model.SlotArchived},
	model.SlotArchived:        {},
}

// CanTransition reports whether from → to is a legal slot edge.
func CanTransition(from, to model.SlotStatus) bool {
	for _, next := range slotTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AdvanceResult summarizes one slot-advance invocation.
type AdvanceResult struct {
	Advanced     bool   `json:"advanced"`
	ClosedSlot   int    `json:"closedSlot,omitempty"`
	WinnerClipID string `json:"winnerClipId,omitempty"`
	OpenedSlot   int    `json:"openedSlot,omitempty"`
}

// SlotService owns the slot lifecycle: opening voting windows, publishing
// the cached SlotState the fast path reads, and the scheduled advance job
// that tallies a finished slot behind a freeze marker.
type SlotService struct {
	repo *repository.SlotRepo
	rdb  *redis.Client

	votingDuration time.Duration
	stateTTL       time.Duration
	freezeTTL      time.Duration
}

func NewSlotService(repo *repository.SlotRepo, rdb *redis.Client, votingDuration, stateTTL, freezeTTL time.Duration) *SlotService {
	return &SlotService{
		repo:           repo,
		rdb:            rdb,
		votingDuration: votingDuration,
		stateTTL:       stateTTL,
		freezeTTL:      freezeTTL,
	}
}

// CurrentState returns the cached slot state for a season, reading
// through to the slot table on a miss. Callers on the fast path must
// treat a miss-with-no-row as "no active slot".
func (s *SlotService) CurrentState(ctx context.Context, seasonID string) (*model.SlotState, error) {
	if raw, err := s.rdb.Get(ctx, cache.SlotStateKey(seasonID)).Bytes(); err == nil {
		var st model.SlotState
		if json.Unmarshal(raw, &st) == nil {
			return &st, nil
		}
	}

	slot, err := s.repo.CurrentVotingSlot(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, nil
	}

	st := stateOf(slot)
	if err := s.publishState(ctx, st); err != nil {
		log.Printf("slots: state publish failed for %s: %v", seasonID, err)
	}
	return st, nil
}

// Transition moves a slot along a legal edge with a conditional update.
func (s *SlotService) Transition(ctx context.Context, seasonID string, position int, from, to model.SlotStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal slot transition %s -> %s", from, to)
	}
	ok, err := s.repo.TransitionStatus(ctx, seasonID, position, from, to)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("slot %s/%d not in %s", seasonID, position, from)
	}
	return nil
}

// OpenVoting transitions a slot into voting, stamps the window and
// publishes the SlotState the fast path validates against. The publish
// happens once, here, not per request.
func (s *SlotService) OpenVoting(ctx context.Context, seasonID string, position int, from model.SlotStatus) error {
	if !CanTransition(from, model.SlotVoting) {
		return fmt.Errorf("illegal slot transition %s -> voting", from)
	}

	endsAt := time.Now().UTC().Add(s.votingDuration)
	ok, err := s.repo.OpenVoting(ctx, seasonID, position, from, endsAt)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("slot %s/%d not in %s", seasonID, position, from)
	}

	return s.publishState(ctx, &model.SlotState{
		SeasonID:     seasonID,
		Position:     position,
		Status:       model.SlotVoting,
		VotingEndsAt: &endsAt,
	})
}

// DemoteToWaiting takes a voting slot back to waiting_for_clips after its
// last eligible clip was removed, and drops the published state so the
// fast path fails closed.
func (s *SlotService) DemoteToWaiting(ctx context.Context, seasonID string, position int) error {
	if err := s.Transition(ctx, seasonID, position, model.SlotVoting, model.SlotWaitingForClips); err != nil {
		return err
	}
	return s.rdb.Del(ctx, cache.SlotStateKey(seasonID)).Err()
}

// Advance runs one pass of the slot-advance job for a season: if the
// current voting slot is past its deadline, freeze voting, tally the
// winner, lock and archive the slot, then open the next one. The freeze
// marker closes the race window between "winner selected" and "new state
// published".
func (s *SlotService) Advance(ctx context.Context, seasonID string) (AdvanceResult, error) {
	var res AdvanceResult

	slot, err := s.repo.CurrentVotingSlot(ctx, seasonID)
	if err != nil {
		return res, err
	}
	if slot == nil || slot.VotingEndsAt == nil || time.Now().UTC().Before(*slot.VotingEndsAt) {
		return res, nil
	}

	freezeKey := cache.FreezeKey(seasonID, slot.Position)
	if err := s.rdb.Set(ctx, freezeKey, "1", s.freezeTTL).Err(); err != nil {
		return res, fmt.Errorf("set freeze marker: %w", err)
	}

	winner, err := s.repo.Winner(ctx, seasonID, slot.Position)
	if err != nil {
		return res, err
	}
	if winner != "" {
		if err := s.repo.SetWinner(ctx, seasonID, slot.Position, winner); err != nil {
			return res, err
		}
	}

	if err := s.Transition(ctx, seasonID, slot.Position, model.SlotVoting, model.SlotLocked); err != nil {
		return res, err
	}
	if err := s.Transition(ctx, seasonID, slot.Position, model.SlotLocked, model.SlotArchived); err != nil {
		return res, err
	}

	res.Advanced = true
	res.ClosedSlot = slot.Position
	res.WinnerClipID = winner

	opened, err := s.openNext(ctx, seasonID, slot.Position+1)
	if err != nil {
		return res, err
	}
	if opened {
		res.OpenedSlot = slot.Position + 1
	} else {
		// Season ended or next slot has no clips: no published state.
		if err := s.rdb.Del(ctx, cache.SlotStateKey(seasonID)).Err(); err != nil {
			log.Printf("slots: state delete failed for %s: %v", seasonID, err)
		}
	}

	// New state is published; lift the freeze instead of waiting out the TTL.
	if err := s.rdb.Del(ctx, freezeKey).Err(); err != nil {
		log.Printf("slots: freeze delete failed for %s/%d: %v", seasonID, slot.Position, err)
	}

	return res, nil
}

// openNext moves the next slot into voting if it exists and has clips.
func (s *SlotService) openNext(ctx context.Context, seasonID string, position int) (bool, error) {
	next, err := s.repo.GetSlot(ctx, seasonID, position)
	if err != nil {
		return false, err
	}
	if next == nil {
		return false, nil
	}

	if next.Status == model.SlotUpcoming {
		if err := s.Transition(ctx, seasonID, position, model.SlotUpcoming, model.SlotWaitingForClips); err != nil {
			return false, err
		}
		next.Status = model.SlotWaitingForClips
	}
	if next.Status != model.SlotWaitingForClips {
		return false, nil
	}

	clips, err := s.repo.EligibleClipCount(ctx, seasonID, position)
	if err != nil {
		return false, err
	}
	if clips == 0 {
		return false, nil
	}

	if err := s.OpenVoting(ctx, seasonID, position, model.SlotWaitingForClips); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SlotService) publishState(ctx context.Context, st *model.SlotState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, cache.SlotStateKey(st.SeasonID), raw, s.stateTTL).Err()
}

func stateOf(slot *model.Slot) *model.SlotState {
	return &model.SlotState{
		SeasonID:     slot.SeasonID,
		Position:     slot.Position,
		Status:       slot.Status,
		VotingEndsAt: slot.VotingEndsAt,
	}
}
