package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chiefnavajo/aimoviez-sub010/internal/cache"
	"github.com/chiefnavajo/aimoviez-sub010/internal/model"
)

// Rejection codes returned by the validator, in evaluation order.
// Voter-scoped checks (quota, dedup) come before slot-state checks:
// they are cheapest to explain to the caller.
const (
	CodeDailyLimit       = "DAILY_LIMIT"
	CodeAlreadyVoted     = "ALREADY_VOTED"
	CodeSlotStateMissing = "SLOT_STATE_MISSING"
	CodeNoActiveSlot     = "NO_ACTIVE_SLOT"
	CodeWrongSlot        = "WRONG_SLOT"
	CodeVotingExpired    = "VOTING_EXPIRED"
	CodeVotingFrozen     = "VOTING_FROZEN"
)

// Validator is the cache-backed fast-path check. All four sub-reads go
// out in a single pipelined round trip to bound latency at one network
// hop.
type Validator struct {
	rdb *redis.Client
}

func NewValidator(rdb *redis.Client) *Validator {
	return &Validator{rdb: rdb}
}

// voteSnapshot is everything the decision needs, fetched in one batch.
type voteSnapshot struct {
	dailyCount int
	hasDedup   bool
	slotState  *model.SlotState // nil when missing or unparsable
	frozen     bool
}

// Validate checks quota, dedup, slot validity and the freeze window.
// A rejection is not an error; errors mean the cache path itself failed.
func (v *Validator) Validate(ctx context.Context, voterKey, clipID, seasonID string, slotPosition, dailyLimit int) (*model.ValidationResult, error) {
	snap, err := v.fetch(ctx, voterKey, clipID, seasonID, slotPosition)
	if err != nil {
		return nil, err
	}
	return decide(snap, slotPosition, dailyLimit, time.Now().UTC()), nil
}

func (v *Validator) fetch(ctx context.Context, voterKey, clipID, seasonID string, slotPosition int) (voteSnapshot, error) {
	date := time.Now().UTC().Format("2006-01-02")

	pipe := v.rdb.Pipeline()
	dailyCmd := pipe.Get(ctx, cache.DailyKey(date, voterKey))
	dedupCmd := pipe.Exists(ctx, cache.DedupKey(voterKey, clipID))
	stateCmd := pipe.Get(ctx, cache.SlotStateKey(seasonID))
	freezeCmd := pipe.Exists(ctx, cache.FreezeKey(seasonID, slotPosition))

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return voteSnapshot{}, err
	}

	var snap voteSnapshot

	if n, err := dailyCmd.Int(); err == nil {
		snap.dailyCount = n
	}
	snap.hasDedup = dedupCmd.Val() > 0
	snap.frozen = freezeCmd.Val() > 0

	if raw, err := stateCmd.Bytes(); err == nil {
		var st model.SlotState
		if json.Unmarshal(raw, &st) == nil {
			snap.slotState = &st
		}
	}

	return snap, nil
}

// decide evaluates the four conditions in fixed order, first match wins.
func decide(s voteSnapshot, slotPosition, dailyLimit int, now time.Time) *model.ValidationResult {
	res := &model.ValidationResult{DailyCount: s.dailyCount}

	switch {
	case s.dailyCount >= dailyLimit:
		res.Code = CodeDailyLimit
	case s.hasDedup:
		res.Code = CodeAlreadyVoted
	case s.slotState == nil:
		// Fail closed: no cached slot state means no vote.
		res.Code = CodeSlotStateMissing
	case s.slotState.Status != model.SlotVoting:
		res.Code = CodeNoActiveSlot
	case s.slotState.Position != slotPosition:
		res.Code = CodeWrongSlot
	case s.slotState.VotingEndsAt != nil && now.After(*s.slotState.VotingEndsAt):
		res.Code = CodeVotingExpired
	case s.frozen:
		res.Code = CodeVotingFrozen
	default:
		res.Valid = true
	}

	return res
}
