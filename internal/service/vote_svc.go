package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/chiefnavajo/aimoviez-sub010/internal/cache"
	"github.com/chiefnavajo/aimoviez-sub010/internal/model"
	"github.com/chiefnavajo/aimoviez-sub010/internal/repository"
	"github.com/chiefnavajo/aimoviez-sub010/pkg/hash"
)

// Vote weights by voter-key kind. Account-backed voters carry more weight
// than device-derived anonymous voters.
const (
	weightAccount   = 1.5
	weightAnonymous = 1.0
)

// VoteService routes a vote attempt: fast path (cache validator +
// recorder) behind the circuit breaker when the feature flag allows it,
// otherwise directly against the authoritative store.
type VoteService struct {
	validator *Validator
	recorder  *Recorder
	breaker   *Breaker
	flags     *FlagService
	votes     *repository.VoteRepo
	slots     *SlotService
	rdb       *redis.Client

	dailyLimit int
}

func NewVoteService(validator *Validator, recorder *Recorder, breaker *Breaker, flags *FlagService,
	votes *repository.VoteRepo, slots *SlotService, rdb *redis.Client, dailyLimit int) *VoteService {
	return &VoteService{
		validator:  validator,
		recorder:   recorder,
		breaker:    breaker,
		flags:      flags,
		votes:      votes,
		slots:      slots,
		rdb:        rdb,
		dailyLimit: dailyLimit,
	}
}

// Cast processes one vote attempt. A rejection comes back with Accepted
// false and a stable code; an error means both paths failed and the
// caller should surface a generic retryable response.
func (s *VoteService) Cast(ctx context.Context, req model.VoteRequest) (*model.VoteResponse, error) {
	ev := model.VoteEvent{
		VoteID:       uuid.NewString(),
		ClipID:       req.ClipID,
		VoterKey:     req.VoterKey,
		SeasonID:     req.SeasonID,
		SlotPosition: req.SlotPosition,
		Direction:    model.DirectionCast,
		Weight:       voteWeight(req.VoterKey),
		Timestamp:    time.Now().UTC(),
	}
	date := ev.Timestamp.Format("2006-01-02")

	if s.flags.Resolve(ctx).FastPath {
		resp, err := s.castFast(ctx, ev, date)
		if err == nil {
			return resp, nil
		}
		if !IsOpenErr(err) {
			log.Printf("votes: fast path failed, falling back: %v", err)
		}
	}

	return s.castSlow(ctx, ev, date)
}

// castFast runs validation and recording through the breaker. Only
// infrastructure failures propagate into the breaker; rejections are a
// normal outcome.
func (s *VoteService) castFast(ctx context.Context, ev model.VoteEvent, date string) (*model.VoteResponse, error) {
	var resp *model.VoteResponse

	err := s.breaker.Run(func() error {
		result, err := s.validator.Validate(ctx, ev.VoterKey, ev.ClipID, ev.SeasonID, ev.SlotPosition, s.dailyLimit)
		if err != nil {
			return err
		}
		if !result.Valid {
			resp = &model.VoteResponse{Code: result.Code, DailyCount: result.DailyCount, Path: "fast"}
			return nil
		}

		accepted, dailyCount, err := s.recorder.Record(ctx, ev, date)
		if err != nil {
			return err
		}
		if !accepted {
			// Lost the SETNX race to a concurrent identical vote.
			resp = &model.VoteResponse{Code: CodeAlreadyVoted, DailyCount: result.DailyCount, Path: "fast"}
			return nil
		}

		resp = &model.VoteResponse{Accepted: true, DailyCount: dailyCount, Path: "fast"}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// castSlow validates and records directly against Postgres. Slower, but
// it works with the cache completely down.
func (s *VoteService) castSlow(ctx context.Context, ev model.VoteEvent, date string) (*model.VoteResponse, error) {
	snap, err := s.slowSnapshot(ctx, ev)
	if err != nil {
		return nil, err
	}

	result := decide(snap, ev.SlotPosition, s.dailyLimit, time.Now().UTC())
	if !result.Valid {
		return &model.VoteResponse{Code: result.Code, DailyCount: result.DailyCount, Path: "slow"}, nil
	}

	inserted, err := s.votes.InsertDirect(ctx, ev)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return &model.VoteResponse{Code: CodeAlreadyVoted, DailyCount: snap.dailyCount, Path: "slow"}, nil
	}

	// Best-effort cache upkeep; the reconciler heals whatever this misses.
	s.markActivity(ctx, ev)

	return &model.VoteResponse{Accepted: true, DailyCount: snap.dailyCount + 1, Path: "slow"}, nil
}

// slowSnapshot assembles the validator's snapshot from the authoritative
// store. The freeze marker is still read from the cache best-effort; if
// the cache is down the DB slot status already reflects the transition.
func (s *VoteService) slowSnapshot(ctx context.Context, ev model.VoteEvent) (voteSnapshot, error) {
	var snap voteSnapshot

	count, err := s.votes.CountVotesOnDate(ctx, ev.VoterKey, ev.Timestamp)
	if err != nil {
		return snap, err
	}
	snap.dailyCount = count

	snap.hasDedup, err = s.votes.HasVote(ctx, ev.VoterKey, ev.ClipID)
	if err != nil {
		return snap, err
	}

	state, err := s.slots.CurrentState(ctx, ev.SeasonID)
	if err != nil {
		return snap, err
	}
	snap.slotState = state

	if n, err := s.rdb.Exists(ctx, cache.FreezeKey(ev.SeasonID, ev.SlotPosition)).Result(); err == nil {
		snap.frozen = n > 0
	}

	return snap, nil
}

// Retract removes a voter's vote on a clip: fast path through the
// recorder, slow path straight to the store.
func (s *VoteService) Retract(ctx context.Context, req model.VoteDeleteRequest) (*model.VoteResponse, error) {
	ev := model.VoteEvent{
		VoteID:    uuid.NewString(),
		ClipID:    req.ClipID,
		VoterKey:  req.VoterKey,
		Direction: model.DirectionRetract,
		Weight:    voteWeight(req.VoterKey),
		Timestamp: time.Now().UTC(),
	}
	date := ev.Timestamp.Format("2006-01-02")

	if s.flags.Resolve(ctx).FastPath {
		var resp *model.VoteResponse
		err := s.breaker.Run(func() error {
			removed, err := s.recorder.Unrecord(ctx, ev, date)
			if err != nil {
				return err
			}
			resp = &model.VoteResponse{Accepted: removed, Path: "fast"}
			if !removed {
				resp.Code = "VOTE_NOT_FOUND"
			}
			return nil
		})
		if err == nil {
			return resp, nil
		}
		if !IsOpenErr(err) {
			log.Printf("votes: fast retract failed, falling back: %v", err)
		}
	}

	removed, err := s.votes.DeleteDirect(ctx, ev.VoterKey, ev.ClipID, ev.Weight)
	if err != nil {
		return nil, err
	}
	resp := &model.VoteResponse{Accepted: removed, Path: "slow"}
	if !removed {
		resp.Code = "VOTE_NOT_FOUND"
	}
	return resp, nil
}

func (s *VoteService) markActivity(ctx context.Context, ev model.VoteEvent) {
	if err := s.rdb.SAdd(ctx, cache.ActiveClipsKey, ev.ClipID).Err(); err != nil {
		log.Printf("votes: mark active failed for %s: %v", ev.ClipID, err)
	}
}

// voteWeight maps the voter-key kind to its vote weight.
func voteWeight(voterKey string) float64 {
	if strings.HasPrefix(voterKey, hash.AccountKeyPrefix) {
		return weightAccount
	}
	return weightAnonymous
}
