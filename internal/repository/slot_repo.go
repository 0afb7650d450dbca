package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chiefnavajo/aimoviez-sub010/internal/model"
)

// SlotRepo owns the slot table — the sole source of vote-legality truth.
// Status changes go through compare-and-swap updates so two concurrent
// job instances cannot both advance the same slot.
type SlotRepo struct {
	pool *pgxpool.Pool
}

func NewSlotRepo(pool *pgxpool.Pool) *SlotRepo {
	return &SlotRepo{pool: pool}
}

const slotColumns = `season_id, position, status, winner_clip_id, voting_started_at, voting_ends_at`

func scanSlot(row pgx.Row) (*model.Slot, error) {
	var s model.Slot
	err := row.Scan(&s.SeasonID, &s.Position, &s.Status, &s.WinnerClipID, &s.VotingStartedAt, &s.VotingEndsAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CurrentVotingSlot returns the season's slot in "voting" status, or nil.
func (r *SlotRepo) CurrentVotingSlot(ctx context.Context, seasonID string) (*model.Slot, error) {
	s, err := scanSlot(r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+` FROM slot
		WHERE season_id = $1 AND status = 'voting'
		ORDER BY position ASC LIMIT 1`, seasonID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// GetSlot fetches one slot row.
func (r *SlotRepo) GetSlot(ctx context.Context, seasonID string, position int) (*model.Slot, error) {
	s, err := scanSlot(r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+` FROM slot
		WHERE season_id = $1 AND position = $2`, seasonID, position))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// TransitionStatus moves a slot from one status to another with a
// conditional update. Returns false when the slot was not in the
// expected source status (someone else got there first).
func (r *SlotRepo) TransitionStatus(ctx context.Context, seasonID string, position int, from, to model.SlotStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slot SET status = $4
		WHERE season_id = $1 AND position = $2 AND status = $3`,
		seasonID, position, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// OpenVoting transitions a slot into "voting" and stamps the window.
func (r *SlotRepo) OpenVoting(ctx context.Context, seasonID string, position int, from model.SlotStatus, endsAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slot SET status = 'voting', voting_started_at = NOW(), voting_ends_at = $4
		WHERE season_id = $1 AND position = $2 AND status = $3`,
		seasonID, position, from, endsAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetWinner records the tallied winner on a slot.
func (r *SlotRepo) SetWinner(ctx context.Context, seasonID string, position int, clipID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE slot SET winner_clip_id = $3
		WHERE season_id = $1 AND position = $2`,
		seasonID, position, clipID)
	return err
}

// Winner returns the highest-scoring clip of a slot from the
// authoritative counters; ties break on clip_id for determinism.
func (r *SlotRepo) Winner(ctx context.Context, seasonID string, position int) (string, error) {
	var clipID string
	err := r.pool.QueryRow(ctx, `
		SELECT c.clip_id
		FROM clips c
		JOIN clip_counters cc ON cc.clip_id = c.clip_id
		WHERE c.season_id = $1 AND c.slot_position = $2
		ORDER BY cc.weighted_score DESC, c.clip_id ASC
		LIMIT 1`, seasonID, position).Scan(&clipID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return clipID, err
}

// EligibleClipCount reports how many clips a slot has to vote on.
func (r *SlotRepo) EligibleClipCount(ctx context.Context, seasonID string, position int) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM clips
		WHERE season_id = $1 AND slot_position = $2`,
		seasonID, position).Scan(&count)
	return count, err
}
