package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chiefnavajo/aimoviez-sub010/internal/model"
)

// VoteRepo owns the authoritative votes and clip_counters tables. The
// unique constraint on (voter_key, clip_id) is the durable half of the
// dedup guarantee; the cache marker is only the fast half.
type VoteRepo struct {
	pool *pgxpool.Pool
}

func NewVoteRepo(pool *pgxpool.Pool) *VoteRepo {
	return &VoteRepo{pool: pool}
}

const (
	insertVoteSQL = `
		INSERT INTO votes (vote_id, clip_id, voter_key, season_id, slot_position, weight, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (voter_key, clip_id) DO NOTHING`

	deleteVoteSQL = `DELETE FROM votes WHERE voter_key = $1 AND clip_id = $2`

	incrCounterSQL = `
		INSERT INTO clip_counters (clip_id, vote_count, weighted_score)
		VALUES ($1, 1, $2)
		ON CONFLICT (clip_id) DO UPDATE
		SET vote_count = clip_counters.vote_count + 1,
		    weighted_score = clip_counters.weighted_score + EXCLUDED.weighted_score`

	decrCounterSQL = `
		UPDATE clip_counters
		SET vote_count = vote_count - 1, weighted_score = GREATEST(weighted_score - $2, 0)
		WHERE clip_id = $1 AND vote_count > 0`
)

// ApplyOne durably applies a single vote event. Re-applying the same cast
// event is a no-op (ON CONFLICT), which is what makes at-least-once queue
// delivery safe.
func (r *VoteRepo) ApplyOne(ctx context.Context, ev model.VoteEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := applyEvent(ctx, tx, ev); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ApplyBatch applies a batch of vote events in one transaction. Any
// failure aborts the whole batch; the drain worker then falls back to
// per-event application.
func (r *VoteRepo) ApplyBatch(ctx context.Context, events []model.VoteEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, ev := range events {
		queueEvent(batch, ev)
	}

	br := tx.SendBatch(ctx, batch)
	for range batch.Len() {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func queueEvent(batch *pgx.Batch, ev model.VoteEvent) {
	switch ev.Direction {
	case model.DirectionRetract:
		batch.Queue(deleteVoteSQL, ev.VoterKey, ev.ClipID)
		batch.Queue(decrCounterSQL, ev.ClipID, ev.Weight)
	default:
		batch.Queue(insertVoteSQL,
			ev.VoteID, ev.ClipID, ev.VoterKey, ev.SeasonID, ev.SlotPosition, ev.Weight, ev.Timestamp)
	}
}

func applyEvent(ctx context.Context, tx pgx.Tx, ev model.VoteEvent) error {
	if ev.Direction == model.DirectionRetract {
		tag, err := tx.Exec(ctx, deleteVoteSQL, ev.VoterKey, ev.ClipID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			if _, err := tx.Exec(ctx, decrCounterSQL, ev.ClipID, ev.Weight); err != nil {
				return err
			}
		}
		return nil
	}

	tag, err := tx.Exec(ctx, insertVoteSQL,
		ev.VoteID, ev.ClipID, ev.VoterKey, ev.SeasonID, ev.SlotPosition, ev.Weight, ev.Timestamp)
	if err != nil {
		if IsUniqueViolation(err) {
			// Duplicate apply of an already-recorded vote: success.
			return nil
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		// Conflict path of ON CONFLICT DO NOTHING — already applied.
		return nil
	}

	_, err = tx.Exec(ctx, incrCounterSQL, ev.ClipID, ev.Weight)
	return err
}

// InsertDirect is the slow-path write used while the breaker is open:
// one synchronous insert against the authoritative store. Returns false
// if the voter already voted this clip.
func (r *VoteRepo) InsertDirect(ctx context.Context, ev model.VoteEvent) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, insertVoteSQL,
		ev.VoteID, ev.ClipID, ev.VoterKey, ev.SeasonID, ev.SlotPosition, ev.Weight, ev.Timestamp)
	if err != nil {
		if IsUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, incrCounterSQL, ev.ClipID, ev.Weight); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

// DeleteDirect removes a vote synchronously (slow-path unvote).
func (r *VoteRepo) DeleteDirect(ctx context.Context, voterKey, clipID string, weight float64) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, deleteVoteSQL, voterKey, clipID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, decrCounterSQL, clipID, weight); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

// CountVotesOnDate returns how many votes a voter cast on a UTC calendar
// date. Slow-path replacement for the cached daily counter.
func (r *VoteRepo) CountVotesOnDate(ctx context.Context, voterKey string, date time.Time) (int, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM votes
		WHERE voter_key = $1 AND created_at >= $2 AND created_at < $3`,
		voterKey, dayStart, dayEnd).Scan(&count)
	return count, err
}

// HasVote reports whether a vote exists for (voterKey, clipID).
func (r *VoteRepo) HasVote(ctx context.Context, voterKey, clipID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM votes WHERE voter_key = $1 AND clip_id = $2)`,
		voterKey, clipID).Scan(&exists)
	return exists, err
}

// ClipAggregates recomputes a clip's authoritative vote count and weighted
// score from the votes table. The reconciliation job pushes this into the
// counter cache, overwriting whatever drift accumulated there.
func (r *VoteRepo) ClipAggregates(ctx context.Context, clipID string) (int64, float64, error) {
	var count int64
	var weighted float64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(weight), 0)
		FROM votes WHERE clip_id = $1`,
		clipID).Scan(&count, &weighted)
	return count, weighted, err
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
