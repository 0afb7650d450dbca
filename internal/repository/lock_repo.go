package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chiefnavajo/aimoviez-sub010/internal/model"
)

// LockRepo implements the lease-based distributed lock on the job_lock
// table. The primary key on job_name is the mutual-exclusion mechanism:
// at most one live lease row can exist per job.
type LockRepo struct {
	pool *pgxpool.Pool
}

func NewLockRepo(pool *pgxpool.Pool) *LockRepo {
	return &LockRepo{pool: pool}
}

// Acquire sweeps an expired lease for jobName, then tries to insert a
// fresh one. A conflicting live row means another instance holds the
// lock; the caller gets a nil lease and should skip this run, not block.
func (r *LockRepo) Acquire(ctx context.Context, jobName string, ttl time.Duration) (*model.LockLease, error) {
	// Opportunistic sweep: anyone may delete a lease past its expiry.
	if _, err := r.pool.Exec(ctx, `
		DELETE FROM job_lock WHERE job_name = $1 AND expires_at < NOW()`,
		jobName); err != nil {
		return nil, err
	}

	lease := model.LockLease{
		JobName: jobName,
		LeaseID: uuid.NewString(),
	}
	// Expiry is computed on the DB clock, the same one the sweep compares
	// against. DO NOTHING yields no row on conflict.
	err := r.pool.QueryRow(ctx, `
		INSERT INTO job_lock (job_name, lease_id, expires_at)
		VALUES ($1, $2, NOW() + $3)
		ON CONFLICT (job_name) DO NOTHING
		RETURNING expires_at`,
		lease.JobName, lease.LeaseID, ttl).Scan(&lease.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

// Release deletes the lease only if its lease ID still matches, so an
// instance whose lease expired cannot release a lock re-acquired by
// someone else.
func (r *LockRepo) Release(ctx context.Context, lease *model.LockLease) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM job_lock WHERE job_name = $1 AND lease_id = $2`,
		lease.JobName, lease.LeaseID)
	return err
}
