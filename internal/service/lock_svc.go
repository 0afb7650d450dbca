package service

import (
	"context"
	"log"
	"time"

	"github.com/chiefnavajo/aimoviez-sub010/internal/repository"
)

// LockService wraps the job_lock table for scheduled jobs. Contention is
// not an error: the losing instance skips its run and the scheduler sees
// a normal success.
type LockService struct {
	repo     *repository.LockRepo
	leaseTTL time.Duration
}

func NewLockService(repo *repository.LockRepo, leaseTTL time.Duration) *LockService {
	return &LockService{repo: repo, leaseTTL: leaseTTL}
}

// RunExclusive executes fn under the named job lease. Returns skipped =
// true when another instance holds the lock. The lease expiry bounds how
// long a crashed holder blocks the job.
func (l *LockService) RunExclusive(ctx context.Context, jobName string, fn func(ctx context.Context) error) (skipped bool, err error) {
	lease, err := l.repo.Acquire(ctx, jobName, l.leaseTTL)
	if err != nil {
		return false, err
	}
	if lease == nil {
		return true, nil
	}

	defer func() {
		if relErr := l.repo.Release(ctx, lease); relErr != nil {
			log.Printf("lock: release failed for %s (lease %s): %v", jobName, lease.LeaseID, relErr)
		}
	}()

	return false, fn(ctx)
}
