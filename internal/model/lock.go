package model

import "time"

// LockLease is one row of the job_lock table: a time-bounded exclusivity
// token for a named background job. A lease past ExpiresAt may be swept
// by any acquirer; release is scoped to the holder's LeaseID.
type LockLease struct {
	JobName   string    `json:"jobName"`
	LeaseID   string    `json:"leaseId"`
	ExpiresAt time.Time `json:"expiresAt"`
}
