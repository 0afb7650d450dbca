package model

// ClipCounter is the read-optimized vote tally for one clip. It lives in
// the counter cache, is advisory only, and is rebuilt from the votes table
// by the reconciliation job.
type ClipCounter struct {
	ClipID        string  `json:"clipId"`
	VoteCount     int64   `json:"voteCount"`
	WeightedScore float64 `json:"weightedScore"`
}
