package model

import "time"

// Vote directions carried on a VoteEvent.
const (
	DirectionCast    = "cast"
	DirectionRetract = "retract"
)

// VoteEvent is the durable unit of work flowing through the event queue.
// It is created by the recorder, applied exactly-effectively-once by the
// drain worker (at-least-once delivery, idempotent apply), and destroyed
// on acknowledge or moved to the dead-letter list.
type VoteEvent struct {
	VoteID       string    `json:"voteId"`
	ClipID       string    `json:"clipId"`
	VoterKey     string    `json:"voterKey"`
	SeasonID     string    `json:"seasonId"`
	SlotPosition int       `json:"slotPosition"`
	Direction    string    `json:"direction"`
	Weight       float64   `json:"weight"`
	Timestamp    time.Time `json:"timestamp"`
	RetryCount   int       `json:"retryCount"`
}

// VoteRequest is the API request body for casting a vote.
type VoteRequest struct {
	ClipID       string `json:"clipId"`
	VoterKey     string `json:"voterKey"`
	SeasonID     string `json:"seasonId"`
	SlotPosition int    `json:"slotPosition"`
}

// VoteDeleteRequest is the API request body for retracting a vote.
type VoteDeleteRequest struct {
	ClipID   string `json:"clipId"`
	VoterKey string `json:"voterKey"`
}

// VoteResponse is the API response after a vote attempt.
type VoteResponse struct {
	Accepted   bool   `json:"accepted"`
	Code       string `json:"code,omitempty"`
	DailyCount int    `json:"dailyCount"`
	Path       string `json:"path"` // "fast" or "slow"
}

// ValidationResult is the outcome of the fast-path pre-write check.
type ValidationResult struct {
	Valid      bool
	Code       string
	DailyCount int
}
