package model

import "time"

// SlotStatus is the lifecycle state of a contest slot.
type SlotStatus string

const (
	SlotUpcoming        SlotStatus = "upcoming"
	SlotWaitingForClips SlotStatus = "waiting_for_clips"
	SlotVoting          SlotStatus = "voting"
	SlotLocked          SlotStatus = "locked"
	SlotArchived        SlotStatus = "archived"
)

// Slot is the authoritative row for one contest round within a season.
type Slot struct {
	SeasonID        string     `json:"seasonId"`
	Position        int        `json:"position"`
	Status          SlotStatus `json:"status"`
	WinnerClipID    *string    `json:"winnerClipId,omitempty"`
	VotingStartedAt *time.Time `json:"votingStartedAt,omitempty"`
	VotingEndsAt    *time.Time `json:"votingEndsAt,omitempty"`
}

// SlotState is the cached mirror of the active slot, consumed by the
// fast-path validator. Absence or staleness fails closed.
type SlotState struct {
	SeasonID     string     `json:"seasonId"`
	Position     int        `json:"position"`
	Status       SlotStatus `json:"status"`
	VotingEndsAt *time.Time `json:"votingEndsAt,omitempty"`
}
