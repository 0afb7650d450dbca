package cache

import "fmt"

// Queue transport keys. Pending and processing are Redis lists; the
// deadlines hash maps an in-flight payload to its recovery deadline.
const (
	QueuePendingKey    = "votes:queue:pending"
	QueueProcessingKey = "votes:queue:processing"
	QueueDeadlinesKey  = "votes:queue:deadlines"
	QueueDeadKey       = "votes:queue:dead"

	ActiveClipsKey = "clips:active"
)

// DailyKey tracks one voter's vote count for a calendar date (UTC).
func DailyKey(date, voterKey string) string {
	return fmt.Sprintf("daily:%s:%s", date, voterKey)
}

// DedupKey is the presence marker proving a voter already voted a clip.
func DedupKey(voterKey, clipID string) string {
	return fmt.Sprintf("voted:%s:%s", voterKey, clipID)
}

// SlotStateKey holds the cached SlotState JSON for a season.
func SlotStateKey(seasonID string) string {
	return fmt.Sprintf("slot:state:%s", seasonID)
}

// FreezeKey is set for the short window while a slot's votes are tallied.
func FreezeKey(seasonID string, position int) string {
	return fmt.Sprintf("slot:freeze:%s:%d", seasonID, position)
}

// ClipCounterKey is the hash holding a clip's vote count and weighted score.
func ClipCounterKey(clipID string) string {
	return fmt.Sprintf("clip:counters:%s", clipID)
}

// FlagKey caches one feature flag's enabled bit.
func FlagKey(name string) string {
	return fmt.Sprintf("flag:%s", name)
}
