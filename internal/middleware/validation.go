package middleware

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// Field length limits matching database schema constraints.
const (
	MaxClipIDLen   = 36 // clips.clip_id UUID text form
	MaxSeasonIDLen = 36 // slot.season_id UUID text form
	MaxVoterKeyLen = 66 // 64-char hex hash plus the u_/d_ prefix
	MaxSlotPos     = 999
)

var (
	// idRe matches UUID-ish identifiers: alphanumeric, dash, underscore.
	idRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	// voterKeyRe matches derived voter keys: a u_/d_ prefix and a hex hash.
	voterKeyRe = regexp.MustCompile(`^[ud]_[0-9a-f]+$`)
)

// ErrorResponse is a helper that returns a standard API error response.
func ErrorResponse(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}

// ValidateClipID checks that a clip ID is well-formed and within DB limits.
func ValidateClipID(id string) (string, string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "clipId is required"
	}
	if len(id) > MaxClipIDLen {
		return "", "clipId must be at most 36 characters"
	}
	if !idRe.MatchString(id) {
		return "", "clipId contains invalid characters"
	}
	return id, ""
}

// ValidateSeasonID checks that a season ID is well-formed.
func ValidateSeasonID(id string) (string, string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "seasonId is required"
	}
	if len(id) > MaxSeasonIDLen {
		return "", "seasonId must be at most 36 characters"
	}
	if !idRe.MatchString(id) {
		return "", "seasonId contains invalid characters"
	}
	return id, ""
}

// ValidateVoterKey checks that a voter key is a prefixed hex hash.
func ValidateVoterKey(key string) (string, string) {
	key = strings.TrimSpace(strings.ToLower(key))
	if key == "" {
		return "", "voterKey is required"
	}
	if len(key) > MaxVoterKeyLen {
		return "", "voterKey must be at most 66 characters"
	}
	if !voterKeyRe.MatchString(key) {
		return "", "voterKey must be a prefixed hexadecimal hash"
	}
	return key, ""
}

// ValidateSlotPosition bounds the slot position.
func ValidateSlotPosition(pos int) string {
	if pos < 0 || pos > MaxSlotPos {
		return "slotPosition out of range"
	}
	return ""
}
