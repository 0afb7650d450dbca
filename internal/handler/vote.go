package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/chiefnavajo/aimoviez-sub010/internal/middleware"
	"github.com/chiefnavajo/aimoviez-sub010/internal/model"
	"github.com/chiefnavajo/aimoviez-sub010/internal/service"
)

type VoteHandler struct {
	svc *service.VoteService
}

func NewVoteHandler(svc *service.VoteService) *VoteHandler {
	return &VoteHandler{svc: svc}
}

// rejectionStatus maps validator codes to HTTP statuses. Rejections are
// user outcomes, not server errors.
func rejectionStatus(code string) int {
	switch code {
	case service.CodeDailyLimit:
		return fiber.StatusTooManyRequests
	case service.CodeAlreadyVoted:
		return fiber.StatusConflict
	default:
		return fiber.StatusConflict
	}
}

// rejectionMessage keeps user-facing text specific and actionable.
func rejectionMessage(code string) string {
	switch code {
	case service.CodeDailyLimit:
		return "Daily vote limit reached"
	case service.CodeAlreadyVoted:
		return "You already voted for this clip"
	case service.CodeSlotStateMissing, service.CodeNoActiveSlot:
		return "No slot is open for voting right now"
	case service.CodeWrongSlot:
		return "This clip is not in the active slot"
	case service.CodeVotingExpired:
		return "Voting for this slot has ended"
	case service.CodeVotingFrozen:
		return "Voting is paused while results are tallied"
	default:
		return "Vote rejected"
	}
}

// Submit handles POST /api/votes
func (h *VoteHandler) Submit(c fiber.Ctx) error {
	var req model.VoteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}

	clipID, errMsg := middleware.ValidateClipID(req.ClipID)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	req.ClipID = clipID

	voterKey, errMsg := middleware.ValidateVoterKey(req.VoterKey)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	req.VoterKey = voterKey

	seasonID, errMsg := middleware.ValidateSeasonID(req.SeasonID)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	req.SeasonID = seasonID

	if errMsg := middleware.ValidateSlotPosition(req.SlotPosition); errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	resp, err := h.svc.Cast(c.Context(), req)
	if err != nil {
		// Both paths failed; never leak storage detail to the voter.
		return middleware.ErrorResponse(c, fiber.StatusServiceUnavailable, "RETRYABLE", "Could not record your vote, please try again")
	}

	if !resp.Accepted {
		Metrics.VoteRejections.WithLabelValues(resp.Code).Inc()
		return middleware.ErrorResponse(c, rejectionStatus(resp.Code), resp.Code, rejectionMessage(resp.Code))
	}

	Metrics.VotesAccepted.WithLabelValues(resp.Path).Inc()
	return c.JSON(resp)
}

// Delete handles DELETE /api/votes
func (h *VoteHandler) Delete(c fiber.Ctx) error {
	var req model.VoteDeleteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}

	clipID, errMsg := middleware.ValidateClipID(req.ClipID)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	req.ClipID = clipID

	voterKey, errMsg := middleware.ValidateVoterKey(req.VoterKey)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	req.VoterKey = voterKey

	resp, err := h.svc.Retract(c.Context(), req)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusServiceUnavailable, "RETRYABLE", "Could not remove your vote, please try again")
	}

	if !resp.Accepted {
		return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "Vote not found")
	}

	return c.JSON(resp)
}
