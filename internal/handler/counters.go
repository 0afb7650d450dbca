package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/chiefnavajo/aimoviez-sub010/internal/middleware"
	"github.com/chiefnavajo/aimoviez-sub010/internal/model"
	"github.com/chiefnavajo/aimoviez-sub010/internal/repository"
	"github.com/chiefnavajo/aimoviez-sub010/internal/service"
)

// CounterHandler serves read traffic from the counter cache, falling
// back to the authoritative aggregates on a miss.
type CounterHandler struct {
	counters *service.CounterCache
	votes    *repository.VoteRepo
	slots    *service.SlotService
}

func NewCounterHandler(counters *service.CounterCache, votes *repository.VoteRepo, slots *service.SlotService) *CounterHandler {
	return &CounterHandler{counters: counters, votes: votes, slots: slots}
}

// GetClipCounters handles GET /api/clips/:clipId/counters
func (h *CounterHandler) GetClipCounters(c fiber.Ctx) error {
	clipID, errMsg := middleware.ValidateClipID(c.Params("clipId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	counter, hit, err := h.counters.Get(c.Context(), clipID)
	if err == nil && hit {
		Metrics.CacheHits.Inc()
		return c.JSON(counter)
	}
	Metrics.CacheMisses.Inc()

	count, weighted, err := h.votes.ClipAggregates(c.Context(), clipID)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load counters")
	}

	counter = &model.ClipCounter{ClipID: clipID, VoteCount: count, WeightedScore: weighted}

	// Warm the cache for the next reader; a failure here only costs a miss.
	_ = h.counters.Set(c.Context(), *counter)

	return c.JSON(counter)
}

// GetCurrentSlot handles GET /api/slots/current?seasonId=...
func (h *CounterHandler) GetCurrentSlot(c fiber.Ctx) error {
	seasonID, errMsg := middleware.ValidateSeasonID(c.Query("seasonId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	state, err := h.slots.CurrentState(c.Context(), seasonID)
	if err != nil {
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load slot state")
	}
	if state == nil {
		return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "No active voting slot")
	}

	return c.JSON(state)
}
