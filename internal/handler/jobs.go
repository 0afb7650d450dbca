package handler

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v3"

	"github.com/chiefnavajo/aimoviez-sub010/internal/service"
)

// Lock names for the scheduled jobs.
const (
	lockDrain     = "queue_drain"
	lockReconcile = "reconcile"
	lockAdvance   = "slot_advance"
)

// JobsHandler exposes the scheduler-triggered entry points for queue
// drain, reconciliation and slot advance. Each runs under the
// distributed lock; lock contention is a normal skip, and internal
// errors come back as HTTP 200 {ok:false} so the external scheduler
// never sees a crash.
type JobsHandler struct {
	locker     *service.LockService
	drain      *service.DrainWorker
	reconciler *service.Reconciler
	slots      *service.SlotService
}

func NewJobsHandler(locker *service.LockService, drain *service.DrainWorker, reconciler *service.Reconciler, slots *service.SlotService) *JobsHandler {
	return &JobsHandler{locker: locker, drain: drain, reconciler: reconciler, slots: slots}
}

// Drain handles GET /internal/jobs/drain
func (h *JobsHandler) Drain(c fiber.Ctx) error {
	var result service.DrainResult

	skipped, err := h.locker.RunExclusive(c.Context(), lockDrain, func(ctx context.Context) error {
		var runErr error
		result, runErr = h.drain.Drain(ctx)
		return runErr
	})

	return jobResponse(c, "drain", skipped, result, err)
}

// Reconcile handles GET /internal/jobs/reconcile
func (h *JobsHandler) Reconcile(c fiber.Ctx) error {
	var result service.ReconcileResult

	skipped, err := h.locker.RunExclusive(c.Context(), lockReconcile, func(ctx context.Context) error {
		var runErr error
		result, runErr = h.reconciler.Reconcile(ctx)
		return runErr
	})

	return jobResponse(c, "reconcile", skipped, result, err)
}

// Advance handles GET /internal/jobs/advance?seasonId=...
func (h *JobsHandler) Advance(c fiber.Ctx) error {
	seasonID := c.Query("seasonId")
	if seasonID == "" {
		return c.JSON(fiber.Map{"ok": false, "error": "seasonId is required"})
	}

	var result service.AdvanceResult

	skipped, err := h.locker.RunExclusive(c.Context(), lockAdvance, func(ctx context.Context) error {
		var runErr error
		result, runErr = h.slots.Advance(ctx, seasonID)
		return runErr
	})

	return jobResponse(c, "advance", skipped, result, err)
}

// jobResponse renders the uniform scheduler contract: 200 always, ok
// false only on a real failure, skipped true on lock contention.
func jobResponse(c fiber.Ctx, job string, skipped bool, result any, err error) error {
	if err != nil {
		log.Printf("jobs: %s failed: %v", job, err)
		return c.JSON(fiber.Map{"ok": false, "error": "job failed"})
	}
	if skipped {
		return c.JSON(fiber.Map{"ok": true, "skipped": true})
	}
	return c.JSON(fiber.Map{"ok": true, "results": result})
}
