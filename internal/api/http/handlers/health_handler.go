package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldforcemrser2026/syntoniqa/internal/persistence"
	"github.com/fieldforcemrser2026/syntoniqa/internal/worker"
)

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	postgres    *persistence.Postgres
	redis       *persistence.Redis
	sweeper     *worker.Sweeper
}

// NewHealthHandler returns a new handler instance. The sweeper is optional;
// when present, readiness includes when each sweep last completed.
func NewHealthHandler(serviceName, version string, postgres *persistence.Postgres, redis *persistence.Redis, sweeper *worker.Sweeper) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, postgres: postgres, redis: redis, sweeper: sweeper}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports service readiness by checking dependencies. Sweeper status
// is informational only: a sweep that has not run yet does not flip the
// probe, otherwise a fresh deployment would never become ready before the
// first cron tick.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	if err := h.postgres.Ping(ctx); err != nil {
		depStatus["postgres"] = err.Error()
		ready = false
	} else {
		depStatus["postgres"] = "ok"
	}

	if err := h.redis.Ping(ctx); err != nil {
		depStatus["redis"] = err.Error()
		ready = false
	} else {
		depStatus["redis"] = "ok"
	}

	if h.sweeper != nil {
		slaRun, escalationRun := h.sweeper.LastRuns()
		depStatus["sweeper"] = fiber.Map{
			"sla_last_run":        formatRun(slaRun),
			"escalation_last_run": formatRun(escalationRun),
		}
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}

func formatRun(at time.Time) string {
	if at.IsZero() {
		return "pending"
	}
	return at.UTC().Format(time.RFC3339)
}
