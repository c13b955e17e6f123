package sla

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fieldforcemrser2026/syntoniqa/internal/config"
	"github.com/fieldforcemrser2026/syntoniqa/internal/dedupe"
	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
	"github.com/fieldforcemrser2026/syntoniqa/internal/notify"
	"github.com/fieldforcemrser2026/syntoniqa/internal/observability"
	"github.com/fieldforcemrser2026/syntoniqa/internal/repository"
)

// Engine computes SLA deadlines at ticket creation and re-evaluates the
// health tier of open tickets on a schedule.
type Engine struct {
	tickets   repository.TicketRepository
	keys      dedupe.KeyStore
	notifier  notify.Notifier
	logger    *zap.Logger
	metrics   *observability.Metrics
	cfg       config.SLAConfig
	dedupeTTL time.Duration
	tenantID  string

	// Now is the clock; tests override it.
	Now func() time.Time
}

// Dependencies bundles the engine's collaborators.
type Dependencies struct {
	Tickets   repository.TicketRepository
	Keys      dedupe.KeyStore
	Notifier  notify.Notifier
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	SLA       config.SLAConfig
	DedupeTTL time.Duration
	TenantID  string
}

// NewEngine constructs the engine.
func NewEngine(deps Dependencies) *Engine {
	ttl := deps.DedupeTTL
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &Engine{
		tickets:   deps.Tickets,
		keys:      deps.Keys,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		cfg:       deps.SLA,
		dedupeTTL: ttl,
		tenantID:  deps.TenantID,
		Now:       time.Now,
	}
}

// DeadlineFor computes the resolution deadline for a priority at creation
// time. Priorities outside the table get no deadline: the ticket stays at
// tier ok forever and is invisible to SLA escalation. The deadline is set
// once and never recomputed, even if the priority is edited later.
func (e *Engine) DeadlineFor(priority string, now time.Time) *time.Time {
	duration, ok := e.cfg.ResolutionFor(priority)
	if !ok {
		return nil
	}
	deadline := now.Add(duration)
	return &deadline
}

// TierFor derives the health tier from time remaining to the deadline.
// Ties round toward the more severe tier.
func (e *Engine) TierFor(deadline, now time.Time) domain.SLATier {
	remaining := deadline.Sub(now)
	switch {
	case remaining <= 0:
		return domain.SLATierBreach
	case remaining <= e.cfg.CriticalWindow:
		return domain.SLATierCritical
	case remaining <= e.cfg.WarningWindow:
		return domain.SLATierWarning
	default:
		return domain.SLATierOK
	}
}

// Result summarizes one sweep run.
type Result struct {
	Scanned   int
	Updated   int
	Escalated int
}

// Sweep recomputes the tier for every open ticket with a deadline, writing
// back only on change. A tier change into critical or breach emits at most
// one escalation per ticket per calendar day, guarded by the dedupe store.
// When the context is cancelled the sweep finishes the ticket in hand and
// stops; the next run picks up where this one left off because unchanged
// tiers are skipped.
func (e *Engine) Sweep(ctx context.Context) (Result, error) {
	if e.metrics != nil {
		e.metrics.SweepRuns.WithLabelValues("sla").Inc()
	}
	tickets, err := e.tickets.ListOpenWithDeadline(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list open tickets: %w", err)
	}

	now := e.Now()
	res := Result{Scanned: len(tickets)}
	for i := range tickets {
		if ctx.Err() != nil {
			e.logger.Warn("sla sweep stopped before completion",
				zap.Int("scanned", i), zap.Int("total", len(tickets)))
			break
		}
		ticket := &tickets[i]
		newTier := e.TierFor(*ticket.SLADeadline, now)
		if newTier == ticket.SLATier {
			continue
		}
		if err := e.tickets.Patch(ctx, ticket.ID, map[string]any{"sla_tier": newTier}); err != nil {
			e.logger.Error("sla tier write failed",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
			continue
		}
		res.Updated++
		if e.metrics != nil {
			e.metrics.SweepUpdates.WithLabelValues("sla").Inc()
		}
		worsened := domain.TierSeverity(newTier) > domain.TierSeverity(ticket.SLATier)
		if worsened && (newTier == domain.SLATierCritical || newTier == domain.SLATierBreach) {
			if e.escalate(ctx, ticket, newTier, now) {
				res.Escalated++
			}
		}
	}
	return res, nil
}

func (e *Engine) escalate(ctx context.Context, ticket *domain.Ticket, tier domain.SLATier, now time.Time) bool {
	kind := "sla_" + string(tier)
	key := dedupe.DailyKey(kind, ticket.ID, now)
	claimed, err := e.keys.SetIfAbsent(ctx, key, e.dedupeTTL)
	if err != nil {
		e.logger.Error("dedupe check failed",
			zap.String("key", key), zap.Error(err))
		return false
	}
	if !claimed {
		if e.metrics != nil {
			e.metrics.EscalationsDeduped.WithLabelValues(kind).Inc()
		}
		return false
	}
	if e.metrics != nil {
		e.metrics.EscalationsEmitted.WithLabelValues(kind).Inc()
	}
	e.notifier.Notify(ctx, notify.Event{
		Kind:        kind,
		Subject:     fmt.Sprintf("SLA %s on ticket %s", tier, ticket.ID),
		Body:        fmt.Sprintf("Ticket %s reached SLA tier %s (deadline %s)", ticket.ID, tier, ticket.SLADeadline.Format(time.RFC3339)),
		ReferenceID: ticket.ID,
		DedupeKey:   key,
		TenantID:    e.tenantID,
	}, notify.Audience{
		Administrators: true,
		TechnicianID:   ticket.AssignedTechnician,
	})
	return true
}
