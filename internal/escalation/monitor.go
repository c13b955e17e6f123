package escalation

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

const (
	kindStuckAssignment      = "stuck_assignment"
	kindInterventionReminder = "intervention_reminder"
)

// Monitor detects inactivity: tickets assigned but not started past the
// threshold, and planned interventions whose start time has come and gone.
// This policy is independent of SLA tier; a ticket with no deadline can
// still escalate for inactivity.
type Monitor struct {
	tickets       repository.TicketRepository
	interventions repository.InterventionRepository
	keys          dedupe.KeyStore
	notifier      notify.Notifier
	logger        *zap.Logger
	metrics       *observability.Metrics
	cfg           config.EscalationConfig
	tenantID      string

	// Now is the clock; tests override it.
	Now func() time.Time
}

// Dependencies bundles the monitor's collaborators.
type Dependencies struct {
	Tickets       repository.TicketRepository
	Interventions repository.InterventionRepository
	Keys          dedupe.KeyStore
	Notifier      notify.Notifier
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	Escalation    config.EscalationConfig
	TenantID      string
}

// NewMonitor constructs the monitor.
func NewMonitor(deps Dependencies) *Monitor {
	cfg := deps.Escalation
	if cfg.StuckAssignmentAfter <= 0 {
		cfg.StuckAssignmentAfter = 4 * time.Hour
	}
	if cfg.ReminderAfter <= 0 {
		cfg.ReminderAfter = time.Hour
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = 48 * time.Hour
	}
	return &Monitor{
		tickets:       deps.Tickets,
		interventions: deps.Interventions,
		keys:          deps.Keys,
		notifier:      deps.Notifier,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		cfg:           cfg,
		tenantID:      deps.TenantID,
		Now:           time.Now,
	}
}

// Result summarizes one sweep run.
type Result struct {
	StuckTickets int
	Reminders    int
	Suppressed   int
}

// Sweep runs both inactivity checks. Each finding is emitted at most once
// per entity per calendar day via the dedupe store.
func (m *Monitor) Sweep(ctx context.Context) (Result, error) {
	if m.metrics != nil {
		m.metrics.SweepRuns.WithLabelValues("escalation").Inc()
	}
	var res Result
	if err := m.sweepStuckAssignments(ctx, &res); err != nil {
		return res, err
	}
	if err := m.sweepInterventionReminders(ctx, &res); err != nil {
		return res, err
	}
	return res, nil
}

func (m *Monitor) sweepStuckAssignments(ctx context.Context, res *Result) error {
	assigned, err := m.tickets.ListInState(ctx, domain.TicketStateAssigned)
	if err != nil {
		return fmt.Errorf("list assigned tickets: %w", err)
	}
	now := m.Now()
	for i := range assigned {
		if ctx.Err() != nil {
			m.logger.Warn("escalation sweep stopped before completion")
			return nil
		}
		ticket := &assigned[i]
		if ticket.AssignedAt == nil || now.Sub(*ticket.AssignedAt) < m.cfg.StuckAssignmentAfter {
			continue
		}
		key := dedupe.DailyKey(kindStuckAssignment, ticket.ID, now)
		claimed, err := m.keys.SetIfAbsent(ctx, key, m.cfg.DedupeTTL)
		if err != nil {
			m.logger.Error("dedupe check failed", zap.String("key", key), zap.Error(err))
			continue
		}
		if !claimed {
			res.Suppressed++
			if m.metrics != nil {
				m.metrics.EscalationsDeduped.WithLabelValues(kindStuckAssignment).Inc()
			}
			continue
		}
		res.StuckTickets++
		if m.metrics != nil {
			m.metrics.EscalationsEmitted.WithLabelValues(kindStuckAssignment).Inc()
		}
		m.notifier.Notify(ctx, notify.Event{
			Kind:    kindStuckAssignment,
			Subject: "Assignment not started",
			Body: fmt.Sprintf("Ticket %s was assigned %s ago and has not been started",
				ticket.ID, now.Sub(*ticket.AssignedAt).Round(time.Minute)),
			ReferenceID: ticket.ID,
			DedupeKey:   key,
			TenantID:    m.tenantID,
		}, notify.Audience{
			Administrators: true,
			TechnicianID:   ticket.AssignedTechnician,
		})
	}
	return nil
}

func (m *Monitor) sweepInterventionReminders(ctx context.Context, res *Result) error {
	now := m.Now()
	cutoff := now.Add(-m.cfg.ReminderAfter)
	overdue, err := m.interventions.ListPlannedStartingBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list overdue interventions: %w", err)
	}
	for i := range overdue {
		if ctx.Err() != nil {
			m.logger.Warn("escalation sweep stopped before completion")
			return nil
		}
		iv := &overdue[i]
		if iv.Technician == nil || iv.ScheduledStart == nil {
			continue
		}
		key := dedupe.DailyKey(kindInterventionReminder, iv.ID, now)
		claimed, err := m.keys.SetIfAbsent(ctx, key, m.cfg.DedupeTTL)
		if err != nil {
			m.logger.Error("dedupe check failed", zap.String("key", key), zap.Error(err))
			continue
		}
		if !claimed {
			res.Suppressed++
			if m.metrics != nil {
				m.metrics.EscalationsDeduped.WithLabelValues(kindInterventionReminder).Inc()
			}
			continue
		}
		res.Reminders++
		if m.metrics != nil {
			m.metrics.EscalationsEmitted.WithLabelValues(kindInterventionReminder).Inc()
		}
		m.notifier.Notify(ctx, notify.Event{
			Kind:    kindInterventionReminder,
			Subject: "Intervention not started",
			Body: fmt.Sprintf("Intervention %s was scheduled to start at %s and is still planned",
				iv.ID, iv.ScheduledStart.Format("15:04")),
			ReferenceID: iv.ID,
			DedupeKey:   key,
			TenantID:    m.tenantID,
		}, notify.Audience{TechnicianID: iv.Technician})
	}
	return nil
}
