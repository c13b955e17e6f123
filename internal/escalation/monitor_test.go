package escalation

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fieldforcemrser2026/syntoniqa/internal/config"
	"github.com/fieldforcemrser2026/syntoniqa/internal/dedupe"
	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
	"github.com/fieldforcemrser2026/syntoniqa/internal/notify"
	"github.com/fieldforcemrser2026/syntoniqa/internal/repository"
)

type recordingNotifier struct {
	events    []notify.Event
	audiences []notify.Audience
}

func (n *recordingNotifier) Notify(ctx context.Context, event notify.Event, audience notify.Audience) {
	n.events = append(n.events, event)
	n.audiences = append(n.audiences, audience)
}

func newTestMonitor(tickets repository.TicketRepository, interventions repository.InterventionRepository, notifier notify.Notifier) *Monitor {
	return NewMonitor(Dependencies{
		Tickets:       tickets,
		Interventions: interventions,
		Keys:          dedupe.NewMemoryKeyStore(),
		Notifier:      notifier,
		Logger:        zap.NewNop(),
		Escalation: config.EscalationConfig{
			StuckAssignmentAfter: 4 * time.Hour,
			ReminderAfter:        time.Hour,
			DedupeTTL:            48 * time.Hour,
		},
		TenantID: "t1",
	})
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func TestStuckAssignmentEscalates(t *testing.T) {
	tickets := repository.NewMemoryTicketRepository()
	notifier := &recordingNotifier{}
	monitor := newTestMonitor(tickets, repository.NewMemoryInterventionRepository(), notifier)

	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	monitor.Now = func() time.Time { return now }

	stale := domain.Ticket{
		ID:                 "t-stale",
		State:              domain.TicketStateAssigned,
		AssignedTechnician: strPtr("tech-1"),
		AssignedAt:         timePtr(now.Add(-5 * time.Hour)),
	}
	fresh := domain.Ticket{
		ID:                 "t-fresh",
		State:              domain.TicketStateAssigned,
		AssignedTechnician: strPtr("tech-2"),
		AssignedAt:         timePtr(now.Add(-30 * time.Minute)),
	}
	started := domain.Ticket{
		ID:         "t-started",
		State:      domain.TicketStateInProgress,
		AssignedAt: timePtr(now.Add(-8 * time.Hour)),
	}
	for _, ticket := range []domain.Ticket{stale, fresh, started} {
		tk := ticket
		if err := tickets.Create(context.Background(), &tk); err != nil {
			t.Fatal(err)
		}
	}

	res, err := monitor.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.StuckTickets != 1 {
		t.Fatalf("expected one stuck ticket, got %d", res.StuckTickets)
	}
	if len(notifier.events) != 1 || notifier.events[0].ReferenceID != "t-stale" {
		t.Fatalf("unexpected notifications: %+v", notifier.events)
	}
	aud := notifier.audiences[0]
	if !aud.Administrators || aud.TechnicianID == nil || *aud.TechnicianID != "tech-1" {
		t.Fatalf("stuck assignment must reach administrators and the technician, got %+v", aud)
	}
}

func TestStuckAssignmentDedupedWithinDay(t *testing.T) {
	tickets := repository.NewMemoryTicketRepository()
	notifier := &recordingNotifier{}
	monitor := newTestMonitor(tickets, repository.NewMemoryInterventionRepository(), notifier)

	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	monitor.Now = func() time.Time { return now }

	stale := domain.Ticket{
		ID:                 "t-stale",
		State:              domain.TicketStateAssigned,
		AssignedTechnician: strPtr("tech-1"),
		AssignedAt:         timePtr(now.Add(-6 * time.Hour)),
	}
	if err := tickets.Create(context.Background(), &stale); err != nil {
		t.Fatal(err)
	}

	if _, err := monitor.Sweep(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Same day, later run: still stuck, but already notified.
	monitor.Now = func() time.Time { return now.Add(2 * time.Hour) }
	res, err := monitor.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.StuckTickets != 0 || res.Suppressed != 1 {
		t.Fatalf("expected suppression on second run, got %+v", res)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("expected a single notification, got %d", len(notifier.events))
	}

	// Next day the key rolls over and the finding fires again.
	monitor.Now = func() time.Time { return now.Add(24 * time.Hour) }
	res, err = monitor.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.StuckTickets != 1 {
		t.Fatalf("expected escalation on the next day, got %+v", res)
	}
}

func TestInterventionReminder(t *testing.T) {
	interventions := repository.NewMemoryInterventionRepository()
	notifier := &recordingNotifier{}
	monitor := newTestMonitor(repository.NewMemoryTicketRepository(), interventions, notifier)

	now := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	monitor.Now = func() time.Time { return now }

	overdue := domain.Intervention{
		ID:             "iv-late",
		State:          domain.InterventionStatePlanned,
		Technician:     strPtr("tech-1"),
		ScheduledDate:  now.Truncate(24 * time.Hour),
		ScheduledStart: timePtr(now.Add(-90 * time.Minute)),
	}
	upcoming := domain.Intervention{
		ID:             "iv-soon",
		State:          domain.InterventionStatePlanned,
		Technician:     strPtr("tech-2"),
		ScheduledDate:  now.Truncate(24 * time.Hour),
		ScheduledStart: timePtr(now.Add(-15 * time.Minute)),
	}
	unassigned := domain.Intervention{
		ID:             "iv-nobody",
		State:          domain.InterventionStatePlanned,
		ScheduledDate:  now.Truncate(24 * time.Hour),
		ScheduledStart: timePtr(now.Add(-3 * time.Hour)),
	}
	for _, iv := range []domain.Intervention{overdue, upcoming, unassigned} {
		v := iv
		if err := interventions.Create(context.Background(), &v); err != nil {
			t.Fatal(err)
		}
	}

	res, err := monitor.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Reminders != 1 {
		t.Fatalf("expected one reminder, got %+v", res)
	}
	if len(notifier.events) != 1 || notifier.events[0].ReferenceID != "iv-late" {
		t.Fatalf("unexpected notifications: %+v", notifier.events)
	}
	aud := notifier.audiences[0]
	if aud.Administrators || aud.TechnicianID == nil || *aud.TechnicianID != "tech-1" {
		t.Fatalf("reminder must go to the technician only, got %+v", aud)
	}
}
