package sla

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
	events []notify.Event
}

func (n *recordingNotifier) Notify(ctx context.Context, event notify.Event, audience notify.Audience) {
	n.events = append(n.events, event)
}

func slaConfig() config.SLAConfig {
	return config.SLAConfig{
		ResolutionByPriority: map[string]time.Duration{
			"critical": 4 * time.Hour,
			"high":     8 * time.Hour,
		},
		WarningWindow:  6 * time.Hour,
		CriticalWindow: 2 * time.Hour,
	}
}

func newTestEngine(tickets repository.TicketRepository, notifier notify.Notifier) *Engine {
	return NewEngine(Dependencies{
		Tickets:  tickets,
		Keys:     dedupe.NewMemoryKeyStore(),
		Notifier: notifier,
		Logger:   zap.NewNop(),
		SLA:      slaConfig(),
		TenantID: "t1",
	})
}

func TestDeadlineFor(t *testing.T) {
	engine := newTestEngine(repository.NewMemoryTicketRepository(), &recordingNotifier{})
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	deadline := engine.DeadlineFor("critical", now)
	if deadline == nil || !deadline.Equal(now.Add(4*time.Hour)) {
		t.Fatalf("expected deadline now+4h, got %v", deadline)
	}
	if engine.DeadlineFor("unmapped", now) != nil {
		t.Fatal("unmapped priority must have no deadline")
	}
}

func TestTierForThresholds(t *testing.T) {
	engine := newTestEngine(repository.NewMemoryTicketRepository(), &recordingNotifier{})
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		now  time.Time
		want domain.SLATier
	}{
		{deadline.Add(-7 * time.Hour), domain.SLATierOK},
		{deadline.Add(-6 * time.Hour), domain.SLATierWarning}, // tie rounds severe
		{deadline.Add(-3 * time.Hour), domain.SLATierWarning},
		{deadline.Add(-2 * time.Hour), domain.SLATierCritical},
		{deadline.Add(-time.Minute), domain.SLATierCritical},
		{deadline, domain.SLATierBreach},
		{deadline.Add(time.Minute), domain.SLATierBreach},
	}
	for _, tc := range cases {
		if got := engine.TierFor(deadline, tc.now); got != tc.want {
			t.Errorf("at %v: got %s, want %s", tc.now, got, tc.want)
		}
	}
}

// A 4h ticket created at T0 has 1h left at T0+3h, which is inside the 2h
// critical window, so that sweep already escalates. The breach just after
// T0+4h escalates again under its own kind, and a follow-up sweep the same
// day emits nothing.
func TestSweepScenario(t *testing.T) {
	ctx := context.Background()
	tickets := repository.NewMemoryTicketRepository()
	notifier := &recordingNotifier{}
	engine := newTestEngine(tickets, notifier)

	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	deadline := t0.Add(4 * time.Hour)
	tech := "TEC-1"
	ticket := &domain.Ticket{
		ID:                 "URG-1",
		TenantID:           "t1",
		Problem:            "compressor down",
		Priority:           "critical",
		State:              domain.TicketStateAssigned,
		SLADeadline:        &deadline,
		SLATier:            domain.SLATierOK,
		AssignedTechnician: &tech,
		ReportedAt:         t0,
	}
	if err := tickets.Create(ctx, ticket); err != nil {
		t.Fatal(err)
	}

	engine.Now = func() time.Time { return t0.Add(3 * time.Hour) }
	res, err := engine.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Updated != 1 || res.Escalated != 1 {
		t.Fatalf("sweep at +3h: got %+v", res)
	}
	got, _ := tickets.GetByID(ctx, "URG-1")
	if got.SLATier != domain.SLATierCritical {
		t.Fatalf("expected critical, got %s", got.SLATier)
	}
	if len(notifier.events) != 1 || notifier.events[0].Kind != "sla_critical" {
		t.Fatalf("expected one critical notification, got %v", notifier.events)
	}

	engine.Now = func() time.Time { return t0.Add(4*time.Hour + time.Minute) }
	res, err = engine.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Updated != 1 || res.Escalated != 1 {
		t.Fatalf("sweep at +4h01m: got %+v", res)
	}
	if len(notifier.events) != 2 || notifier.events[1].Kind != "sla_breach" {
		t.Fatalf("expected a breach notification after the critical one, got %v", notifier.events)
	}

	engine.Now = func() time.Time { return t0.Add(4*time.Hour + 10*time.Minute) }
	before := tickets.PatchCalls
	res, err = engine.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Updated != 0 || res.Escalated != 0 {
		t.Fatalf("sweep at +4h10m: got %+v", res)
	}
	if tickets.PatchCalls != before {
		t.Fatal("sweep wrote back an unchanged tier")
	}
	if len(notifier.events) != 2 {
		t.Fatalf("expected no further notifications, got %d", len(notifier.events))
	}
}

// A tier re-entering breach the same day (e.g. a raced tier write reset it)
// must not notify twice: the daily dedupe key already exists.
func TestSweepDedupesSameDay(t *testing.T) {
	ctx := context.Background()
	tickets := repository.NewMemoryTicketRepository()
	notifier := &recordingNotifier{}
	engine := newTestEngine(tickets, notifier)

	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	deadline := t0.Add(time.Hour)
	ticket := &domain.Ticket{
		ID:          "URG-2",
		TenantID:    "t1",
		Priority:    "critical",
		State:       domain.TicketStateOpen,
		SLADeadline: &deadline,
		SLATier:     domain.SLATierOK,
		ReportedAt:  t0,
	}
	if err := tickets.Create(ctx, ticket); err != nil {
		t.Fatal(err)
	}

	engine.Now = func() time.Time { return t0.Add(2 * time.Hour) }
	if _, err := engine.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	if err := tickets.Patch(ctx, "URG-2", map[string]any{"sla_tier": domain.SLATierOK}); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("expected exactly one notification across re-entrant sweeps, got %d", len(notifier.events))
	}
}

func TestSweepIgnoresTicketsWithoutDeadline(t *testing.T) {
	ctx := context.Background()
	tickets := repository.NewMemoryTicketRepository()
	notifier := &recordingNotifier{}
	engine := newTestEngine(tickets, notifier)

	ticket := &domain.Ticket{
		ID:         "URG-3",
		TenantID:   "t1",
		Priority:   "unmapped",
		State:      domain.TicketStateOpen,
		SLATier:    domain.SLATierOK,
		ReportedAt: time.Now(),
	}
	if err := tickets.Create(ctx, ticket); err != nil {
		t.Fatal(err)
	}
	res, err := engine.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Scanned != 0 {
		t.Fatalf("deadline-less ticket must be invisible to the sweep, scanned %d", res.Scanned)
	}
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	tickets := repository.NewMemoryTicketRepository()
	engine := newTestEngine(tickets, &recordingNotifier{})

	t0 := time.Now()
	for _, id := range []string{"URG-a", "URG-b", "URG-c"} {
		deadline := t0.Add(-time.Hour)
		_ = tickets.Create(context.Background(), &domain.Ticket{
			ID: id, TenantID: "t1", State: domain.TicketStateOpen,
			SLADeadline: &deadline, SLATier: domain.SLATierOK, ReportedAt: t0,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := engine.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Updated != 0 {
		t.Fatalf("cancelled sweep should not start new updates, did %d", res.Updated)
	}
}
