package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
	"github.com/fieldforcemrser2026/syntoniqa/internal/events"
	"github.com/fieldforcemrser2026/syntoniqa/internal/repository"
	apperrors "github.com/fieldforcemrser2026/syntoniqa/pkg/util"
)

type fixedDeadlines struct {
	durations map[string]time.Duration
}

func (f fixedDeadlines) DeadlineFor(priority string, now time.Time) *time.Time {
	d, ok := f.durations[priority]
	if !ok {
		return nil
	}
	deadline := now.Add(d)
	return &deadline
}

type ticketFixture struct {
	service       *TicketService
	tickets       *repository.MemoryTicketRepository
	interventions *repository.MemoryInterventionRepository
	audit         *repository.MemoryAuditRepository
	published     *[]events.Event
}

func newTicketFixture(t *testing.T) ticketFixture {
	t.Helper()
	tickets := repository.NewMemoryTicketRepository()
	interventions := repository.NewMemoryInterventionRepository()
	audit := repository.NewMemoryAuditRepository()
	dispatcher := events.NewInMemoryDispatcher()
	var published []events.Event
	for _, et := range []events.EventType{
		events.EventTicketCreated, events.EventTicketStateChanged,
		events.EventTicketAssigned, events.EventTicketReprioritized,
		events.EventInterventionCreated,
	} {
		dispatcher.Subscribe(et, func(ctx context.Context, e events.Event) error {
			published = append(published, e)
			return nil
		})
	}
	svc := NewTicketService(TicketDependencies{
		Tickets:       tickets,
		Interventions: interventions,
		Audit:         audit,
		Deadlines:     fixedDeadlines{durations: map[string]time.Duration{"critical": 4 * time.Hour}},
		Dispatcher:    dispatcher,
		Logger:        zap.NewNop(),
		TenantID:      "t1",
	})
	return ticketFixture{service: svc, tickets: tickets, interventions: interventions, audit: audit, published: &published}
}

var admin = Actor{ID: "op-admin", Role: domain.RoleAdministrator}
var tech = Actor{ID: "op-tech", Role: domain.RoleTechnician}

func TestCreateTicketSetsDeadlineOnce(t *testing.T) {
	fx := newTicketFixture(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	fx.service.Now = func() time.Time { return now }

	ticket, err := fx.service.CreateTicket(context.Background(), tech, TicketCreateInput{
		Problem:  "compressor failure",
		Priority: "critical",
	})
	if err != nil {
		t.Fatal(err)
	}
	if ticket.State != domain.TicketStateOpen {
		t.Fatalf("expected open, got %s", ticket.State)
	}
	if ticket.SLADeadline == nil || !ticket.SLADeadline.Equal(now.Add(4*time.Hour)) {
		t.Fatalf("expected deadline now+4h, got %v", ticket.SLADeadline)
	}
	if ticket.SLATier != domain.SLATierOK {
		t.Fatalf("new tickets start at ok, got %s", ticket.SLATier)
	}

	unmapped, err := fx.service.CreateTicket(context.Background(), tech, TicketCreateInput{
		Problem:  "squeaky door",
		Priority: "cosmetic",
	})
	if err != nil {
		t.Fatal(err)
	}
	if unmapped.SLADeadline != nil {
		t.Fatal("unmapped priority must not get a deadline")
	}
}

func TestTransitionStampsTimestamps(t *testing.T) {
	fx := newTicketFixture(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	fx.service.Now = func() time.Time { return now }
	ticket, err := fx.service.CreateTicket(context.Background(), tech, TicketCreateInput{Problem: "p", Priority: "critical"})
	if err != nil {
		t.Fatal(err)
	}

	got, err := fx.service.Transition(context.Background(), tech, ticket.ID, domain.TicketStateAssigned, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.AssignedAt == nil || !got.AssignedAt.Equal(now) {
		t.Fatalf("assigned_at not stamped: %+v", got)
	}

	if _, err := fx.service.Transition(context.Background(), tech, ticket.ID, domain.TicketStateInProgress, ""); err != nil {
		t.Fatal(err)
	}
	got, err = fx.service.Transition(context.Background(), tech, ticket.ID, domain.TicketStateResolved, "replaced belt")
	if err != nil {
		t.Fatal(err)
	}
	if got.ResolvedAt == nil {
		t.Fatal("resolved_at not stamped")
	}
	if got.Notes != "replaced belt" {
		t.Fatalf("note not appended: %q", got.Notes)
	}
}

func TestTransitionRejectsIllegalWithAllowedSet(t *testing.T) {
	fx := newTicketFixture(t)
	ticket, _ := fx.service.CreateTicket(context.Background(), tech, TicketCreateInput{Problem: "p", Priority: "critical"})

	_, err := fx.service.Transition(context.Background(), tech, ticket.ID, domain.TicketStateResolved, "")
	if !apperrors.IsCode(err, "ILLEGAL_TRANSITION") {
		t.Fatalf("expected ILLEGAL_TRANSITION, got %v", err)
	}
	domainErr := apperrors.ToDomainError(err)
	if _, ok := domainErr.Details["allowed"]; !ok {
		t.Fatal("rejection must name the allowed set")
	}
}

func TestTransitionNoOpSkipsStore(t *testing.T) {
	fx := newTicketFixture(t)
	ticket, _ := fx.service.CreateTicket(context.Background(), tech, TicketCreateInput{Problem: "p", Priority: "critical"})
	before := fx.tickets.PatchCalls

	got, err := fx.service.Transition(context.Background(), tech, ticket.ID, domain.TicketStateOpen, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.State != domain.TicketStateOpen {
		t.Fatalf("unexpected state %s", got.State)
	}
	if fx.tickets.PatchCalls != before {
		t.Fatal("no-op transition must not write")
	}
}

func TestCloseRequiresElevatedActor(t *testing.T) {
	fx := newTicketFixture(t)
	ticket, _ := fx.service.CreateTicket(context.Background(), tech, TicketCreateInput{Problem: "p", Priority: "critical"})

	if _, err := fx.service.Transition(context.Background(), tech, ticket.ID, domain.TicketStateClosed, ""); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("technician close must be forbidden, got %v", err)
	}
	if _, err := fx.service.Transition(context.Background(), admin, ticket.ID, domain.TicketStateClosed, ""); err != nil {
		t.Fatal(err)
	}
}

func TestReopenResolvedRequiresElevatedActor(t *testing.T) {
	fx := newTicketFixture(t)
	ticket, _ := fx.service.CreateTicket(context.Background(), tech, TicketCreateInput{Problem: "p", Priority: "critical"})
	for _, st := range []domain.TicketState{domain.TicketStateAssigned, domain.TicketStateInProgress, domain.TicketStateResolved} {
		if _, err := fx.service.Transition(context.Background(), tech, ticket.ID, st, ""); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := fx.service.Transition(context.Background(), tech, ticket.ID, domain.TicketStateInProgress, ""); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("technician reopen must be forbidden, got %v", err)
	}
	if _, err := fx.service.Transition(context.Background(), admin, ticket.ID, domain.TicketStateInProgress, ""); err != nil {
		t.Fatal(err)
	}
}

func TestAssignCreatesLinkedIntervention(t *testing.T) {
	fx := newTicketFixture(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	fx.service.Now = func() time.Time { return now }
	ticket, _ := fx.service.CreateTicket(context.Background(), tech, TicketCreateInput{Problem: "p", Priority: "critical"})

	date := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	got, err := fx.service.Assign(context.Background(), admin, ticket.ID, AssignInput{
		TechnicianID:  "tech-7",
		ScheduledDate: &date,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.State != domain.TicketStateAssigned || got.AssignedTechnician == nil || *got.AssignedTechnician != "tech-7" {
		t.Fatalf("assignment not applied: %+v", got)
	}
	if got.AssignedAt == nil || !got.AssignedAt.Equal(now) {
		t.Fatal("assigned_at not stamped")
	}
	if got.LinkedIntervention == nil {
		t.Fatal("intervention not linked")
	}
	iv, err := fx.interventions.GetByID(context.Background(), *got.LinkedIntervention)
	if err != nil {
		t.Fatal(err)
	}
	if iv.State != domain.InterventionStatePlanned || iv.LinkedTicket == nil || *iv.LinkedTicket != ticket.ID {
		t.Fatalf("unexpected intervention: %+v", iv)
	}
}

func TestAssignReplayIsIdempotent(t *testing.T) {
	// Offline replay re-fires the same command at least once; the second
	// assign must not create a second intervention or re-stamp anything.
	fx := newTicketFixture(t)
	ticket, _ := fx.service.CreateTicket(context.Background(), tech, TicketCreateInput{Problem: "p", Priority: "critical"})

	date := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	input := AssignInput{TechnicianID: "tech-7", ScheduledDate: &date}
	first, err := fx.service.Assign(context.Background(), admin, ticket.ID, input)
	if err != nil {
		t.Fatal(err)
	}
	patchesAfterFirst := fx.tickets.PatchCalls

	second, err := fx.service.Assign(context.Background(), admin, ticket.ID, input)
	if err != nil {
		t.Fatal(err)
	}
	if fx.tickets.PatchCalls != patchesAfterFirst {
		t.Fatal("replayed assign must not write")
	}
	if *second.LinkedIntervention != *first.LinkedIntervention {
		t.Fatal("replayed assign must not create another intervention")
	}
	ivs, _ := fx.interventions.ListWithFilter(context.Background(), repository.InterventionFilter{})
	if len(ivs) != 1 {
		t.Fatalf("expected one intervention, got %d", len(ivs))
	}
}

func TestReprioritizeKeepsDeadlineFrozen(t *testing.T) {
	fx := newTicketFixture(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	fx.service.Now = func() time.Time { return now }
	ticket, _ := fx.service.CreateTicket(context.Background(), tech, TicketCreateInput{Problem: "p", Priority: "critical"})
	original := *ticket.SLADeadline

	got, err := fx.service.Reprioritize(context.Background(), admin, ticket.ID, "low")
	if err != nil {
		t.Fatal(err)
	}
	if got.Priority != "low" {
		t.Fatalf("priority not updated: %s", got.Priority)
	}
	if got.SLADeadline == nil || !got.SLADeadline.Equal(original) {
		t.Fatalf("deadline must stay frozen at %v, got %v", original, got.SLADeadline)
	}
}

func TestAuditTrailRecordsLifecycle(t *testing.T) {
	fx := newTicketFixture(t)
	ticket, _ := fx.service.CreateTicket(context.Background(), tech, TicketCreateInput{Problem: "p", Priority: "critical"})
	if _, err := fx.service.Transition(context.Background(), tech, ticket.ID, domain.TicketStateAssigned, ""); err != nil {
		t.Fatal(err)
	}

	trail, err := fx.service.History(context.Background(), ticket.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(trail) != 2 {
		t.Fatalf("expected create + transition entries, got %d", len(trail))
	}
}
