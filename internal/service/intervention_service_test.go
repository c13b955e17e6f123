package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fieldforcemrser2026/syntoniqa/internal/cascade"
	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
	"github.com/fieldforcemrser2026/syntoniqa/internal/events"
	"github.com/fieldforcemrser2026/syntoniqa/internal/repository"
	apperrors "github.com/fieldforcemrser2026/syntoniqa/pkg/util"
)

type interventionFixture struct {
	service       *InterventionService
	tickets       *repository.MemoryTicketRepository
	interventions *repository.MemoryInterventionRepository
}

func newInterventionFixture(t *testing.T) interventionFixture {
	t.Helper()
	tickets := repository.NewMemoryTicketRepository()
	interventions := repository.NewMemoryInterventionRepository()
	dispatcher := events.NewInMemoryDispatcher()
	logger := zap.NewNop()
	svc := NewInterventionService(InterventionDependencies{
		Interventions: interventions,
		Tickets:       tickets,
		Audit:         repository.NewMemoryAuditRepository(),
		Resolver:      cascade.NewResolver(tickets, dispatcher, logger, nil),
		Dispatcher:    dispatcher,
		Logger:        logger,
		TenantID:      "t1",
	})
	return interventionFixture{service: svc, tickets: tickets, interventions: interventions}
}

func ticketID(s string) *string { return &s }

func TestCreateInterventionLinksBackToTicket(t *testing.T) {
	fx := newInterventionFixture(t)
	ticket := domain.Ticket{ID: "t1", State: domain.TicketStateAssigned}
	if err := fx.tickets.Create(context.Background(), &ticket); err != nil {
		t.Fatal(err)
	}

	iv, err := fx.service.CreateIntervention(context.Background(), admin, InterventionCreateInput{
		LinkedTicket:  ticketID("t1"),
		Technician:    ticketID("tech-1"),
		ScheduledDate: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := fx.tickets.GetByID(context.Background(), "t1")
	if got.LinkedIntervention == nil || *got.LinkedIntervention != iv.ID {
		t.Fatalf("ticket back reference not set: %+v", got)
	}
}

func TestCompletingInterventionResolvesTicket(t *testing.T) {
	fx := newInterventionFixture(t)
	ticket := domain.Ticket{ID: "t1", State: domain.TicketStateInProgress, LinkedIntervention: ticketID("iv1")}
	if err := fx.tickets.Create(context.Background(), &ticket); err != nil {
		t.Fatal(err)
	}
	iv := domain.Intervention{
		ID:            "iv1",
		State:         domain.InterventionStateInProgress,
		LinkedTicket:  ticketID("t1"),
		ScheduledDate: time.Now(),
	}
	if err := fx.interventions.Create(context.Background(), &iv); err != nil {
		t.Fatal(err)
	}

	got, err := fx.service.Transition(context.Background(), tech, "iv1", domain.InterventionStateCompleted)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != domain.InterventionStateCompleted || got.CompletedAt == nil {
		t.Fatalf("intervention not completed: %+v", got)
	}
	linked, _ := fx.tickets.GetByID(context.Background(), "t1")
	if linked.State != domain.TicketStateResolved {
		t.Fatalf("cascade must resolve the ticket, got %s", linked.State)
	}
}

func TestCancellingInterventionReturnsTicketToPool(t *testing.T) {
	fx := newInterventionFixture(t)
	now := time.Now()
	ticket := domain.Ticket{
		ID:                 "t1",
		State:              domain.TicketStateAssigned,
		AssignedTechnician: ticketID("tech-1"),
		LinkedIntervention: ticketID("iv1"),
		AssignedAt:         &now,
	}
	if err := fx.tickets.Create(context.Background(), &ticket); err != nil {
		t.Fatal(err)
	}
	iv := domain.Intervention{
		ID:            "iv1",
		State:         domain.InterventionStatePlanned,
		LinkedTicket:  ticketID("t1"),
		Technician:    ticketID("tech-1"),
		ScheduledDate: now,
	}
	if err := fx.interventions.Create(context.Background(), &iv); err != nil {
		t.Fatal(err)
	}

	if _, err := fx.service.Transition(context.Background(), tech, "iv1", domain.InterventionStateCancelled); err != nil {
		t.Fatal(err)
	}
	linked, _ := fx.tickets.GetByID(context.Background(), "t1")
	if linked.State != domain.TicketStateOpen {
		t.Fatalf("expected open, got %s", linked.State)
	}
	if linked.AssignedTechnician != nil || linked.LinkedIntervention != nil || linked.AssignedAt != nil {
		t.Fatalf("assignment not cleared: %+v", linked)
	}
}

func TestInterventionTransitionRejectsTerminal(t *testing.T) {
	fx := newInterventionFixture(t)
	iv := domain.Intervention{ID: "iv1", State: domain.InterventionStateCompleted, ScheduledDate: time.Now()}
	if err := fx.interventions.Create(context.Background(), &iv); err != nil {
		t.Fatal(err)
	}

	_, err := fx.service.Transition(context.Background(), tech, "iv1", domain.InterventionStatePlanned)
	if !apperrors.IsCode(err, "ILLEGAL_TRANSITION") {
		t.Fatalf("completed is terminal, got %v", err)
	}
}

func TestInterventionNoOpTransition(t *testing.T) {
	fx := newInterventionFixture(t)
	iv := domain.Intervention{ID: "iv1", State: domain.InterventionStatePlanned, ScheduledDate: time.Now()}
	if err := fx.interventions.Create(context.Background(), &iv); err != nil {
		t.Fatal(err)
	}

	got, err := fx.service.Transition(context.Background(), tech, "iv1", domain.InterventionStatePlanned)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != domain.InterventionStatePlanned {
		t.Fatalf("unexpected state %s", got.State)
	}
}
