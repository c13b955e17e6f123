package cascade

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
	"github.com/fieldforcemrser2026/syntoniqa/internal/repository"
)

func strPtr(s string) *string { return &s }

func seedLinkedPair(t *testing.T, tickets *repository.MemoryTicketRepository, ticketState domain.TicketState) *domain.Intervention {
	t.Helper()
	ticket := domain.Ticket{
		ID:                 "t1",
		State:              ticketState,
		AssignedTechnician: strPtr("tech-1"),
		LinkedIntervention: strPtr("iv1"),
	}
	if err := tickets.Create(context.Background(), &ticket); err != nil {
		t.Fatal(err)
	}
	return &domain.Intervention{
		ID:           "iv1",
		Technician:   strPtr("tech-1"),
		LinkedTicket: strPtr("t1"),
	}
}

func TestCompletedResolvesActiveTicket(t *testing.T) {
	for _, state := range []domain.TicketState{
		domain.TicketStateAssigned,
		domain.TicketStateScheduled,
		domain.TicketStateInProgress,
	} {
		tickets := repository.NewMemoryTicketRepository()
		resolver := NewResolver(tickets, nil, zap.NewNop(), nil)
		iv := seedLinkedPair(t, tickets, state)

		if err := resolver.OnInterventionTransition(context.Background(), iv, domain.InterventionStateCompleted); err != nil {
			t.Fatal(err)
		}
		got, err := tickets.GetByID(context.Background(), "t1")
		if err != nil {
			t.Fatal(err)
		}
		if got.State != domain.TicketStateResolved {
			t.Fatalf("from %s: expected resolved, got %s", state, got.State)
		}
		if got.ResolvedAt == nil {
			t.Fatalf("from %s: resolved_at not stamped", state)
		}
	}
}

func TestCompletedSkipsClosedTicket(t *testing.T) {
	// A closed ticket is final; the cascade is logged and skipped, the
	// intervention transition itself stands.
	tickets := repository.NewMemoryTicketRepository()
	resolver := NewResolver(tickets, nil, zap.NewNop(), nil)
	iv := seedLinkedPair(t, tickets, domain.TicketStateClosed)

	if err := resolver.OnInterventionTransition(context.Background(), iv, domain.InterventionStateCompleted); err != nil {
		t.Fatal(err)
	}
	got, _ := tickets.GetByID(context.Background(), "t1")
	if got.State != domain.TicketStateClosed {
		t.Fatalf("skipped cascade must leave the ticket untouched, got %s", got.State)
	}
}

func TestInProgressCascadesOnlyFromAssigned(t *testing.T) {
	cases := []struct {
		ticketState domain.TicketState
		want        domain.TicketState
	}{
		{domain.TicketStateAssigned, domain.TicketStateInProgress},
		{domain.TicketStateScheduled, domain.TicketStateScheduled},
		{domain.TicketStateOpen, domain.TicketStateOpen},
	}
	for _, tc := range cases {
		tickets := repository.NewMemoryTicketRepository()
		resolver := NewResolver(tickets, nil, zap.NewNop(), nil)
		iv := seedLinkedPair(t, tickets, tc.ticketState)

		if err := resolver.OnInterventionTransition(context.Background(), iv, domain.InterventionStateInProgress); err != nil {
			t.Fatal(err)
		}
		got, _ := tickets.GetByID(context.Background(), "t1")
		if got.State != tc.want {
			t.Fatalf("from %s: expected %s, got %s", tc.ticketState, tc.want, got.State)
		}
	}
}

func TestCancelledRevertsActiveTicketToPool(t *testing.T) {
	for _, state := range []domain.TicketState{
		domain.TicketStateAssigned,
		domain.TicketStateScheduled,
		domain.TicketStateInProgress,
	} {
		tickets := repository.NewMemoryTicketRepository()
		resolver := NewResolver(tickets, nil, zap.NewNop(), nil)
		iv := seedLinkedPair(t, tickets, state)
		now := time.Now()
		_ = tickets.Patch(context.Background(), "t1", map[string]any{"assigned_at": &now})

		if err := resolver.OnInterventionTransition(context.Background(), iv, domain.InterventionStateCancelled); err != nil {
			t.Fatal(err)
		}
		got, _ := tickets.GetByID(context.Background(), "t1")
		if got.State != domain.TicketStateOpen {
			t.Fatalf("from %s: expected open, got %s", state, got.State)
		}
		if got.AssignedTechnician != nil || got.LinkedIntervention != nil || got.AssignedAt != nil {
			t.Fatalf("from %s: assignment not cleared: %+v", state, got)
		}
	}
}

func TestCancelledSkipsResolvedTicket(t *testing.T) {
	tickets := repository.NewMemoryTicketRepository()
	resolver := NewResolver(tickets, nil, zap.NewNop(), nil)
	iv := seedLinkedPair(t, tickets, domain.TicketStateResolved)

	if err := resolver.OnInterventionTransition(context.Background(), iv, domain.InterventionStateCancelled); err != nil {
		t.Fatal(err)
	}
	got, _ := tickets.GetByID(context.Background(), "t1")
	if got.State != domain.TicketStateResolved {
		t.Fatalf("expected resolved untouched, got %s", got.State)
	}
	if got.AssignedTechnician == nil {
		t.Fatal("technician must not be cleared when the cascade is skipped")
	}
}

func TestUnlinkedInterventionIsIgnored(t *testing.T) {
	tickets := repository.NewMemoryTicketRepository()
	resolver := NewResolver(tickets, nil, zap.NewNop(), nil)
	iv := &domain.Intervention{ID: "iv-solo"}

	if err := resolver.OnInterventionTransition(context.Background(), iv, domain.InterventionStateCompleted); err != nil {
		t.Fatal(err)
	}
}
