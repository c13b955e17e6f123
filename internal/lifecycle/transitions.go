package lifecycle

import (
	"github.com/fieldforcemrser2026/syntoniqa/internal/domain"
	apperrors "github.com/fieldforcemrser2026/syntoniqa/pkg/util"
)

// EntityKind selects the transition table to validate against.
type EntityKind string

const (
	KindTicket       EntityKind = "ticket"
	KindIntervention EntityKind = "intervention"
)

// ticketTransitions maps each ticket state to its allowed targets. closed is
// terminal; resolved can reopen to in_progress.
var ticketTransitions = map[string][]string{
	string(domain.TicketStateOpen):       {string(domain.TicketStateAssigned), string(domain.TicketStateClosed)},
	string(domain.TicketStateAssigned):   {string(domain.TicketStateScheduled), string(domain.TicketStateInProgress), string(domain.TicketStateOpen), string(domain.TicketStateClosed)},
	string(domain.TicketStateScheduled):  {string(domain.TicketStateInProgress), string(domain.TicketStateAssigned), string(domain.TicketStateClosed)},
	string(domain.TicketStateInProgress): {string(domain.TicketStateResolved), string(domain.TicketStateClosed)},
	string(domain.TicketStateResolved):   {string(domain.TicketStateClosed), string(domain.TicketStateInProgress)},
	string(domain.TicketStateClosed):     {},
}

// interventionTransitions maps intervention states. completed is terminal,
// unlike the ticket table; cancelled visits can be re-planned.
var interventionTransitions = map[string][]string{
	string(domain.InterventionStatePlanned):    {string(domain.InterventionStateInProgress), string(domain.InterventionStateCancelled)},
	string(domain.InterventionStateInProgress): {string(domain.InterventionStateCompleted), string(domain.InterventionStatePlanned), string(domain.InterventionStateCancelled)},
	string(domain.InterventionStateCompleted):  {},
	string(domain.InterventionStateCancelled):  {string(domain.InterventionStatePlanned)},
}

func tableFor(kind EntityKind) map[string][]string {
	if kind == KindIntervention {
		return interventionTransitions
	}
	return ticketTransitions
}

// AllowedTargets returns the allowed target set for a state. The second
// return value is false when the state is unknown to the table.
func AllowedTargets(kind EntityKind, state string) ([]string, bool) {
	allowed, ok := tableFor(kind)[state]
	return allowed, ok
}

// ValidateTransition checks a requested state change against the static
// table for the entity kind. A no-op request (empty or equal to the current
// state) is always valid: offline replay re-applies commands at least once,
// so repeated transitions must succeed without effect.
//
// Pure and synchronous; must run before any store mutation.
func ValidateTransition(kind EntityKind, current, requested string) error {
	if requested == "" || requested == current {
		return nil
	}
	allowed, ok := AllowedTargets(kind, current)
	if !ok {
		return apperrors.NewUnknownState(string(kind), current)
	}
	for _, candidate := range allowed {
		if candidate == requested {
			return nil
		}
	}
	return apperrors.NewIllegalTransition(string(kind), current, requested, allowed)
}

// Terminal reports whether a state has no allowed targets.
func Terminal(kind EntityKind, state string) bool {
	allowed, ok := AllowedTargets(kind, state)
	return ok && len(allowed) == 0
}
