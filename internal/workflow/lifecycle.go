package workflow

import (
	"time"

	"github.com/unihelp/helpdesk/internal/domain"
	"github.com/unihelp/helpdesk/internal/sla"
	apperrors "github.com/unihelp/helpdesk/pkg/util/errorutil"
)

// Lifecycle applies ticket mutations that carry lifecycle side effects.
// It only touches the in-memory ticket; persistence and history are the caller's job.
type Lifecycle struct {
	machine *StateMachine
	table   *sla.Table
}

// NewLifecycle wires the state machine with the SLA table used for deadline recomputation.
func NewLifecycle(machine *StateMachine, table *sla.Table) *Lifecycle {
	if machine == nil {
		machine = NewStateMachine()
	}
	if table == nil {
		table = sla.NewTable(nil)
	}
	return &Lifecycle{machine: machine, table: table}
}

// Machine exposes the underlying state machine.
func (l *Lifecycle) Machine() *StateMachine {
	return l.machine
}

// Table exposes the SLA table.
func (l *Lifecycle) Table() *sla.Table {
	return l.table
}

// Open initializes a new ticket: status, escalation floor and deadlines from now.
func (l *Lifecycle) Open(t *domain.Ticket, now time.Time) {
	t.Status = domain.TicketStatusOpen
	if !t.Priority.Valid() {
		t.Priority = domain.TicketPriorityMedium
	}
	if t.EscalationLevel == 0 {
		t.EscalationLevel = domain.MinEscalationLevel
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	l.table.Apply(t, now)
}

// SetStatus runs a status transition.
func (l *Lifecycle) SetStatus(t *domain.Ticket, to domain.TicketStatus, now time.Time) (bool, error) {
	return l.machine.Transition(t, to, now)
}

// SetPriority changes the priority and restarts both deadlines from now.
func (l *Lifecycle) SetPriority(t *domain.Ticket, p domain.TicketPriority, now time.Time) (bool, error) {
	if !p.Valid() {
		return false, apperrors.NewValidationError("invalid priority", map[string]any{"priority": p})
	}
	if t.Priority == p {
		return false, nil
	}
	t.Priority = p
	l.table.Apply(t, now)
	return true, nil
}

// Assign binds the ticket to a handler and moves an open ticket to in-progress.
// Assigning the current handler again changes nothing.
func (l *Lifecycle) Assign(t *domain.Ticket, handlerID string, now time.Time) (bool, error) {
	if handlerID == "" {
		return false, apperrors.NewValidationError("handler id required", nil)
	}
	if t.IsAssignedTo(handlerID) {
		return false, nil
	}
	id := handlerID
	t.AssignedTo = &id
	if t.Status == domain.TicketStatusOpen {
		if _, err := l.machine.Transition(t, domain.TicketStatusInProgress, now); err != nil {
			return false, err
		}
	}
	return true, nil
}

// SetEscalation changes the escalation level within its bounds.
func (l *Lifecycle) SetEscalation(t *domain.Ticket, level int) (bool, error) {
	if level < domain.MinEscalationLevel || level > domain.MaxEscalationLevel {
		return false, apperrors.NewValidationError("escalation level out of range",
			map[string]any{"min": domain.MinEscalationLevel, "max": domain.MaxEscalationLevel})
	}
	if t.EscalationLevel == level {
		return false, nil
	}
	t.EscalationLevel = level
	return true, nil
}

// AddComment appends a comment and stamps the first response when a support
// role posts a public reply on someone else's ticket.
func (l *Lifecycle) AddComment(t *domain.Ticket, c domain.Comment) {
	t.Comments = append(t.Comments, c)
	if t.FirstResponseAt != nil || c.IsInternal {
		return
	}
	if c.AuthorRole.IsSupport() && c.Author != t.CreatedBy {
		at := c.Timestamp
		t.FirstResponseAt = &at
	}
}
