package workflow

import (
	"time"

	"github.com/unihelp/helpdesk/internal/domain"
	apperrors "github.com/unihelp/helpdesk/pkg/util/errorutil"
)

// Task runs as a side effect of entering a status.
type Task struct {
	Name    string
	Execute func(t *domain.Ticket, from domain.TicketStatus, now time.Time)
}

// Node holds the hooks attached to a status.
type Node struct {
	Status  domain.TicketStatus
	OnEnter []Task
}

// StateMachine governs which status changes are legal.
type StateMachine struct {
	transitions map[domain.TicketStatus]map[domain.TicketStatus]bool
	nodes       map[domain.TicketStatus]*Node
}

// NewStateMachine builds the helpdesk lifecycle with its default hooks.
func NewStateMachine() *StateMachine {
	sm := &StateMachine{
		transitions: make(map[domain.TicketStatus]map[domain.TicketStatus]bool),
		nodes:       make(map[domain.TicketStatus]*Node),
	}
	sm.initTransitions()
	sm.initNodes()
	return sm
}

func (sm *StateMachine) initTransitions() {
	allow := func(from domain.TicketStatus, to ...domain.TicketStatus) {
		set := make(map[domain.TicketStatus]bool, len(to))
		for _, s := range to {
			set[s] = true
		}
		sm.transitions[from] = set
	}
	allow(domain.TicketStatusOpen,
		domain.TicketStatusInProgress, domain.TicketStatusPending, domain.TicketStatusResolved, domain.TicketStatusClosed)
	allow(domain.TicketStatusInProgress,
		domain.TicketStatusPending, domain.TicketStatusResolved, domain.TicketStatusClosed)
	allow(domain.TicketStatusPending,
		domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed)
	// resolved and closed tickets can be reopened
	allow(domain.TicketStatusResolved, domain.TicketStatusClosed, domain.TicketStatusInProgress)
	allow(domain.TicketStatusClosed, domain.TicketStatusInProgress)
}

func (sm *StateMachine) initNodes() {
	for _, s := range []domain.TicketStatus{
		domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusPending,
		domain.TicketStatusResolved, domain.TicketStatusClosed,
	} {
		sm.nodes[s] = &Node{Status: s}
	}
	sm.RegisterTasks(domain.TicketStatusResolved, Task{Name: "stamp-resolved", Execute: stampResolved})
	sm.RegisterTasks(domain.TicketStatusClosed, Task{Name: "stamp-closed", Execute: stampClosed})
	sm.RegisterTasks(domain.TicketStatusInProgress, Task{Name: "count-reopen", Execute: countReopen})
}

// RegisterTasks appends entry hooks to a status.
func (sm *StateMachine) RegisterTasks(status domain.TicketStatus, onEnter ...Task) {
	node, ok := sm.nodes[status]
	if !ok {
		node = &Node{Status: status}
		sm.nodes[status] = node
	}
	node.OnEnter = append(node.OnEnter, onEnter...)
}

// CanTransition reports whether from -> to is a legal edge.
func (sm *StateMachine) CanTransition(from, to domain.TicketStatus) bool {
	return sm.transitions[from][to]
}

// Transition moves the ticket to the requested status and runs the hooks.
// Requesting the current status is a no-op and reports changed=false.
func (sm *StateMachine) Transition(t *domain.Ticket, to domain.TicketStatus, now time.Time) (bool, error) {
	if !to.Valid() {
		return false, apperrors.NewInvalidStatus(string(to))
	}
	from := t.Status
	if from == to {
		return false, nil
	}
	if !sm.CanTransition(from, to) {
		return false, apperrors.NewInvalidTransition(string(from), string(to))
	}

	t.Status = to
	if node, ok := sm.nodes[to]; ok {
		for _, task := range node.OnEnter {
			task.Execute(t, from, now)
		}
	}
	return true, nil
}

func stampResolved(t *domain.Ticket, _ domain.TicketStatus, now time.Time) {
	if t.ResolvedAt != nil {
		return
	}
	resolved := now
	t.ResolvedAt = &resolved
	minutes := int(resolved.Sub(t.CreatedAt).Minutes())
	t.ActualResolutionTime = &minutes
}

func stampClosed(t *domain.Ticket, _ domain.TicketStatus, now time.Time) {
	if t.ClosedAt != nil {
		return
	}
	closed := now
	t.ClosedAt = &closed
}

func countReopen(t *domain.Ticket, from domain.TicketStatus, _ time.Time) {
	if from.Done() {
		t.ReopenCount++
	}
}
