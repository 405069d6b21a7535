package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unihelp/helpdesk/internal/domain"
	"github.com/unihelp/helpdesk/internal/sla"
	apperrors "github.com/unihelp/helpdesk/pkg/util/errorutil"
)

var t0 = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

func newTicket(status domain.TicketStatus) *domain.Ticket {
	return &domain.Ticket{
		Status:    status,
		Priority:  domain.TicketPriorityMedium,
		CreatedBy: "student-1",
		CreatedAt: t0,
	}
}

func TestStateMachine_TransitionTable(t *testing.T) {
	sm := NewStateMachine()
	tests := []struct {
		from, to domain.TicketStatus
		ok       bool
	}{
		{domain.TicketStatusOpen, domain.TicketStatusInProgress, true},
		{domain.TicketStatusOpen, domain.TicketStatusPending, true},
		{domain.TicketStatusOpen, domain.TicketStatusResolved, true},
		{domain.TicketStatusOpen, domain.TicketStatusClosed, true},
		{domain.TicketStatusInProgress, domain.TicketStatusPending, true},
		{domain.TicketStatusInProgress, domain.TicketStatusOpen, false},
		{domain.TicketStatusPending, domain.TicketStatusInProgress, true},
		{domain.TicketStatusPending, domain.TicketStatusOpen, false},
		{domain.TicketStatusResolved, domain.TicketStatusClosed, true},
		{domain.TicketStatusResolved, domain.TicketStatusInProgress, true},
		{domain.TicketStatusResolved, domain.TicketStatusPending, false},
		{domain.TicketStatusClosed, domain.TicketStatusInProgress, true},
		{domain.TicketStatusClosed, domain.TicketStatusResolved, false},
		{domain.TicketStatusClosed, domain.TicketStatusOpen, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			tk := newTicket(tt.from)
			changed, err := sm.Transition(tk, tt.to, t0)
			if tt.ok {
				require.NoError(t, err)
				assert.True(t, changed)
				assert.Equal(t, tt.to, tk.Status)
				return
			}
			assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidTransition))
			assert.Equal(t, tt.from, tk.Status)
		})
	}
}

func TestStateMachine_InvalidStatus(t *testing.T) {
	tk := newTicket(domain.TicketStatusOpen)
	_, err := NewStateMachine().Transition(tk, "escalated", t0)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidStatus))
}

func TestStateMachine_SameStatusIsNoop(t *testing.T) {
	tk := newTicket(domain.TicketStatusPending)
	changed, err := NewStateMachine().Transition(tk, domain.TicketStatusPending, t0)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestStateMachine_ResolvedAtIsWriteOnce(t *testing.T) {
	sm := NewStateMachine()
	tk := newTicket(domain.TicketStatusInProgress)

	_, err := sm.Transition(tk, domain.TicketStatusResolved, t0.Add(90*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, tk.ResolvedAt)
	assert.Equal(t, t0.Add(90*time.Minute), *tk.ResolvedAt)
	require.NotNil(t, tk.ActualResolutionTime)
	assert.Equal(t, 90, *tk.ActualResolutionTime)

	// reopen then resolve again
	_, err = sm.Transition(tk, domain.TicketStatusInProgress, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, tk.ReopenCount)
	_, err = sm.Transition(tk, domain.TicketStatusResolved, t0.Add(5*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, t0.Add(90*time.Minute), *tk.ResolvedAt)
	assert.Equal(t, 90, *tk.ActualResolutionTime)
}

func TestStateMachine_ClosedAtIsWriteOnce(t *testing.T) {
	sm := NewStateMachine()
	tk := newTicket(domain.TicketStatusOpen)

	_, err := sm.Transition(tk, domain.TicketStatusClosed, t0.Add(time.Hour))
	require.NoError(t, err)
	_, err = sm.Transition(tk, domain.TicketStatusInProgress, t0.Add(2*time.Hour))
	require.NoError(t, err)
	_, err = sm.Transition(tk, domain.TicketStatusClosed, t0.Add(3*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, t0.Add(time.Hour), *tk.ClosedAt)
	assert.Equal(t, 1, tk.ReopenCount)
	assert.Nil(t, tk.ResolvedAt)
}

func TestStateMachine_PendingToInProgressIsNotReopen(t *testing.T) {
	tk := newTicket(domain.TicketStatusPending)
	_, err := NewStateMachine().Transition(tk, domain.TicketStatusInProgress, t0)
	require.NoError(t, err)
	assert.Zero(t, tk.ReopenCount)
}

func TestStateMachine_RegisterTasks(t *testing.T) {
	sm := NewStateMachine()
	var entered []domain.TicketStatus
	sm.RegisterTasks(domain.TicketStatusPending,
		Task{Name: "enter", Execute: func(tk *domain.Ticket, from domain.TicketStatus, _ time.Time) {
			entered = append(entered, from)
			assert.Equal(t, domain.TicketStatusPending, tk.Status)
		}},
	)

	tk := newTicket(domain.TicketStatusOpen)
	_, err := sm.Transition(tk, domain.TicketStatusPending, t0)
	require.NoError(t, err)
	_, err = sm.Transition(tk, domain.TicketStatusInProgress, t0)
	require.NoError(t, err)
	_, err = sm.Transition(tk, domain.TicketStatusPending, t0)
	require.NoError(t, err)

	assert.Equal(t, []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress}, entered)
}

func TestLifecycle_Open(t *testing.T) {
	l := NewLifecycle(nil, nil)
	tk := &domain.Ticket{Priority: domain.TicketPriorityCritical}
	l.Open(tk, t0)

	assert.Equal(t, domain.TicketStatusOpen, tk.Status)
	assert.Equal(t, 1, tk.EscalationLevel)
	assert.Equal(t, t0.Add(30*time.Minute), tk.SLAResponseDeadline)
	assert.Equal(t, t0.Add(240*time.Minute), tk.SLAResolutionDeadline)
}

func TestLifecycle_SetPriorityRestartsDeadlines(t *testing.T) {
	l := NewLifecycle(nil, sla.NewTable(nil))
	tk := &domain.Ticket{Priority: domain.TicketPriorityLow}
	l.Open(tk, t0)
	original := tk.SLAResolutionDeadline

	changeAt := t0.Add(3 * time.Hour)
	changed, err := l.SetPriority(tk, domain.TicketPriorityCritical, changeAt)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, changeAt.Add(30*time.Minute), tk.SLAResponseDeadline)
	assert.Equal(t, changeAt.Add(240*time.Minute), tk.SLAResolutionDeadline)
	assert.NotEqual(t, original, tk.SLAResolutionDeadline)

	changed, err = l.SetPriority(tk, domain.TicketPriorityCritical, changeAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, changeAt.Add(30*time.Minute), tk.SLAResponseDeadline)

	_, err = l.SetPriority(tk, "urgent", changeAt)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestLifecycle_AssignMovesOpenToInProgress(t *testing.T) {
	l := NewLifecycle(nil, nil)
	tk := newTicket(domain.TicketStatusOpen)

	changed, err := l.Assign(tk, "tech-1", t0)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.TicketStatusInProgress, tk.Status)
	assert.True(t, tk.IsAssignedTo("tech-1"))

	changed, err = l.Assign(tk, "tech-1", t0)
	require.NoError(t, err)
	assert.False(t, changed)

	tk.Status = domain.TicketStatusPending
	changed, err = l.Assign(tk, "tech-2", t0)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.TicketStatusPending, tk.Status)
}

func TestLifecycle_SetEscalation(t *testing.T) {
	l := NewLifecycle(nil, nil)
	tk := newTicket(domain.TicketStatusOpen)
	tk.EscalationLevel = 1

	changed, err := l.SetEscalation(tk, 3)
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = l.SetEscalation(tk, 4)
	assert.Error(t, err)
	_, err = l.SetEscalation(tk, 0)
	assert.Error(t, err)
}

func TestLifecycle_FirstResponse(t *testing.T) {
	l := NewLifecycle(nil, nil)
	tk := newTicket(domain.TicketStatusOpen)

	l.AddComment(tk, domain.Comment{Author: "student-1", AuthorRole: domain.RoleStudent, Message: "any news?", Timestamp: t0.Add(5 * time.Minute)})
	assert.Nil(t, tk.FirstResponseAt)

	l.AddComment(tk, domain.Comment{Author: "tech-1", AuthorRole: domain.RoleTechnician, Message: "note", IsInternal: true, Timestamp: t0.Add(6 * time.Minute)})
	assert.Nil(t, tk.FirstResponseAt)

	l.AddComment(tk, domain.Comment{Author: "tech-1", AuthorRole: domain.RoleTechnician, Message: "on it", Timestamp: t0.Add(10 * time.Minute)})
	require.NotNil(t, tk.FirstResponseAt)
	assert.Equal(t, t0.Add(10*time.Minute), *tk.FirstResponseAt)

	l.AddComment(tk, domain.Comment{Author: "tech-2", AuthorRole: domain.RoleAdmin, Message: "update", Timestamp: t0.Add(20 * time.Minute)})
	assert.Equal(t, t0.Add(10*time.Minute), *tk.FirstResponseAt)
	assert.Len(t, tk.Comments, 4)
}
