package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unihelp/helpdesk/internal/config"
	"github.com/unihelp/helpdesk/internal/domain"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func TestCalculateDeadlines_Defaults(t *testing.T) {
	table := NewTable(nil)

	tests := []struct {
		priority   domain.TicketPriority
		response   time.Duration
		resolution time.Duration
	}{
		{domain.TicketPriorityCritical, 30 * time.Minute, 240 * time.Minute},
		{domain.TicketPriorityHigh, 60 * time.Minute, 480 * time.Minute},
		{domain.TicketPriorityMedium, 240 * time.Minute, 1440 * time.Minute},
		{domain.TicketPriorityLow, 480 * time.Minute, 2880 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			d := table.CalculateDeadlines(tt.priority, t0)
			assert.Equal(t, t0.Add(tt.response), d.Response)
			assert.Equal(t, t0.Add(tt.resolution), d.Resolution)
			assert.True(t, d.Response.Before(d.Resolution))
		})
	}
}

func TestCalculateDeadlines_UnknownPriorityFallsBackToMedium(t *testing.T) {
	table := NewTable(nil)
	medium := table.CalculateDeadlines(domain.TicketPriorityMedium, t0)

	assert.Equal(t, medium, table.CalculateDeadlines("", t0))
	assert.Equal(t, medium, table.CalculateDeadlines("urgent", t0))
}

func TestNewTable_Overrides(t *testing.T) {
	table := NewTable(map[domain.TicketPriority]Target{
		domain.TicketPriorityCritical: {Response: 15 * time.Minute},
		"bogus":                       {Response: time.Minute, Resolution: time.Minute},
	})

	target := table.Target(domain.TicketPriorityCritical)
	assert.Equal(t, 15*time.Minute, target.Response)
	assert.Equal(t, 240*time.Minute, target.Resolution)
	assert.Equal(t, 60*time.Minute, table.Target(domain.TicketPriorityHigh).Response)
}

func ticketAt(priority domain.TicketPriority, created time.Time) *domain.Ticket {
	tk := &domain.Ticket{Priority: priority, Status: domain.TicketStatusOpen, CreatedAt: created}
	NewTable(nil).Apply(tk, created)
	return tk
}

func TestCheckBreach_ResolutionPastDeadlineWhileOpen(t *testing.T) {
	tk := ticketAt(domain.TicketPriorityCritical, t0)
	now := t0.Add(300 * time.Minute)

	report := CheckBreach(tk, now)
	require.True(t, report.Breached)
	require.Len(t, report.Breaches, 2)
	assert.Equal(t, DeadlineResponse, report.Breaches[0].Type)
	assert.Equal(t, 270, report.Breaches[0].DelayMinutes)
	assert.Equal(t, DeadlineResolution, report.Breaches[1].Type)
	assert.Equal(t, 60, report.Breaches[1].DelayMinutes)
}

func TestCheckBreach_ResolvedTicketHasNoResolutionBreach(t *testing.T) {
	tk := ticketAt(domain.TicketPriorityCritical, t0)
	responded := t0.Add(10 * time.Minute)
	tk.FirstResponseAt = &responded
	tk.Status = domain.TicketStatusResolved

	report := CheckBreach(tk, t0.Add(1000*time.Minute))
	assert.False(t, report.Breached)
	assert.Empty(t, report.Breaches)
}

func TestCheckBreach_LateFirstResponseStillBreaches(t *testing.T) {
	tk := ticketAt(domain.TicketPriorityHigh, t0)
	late := t0.Add(90 * time.Minute)
	tk.FirstResponseAt = &late

	report := CheckBreach(tk, t0.Add(100*time.Minute))
	require.Len(t, report.Breaches, 1)
	assert.Equal(t, DeadlineResponse, report.Breaches[0].Type)
	assert.Equal(t, 40, report.Breaches[0].DelayMinutes)
}

func TestCheckBreach_NothingBeforeDeadlines(t *testing.T) {
	tk := ticketAt(domain.TicketPriorityLow, t0)
	assert.False(t, CheckBreach(tk, t0.Add(time.Minute)).Breached)
	// exactly at the deadline is not yet a breach
	assert.False(t, CheckBreach(tk, tk.SLAResponseDeadline).Breached)
}

func TestCheckBreach_UnansweredResponseStaysBreachedAfterResolution(t *testing.T) {
	tk := ticketAt(domain.TicketPriorityHigh, t0)
	tk.Status = domain.TicketStatusClosed
	now := t0.Add(600 * time.Minute)

	report := CheckBreach(tk, now)
	require.Len(t, report.Breaches, 1)
	assert.Equal(t, DeadlineResponse, report.Breaches[0].Type)
	assert.Equal(t, 540, report.Breaches[0].DelayMinutes)

	assert.Empty(t, TimeRemaining(tk, now).Deadlines)
}

func TestTimeRemaining_Severities(t *testing.T) {
	tk := ticketAt(domain.TicketPriorityCritical, t0)

	report := TimeRemaining(tk, t0)
	require.Len(t, report.Deadlines, 2)
	assert.Equal(t, 30, report.Deadlines[0].MinutesRemaining)
	assert.Equal(t, SeverityCritical, report.Deadlines[0].Severity)
	assert.Equal(t, 240, report.Deadlines[1].MinutesRemaining)
	assert.Equal(t, SeverityOK, report.Deadlines[1].Severity)
	assert.Len(t, report.Warnings, 1)

	report = TimeRemaining(tk, t0.Add(60*time.Minute))
	assert.Equal(t, 180, report.Deadlines[1].MinutesRemaining)
	assert.Equal(t, SeverityWarning, report.Deadlines[1].Severity)
	assert.Len(t, report.Warnings, 2)

	report = TimeRemaining(tk, t0.Add(125*time.Minute))
	assert.Equal(t, SeverityCritical, report.Deadlines[1].Severity)
}

func TestTimeRemaining_SkipsMetDeadlines(t *testing.T) {
	tk := ticketAt(domain.TicketPriorityMedium, t0)
	responded := t0.Add(5 * time.Minute)
	tk.FirstResponseAt = &responded

	report := TimeRemaining(tk, t0.Add(10*time.Minute))
	require.Len(t, report.Deadlines, 1)
	assert.Equal(t, DeadlineResolution, report.Deadlines[0].Type)

	tk.Status = domain.TicketStatusClosed
	assert.Empty(t, TimeRemaining(tk, t0).Deadlines)
}

func TestEvaluate(t *testing.T) {
	tk := ticketAt(domain.TicketPriorityHigh, t0)
	status := Evaluate(tk, t0.Add(61*time.Minute))
	assert.True(t, status.Breached)
	assert.NotEmpty(t, status.Remaining.Warnings)
}

func TestFromConfig(t *testing.T) {
	table := FromConfig(config.SLAConfig{
		CriticalResponseMinutes:   10,
		CriticalResolutionMinutes: 60,
	})
	assert.Equal(t, 10*time.Minute, table.Target(domain.TicketPriorityCritical).Response)
	assert.Equal(t, 60*time.Minute, table.Target(domain.TicketPriorityCritical).Resolution)
	// zero values keep the defaults
	assert.Equal(t, 2880*time.Minute, table.Target(domain.TicketPriorityLow).Resolution)
}
