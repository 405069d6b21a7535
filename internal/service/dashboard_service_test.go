package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unihelp/helpdesk/internal/domain"
)

func resolvedAt(ts time.Time) *time.Time { return &ts }

func TestAggregate_ComplianceCountsResolvedBeforeDeadline(t *testing.T) {
	deadline := t0.Add(2880 * time.Minute)
	tickets := []domain.Ticket{
		{Status: domain.TicketStatusResolved, Priority: domain.TicketPriorityLow, Category: domain.CategoryEmail,
			CreatedAt: t0, SLAResolutionDeadline: deadline, ResolvedAt: resolvedAt(deadline.Add(-time.Minute))},
		{Status: domain.TicketStatusClosed, Priority: domain.TicketPriorityLow, Category: domain.CategoryEmail,
			CreatedAt: t0, SLAResolutionDeadline: deadline, ResolvedAt: resolvedAt(deadline.Add(time.Minute))},
		{Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityCritical, Category: domain.CategoryNetwork,
			CreatedAt: t0, SLAResolutionDeadline: t0.Add(240 * time.Minute)},
		{Status: domain.TicketStatusInProgress, Priority: domain.TicketPriorityLow, Category: domain.CategoryNetwork,
			CreatedAt: t0.Add(2900 * time.Minute), SLAResolutionDeadline: t0.Add(5780 * time.Minute)},
	}

	stats := Aggregate(tickets, t0.Add(3000*time.Minute))

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Resolved)
	assert.Equal(t, 2, stats.Open)
	assert.Equal(t, 1, stats.Overdue)
	assert.Equal(t, 50.0, stats.ComplianceRate)
	assert.Equal(t, 2880.0, stats.AverageResolutionMinutes)
	assert.Equal(t, 3, stats.ByPriority[domain.TicketPriorityLow])
	assert.Equal(t, 1, stats.ByPriority[domain.TicketPriorityCritical])
	assert.Equal(t, 2, stats.ByCategory[domain.CategoryNetwork])
	assert.Equal(t, 1, stats.ByStatus[domain.TicketStatusClosed])
}

func TestAggregate_NothingResolvedIsZeroCompliance(t *testing.T) {
	stats := Aggregate([]domain.Ticket{
		{Status: domain.TicketStatusOpen, CreatedAt: t0, SLAResolutionDeadline: t0.Add(time.Hour)},
	}, t0)
	assert.Zero(t, stats.ComplianceRate)
	assert.Zero(t, stats.AverageResolutionMinutes)

	empty := Aggregate(nil, t0)
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.ComplianceRate)
}

func TestAggregate_ComplianceRounding(t *testing.T) {
	deadline := t0.Add(time.Hour)
	tickets := []domain.Ticket{
		{Status: domain.TicketStatusResolved, CreatedAt: t0, SLAResolutionDeadline: deadline, ResolvedAt: resolvedAt(t0.Add(10 * time.Minute))},
		{Status: domain.TicketStatusResolved, CreatedAt: t0, SLAResolutionDeadline: deadline, ResolvedAt: resolvedAt(t0.Add(20 * time.Minute))},
		{Status: domain.TicketStatusResolved, CreatedAt: t0, SLAResolutionDeadline: deadline, ResolvedAt: resolvedAt(t0.Add(2 * time.Hour))},
	}
	stats := Aggregate(tickets, t0.Add(3*time.Hour))
	assert.Equal(t, 66.67, stats.ComplianceRate)
	assert.Equal(t, 50.0, stats.AverageResolutionMinutes)
}

func TestAggregate_ReopenedTicketIsNotResolved(t *testing.T) {
	deadline := t0.Add(2880 * time.Minute)
	tickets := []domain.Ticket{
		{Status: domain.TicketStatusInProgress, Priority: domain.TicketPriorityLow, CreatedAt: t0,
			SLAResolutionDeadline: deadline, ResolvedAt: resolvedAt(t0.Add(10 * time.Minute)), ReopenCount: 1},
		{Status: domain.TicketStatusResolved, Priority: domain.TicketPriorityLow, CreatedAt: t0,
			SLAResolutionDeadline: deadline, ResolvedAt: resolvedAt(deadline.Add(time.Minute))},
	}

	stats := Aggregate(tickets, t0.Add(3000*time.Minute))

	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Open)
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 1, stats.Overdue)
	assert.Zero(t, stats.ComplianceRate)
	assert.Equal(t, 2881.0, stats.AverageResolutionMinutes)
}

func TestGetStats_ReopenedTicketCountsAsOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.create(t, student, domain.TicketPriorityLow)

	f.clock.Advance(10 * time.Minute)
	_, err := f.svc.UpdateTicket(ctx, tech, tk.TicketCode, UpdateTicketInput{
		Status:     statusPtr(domain.TicketStatusResolved),
		Resolution: &domain.Resolution{Summary: "reset password"},
	})
	require.NoError(t, err)
	_, err = f.svc.UpdateTicket(ctx, student, tk.TicketCode, UpdateTicketInput{
		Status: statusPtr(domain.TicketStatusInProgress),
		Reason: "still locked out",
	})
	require.NoError(t, err)

	dash := NewDashboardService(DashboardDependencies{TicketRepo: f.tickets, Clock: f.clock})
	stats, err := dash.GetStats(ctx, admin, StatsOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Open)
	assert.Zero(t, stats.Resolved)
	assert.Zero(t, stats.ComplianceRate)
	assert.Equal(t, 1, stats.ByStatus[domain.TicketStatusInProgress])
}

func TestGetStats_ScopedToPrincipal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.create(t, student, domain.TicketPriorityLow)
	f.create(t, student2, domain.TicketPriorityHigh)
	_, err := f.svc.Assign(ctx, tech, mine.TicketCode, "tech-a", "")
	require.NoError(t, err)

	dash := NewDashboardService(DashboardDependencies{TicketRepo: f.tickets, Clock: f.clock})

	stats, err := dash.GetStats(ctx, student, StatsOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)

	stats, err = dash.GetStats(ctx, tech, StatsOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)

	stats, err = dash.GetStats(ctx, tech, StatsOptions{AssignedToMe: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[domain.TicketStatusInProgress])

	stats, err = dash.GetStats(ctx, tech2, StatsOptions{AssignedToMe: true})
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}
