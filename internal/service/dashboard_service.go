package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/unihelp/helpdesk/internal/clock"
	"github.com/unihelp/helpdesk/internal/domain"
	"github.com/unihelp/helpdesk/internal/repository"
	apperrors "github.com/unihelp/helpdesk/pkg/util/errorutil"
)

// DashboardService aggregates role-scoped ticket statistics.
type DashboardService struct {
	tickets repository.TicketRepository
	clock   clock.Clock
	logger  *zap.Logger
}

// DashboardDependencies bundles collaborators for the dashboard.
type DashboardDependencies struct {
	TicketRepo repository.TicketRepository
	Clock      clock.Clock
	Logger     *zap.Logger
}

// StatsOptions narrows the aggregation.
type StatsOptions struct {
	// AssignedToMe limits support roles to their own queue. Ignored for requesters.
	AssignedToMe bool
}

// DashboardStats is a point-in-time aggregation over the tickets in scope.
type DashboardStats struct {
	Total                    int                           `json:"total"`
	ByStatus                 map[domain.TicketStatus]int   `json:"byStatus"`
	ByPriority               map[domain.TicketPriority]int `json:"byPriority"`
	ByCategory               map[domain.TicketCategory]int `json:"byCategory"`
	Open                     int                           `json:"open"`
	Resolved                 int                           `json:"resolved"`
	Overdue                  int                           `json:"overdue"`
	AverageResolutionMinutes float64                       `json:"averageResolutionMinutes"`
	ComplianceRate           float64                       `json:"complianceRate"`
	GeneratedAt              time.Time                     `json:"generatedAt"`
}

// NewDashboardService constructs the service.
func NewDashboardService(deps DashboardDependencies) *DashboardService {
	s := &DashboardService{tickets: deps.TicketRepo, clock: deps.Clock, logger: deps.Logger}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// GetStats computes counts and rates over the principal's scope. Nothing is cached.
func (s *DashboardService) GetStats(ctx context.Context, p domain.Principal, opts StatsOptions) (*DashboardStats, error) {
	filter := repository.TicketFilter{Scope: scopeFor(p)}
	if opts.AssignedToMe && p.Role.IsSupport() {
		me := p.UserID
		filter.AssignedTo = &me
	}
	tickets, err := s.tickets.ListAll(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	stats := Aggregate(tickets, s.clock.Now())
	s.logger.Debug("dashboard stats computed",
		zap.String("user_id", p.UserID), zap.String("role", string(p.Role)), zap.Int("tickets", stats.Total))
	return stats, nil
}

// Aggregate folds a ticket population into dashboard figures.
func Aggregate(tickets []domain.Ticket, now time.Time) *DashboardStats {
	stats := &DashboardStats{
		Total:       len(tickets),
		ByStatus:    map[domain.TicketStatus]int{},
		ByPriority:  map[domain.TicketPriority]int{},
		ByCategory:  map[domain.TicketCategory]int{},
		GeneratedAt: now,
	}

	var resolutionMinutes, met int64
	for i := range tickets {
		t := &tickets[i]
		stats.ByStatus[t.Status]++
		stats.ByPriority[t.Priority]++
		stats.ByCategory[t.Category]++

		if !t.Status.Done() {
			stats.Open++
			if now.After(t.SLAResolutionDeadline) {
				stats.Overdue++
			}
		}
		// a reopened ticket keeps ResolvedAt but is back in the open population
		if !t.Status.Done() || t.ResolvedAt == nil || t.CreatedAt.IsZero() {
			continue
		}
		stats.Resolved++
		resolutionMinutes += int64(t.ResolvedAt.Sub(t.CreatedAt).Minutes())
		if t.ResolvedAt.Before(t.SLAResolutionDeadline) {
			met++
		}
	}

	if stats.Resolved > 0 {
		n := decimal.NewFromInt(int64(stats.Resolved))
		stats.AverageResolutionMinutes, _ = decimal.NewFromInt(resolutionMinutes).Div(n).Round(2).Float64()
		stats.ComplianceRate, _ = decimal.NewFromInt(met).Mul(decimal.NewFromInt(100)).Div(n).Round(2).Float64()
	}
	return stats
}
