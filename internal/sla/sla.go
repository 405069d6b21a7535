package sla

import (
	"time"

	"github.com/unihelp/helpdesk/internal/config"
	"github.com/unihelp/helpdesk/internal/domain"
)

// Target holds the response and resolution budgets for one priority.
type Target struct {
	Response   time.Duration
	Resolution time.Duration
}

// Table maps priorities to their targets. It is fixed once the service starts.
type Table struct {
	targets map[domain.TicketPriority]Target
}

// DefaultTargets are the minutes used when nothing is configured.
func DefaultTargets() map[domain.TicketPriority]Target {
	return map[domain.TicketPriority]Target{
		domain.TicketPriorityCritical: {Response: 30 * time.Minute, Resolution: 240 * time.Minute},
		domain.TicketPriorityHigh:     {Response: 60 * time.Minute, Resolution: 480 * time.Minute},
		domain.TicketPriorityMedium:   {Response: 240 * time.Minute, Resolution: 1440 * time.Minute},
		domain.TicketPriorityLow:      {Response: 480 * time.Minute, Resolution: 2880 * time.Minute},
	}
}

// NewTable builds a table, filling any missing or non-positive entry from the defaults.
func NewTable(overrides map[domain.TicketPriority]Target) *Table {
	targets := DefaultTargets()
	for p, t := range overrides {
		if !p.Valid() {
			continue
		}
		cur := targets[p]
		if t.Response > 0 {
			cur.Response = t.Response
		}
		if t.Resolution > 0 {
			cur.Resolution = t.Resolution
		}
		targets[p] = cur
	}
	return &Table{targets: targets}
}

// Target returns the budget for a priority. Unknown priorities use medium.
func (t *Table) Target(priority domain.TicketPriority) Target {
	if target, ok := t.targets[priority]; ok {
		return target
	}
	return t.targets[domain.TicketPriorityMedium]
}

// Deadlines is the pair of instants derived from a priority.
type Deadlines struct {
	Response   time.Time
	Resolution time.Time
}

// CalculateDeadlines adds the priority's targets to ref.
func (t *Table) CalculateDeadlines(priority domain.TicketPriority, ref time.Time) Deadlines {
	target := t.Target(priority)
	return Deadlines{
		Response:   ref.Add(target.Response),
		Resolution: ref.Add(target.Resolution),
	}
}

// Apply stamps freshly computed deadlines onto the ticket.
func (t *Table) Apply(ticket *domain.Ticket, ref time.Time) {
	d := t.CalculateDeadlines(ticket.Priority, ref)
	ticket.SLAResponseDeadline = d.Response
	ticket.SLAResolutionDeadline = d.Resolution
}

// FromConfig builds the table from deploy-time minutes.
func FromConfig(cfg config.SLAConfig) *Table {
	minutes := func(n int) time.Duration { return time.Duration(n) * time.Minute }
	return NewTable(map[domain.TicketPriority]Target{
		domain.TicketPriorityCritical: {Response: minutes(cfg.CriticalResponseMinutes), Resolution: minutes(cfg.CriticalResolutionMinutes)},
		domain.TicketPriorityHigh:     {Response: minutes(cfg.HighResponseMinutes), Resolution: minutes(cfg.HighResolutionMinutes)},
		domain.TicketPriorityMedium:   {Response: minutes(cfg.MediumResponseMinutes), Resolution: minutes(cfg.MediumResolutionMinutes)},
		domain.TicketPriorityLow:      {Response: minutes(cfg.LowResponseMinutes), Resolution: minutes(cfg.LowResolutionMinutes)},
	})
}
