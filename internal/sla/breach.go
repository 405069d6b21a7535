package sla

import (
	"time"

	"github.com/unihelp/helpdesk/internal/domain"
)

// DeadlineType distinguishes the two SLA milestones.
type DeadlineType string

const (
	DeadlineResponse   DeadlineType = "response"
	DeadlineResolution DeadlineType = "resolution"
)

// Severity classifies how close a deadline is.
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Severity thresholds in minutes remaining.
const (
	responseCriticalMinutes   = 60
	responseWarningMinutes    = 120
	resolutionCriticalMinutes = 120
	resolutionWarningMinutes  = 240
)

// Breach is a transient record of a missed deadline.
type Breach struct {
	Type         DeadlineType `json:"type"`
	Deadline     time.Time    `json:"deadline"`
	DelayMinutes int          `json:"delayMinutes"`
}

// BreachReport is the result of CheckBreach.
type BreachReport struct {
	Breached bool     `json:"breached"`
	Breaches []Breach `json:"breaches"`
}

// CheckBreach compares now against the ticket's deadlines. It has no side effects.
// A response deadline that passed without a first response stays breached for
// the life of the ticket, including after it is resolved or closed, while
// TimeRemaining no longer counts it down.
func CheckBreach(t *domain.Ticket, now time.Time) BreachReport {
	report := BreachReport{Breaches: []Breach{}}

	if now.After(t.SLAResponseDeadline) &&
		(t.FirstResponseAt == nil || t.FirstResponseAt.After(t.SLAResponseDeadline)) {
		report.Breaches = append(report.Breaches, Breach{
			Type:         DeadlineResponse,
			Deadline:     t.SLAResponseDeadline,
			DelayMinutes: int(now.Sub(t.SLAResponseDeadline).Minutes()),
		})
	}

	if now.After(t.SLAResolutionDeadline) && !t.Status.Done() {
		report.Breaches = append(report.Breaches, Breach{
			Type:         DeadlineResolution,
			Deadline:     t.SLAResolutionDeadline,
			DelayMinutes: int(now.Sub(t.SLAResolutionDeadline).Minutes()),
		})
	}

	report.Breached = len(report.Breaches) > 0
	return report
}

// Remaining is the countdown for one still-open deadline.
type Remaining struct {
	Type             DeadlineType `json:"type"`
	Deadline         time.Time    `json:"deadline"`
	MinutesRemaining int          `json:"minutesRemaining"`
	Severity         Severity     `json:"severity"`
}

// RemainingReport is the result of TimeRemaining.
type RemainingReport struct {
	Deadlines []Remaining `json:"deadlines"`
	Warnings  []Remaining `json:"warnings"`
}

// TimeRemaining classifies every deadline that has not yet been met.
// A response deadline is met once a first response exists; a resolution
// deadline is met once the ticket is resolved or closed.
func TimeRemaining(t *domain.Ticket, now time.Time) RemainingReport {
	report := RemainingReport{Deadlines: []Remaining{}, Warnings: []Remaining{}}
	done := t.Status.Done()

	if t.FirstResponseAt == nil && !done {
		minutes := int(t.SLAResponseDeadline.Sub(now).Minutes())
		report.add(Remaining{
			Type:             DeadlineResponse,
			Deadline:         t.SLAResponseDeadline,
			MinutesRemaining: minutes,
			Severity:         classify(minutes, responseCriticalMinutes, responseWarningMinutes),
		})
	}

	if !done {
		minutes := int(t.SLAResolutionDeadline.Sub(now).Minutes())
		report.add(Remaining{
			Type:             DeadlineResolution,
			Deadline:         t.SLAResolutionDeadline,
			MinutesRemaining: minutes,
			Severity:         classify(minutes, resolutionCriticalMinutes, resolutionWarningMinutes),
		})
	}

	return report
}

func (r *RemainingReport) add(rem Remaining) {
	r.Deadlines = append(r.Deadlines, rem)
	if rem.Severity != SeverityOK {
		r.Warnings = append(r.Warnings, rem)
	}
}

func classify(minutes, critical, warning int) Severity {
	switch {
	case minutes < critical:
		return SeverityCritical
	case minutes < warning:
		return SeverityWarning
	default:
		return SeverityOK
	}
}

// Status is the derived SLA view attached to reads.
type Status struct {
	BreachReport
	Remaining RemainingReport `json:"remaining"`
}

// Evaluate combines CheckBreach and TimeRemaining at the same instant.
func Evaluate(t *domain.Ticket, now time.Time) Status {
	return Status{
		BreachReport: CheckBreach(t, now),
		Remaining:    TimeRemaining(t, now),
	}
}
