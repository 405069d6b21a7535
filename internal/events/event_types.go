package events

import (
	"time"

	"github.com/unihelp/helpdesk/internal/domain"
	"github.com/unihelp/helpdesk/internal/sla"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketAssigned        EventType = "ticket_assigned"
	EventTicketResolved        EventType = "ticket_resolved"
	EventTicketCommentAdded    EventType = "ticket_comment_added"
	EventSLABreachAlert        EventType = "sla_breach_alert"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted after a ticket write commits.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	TicketID   string      `json:"ticket_id"`
	TicketCode string      `json:"ticket_code"`
	Actor      Actor       `json:"actor"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title      string                `json:"title"`
	Priority   domain.TicketPriority `json:"priority"`
	Category   domain.TicketCategory `json:"category"`
	CreatedBy  string                `json:"created_by"`
	AssignedTo *string               `json:"assigned_to,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	CreatedBy string              `json:"created_by"`
	Reason    string              `json:"reason,omitempty"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	OldAssignee *string `json:"old_assignee,omitempty"`
	NewAssignee string  `json:"new_assignee"`
	Title       string  `json:"title"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	CreatedBy            string `json:"created_by"`
	Summary              string `json:"summary,omitempty"`
	ActualResolutionTime *int   `json:"actual_resolution_time,omitempty"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	CommentID   string  `json:"comment_id"`
	Author      string  `json:"author"`
	IsInternal  bool    `json:"is_internal"`
	BodyPreview string  `json:"body_preview"`
	CreatedBy   string  `json:"created_by"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
}

// SLABreachAlertPayload payload.
type SLABreachAlertPayload struct {
	DeadlineType     sla.DeadlineType      `json:"deadline_type"`
	Severity         sla.Severity          `json:"severity"`
	Breached         bool                  `json:"breached"`
	Deadline         time.Time             `json:"deadline"`
	MinutesRemaining int                   `json:"minutes_remaining"`
	Priority         domain.TicketPriority `json:"priority"`
	AssignedTo       *string               `json:"assigned_to,omitempty"`
	Recipient        string                `json:"recipient"`
}
