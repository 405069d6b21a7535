package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unihelp/helpdesk/internal/domain"
	"github.com/unihelp/helpdesk/internal/events"
	"github.com/unihelp/helpdesk/internal/history"
)

const previewLength = 120

// publishChanges turns committed changes into events. Delivery is best-effort.
func (s *TicketService) publishChanges(ctx context.Context, p domain.Principal, result *MutationResult) {
	if result == nil || result.Ticket == nil {
		return
	}
	t := result.Ticket
	base := events.Event{
		TicketID:   t.ID,
		TicketCode: t.TicketCode,
		Actor:      actorOf(p),
		Timestamp:  t.UpdatedAt,
	}

	for _, c := range result.Changes {
		ev := base
		switch {
		case c.Action == domain.HistoryActionUpdate && c.Field == "assignedTo" && c.NewValue != "":
			ev.Type = events.EventTicketAssigned
			ev.Payload = events.TicketAssignedPayload{
				OldAssignee: optional(c.OldValue),
				NewAssignee: c.NewValue,
				Title:       t.Title,
			}
		case c.Action == domain.HistoryActionUpdate && c.Field == "status":
			ev.Type = events.EventTicketStatusChanged
			ev.Payload = events.TicketStatusChangedPayload{
				OldStatus: domain.TicketStatus(c.OldValue),
				NewStatus: domain.TicketStatus(c.NewValue),
				CreatedBy: t.CreatedBy,
				Reason:    lastReason(t),
			}
			s.publishEvent(ctx, ev)
			if domain.TicketStatus(c.NewValue) == domain.TicketStatusResolved {
				resolved := base
				resolved.Type = events.EventTicketResolved
				resolved.Payload = events.TicketResolvedPayload{
					CreatedBy:            t.CreatedBy,
					Summary:              resolutionSummary(t),
					ActualResolutionTime: t.ActualResolutionTime,
				}
				s.publishEvent(ctx, resolved)
			}
			continue
		case c.Action == domain.HistoryActionUpdate && c.Field == "priority":
			ev.Type = events.EventTicketPriorityChanged
			ev.Payload = events.TicketPriorityChangedPayload{
				OldPriority: domain.TicketPriority(c.OldValue),
				NewPriority: domain.TicketPriority(c.NewValue),
			}
		case c.Action == domain.HistoryActionComment:
			comment, ok := findComment(t, c.NewValue)
			if !ok {
				continue
			}
			ev.Type = events.EventTicketCommentAdded
			ev.Payload = events.TicketCommentAddedPayload{
				CommentID:   comment.ID,
				Author:      comment.Author,
				IsInternal:  comment.IsInternal,
				BodyPreview: stringPreview(comment.Message, previewLength),
				CreatedBy:   t.CreatedBy,
				AssignedTo:  t.AssignedTo,
			}
		default:
			continue
		}
		s.publishEvent(ctx, ev)
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event", string(event.Type)),
			zap.String("ticket_code", event.TicketCode),
			zap.Error(err))
	}
}

func actorOf(p domain.Principal) events.Actor {
	return events.Actor{UserID: p.UserID, Role: p.Role}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func lastReason(t *domain.Ticket) string {
	if len(t.History) == 0 {
		return ""
	}
	return t.History[len(t.History)-1].Reason
}

func resolutionSummary(t *domain.Ticket) string {
	if t.Resolution == nil {
		return ""
	}
	return t.Resolution.Summary
}

func findComment(t *domain.Ticket, id string) (domain.Comment, bool) {
	for i := len(t.Comments) - 1; i >= 0; i-- {
		if t.Comments[i].ID == id {
			return t.Comments[i], true
		}
	}
	return domain.Comment{}, false
}

func stringPreview(body string, max int) string {
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// changedFields lists the field names of UPDATE changes, for logging.
func changedFields(changes []history.Change) []string {
	fields := make([]string, 0, len(changes))
	for _, c := range changes {
		if c.Action == domain.HistoryActionUpdate {
			fields = append(fields, c.Field)
		}
	}
	return fields
}
