package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/unihelp/helpdesk/internal/config"
	"github.com/unihelp/helpdesk/internal/events"
	"github.com/unihelp/helpdesk/internal/notify"
)

// NotificationService turns domain events into notifier requests.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   notify.Notifier
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier notify.Notifier, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketResolved, n.handleTicketResolved)
	n.dispatcher.Subscribe(events.EventTicketCommentAdded, n.handleTicketCommentAdded)
	n.dispatcher.Subscribe(events.EventSLABreachAlert, n.handleSLABreachAlert)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	return n.send(ctx, event, notify.TemplateTicketCreated, payload.CreatedBy, map[string]string{
		"title":    payload.Title,
		"priority": string(payload.Priority),
		"category": string(payload.Category),
	})
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok || payload.CreatedBy == event.Actor.UserID {
		return nil
	}
	return n.send(ctx, event, notify.TemplateStatusUpdated, payload.CreatedBy, map[string]string{
		"oldStatus": string(payload.OldStatus),
		"newStatus": string(payload.NewStatus),
		"reason":    payload.Reason,
	})
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return nil
	}
	return n.send(ctx, event, notify.TemplateTicketAssigned, payload.NewAssignee, map[string]string{
		"title": payload.Title,
	})
}

func (n *NotificationService) handleTicketResolved(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketResolvedPayload)
	if !ok {
		return nil
	}
	data := map[string]string{"summary": payload.Summary}
	if payload.ActualResolutionTime != nil {
		data["resolutionMinutes"] = strconv.Itoa(*payload.ActualResolutionTime)
	}
	return n.send(ctx, event, notify.TemplateTicketResolved, payload.CreatedBy, data)
}

// handleTicketCommentAdded notifies the other party of the conversation.
// Internal notes never reach the requester.
func (n *NotificationService) handleTicketCommentAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCommentAddedPayload)
	if !ok {
		return nil
	}
	recipient := ""
	switch {
	case payload.Author == payload.CreatedBy:
		if payload.AssignedTo != nil {
			recipient = *payload.AssignedTo
		}
	case payload.IsInternal:
		if payload.AssignedTo != nil && *payload.AssignedTo != payload.Author {
			recipient = *payload.AssignedTo
		}
	default:
		recipient = payload.CreatedBy
	}
	if recipient == "" {
		return nil
	}
	return n.send(ctx, event, notify.TemplateNewComment, recipient, map[string]string{
		"author":   payload.Author,
		"preview":  payload.BodyPreview,
		"internal": strconv.FormatBool(payload.IsInternal),
	})
}

func (n *NotificationService) handleSLABreachAlert(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SLABreachAlertPayload)
	if !ok {
		return nil
	}
	recipient := payload.Recipient
	if recipient == "" {
		recipient = n.cfg.AlertRecipient
	}
	return n.send(ctx, event, notify.TemplateSLABreachAlert, recipient, map[string]string{
		"deadlineType":     string(payload.DeadlineType),
		"severity":         string(payload.Severity),
		"breached":         strconv.FormatBool(payload.Breached),
		"deadline":         payload.Deadline.Format(time.RFC3339),
		"minutesRemaining": strconv.Itoa(payload.MinutesRemaining),
		"priority":         string(payload.Priority),
	})
}

// send delivers one notification. Failures are logged and returned to the
// dispatcher, which never lets them reach the ticket operation.
func (n *NotificationService) send(ctx context.Context, event events.Event, template notify.Template, recipient string, data map[string]string) error {
	if n.notifier == nil || recipient == "" {
		return nil
	}
	data["ticketCode"] = event.TicketCode
	err := n.notifier.Send(ctx, notify.Notification{
		Template:  template,
		Recipient: recipient,
		Context:   data,
		SentAt:    event.Timestamp,
	})
	if err != nil {
		n.logger.Warn("notification delivery failed",
			zap.String("template", string(template)),
			zap.String("ticket_code", event.TicketCode),
			zap.String("recipient", recipient),
			zap.Error(err))
	}
	return err
}
