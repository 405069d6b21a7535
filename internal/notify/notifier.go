package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/unihelp/helpdesk/internal/config"
)

// Template names the message kind the delivery side renders.
type Template string

const (
	TemplateTicketCreated  Template = "ticket-created"
	TemplateTicketAssigned Template = "ticket-assigned"
	TemplateStatusUpdated  Template = "status-updated"
	TemplateTicketResolved Template = "ticket-resolved"
	TemplateNewComment     Template = "new-comment"
	TemplateSLABreachAlert Template = "sla-breach-alert"
)

// Notification is one outbound message request.
type Notification struct {
	Template  Template          `json:"template"`
	Recipient string            `json:"recipient"`
	Context   map[string]string `json:"context"`
	SentAt    time.Time         `json:"sentAt"`
}

// Notifier performs best-effort delivery.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// NATSNotifier publishes notifications as JSON on per-template subjects.
type NATSNotifier struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSNotifier connects to NATS using the notification config.
func NewNATSNotifier(cfg config.NotificationConfig, logger *zap.Logger) (*NATSNotifier, error) {
	opts := []nats.Option{
		nats.Name(cfg.ClientName),
		nats.ReconnectWait(time.Duration(cfg.ReconnectWaitSeconds) * time.Second),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(time.Duration(cfg.ConnectTimeoutSecs) * time.Second),
	}
	conn, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	n := &NATSNotifier{conn: conn, prefix: strings.TrimSuffix(cfg.SubjectPrefix, ".")}
	conn.SetReconnectHandler(func(c *nats.Conn) {
		logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
	})
	conn.SetDisconnectErrHandler(func(_ *nats.Conn, err error) {
		if err != nil {
			logger.Warn("nats disconnected", zap.Error(err))
		}
	})
	return n, nil
}

// Subject returns the subject a template is published on.
func (n *NATSNotifier) Subject(t Template) string {
	return n.prefix + "." + string(t)
}

func (n *NATSNotifier) Send(_ context.Context, msg Notification) error {
	if n.conn == nil || !n.conn.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return n.conn.Publish(n.Subject(msg.Template), payload)
}

// Ping reports whether the connection is usable.
func (n *NATSNotifier) Ping(_ context.Context) error {
	if n == nil || n.conn == nil || !n.conn.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

// Close drains pending publishes.
func (n *NATSNotifier) Close() {
	if n != nil && n.conn != nil {
		_ = n.conn.Drain()
	}
}

// LogNotifier only logs; used when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Send(_ context.Context, n Notification) error {
	l.logger.Info("notification",
		zap.String("template", string(n.Template)),
		zap.String("recipient", n.Recipient),
		zap.Any("context", n.Context))
	return nil
}
