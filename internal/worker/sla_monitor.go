package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unihelp/helpdesk/internal/clock"
	"github.com/unihelp/helpdesk/internal/domain"
	"github.com/unihelp/helpdesk/internal/events"
	"github.com/unihelp/helpdesk/internal/repository"
	"github.com/unihelp/helpdesk/internal/sla"
)

// severityBreached marks an alert for a missed deadline in the dedup key.
const severityBreached = "breached"

var activeStatuses = []domain.TicketStatus{
	domain.TicketStatusOpen,
	domain.TicketStatusInProgress,
	domain.TicketStatusPending,
}

// AlertRecorder observes published alerts.
type AlertRecorder interface {
	RecordSLAAlert(deadlineType, severity string)
}

// SLAMonitor periodically evaluates active tickets and publishes one
// sla_breach_alert per ticket, deadline and severity. It never writes tickets.
type SLAMonitor struct {
	tickets     repository.TicketRepository
	ledger      repository.AlertLedger
	dispatcher  events.Dispatcher
	clock       clock.Clock
	logger      *zap.Logger
	metrics     AlertRecorder
	interval    time.Duration
	alertTTL    time.Duration
	concurrency int
}

// SLAMonitorConfig bundles monitor dependencies.
type SLAMonitorConfig struct {
	TicketRepo  repository.TicketRepository
	Ledger      repository.AlertLedger
	Dispatcher  events.Dispatcher
	Clock       clock.Clock
	Logger      *zap.Logger
	Metrics     AlertRecorder
	Interval    time.Duration
	AlertTTL    time.Duration
	Concurrency int
}

// NewSLAMonitor builds the monitor.
func NewSLAMonitor(cfg SLAMonitorConfig) *SLAMonitor {
	m := &SLAMonitor{
		tickets:     cfg.TicketRepo,
		ledger:      cfg.Ledger,
		dispatcher:  cfg.Dispatcher,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		interval:    cfg.Interval,
		alertTTL:    cfg.AlertTTL,
		concurrency: cfg.Concurrency,
	}
	if m.clock == nil {
		m.clock = clock.New()
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.ledger == nil {
		m.ledger = repository.NewMemoryAlertLedger(m.clock.Now)
	}
	if m.alertTTL <= 0 {
		m.alertTTL = 24 * time.Hour
	}
	if m.concurrency <= 0 {
		m.concurrency = 4
	}
	return m
}

// Run scans on every tick until ctx is cancelled. A zero interval disables it.
func (m *SLAMonitor) Run(ctx context.Context) error {
	if m.interval <= 0 {
		m.logger.Info("sla monitor disabled")
		return nil
	}
	m.logger.Info("sla monitor started", zap.Duration("interval", m.interval))
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if _, err := m.Scan(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn("sla scan failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			m.logger.Info("sla monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Scan evaluates every active ticket once and returns how many alerts were published.
func (m *SLAMonitor) Scan(ctx context.Context) (int, error) {
	tickets, err := m.tickets.ListAll(ctx, repository.TicketFilter{Statuses: activeStatuses})
	if err != nil {
		return 0, fmt.Errorf("list active tickets: %w", err)
	}
	now := m.clock.Now()

	alerts := make(chan int, len(tickets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i := range tickets {
		t := &tickets[i]
		g.Go(func() error {
			n, err := m.evaluate(gctx, t, now)
			alerts <- n
			return err
		})
	}
	err = g.Wait()
	close(alerts)

	total := 0
	for n := range alerts {
		total += n
	}
	return total, err
}

func (m *SLAMonitor) evaluate(ctx context.Context, t *domain.Ticket, now time.Time) (int, error) {
	status := sla.Evaluate(t, now)
	sent := 0

	for _, b := range status.Breaches {
		ok, err := m.alert(ctx, t, now, events.SLABreachAlertPayload{
			DeadlineType:     b.Type,
			Severity:         sla.SeverityCritical,
			Breached:         true,
			Deadline:         b.Deadline,
			MinutesRemaining: -b.DelayMinutes,
		}, severityBreached)
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}

	breached := map[sla.DeadlineType]bool{}
	for _, b := range status.Breaches {
		breached[b.Type] = true
	}
	for _, w := range status.Remaining.Warnings {
		if breached[w.Type] || w.MinutesRemaining < 0 {
			continue
		}
		ok, err := m.alert(ctx, t, now, events.SLABreachAlertPayload{
			DeadlineType:     w.Type,
			Severity:         w.Severity,
			Deadline:         w.Deadline,
			MinutesRemaining: w.MinutesRemaining,
		}, string(w.Severity))
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

// alert publishes once per dedup key. A ledger failure skips the alert rather
// than risk flooding recipients.
func (m *SLAMonitor) alert(ctx context.Context, t *domain.Ticket, now time.Time, payload events.SLABreachAlertPayload, severity string) (bool, error) {
	key := t.TicketCode + ":" + string(payload.DeadlineType) + ":" + severity
	first, err := m.ledger.MarkSent(ctx, key, m.alertTTL)
	if err != nil {
		m.logger.Warn("alert ledger unavailable", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	if !first {
		return false, nil
	}

	payload.Priority = t.Priority
	payload.AssignedTo = t.AssignedTo
	if t.AssignedTo != nil {
		payload.Recipient = *t.AssignedTo
	}
	if m.dispatcher != nil {
		err := m.dispatcher.Publish(ctx, events.Event{
			ID:         uuid.NewString(),
			Type:       events.EventSLABreachAlert,
			TicketID:   t.ID,
			TicketCode: t.TicketCode,
			Actor:      events.Actor{UserID: "sla-monitor"},
			Timestamp:  now,
			Payload:    payload,
		})
		if err != nil {
			m.logger.Warn("sla alert handler failed", zap.String("ticket_code", t.TicketCode), zap.Error(err))
		}
	}
	if m.metrics != nil {
		m.metrics.RecordSLAAlert(string(payload.DeadlineType), severity)
	}
	m.logger.Info("sla alert published",
		zap.String("ticket_code", t.TicketCode),
		zap.String("deadline", string(payload.DeadlineType)),
		zap.String("severity", severity))
	return true, nil
}
