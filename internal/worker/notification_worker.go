package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/unihelp/helpdesk/internal/service"
)

// Workers owns the background side of the service: notification handlers
// and the SLA monitor loop.
type Workers struct {
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// StartNotificationWorker registers notification handlers and launches the SLA monitor.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, monitor *SLAMonitor, logger *zap.Logger) *Workers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	ctx, cancel := context.WithCancel(ctx)
	w := &Workers{cancel: cancel}
	if monitor != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := monitor.Run(ctx); err != nil {
				logger.Error("sla monitor exited", zap.Error(err))
			}
		}()
	}
	return w
}

// Stop cancels background loops and waits for them to return.
func (w *Workers) Stop() {
	if w == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
}
