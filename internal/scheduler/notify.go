// internal/scheduler/notify.go
package scheduler

import (
	"context"
	"time"

	"recurring-scheduler/internal/common/config"
	"recurring-scheduler/internal/common/logger"
	"recurring-scheduler/internal/common/metrics"
	"recurring-scheduler/internal/notify"
)

// Notifier performs the advance-notice scan: series whose next deal falls
// inside the lookahead window get one upcoming notice per cycle.
type Notifier struct {
	series   SeriesRepo
	notifier notify.Dispatcher
	logger   logger.Logger
	cfg      config.SchedulerConfig
}

func NewNotifier(series SeriesRepo, dispatcher notify.Dispatcher, log logger.Logger, cfg config.SchedulerConfig) *Notifier {
	return &Notifier{
		series:   series,
		notifier: dispatcher,
		logger:   log.WithFields(map[string]interface{}{"component": "notifier"}),
		cfg:      cfg,
	}
}

// Run sends upcoming notices for series due within the configured window.
// A send failure leaves the notice unmarked so the next scan retries it.
func (n *Notifier) Run(ctx context.Context) (*Result, error) {
	if n.cfg.Disabled {
		n.logger.Warn("scheduler disabled, skipping notification scan", nil)
		return &Result{}, nil
	}

	start := time.Now()
	defer func() {
		metrics.ScanDuration.WithLabelValues("notify").Observe(time.Since(start).Seconds())
	}()

	due, hasMore, err := n.series.GetUpcomingDue(ctx, n.cfg.NotificationHoursAhead, n.cfg.NotificationBatchSize)
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		n.logger.Debug("no upcoming notices due", nil)
		return &Result{}, nil
	}

	result := &Result{HasMore: hasMore}
	for _, series := range due {
		log := n.logger.WithFields(map[string]interface{}{
			"seriesId": series.ID,
			"teamId":   series.TeamID,
		})

		err := n.notifier.Send(ctx, notify.Notice{
			Kind:         notify.KindUpcoming,
			TeamID:       series.TeamID,
			SeriesID:     series.ID,
			MerchantName: strOr(series.MerchantName),
			Sequence:     series.NextSequence(),
			TotalCount:   series.EndCount,
			Amount:       series.Amount,
			Currency:     strOr(series.Currency),
			DueAt:        series.NextScheduledAt,
		})
		if err != nil {
			result.Failed++
			log.Error("failed to send upcoming notice", map[string]interface{}{"error": err.Error()})
			continue
		}
		metrics.NotificationsSent.WithLabelValues(string(notify.KindUpcoming), "email").Inc()

		if err := n.series.MarkNotificationSent(ctx, series.ID, series.TeamID); err != nil {
			result.Failed++
			log.Error("failed to mark notice sent", map[string]interface{}{"error": err.Error()})
			continue
		}
		result.Processed++
	}

	n.logger.Info("notification scan finished", map[string]interface{}{
		"processed": result.Processed,
		"failed":    result.Failed,
		"hasMore":   result.HasMore,
	})
	return result, nil
}
