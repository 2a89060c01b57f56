// internal/scheduler/service.go
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"recurring-scheduler/internal/common/config"
	"recurring-scheduler/internal/common/logger"
)

// Service owns the cron schedule driving both scans. Overlapping runs of
// the same job are skipped rather than queued.
type Service struct {
	cron      *cron.Cron
	generator *Generator
	notifier  *Notifier
	logger    logger.Logger
	cfg       config.SchedulerConfig
}

func NewService(generator *Generator, notifier *Notifier, log logger.Logger, cfg config.SchedulerConfig) *Service {
	cronLog := &cronLogger{logger: log.WithFields(map[string]interface{}{"component": "cron"})}
	return &Service{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.SkipIfStillRunning(cronLog)),
		),
		generator: generator,
		notifier:  notifier,
		logger:    log,
		cfg:       cfg,
	}
}

// Start registers both scans and starts the cron loop. It returns once the
// loop is running; Stop blocks until in-flight runs finish.
func (s *Service) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.ScanCron, func() {
		if _, err := s.generator.Run(ctx); err != nil {
			s.logger.Error("generation scan failed", map[string]interface{}{"error": err.Error()})
		}
	})
	if err != nil {
		return fmt.Errorf("register generation scan %q: %w", s.cfg.ScanCron, err)
	}

	_, err = s.cron.AddFunc(s.cfg.NotificationCron, func() {
		if _, err := s.notifier.Run(ctx); err != nil {
			s.logger.Error("notification scan failed", map[string]interface{}{"error": err.Error()})
		}
	})
	if err != nil {
		return fmt.Errorf("register notification scan %q: %w", s.cfg.NotificationCron, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", map[string]interface{}{
		"scanCron":         s.cfg.ScanCron,
		"notificationCron": s.cfg.NotificationCron,
	})
	return nil
}

// Stop halts the schedule and waits for running jobs to complete.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped", nil)
}

// cronLogger adapts the structured logger to cron's logging interface.
type cronLogger struct {
	logger logger.Logger
}

func (c *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug(msg, kvToFields(keysAndValues))
}

func (c *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := kvToFields(keysAndValues)
	fields["error"] = err.Error()
	c.logger.Error(msg, fields)
}

func kvToFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kv[i])
		}
		fields[key] = kv[i+1]
	}
	return fields
}
