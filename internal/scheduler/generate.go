// Package scheduler runs the periodic scans that turn due recurring series
// into deals and send series lifecycle notices.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"recurring-scheduler/internal/common/config"
	stderrors "recurring-scheduler/internal/common/errors"
	"recurring-scheduler/internal/common/lock"
	"recurring-scheduler/internal/common/logger"
	"recurring-scheduler/internal/common/metrics"
	"recurring-scheduler/internal/models"
	"recurring-scheduler/internal/notify"
	"recurring-scheduler/internal/recurrence"
	"recurring-scheduler/internal/store"
)

// SeriesRepo is the slice of the series store the generator needs.
type SeriesRepo interface {
	GetDue(ctx context.Context, limit int) ([]*models.RecurringSeries, bool, error)
	MarkGenerated(ctx context.Context, id, teamID string) (*store.MarkGeneratedResult, error)
	RecordFailure(ctx context.Context, id, teamID string, maxFailures int) (*models.RecurringSeries, bool, error)
	GetUpcomingDue(ctx context.Context, hoursAhead, limit int) ([]*models.RecurringSeries, bool, error)
	MarkNotificationSent(ctx context.Context, id, teamID string) error
}

// DealRepo is the slice of the deal store the generator needs.
type DealRepo interface {
	Exists(ctx context.Context, seriesID string, sequence int) (*models.DealSummary, error)
	NextNumber(ctx context.Context, teamID string) (string, error)
	Create(ctx context.Context, p models.NewDealParams) error
}

// Generator performs one due-series scan per Run call.
type Generator struct {
	series     SeriesRepo
	deals      DealRepo
	locker     *lock.Locker
	notifier   notify.Dispatcher
	logger     logger.Logger
	errHandler *stderrors.Handler
	cfg        config.SchedulerConfig
}

func NewGenerator(series SeriesRepo, deals DealRepo, locker *lock.Locker, notifier notify.Dispatcher, log logger.Logger, cfg config.SchedulerConfig) *Generator {
	scoped := log.WithFields(map[string]interface{}{"component": "generator"})
	return &Generator{
		series:     series,
		deals:      deals,
		locker:     locker,
		notifier:   notifier,
		logger:     scoped,
		errHandler: stderrors.NewHandler(scoped),
		cfg:        cfg,
	}
}

// Result summarizes one scan.
type Result struct {
	Processed int
	Skipped   int
	Failed    int
	HasMore   bool
}

// Run scans for due series and generates at most one deal per series.
// Every outcome is per-series; one failing series never aborts the batch.
func (g *Generator) Run(ctx context.Context) (*Result, error) {
	if g.cfg.Disabled {
		g.logger.Warn("scheduler disabled, skipping scan", nil)
		return &Result{}, nil
	}

	start := time.Now()
	defer func() {
		metrics.ScanDuration.WithLabelValues("generate").Observe(time.Since(start).Seconds())
	}()

	due, hasMore, err := g.series.GetDue(ctx, g.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		g.logger.Debug("no series due for generation", nil)
		return &Result{}, nil
	}

	g.logger.Info("starting generation scan", map[string]interface{}{
		"due":     len(due),
		"hasMore": hasMore,
	})

	result := &Result{HasMore: hasMore}
	for _, series := range due {
		outcome := g.processSeries(ctx, series)
		switch outcome {
		case outcomeProcessed:
			result.Processed++
		case outcomeSkipped:
			result.Skipped++
		case outcomeFailed:
			result.Failed++
		}
	}

	g.logger.Info("generation scan finished", map[string]interface{}{
		"processed": result.Processed,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
		"hasMore":   result.HasMore,
	})
	return result, nil
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (g *Generator) processSeries(ctx context.Context, series *models.RecurringSeries) outcome {
	log := g.logger.WithFields(map[string]interface{}{
		"seriesId": series.ID,
		"teamId":   series.TeamID,
	})

	lease, ok, err := g.locker.Acquire(ctx, series.ID)
	if err != nil {
		log.Error("series claim failed", map[string]interface{}{"error": err.Error()})
		return outcomeFailed
	}
	if !ok {
		// Another run holds the claim; it will move the series forward.
		log.Debug("series already claimed, skipping", nil)
		return outcomeSkipped
	}
	defer func() {
		if err := lease.Release(ctx); err != nil {
			log.Warn("failed to release series claim", map[string]interface{}{"error": err.Error()})
		}
	}()

	metrics.SeriesActive.Inc()
	defer metrics.SeriesActive.Dec()

	genCtx := ctx
	if g.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, config.GetDuration(g.cfg.GenerationTimeout))
		defer cancel()
	}

	out, err := g.generateOne(genCtx, series, log)
	if err == nil {
		return out
	}

	metrics.GenerationFailures.WithLabelValues(errorCode(err)).Inc()
	g.errHandler.HandleSeriesError(series.ID, series.NextSequence(), err)

	// The generation context may be the thing that failed (timeout); the
	// failure must still be recorded or auto-pause can never trigger.
	failCtx := context.WithoutCancel(ctx)
	_, autoPaused, failErr := g.series.RecordFailure(failCtx, series.ID, series.TeamID, g.cfg.MaxConsecutiveFailures)
	if failErr != nil {
		log.Error("failed to record generation failure", map[string]interface{}{"error": failErr.Error()})
		return outcomeFailed
	}
	if autoPaused {
		metrics.SeriesAutoPaused.Inc()
		log.Warn("series auto-paused after repeated failures", nil)
		g.sendNotice(failCtx, notify.Notice{
			Kind:         notify.KindAutoPaused,
			TeamID:       series.TeamID,
			SeriesID:     series.ID,
			MerchantName: strOr(series.MerchantName),
		}, log)
	}
	return outcomeFailed
}

// generateOne materializes the next sequence for one claimed series, or
// re-syncs the series when that sequence already exists.
func (g *Generator) generateOne(ctx context.Context, series *models.RecurringSeries, log logger.Logger) (outcome, error) {
	sequence := series.NextSequence()

	existing, err := g.deals.Exists(ctx, series.ID, sequence)
	if err != nil {
		return outcomeFailed, err
	}

	if existing != nil {
		// The deal for this cycle already exists. Either way the series
		// must advance so the same sequence is never attempted again.
		res, err := g.series.MarkGenerated(ctx, series.ID, series.TeamID)
		if err != nil {
			return outcomeFailed, err
		}

		if existing.Status == models.DealStatusDraft || existing.Status == models.DealStatusScheduled {
			log.Info("promoting existing deal for sequence", map[string]interface{}{
				"dealId":   existing.ID,
				"sequence": sequence,
				"status":   string(existing.Status),
			})
			g.finishGeneration(ctx, series, res, existing.DealNumber, sequence, log)
			return outcomeProcessed, nil
		}

		log.Info("deal for sequence already sent, advancing series only", map[string]interface{}{
			"dealId":   existing.ID,
			"sequence": sequence,
			"status":   string(existing.Status),
		})
		return outcomeSkipped, nil
	}

	// A series whose merchant was deleted cannot produce a deliverable
	// deal; the stored merchant name keeps the failure readable.
	if series.MerchantID == nil {
		return outcomeFailed, stderrors.NewDealGenerationFailedError(series.ID,
			&missingMerchantError{name: strOr(series.MerchantName)})
	}

	dealNumber, err := g.deals.NextNumber(ctx, series.TeamID)
	if err != nil {
		return outcomeFailed, err
	}

	// Issue date is the scheduled instant at UTC midnight so late runs
	// produce the same deal an on-time run would have.
	scheduled := time.Now().UTC()
	if series.NextScheduledAt != nil {
		scheduled = *series.NextScheduledAt
	}
	issueDate := recurrence.StartOfDayUTC(scheduled)
	dueDate := issueDate.AddDate(0, 0, series.DueDateOffset)

	err = g.deals.Create(ctx, models.NewDealParams{
		ID:             uuid.New().String(),
		TeamID:         series.TeamID,
		UserID:         series.UserID,
		SeriesID:       series.ID,
		Sequence:       sequence,
		DealNumber:     dealNumber,
		IssueDate:      issueDate,
		DueDate:        dueDate,
		MerchantID:     series.MerchantID,
		MerchantName:   series.MerchantName,
		Amount:         series.Amount,
		Currency:       series.Currency,
		Subtotal:       series.Subtotal,
		Discount:       series.Discount,
		LineItems:      series.LineItems,
		Template:       series.Template,
		PaymentDetails: series.PaymentDetails,
		FromDetails:    series.FromDetails,
		NoteDetails:    series.NoteDetails,
		TopBlock:       series.TopBlock,
		BottomBlock:    series.BottomBlock,
		TemplateID:     series.TemplateID,
	})
	if err != nil {
		return outcomeFailed, err
	}

	res, err := g.series.MarkGenerated(ctx, series.ID, series.TeamID)
	if err != nil {
		return outcomeFailed, err
	}

	metrics.DealsGenerated.WithLabelValues(string(series.Frequency)).Inc()
	if res.SkippedCycles > 0 {
		metrics.CyclesSkipped.Add(float64(res.SkippedCycles))
		log.Warn("skipped missed cycles while rescheduling", map[string]interface{}{
			"skippedCycles": res.SkippedCycles,
		})
	}

	log.Info("generated recurring deal", map[string]interface{}{
		"dealNumber": dealNumber,
		"sequence":   sequence,
	})

	g.finishGeneration(ctx, series, res, dealNumber, sequence, log)
	return outcomeProcessed, nil
}

// finishGeneration sends the post-generation notices. The deal already
// exists, so notice failures are logged, never turned into series failures.
func (g *Generator) finishGeneration(ctx context.Context, series *models.RecurringSeries, res *store.MarkGeneratedResult, dealNumber string, sequence int, log logger.Logger) {
	g.sendNotice(ctx, notify.Notice{
		Kind:         notify.KindGenerated,
		TeamID:       series.TeamID,
		SeriesID:     series.ID,
		MerchantName: strOr(series.MerchantName),
		DealNumber:   dealNumber,
		Sequence:     sequence,
		TotalCount:   series.EndCount,
		Amount:       series.Amount,
		Currency:     strOr(series.Currency),
	}, log)

	if res.Completed {
		metrics.SeriesCompleted.Inc()
		log.Info("recurring series completed", map[string]interface{}{
			"totalGenerated": res.Series.DealsGenerated,
		})
		g.sendNotice(ctx, notify.Notice{
			Kind:         notify.KindCompleted,
			TeamID:       series.TeamID,
			SeriesID:     series.ID,
			MerchantName: strOr(series.MerchantName),
			DealNumber:   dealNumber,
			Sequence:     sequence,
			TotalCount:   series.EndCount,
		}, log)
	}
}

func (g *Generator) sendNotice(ctx context.Context, notice notify.Notice, log logger.Logger) {
	if err := g.notifier.Send(ctx, notice); err != nil {
		log.Error("failed to send notice", map[string]interface{}{
			"kind":  string(notice.Kind),
			"error": err.Error(),
		})
		return
	}
	metrics.NotificationsSent.WithLabelValues(string(notice.Kind), "email").Inc()
}

type missingMerchantError struct {
	name string
}

func (e *missingMerchantError) Error() string {
	if e.name != "" {
		return "merchant deleted for series (was: " + e.name + ")"
	}
	return "merchant deleted for series"
}

func errorCode(err error) string {
	var stdErr *stderrors.StandardError
	if errors.As(err, &stdErr) {
		return string(stdErr.Code)
	}
	return "INTERNAL_ERROR"
}

func strOr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
