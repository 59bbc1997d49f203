package engine

import (
	"time"

	"github.com/partnerled/gdapctl/internal/gdap"
	"github.com/rs/zerolog"
)

// Reporter receives structured progress events. The engine never
// renders text; presentation is the reporter's problem.
type Reporter interface {
	BatchStarted(runID string, op Op, total, skipped int)
	ItemCompleted(item gdap.WorkItem)
	ItemRetrying(item gdap.WorkItem, delay time.Duration)
	BatchFinished(summary Summary)
}

// LogReporter renders progress events through zerolog.
type LogReporter struct {
	Logger zerolog.Logger
}

func (r *LogReporter) BatchStarted(runID string, op Op, total, skipped int) {
	r.Logger.Info().
		Str("run_id", runID).
		Str("op", string(op)).
		Int("total", total).
		Int("skipped", skipped).
		Msg("batch started")
}

func (r *LogReporter) ItemCompleted(item gdap.WorkItem) {
	evt := r.Logger.Info()
	if item.Status == gdap.StatusFailed {
		evt = r.Logger.Error().Str("error", item.LastError)
	}

	evt.
		Str("customer", item.CustomerKey).
		Str("id", item.ID).
		Str("status", string(item.Status)).
		Int("attempt", item.Attempt).
		Msg("item completed")
}

func (r *LogReporter) ItemRetrying(item gdap.WorkItem, delay time.Duration) {
	r.Logger.Warn().
		Str("customer", item.CustomerKey).
		Str("id", item.ID).
		Int("attempt", item.Attempt).
		Dur("delay", delay).
		Str("error", item.LastError).
		Msg("transient failure, will retry")
}

func (r *LogReporter) BatchFinished(summary Summary) {
	r.Logger.Info().
		Str("run_id", summary.RunID).
		Str("op", string(summary.Op)).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Str("output", summary.OutputPath).
		Dur("duration", summary.Duration).
		Msg("batch finished")
}

// NopReporter discards all events. Used in tests.
type NopReporter struct{}

func (NopReporter) BatchStarted(string, Op, int, int) {}

func (NopReporter) ItemCompleted(gdap.WorkItem) {}

func (NopReporter) ItemRetrying(gdap.WorkItem, time.Duration) {}

func (NopReporter) BatchFinished(Summary) {}
