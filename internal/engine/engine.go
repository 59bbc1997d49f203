package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/partnerled/gdapctl/internal/auth"
	"github.com/partnerled/gdapctl/internal/config"
	"github.com/partnerled/gdapctl/internal/gdap"
	"github.com/partnerled/gdapctl/internal/partner"
	"github.com/partnerled/gdapctl/internal/store"
	"github.com/partnerled/gdapctl/internal/telemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Op is one operation class of the bulk tool.
type Op string

const (
	OpCreateRelationship    Op = "relationship-create"
	OpRefreshRelationship   Op = "relationship-refresh"
	OpTerminateRelationship Op = "relationship-terminate"
	OpCreateAssignment      Op = "assignment-create"
	OpRefreshAssignment     Op = "assignment-refresh"
	OpUpdateAssignment      Op = "assignment-update"
	OpDeleteAssignment      Op = "assignment-delete"
)

// Kind returns the work item shape the operation applies to.
func (op Op) Kind() gdap.Kind {
	switch op {
	case OpCreateRelationship, OpRefreshRelationship, OpTerminateRelationship:
		return gdap.KindRelationship
	default:
		return gdap.KindAssignment
	}
}

// Summary is the operator-facing outcome of one run.
type Summary struct {
	RunID       string
	Op          Op
	Total       int
	Succeeded   int
	Failed      int
	Skipped     int
	Fingerprint string
	OutputPath  string
	Duration    time.Duration
}

// Engine drives a batch of work items through the lifecycle state
// machine against the partner API.
type Engine struct {
	cfg           config.Config
	records       store.RecordStore
	auth          auth.Authenticator
	relationships partner.RelationshipAPI
	assignments   partner.AssignmentAPI
	reporter      Reporter
	metrics       *telemetry.Metrics
}

// New wires an engine from its collaborators.
func New(cfg config.Config, records store.RecordStore, authenticator auth.Authenticator,
	relationships partner.RelationshipAPI, assignments partner.AssignmentAPI, reporter Reporter) *Engine {
	return &Engine{
		cfg:           cfg,
		records:       records,
		auth:          authenticator,
		relationships: relationships,
		assignments:   assignments,
		reporter:      reporter,
		metrics:       telemetry.GetMetrics(),
	}
}

// task is one work item in flight, with its position in the batch and
// its private backoff policy.
type task struct {
	idx  int
	item gdap.WorkItem
	bo   *backoff.ExponentialBackOff
}

type outcome struct {
	idx  int
	item gdap.WorkItem
}

// Run executes one batch: load, process through the worker pool, append
// results in original batch order. The returned Summary is valid even
// when err is non-nil (interrupted runs report what they finished).
func (e *Engine) Run(ctx context.Context, op Op, inputPath, outputPath string) (*Summary, error) {
	started := time.Now()

	if !e.auth.EnsureReady(ctx) {
		return nil, ErrPrerequisite
	}

	items, report, err := e.records.Load(inputPath)
	if err != nil {
		return nil, err
	}

	for _, fe := range report.Errors {
		log.Warn().Str("input", inputPath).Int("line", fe.Line).Str("reason", fe.Reason).Msg("skipping malformed record")
	}
	e.metrics.ItemsSkippedTotal.Add(ctx, int64(report.Skipped), metric.WithAttributes(attribute.String("op", string(op))))

	batch := gdap.NewBatch(items, report.Fingerprint)
	e.reporter.BatchStarted(batch.RunID, op, len(batch.Items), report.Skipped)

	results, procErr := e.process(ctx, op, batch, outputPath)

	summary := &Summary{
		RunID:       batch.RunID,
		Op:          op,
		Total:       report.Total,
		Skipped:     report.Skipped,
		Fingerprint: batch.Fingerprint,
		OutputPath:  outputPath,
		Duration:    time.Since(started),
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Status == gdap.StatusFailed {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}

	attrs := metric.WithAttributes(attribute.String("op", string(op)))
	e.metrics.ItemsProcessedTotal.Add(ctx, int64(summary.Succeeded+summary.Failed), attrs)
	e.metrics.ItemsSucceededTotal.Add(ctx, int64(summary.Succeeded), attrs)
	e.metrics.ItemsFailedTotal.Add(ctx, int64(summary.Failed), attrs)

	e.reporter.BatchFinished(*summary)

	return summary, procErr
}

// process fans the batch out over the worker pool and serializes results
// back into batch order. It returns one slot per input item; slots left
// nil belong to items interrupted before reaching a terminal-for-run
// state.
func (e *Engine) process(ctx context.Context, op Op, batch gdap.Batch, outputPath string) ([]*gdap.WorkItem, error) {
	n := len(batch.Items)
	results := make([]*gdap.WorkItem, n)
	if n == 0 {
		return results, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan task, n)
	outcomes := make(chan outcome, n)

	for i, item := range batch.Items {
		work <- task{idx: i, item: item}
	}

	var wg sync.WaitGroup
	for w := 0; w < e.cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.worker(runCtx, op, work, outcomes)
		}()
	}

	// Serializer: collect outcomes and flush every contiguous run of
	// completed items so a crash loses at most the in-flight chunk.
	nextFlush := 0
	collected := 0
	var runErr error

collect:
	for collected < n {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break collect
		case o := <-outcomes:
			results[o.idx] = &o.item
			collected++
			if err := e.flushReady(outputPath, results, &nextFlush); err != nil {
				runErr = err
				break collect
			}
		}
	}

	// Stop dispatching and wait for in-flight items. Their remote calls
	// run on a detached context bounded by the per-call timeout, so this
	// wait is bounded too.
	cancel()
	wg.Wait()
	close(outcomes)
	for o := range outcomes {
		results[o.idx] = &o.item
	}

	// Flush everything completed, including out-of-order stragglers from
	// an interrupted run.
	if err := e.flushRemaining(outputPath, results, &nextFlush); err != nil && runErr == nil {
		runErr = err
	}

	return results, runErr
}

func (e *Engine) worker(ctx context.Context, op Op, work chan task, outcomes chan<- outcome) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-work:
			// The select is unordered; a cancelled run must not start
			// new items even while the work channel still has entries.
			if ctx.Err() != nil {
				return
			}

			item, retry, delay := e.processTask(ctx, op, &t)
			if !retry {
				e.reporter.ItemCompleted(item)
				outcomes <- outcome{idx: t.idx, item: item}
				continue
			}

			e.reporter.ItemRetrying(item, delay)
			e.metrics.ItemsRetriedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", string(op))))

			// Park the item off-worker so its backoff sleep never blocks
			// other items.
			t.item = item
			go func(t task) {
				timer := time.NewTimer(delay)
				defer timer.Stop()
				select {
				case <-ctx.Done():
				case <-timer.C:
					work <- t
				}
			}(t)
		}
	}
}

// processTask runs one execution attempt for an item and decides whether
// it is terminal for this run or due for a retry. The task's backoff
// policy persists across re-enqueues so delays keep growing.
func (e *Engine) processTask(ctx context.Context, op Op, t *task) (gdap.WorkItem, bool, time.Duration) {
	item := t.item

	if item.Kind != op.Kind() {
		item.MarkFailed(fmt.Sprintf("item kind %q does not match operation %q", item.Kind, op))
		return item, false, 0
	}

	// Idempotence shortcuts: state that is already where the operation
	// wants it costs no remote call.
	if done, ok := e.shortCircuit(op, item); ok {
		return done, false, 0
	}

	// In-flight work survives operator interrupts; the per-call timeout
	// bounds how long that grace lasts.
	callCtx := context.WithoutCancel(ctx)

	item.RecordAttempt(nil)
	err := e.execute(callCtx, op, &item)
	if err == nil {
		return item, false, 0
	}

	if partner.Classify(err) == partner.ClassAuth {
		// Credentials can expire mid-batch: refresh and retry exactly
		// once, then treat the failure as permanent.
		e.auth.Invalidate()
		item.RecordAttempt(err)
		retryErr := e.execute(callCtx, op, &item)
		if retryErr == nil {
			return item, false, 0
		}
		item.MarkFailed(retryErr.Error())
		return item, false, 0
	}

	item.LastError = err.Error()

	if partner.Classify(err) == partner.ClassTransient && item.Attempt < e.cfg.RetryCeiling {
		if t.bo == nil {
			t.bo = e.newBackOff()
		}
		return item, true, retryDelay(err, t.bo)
	}

	item.MarkFailed(err.Error())
	return item, false, 0
}

// shortCircuit handles the cases where the requested operation is
// already satisfied by local state. The second return reports whether a
// shortcut applied.
func (e *Engine) shortCircuit(op Op, item gdap.WorkItem) (gdap.WorkItem, bool) {
	switch op {
	case OpCreateRelationship, OpCreateAssignment:
		// Re-running create against a submitted item re-affirms it; the
		// engine must never create a duplicate remote object.
		if item.ID != "" && item.Status.AtLeast(gdap.StatusSubmitted) {
			log.Debug().Str("id", item.ID).Str("customer", item.CustomerKey).Msg("already created, skipping remote call")
			return item, true
		}
		if item.Status == gdap.StatusFailed {
			return item, true
		}

	case OpTerminateRelationship, OpDeleteAssignment:
		// Already terminated, or termination already requested: success
		// without a second remote call.
		if item.Status == gdap.StatusTerminated || item.Status == gdap.StatusTerminating {
			return item, true
		}
		if item.Status == gdap.StatusFailed {
			return item, true
		}
		if item.ID == "" {
			item.MarkFailed("cannot terminate: item was never submitted")
			return item, true
		}

	case OpRefreshRelationship, OpRefreshAssignment:
		if item.Terminal() {
			return item, true
		}
		if item.ID == "" {
			item.MarkFailed("cannot refresh: item was never submitted")
			return item, true
		}

	case OpUpdateAssignment:
		if item.Terminal() {
			return item, true
		}
		if item.ID == "" {
			item.MarkFailed("cannot update: item was never submitted")
			return item, true
		}
	}

	return item, false
}

// execute performs the remote call for one operation and applies the
// resulting state transition.
func (e *Engine) execute(ctx context.Context, op Op, item *gdap.WorkItem) error {
	started := time.Now()
	var err error

	switch op {
	case OpCreateRelationship:
		var id string
		id, err = e.relationships.Create(ctx, item.CustomerKey, displayName(item), item.RoleSet)
		if err == nil {
			err = item.MarkSubmitted(id)
		}

	case OpRefreshRelationship:
		var state *partner.RelationshipState
		state, err = e.relationships.Get(ctx, item.ID)
		if err == nil {
			err = applyRemoteStatus(item, state.Status)
		}

	case OpTerminateRelationship:
		err = e.relationships.Terminate(ctx, item.ID)
		if err == nil {
			err = item.MarkStatus(gdap.StatusTerminating)
		}

	case OpCreateAssignment:
		var id string
		id, err = e.assignments.Create(ctx, item.GroupKey, item.CustomerKey, item.RoleSet)
		if err == nil {
			err = item.MarkSubmitted(id)
		}

	case OpRefreshAssignment:
		var state *partner.AssignmentState
		state, err = e.assignments.Get(ctx, item.ID)
		switch {
		case err == nil:
			err = applyRemoteStatus(item, state.Status)
		case errors.Is(err, partner.ErrNotFound) && item.Status == gdap.StatusTerminating:
			// A deleted assignment disappears rather than reporting a
			// terminated status.
			err = item.MarkStatus(gdap.StatusTerminated)
		}

	case OpUpdateAssignment:
		err = e.assignments.Update(ctx, item.ID, item.RoleSet)
		if err == nil {
			// The updated role set goes back through approval before the
			// assignment is active again.
			err = item.MarkStatus(gdap.StatusSubmitted)
		}

	case OpDeleteAssignment:
		err = e.assignments.Delete(ctx, item.ID)
		if err == nil {
			err = item.MarkStatus(gdap.StatusTerminating)
		}

	default:
		err = fmt.Errorf("unknown operation %q", op)
	}

	attrs := metric.WithAttributes(attribute.String("op", string(op)))
	e.metrics.RemoteCallsTotal.Add(ctx, 1, attrs)
	e.metrics.RemoteCallDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)

	return err
}

// applyRemoteStatus maps a refresh response onto the local state.
// Unknown remote statuses leave the item untouched.
func applyRemoteStatus(item *gdap.WorkItem, remote string) error {
	mapped, ok := partner.MapRemoteStatus(remote)
	if !ok {
		log.Warn().Str("id", item.ID).Str("remote_status", remote).Msg("unknown remote status, keeping local state")
		return nil
	}

	if mapped == item.Status {
		return nil
	}

	return item.MarkStatus(mapped)
}

func displayName(item *gdap.WorkItem) string {
	if item.DisplayName != "" {
		return item.DisplayName
	}
	return "gdap-" + item.CustomerKey
}

// flushReady appends every completed item in the contiguous run starting
// at *nextFlush, preserving original batch order in the output file.
func (e *Engine) flushReady(outputPath string, results []*gdap.WorkItem, nextFlush *int) error {
	var chunk []gdap.WorkItem
	for *nextFlush < len(results) && results[*nextFlush] != nil {
		chunk = append(chunk, *results[*nextFlush])
		*nextFlush++
	}

	if len(chunk) == 0 {
		return nil
	}

	if err := e.records.Append(outputPath, chunk); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputStore, err)
	}

	return nil
}

// flushRemaining writes whatever completed beyond the contiguous prefix.
// Only reached on interrupted runs, where order matters less than not
// losing results.
func (e *Engine) flushRemaining(outputPath string, results []*gdap.WorkItem, nextFlush *int) error {
	if err := e.flushReady(outputPath, results, nextFlush); err != nil {
		return err
	}

	var chunk []gdap.WorkItem
	for i := *nextFlush; i < len(results); i++ {
		if results[i] != nil {
			chunk = append(chunk, *results[i])
		}
	}

	if len(chunk) == 0 {
		return nil
	}

	if err := e.records.Append(outputPath, chunk); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputStore, err)
	}

	return nil
}
