package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wieldops/wield/pkg/locks"
	"github.com/wieldops/wield/pkg/telemetry"
)

// Runner orchestrates one apply run against one node:
// acquire lock -> resolve order -> reconcile -> release lock.
// The lock is released on every exit path, including item failures,
// pre-flight aborts, and cancellation.
type Runner struct {
	locks      *locks.Manager
	reconciler *Reconciler
	log        *telemetry.Logger
	metrics    *telemetry.Metrics
	tracer     *telemetry.Tracer
}

// NewRunner creates a run controller. Metrics and tracer may be nil.
func NewRunner(lockManager *locks.Manager, log *telemetry.Logger, metrics *telemetry.Metrics, tracer *telemetry.Tracer) *Runner {
	return &Runner{
		locks:      lockManager,
		reconciler: NewReconciler(log, metrics, tracer),
		log:        log.NewComponentLogger("runner"),
		metrics:    metrics,
		tracer:     tracer,
	}
}

// Apply performs one apply run against the node.
//
// The run aborts before touching any node state when the lock is held
// elsewhere (*locks.HeldError, status aborted_lock) or when the item set
// cannot be ordered (*CycleError or *ValidationError, status
// aborted_cycle); for those the error is returned alongside the result.
// Item-level failures never surface as errors: the run completes with
// status partial and the failures recorded per item.
func (r *Runner) Apply(ctx context.Context, node *Node, opts ApplyOptions) (*RunResult, error) {
	runID := uuid.New().String()
	log := r.log.WithRunID(runID).WithNodeID(node.ID)

	result := &RunResult{
		RunID:     runID,
		NodeID:    node.ID,
		StartedAt: time.Now(),
	}
	finish := func(status RunStatus, abortReason string) {
		result.Status = status
		result.AbortReason = abortReason
		result.CompletedAt = time.Now()
		result.Duration = result.CompletedAt.Sub(result.StartedAt)
		for _, item := range result.Items {
			result.Summary.Add(item.Status)
		}
	}

	log.Infof("starting apply run with %d items", len(node.Items))

	lock, err := r.acquireLock(ctx, node.ID, opts)
	if err != nil {
		var held *locks.HeldError
		if errors.As(err, &held) {
			log.Warnf("apply aborted: %v", held)
			finish(RunStatusAbortedLock, held.Error())
			return result, err
		}
		return nil, err
	}

	r.metrics.RunStarted(opts.Holder)

	// Release must run on every exit path. The release context is
	// detached so a cancelled run still gives the lock back.
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if err := r.locks.Release(context.WithoutCancel(ctx), lock); err != nil {
			log.WithError(err).Error("failed to release node lock")
		}
	}
	defer release()

	defer func() {
		r.metrics.RunCompleted(string(result.Status), result.Duration)
	}()

	order, err := Resolve(node.Items)
	if err != nil {
		log.WithError(err).Error("apply aborted: item set cannot be ordered")
		release()
		finish(RunStatusAbortedCycle, err.Error())
		return result, err
	}

	ownConn := false
	if node.Transport != nil && !node.Transport.IsConnected() {
		if err := node.Transport.Connect(ctx); err != nil {
			log.WithError(err).Error("apply aborted: node unreachable")
			release()
			finish(RunStatusCancelled, err.Error())
			return result, err
		}
		ownConn = true
	}
	if ownConn {
		defer func() {
			_ = node.Transport.Close()
		}()
	}

	runCtx := ctx
	if r.tracer != nil {
		spanCtx, span := r.tracer.StartRun(ctx, runID, node.ID)
		runCtx = spanCtx
		defer span.End()
	}

	triggers := NewTriggerSet(node.Items)
	itemResults, cancelled := r.reconciler.Reconcile(runCtx, node.Transport, node.Items, order, triggers, opts.Confirmer)
	result.Items = itemResults

	release()

	switch {
	case cancelled:
		finish(RunStatusCancelled, "cancelled between items")
	case anyFailed(itemResults):
		finish(RunStatusPartial, "")
	default:
		finish(RunStatusSucceeded, "")
	}

	log.Infof("apply run finished: %s (%d correct, %d fixed, %d failed, %d skipped, %d pending)",
		result.Status, result.Summary.Correct, result.Summary.Fixed,
		result.Summary.Failed, result.Summary.Skipped, result.Summary.Pending)

	return result, nil
}

// acquireLock takes the node lock, polling when the options ask for it.
func (r *Runner) acquireLock(ctx context.Context, nodeID string, opts ApplyOptions) (*locks.Lock, error) {
	if opts.LockWait {
		return r.locks.AcquireWait(ctx, nodeID, opts.Holder, opts.LockTTL, opts.LockComment, opts.LockPollInterval)
	}
	return r.locks.Acquire(ctx, nodeID, opts.Holder, opts.LockTTL, opts.LockComment)
}

// anyFailed reports whether any item result is a failure.
func anyFailed(results []ItemResult) bool {
	for _, res := range results {
		if res.Status == ItemStatusFailed {
			return true
		}
	}
	return false
}
