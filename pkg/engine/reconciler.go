package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/wieldops/wield/pkg/items"
	"github.com/wieldops/wield/pkg/telemetry"
	"github.com/wieldops/wield/pkg/transport"
)

// Reconciler walks an ordered item list and converges each item against
// observed node state. Items execute strictly in the resolved order; a
// failing item never aborts the run, it fails alone and its dependents
// are skipped.
type Reconciler struct {
	log     *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
}

// NewReconciler creates a reconciler. Metrics and tracer may be nil.
func NewReconciler(log *telemetry.Logger, metrics *telemetry.Metrics, tracer *telemetry.Tracer) *Reconciler {
	return &Reconciler{
		log:     log.NewComponentLogger("reconciler"),
		metrics: metrics,
		tracer:  tracer,
	}
}

// Reconcile applies the ordered item set over the node's transport.
// Every fixed item is reported to the trigger set before the next item is
// processed, so later-ordered actions observe the change when reached.
// The returned flag reports whether the run was cancelled between items.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	tr transport.Transport,
	set []*items.Item,
	order []items.ID,
	triggers *TriggerSet,
	confirmer Confirmer,
) ([]ItemResult, bool) {
	index := make(map[items.ID]*items.Item, len(set))
	for _, it := range set {
		index[it.ID] = it
	}

	// Items that did not converge this run; their dependents are skipped
	// because their precondition state is unverified.
	unconverged := make(map[items.ID]ItemStatus, len(set))

	results := make([]ItemResult, 0, len(order))
	cancelled := false

	for i, id := range order {
		select {
		case <-ctx.Done():
			cancelled = true
		default:
		}
		if cancelled {
			// Stop before the next item; record the remainder as skipped.
			now := time.Now()
			for _, rest := range order[i:] {
				results = append(results, ItemResult{
					ItemID:      rest,
					Status:      ItemStatusSkipped,
					Reason:      "run cancelled",
					StartedAt:   now,
					CompletedAt: now,
				})
			}
			break
		}

		result := r.reconcileItem(ctx, tr, index[id], triggers, confirmer, unconverged)
		results = append(results, result)

		if result.Status != ItemStatusCorrect && result.Status != ItemStatusFixed {
			unconverged[id] = result.Status
		}

		r.metrics.ItemReconciled(id.Type, string(result.Status), result.Duration)
	}

	return results, cancelled
}

// reconcileItem converges a single item and records its outcome.
func (r *Reconciler) reconcileItem(
	ctx context.Context,
	tr transport.Transport,
	it *items.Item,
	triggers *TriggerSet,
	confirmer Confirmer,
	unconverged map[items.ID]ItemStatus,
) ItemResult {
	log := r.log.WithItemID(it.ID.String())
	result := ItemResult{
		ItemID:    it.ID,
		StartedAt: time.Now(),
	}
	finish := func(status ItemStatus, reason string, err error) ItemResult {
		result.Status = status
		result.Reason = reason
		result.Err = err
		result.CompletedAt = time.Now()
		result.Duration = result.CompletedAt.Sub(result.StartedAt)
		return result
	}

	itemCtx := ctx
	if r.tracer != nil {
		var span trace.Span
		itemCtx, span = r.tracer.StartItem(ctx, it.ID.String())
		defer span.End()
	}

	// An item whose dependency did not converge has an unverified
	// precondition and is never attempted.
	for _, need := range it.Needs {
		if status, blocked := unconverged[need]; blocked {
			reason := fmt.Sprintf("dependency %s %s", need, status)
			log.Warn(reason)
			return finish(ItemStatusSkipped, reason, nil)
		}
	}

	// Canned actions run only when fired; their state is never compared.
	if it.Triggered {
		if !triggers.ShouldFire(it.ID) {
			log.Debug("action not triggered")
			return finish(ItemStatusSkipped, "not triggered", nil)
		}
		log.Info("firing triggered action")
		if err := it.Capability.Fix(itemCtx, tr); err != nil {
			fixErr := &FixError{ItemID: it.ID, Err: err}
			log.WithError(fixErr).Error("action failed")
			return finish(ItemStatusFailed, "", fixErr)
		}
		triggers.ItemChanged(it.ID)
		return finish(ItemStatusFixed, "", nil)
	}

	current, err := it.Capability.CurrentState(itemCtx, tr)
	if err != nil {
		// State-query failures (transport included) fail the item only.
		fixErr := &FixError{ItemID: it.ID, Err: err}
		log.WithError(fixErr).Error("state query failed")
		return finish(ItemStatusFailed, "", fixErr)
	}

	if current.Equal(it.Capability.DesiredState()) {
		log.Debug("item already in desired state")
		return finish(ItemStatusCorrect, "", nil)
	}

	if it.Interactive {
		if confirmer == nil {
			log.Warn("interactive item diverged, no confirmation channel")
			return finish(ItemStatusPending, "confirmation required", nil)
		}
		ok, err := confirmer.Confirm(itemCtx, it)
		if err != nil {
			log.WithError(err).Warn("confirmation unavailable")
			return finish(ItemStatusPending, "confirmation unavailable", nil)
		}
		if !ok {
			log.Info("fix declined by operator")
			return finish(ItemStatusSkipped, "declined", nil)
		}
	}

	log.Info("item diverged, fixing")
	if err := it.Capability.Fix(itemCtx, tr); err != nil {
		fixErr := &FixError{ItemID: it.ID, Err: err}
		log.WithError(fixErr).Error("fix failed")
		return finish(ItemStatusFailed, "", fixErr)
	}

	// Report the change before the next item so later-ordered actions
	// already see it when reached.
	triggers.ItemChanged(it.ID)
	log.Info("item fixed")
	return finish(ItemStatusFixed, "", nil)
}
