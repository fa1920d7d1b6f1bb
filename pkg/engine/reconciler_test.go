package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/wieldops/wield/pkg/items"
)

func newTestReconciler(t *testing.T) *Reconciler {
	t.Helper()
	return NewReconciler(testLogger(t), nil, nil)
}

// reconcile resolves the set and runs it through a fresh trigger set.
func reconcile(t *testing.T, set []*items.Item, confirmer Confirmer) ([]ItemResult, bool) {
	t.Helper()
	order, err := Resolve(set)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	r := newTestReconciler(t)
	return r.Reconcile(context.Background(), &nopTransport{connected: true}, set, order, NewTriggerSet(set), confirmer)
}

func TestReconcileAllCorrect(t *testing.T) {
	a, capA := testItem(t, "file:/a", true)
	b, capB := testItem(t, "file:/b", true)

	results, cancelled := reconcile(t, []*items.Item{a, b}, nil)
	if cancelled {
		t.Fatal("run should not be cancelled")
	}

	for _, res := range results {
		if res.Status != ItemStatusCorrect {
			t.Errorf("%s = %s, want correct", res.ItemID, res.Status)
		}
	}
	if capA.fixCalls != 0 || capB.fixCalls != 0 {
		t.Error("converged items must not be fixed")
	}
}

func TestReconcileFixesDivergent(t *testing.T) {
	a, capA := testItem(t, "file:/a", false)

	results, _ := reconcile(t, []*items.Item{a}, nil)
	if results[0].Status != ItemStatusFixed {
		t.Fatalf("status = %s, want fixed", results[0].Status)
	}
	if capA.fixCalls != 1 {
		t.Errorf("fix called %d times, want 1", capA.fixCalls)
	}
}

func TestReconcileFailureBlocksDependents(t *testing.T) {
	a, capA := testItem(t, "file:/a", false)
	capA.fixErr = fmt.Errorf("disk full")
	b, capB := testItem(t, "file:/b", false,
		items.WithNeeds(mustParseID(t, "file:/a")))
	c, capC := testItem(t, "file:/c", false,
		items.WithNeeds(mustParseID(t, "file:/b")))
	unrelated, capU := testItem(t, "file:/unrelated", false)

	results, cancelled := reconcile(t, []*items.Item{a, b, c, unrelated}, nil)
	if cancelled {
		t.Fatal("an item failure must not cancel the run")
	}

	statuses := statusByID(results)
	if statuses["file:/a"] != ItemStatusFailed {
		t.Errorf("file:/a = %s, want failed", statuses["file:/a"])
	}
	if statuses["file:/b"] != ItemStatusSkipped {
		t.Errorf("file:/b = %s, want skipped", statuses["file:/b"])
	}
	if statuses["file:/c"] != ItemStatusSkipped {
		t.Errorf("file:/c = %s, want skipped (transitive)", statuses["file:/c"])
	}
	if statuses["file:/unrelated"] != ItemStatusFixed {
		t.Errorf("file:/unrelated = %s, want fixed", statuses["file:/unrelated"])
	}

	// Skipped items are never attempted.
	if capB.fixCalls != 0 || capB.stateCalls != 0 {
		t.Error("skipped dependent must not be attempted")
	}
	if capC.fixCalls != 0 {
		t.Error("transitively skipped item must not be attempted")
	}
	if capU.fixCalls != 1 {
		t.Error("unrelated item must still be fixed")
	}

	// The skip reason names the blocking dependency.
	for _, res := range results {
		if res.ItemID.String() == "file:/b" {
			if !strings.Contains(res.Reason, "file:/a") {
				t.Errorf("skip reason should name the dependency: %q", res.Reason)
			}
		}
	}
}

func TestReconcileStateQueryFailure(t *testing.T) {
	a, capA := testItem(t, "file:/a", false)
	capA.stateErr = fmt.Errorf("connection reset")

	results, _ := reconcile(t, []*items.Item{a}, nil)
	if results[0].Status != ItemStatusFailed {
		t.Fatalf("status = %s, want failed", results[0].Status)
	}

	var fixErr *FixError
	if !errors.As(results[0].Err, &fixErr) {
		t.Fatalf("expected *FixError, got %v", results[0].Err)
	}
	if fixErr.ItemID.String() != "file:/a" {
		t.Errorf("error should carry the item identity, got %s", fixErr.ItemID)
	}
}

func TestReconcileTriggerFiresAction(t *testing.T) {
	reload := mustParseID(t, "action:reload")
	src, _ := testItem(t, "file:/etc/nginx.conf", false, items.WithTriggers(reload))
	action, capAction := testAction(t, "action:reload")

	results, _ := reconcile(t, []*items.Item{src, action}, nil)
	statuses := statusByID(results)
	if statuses["file:/etc/nginx.conf"] != ItemStatusFixed {
		t.Errorf("source = %s, want fixed", statuses["file:/etc/nginx.conf"])
	}
	if statuses["action:reload"] != ItemStatusFixed {
		t.Errorf("action = %s, want fixed", statuses["action:reload"])
	}
	if capAction.fixCalls != 1 {
		t.Errorf("action fixed %d times, want 1", capAction.fixCalls)
	}
}

func TestReconcileActionNotTriggered(t *testing.T) {
	reload := mustParseID(t, "action:reload")
	src, _ := testItem(t, "file:/etc/nginx.conf", true, items.WithTriggers(reload))
	action, capAction := testAction(t, "action:reload")

	results, _ := reconcile(t, []*items.Item{src, action}, nil)
	statuses := statusByID(results)
	if statuses["action:reload"] != ItemStatusSkipped {
		t.Errorf("untriggered action = %s, want skipped", statuses["action:reload"])
	}
	if capAction.fixCalls != 0 {
		t.Error("untriggered action must not run")
	}
}

func TestReconcileActionFiresOnceForManySources(t *testing.T) {
	reload := mustParseID(t, "action:reload")
	a, _ := testItem(t, "file:/a", false, items.WithTriggers(reload))
	b, _ := testItem(t, "file:/b", false, items.WithTriggers(reload))
	action, capAction := testAction(t, "action:reload")

	reconcile(t, []*items.Item{a, b, action}, nil)
	if capAction.fixCalls != 1 {
		t.Errorf("action fixed %d times, want exactly 1", capAction.fixCalls)
	}
}

func TestReconcileChainedActions(t *testing.T) {
	first := mustParseID(t, "action:first")
	second := mustParseID(t, "action:second")

	src, _ := testItem(t, "file:/a", false, items.WithTriggers(first))
	actionFirst, capFirst := testAction(t, "action:first", items.WithTriggers(second))
	actionSecond, capSecond := testAction(t, "action:second")

	results, _ := reconcile(t, []*items.Item{src, actionFirst, actionSecond}, nil)
	statuses := statusByID(results)
	if statuses["action:first"] != ItemStatusFixed || capFirst.fixCalls != 1 {
		t.Errorf("first action = %s (%d fixes), want fixed once",
			statuses["action:first"], capFirst.fixCalls)
	}
	if statuses["action:second"] != ItemStatusFixed || capSecond.fixCalls != 1 {
		t.Errorf("chained action = %s (%d fixes), want fixed once",
			statuses["action:second"], capSecond.fixCalls)
	}
}

func TestReconcileInteractiveWithoutConfirmer(t *testing.T) {
	a, capA := testItem(t, "file:/a", false, items.WithInteractive())

	results, _ := reconcile(t, []*items.Item{a}, nil)
	if results[0].Status != ItemStatusPending {
		t.Fatalf("status = %s, want pending", results[0].Status)
	}
	if capA.fixCalls != 0 {
		t.Error("unconfirmed interactive item must not be fixed")
	}
}

func TestReconcileInteractiveDeclined(t *testing.T) {
	a, capA := testItem(t, "file:/a", false, items.WithInteractive())

	declined := ConfirmerFunc(func(_ context.Context, _ *items.Item) (bool, error) {
		return false, nil
	})
	results, _ := reconcile(t, []*items.Item{a}, declined)
	if results[0].Status != ItemStatusSkipped {
		t.Fatalf("status = %s, want skipped", results[0].Status)
	}
	if capA.fixCalls != 0 {
		t.Error("declined item must not be fixed")
	}
}

func TestReconcileInteractiveConfirmed(t *testing.T) {
	a, capA := testItem(t, "file:/a", false, items.WithInteractive())

	confirmed := ConfirmerFunc(func(_ context.Context, _ *items.Item) (bool, error) {
		return true, nil
	})
	results, _ := reconcile(t, []*items.Item{a}, confirmed)
	if results[0].Status != ItemStatusFixed {
		t.Fatalf("status = %s, want fixed", results[0].Status)
	}
	if capA.fixCalls != 1 {
		t.Error("confirmed item should be fixed")
	}
}

func TestReconcileInteractiveConvergedSkipsPrompt(t *testing.T) {
	a, _ := testItem(t, "file:/a", true, items.WithInteractive())

	prompted := false
	confirmer := ConfirmerFunc(func(_ context.Context, _ *items.Item) (bool, error) {
		prompted = true
		return true, nil
	})
	results, _ := reconcile(t, []*items.Item{a}, confirmer)
	if results[0].Status != ItemStatusCorrect {
		t.Fatalf("status = %s, want correct", results[0].Status)
	}
	if prompted {
		t.Error("converged interactive items must not prompt")
	}
}

func TestReconcileCancelled(t *testing.T) {
	a, capA := testItem(t, "file:/a", false)
	b, capB := testItem(t, "file:/b", false)
	set := []*items.Item{a, b}

	order, err := Resolve(set)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestReconciler(t)
	results, cancelled := r.Reconcile(ctx, &nopTransport{connected: true}, set, order, NewTriggerSet(set), nil)
	if !cancelled {
		t.Fatal("reconcile should report cancellation")
	}
	if len(results) != len(set) {
		t.Fatalf("every item needs a result, got %d of %d", len(results), len(set))
	}
	for _, res := range results {
		if res.Status != ItemStatusSkipped {
			t.Errorf("%s = %s, want skipped", res.ItemID, res.Status)
		}
	}
	if capA.fixCalls != 0 || capB.fixCalls != 0 {
		t.Error("cancelled run must not fix anything")
	}
}
