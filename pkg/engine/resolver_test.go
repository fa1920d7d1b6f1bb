package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/wieldops/wield/pkg/items"
)

func TestResolveDeterministicOrder(t *testing.T) {
	build := func() []*items.Item {
		c, _ := testItem(t, "file:/c", true)
		a, _ := testItem(t, "file:/a", true)
		b, _ := testItem(t, "file:/b", true)
		return []*items.Item{c, a, b}
	}

	first, err := Resolve(build())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// Independent items come out lexicographically.
	want := []string{"file:/a", "file:/b", "file:/c"}
	for i, id := range first {
		if id.String() != want[i] {
			t.Fatalf("order[%d] = %s, want %s", i, id, want[i])
		}
	}

	// Re-resolving an unchanged set gives the identical order.
	for run := 0; run < 10; run++ {
		again, err := Resolve(build())
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		for i := range first {
			if again[i] != first[i] {
				t.Fatalf("order changed between runs: %v vs %v", again, first)
			}
		}
	}
}

func TestResolveNeedsOrdering(t *testing.T) {
	// file:/a depends on pkg:nginx, so the package must come first even
	// though "file:/a" sorts before "pkg:nginx".
	a, _ := testItem(t, "file:/a", true,
		items.WithNeeds(mustParseID(t, "pkg:nginx")))
	nginx, _ := testItem(t, "pkg:nginx", true)

	order, err := Resolve([]*items.Item{a, nginx})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if order[0].String() != "pkg:nginx" || order[1].String() != "file:/a" {
		t.Errorf("dependency must precede dependent, got %v", order)
	}
}

func TestResolveTriggerOrdering(t *testing.T) {
	// A trigger source must converge before the action it fires, even when
	// the action sorts first.
	src, _ := testItem(t, "file:/etc/nginx.conf", false,
		items.WithTriggers(mustParseID(t, "action:reload")))
	reload, _ := testAction(t, "action:reload")

	order, err := Resolve([]*items.Item{reload, src})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if order[0].String() != "file:/etc/nginx.conf" || order[1].String() != "action:reload" {
		t.Errorf("trigger source must precede action, got %v", order)
	}
}

func TestResolveDuplicateDependenciesIdempotent(t *testing.T) {
	dep := mustParseID(t, "pkg:nginx")
	a, _ := testItem(t, "file:/a", true, items.WithNeeds(dep, dep, dep))
	nginx, _ := testItem(t, "pkg:nginx", true)

	order, err := Resolve([]*items.Item{a, nginx})
	if err != nil {
		t.Fatalf("duplicate declarations must be idempotent: %v", err)
	}
	if len(order) != 2 {
		t.Errorf("expected 2 ordered items, got %v", order)
	}
}

func TestResolveCycle(t *testing.T) {
	a, _ := testItem(t, "file:/a", true,
		items.WithNeeds(mustParseID(t, "file:/b")))
	b, _ := testItem(t, "file:/b", true,
		items.WithNeeds(mustParseID(t, "file:/a")))

	_, err := Resolve([]*items.Item{a, b})
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %v", err)
	}

	// The error must name every item on the cycle.
	msg := cycleErr.Error()
	if !strings.Contains(msg, "file:/a") || !strings.Contains(msg, "file:/b") {
		t.Errorf("cycle error should name both items: %s", msg)
	}
	if !cycleErr.Contains(mustParseID(t, "file:/a")) || !cycleErr.Contains(mustParseID(t, "file:/b")) {
		t.Errorf("cycle should contain both items: %v", cycleErr.Cycle)
	}
}

func TestResolveSelfDependency(t *testing.T) {
	a, _ := testItem(t, "file:/a", true,
		items.WithNeeds(mustParseID(t, "file:/a")))

	_, err := Resolve([]*items.Item{a})
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("self-dependency should be a *CycleError, got %v", err)
	}
}

func TestResolveUnknownDependency(t *testing.T) {
	a, _ := testItem(t, "file:/a", true,
		items.WithNeeds(mustParseID(t, "pkg:ghost")))

	_, err := Resolve([]*items.Item{a})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("unknown dependency should be a *ValidationError, got %v", err)
	}
}

func TestResolveUnknownTriggerTarget(t *testing.T) {
	a, _ := testItem(t, "file:/a", true,
		items.WithTriggers(mustParseID(t, "action:ghost")))

	_, err := Resolve([]*items.Item{a})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("unknown trigger target should be a *ValidationError, got %v", err)
	}
}

func TestResolveDuplicateIdentity(t *testing.T) {
	a1, _ := testItem(t, "file:/a", true)
	a2, _ := testItem(t, "file:/a", true)

	_, err := Resolve([]*items.Item{a1, a2})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("duplicate identity should be a *ValidationError, got %v", err)
	}
}

func TestResolveDiamond(t *testing.T) {
	// base -> left, base -> right, left/right -> top.
	base, _ := testItem(t, "pkg:base", true)
	left, _ := testItem(t, "file:/left", true,
		items.WithNeeds(mustParseID(t, "pkg:base")))
	right, _ := testItem(t, "file:/right", true,
		items.WithNeeds(mustParseID(t, "pkg:base")))
	top, _ := testItem(t, "file:/top", true,
		items.WithNeeds(mustParseID(t, "file:/left"), mustParseID(t, "file:/right")))

	order, err := Resolve([]*items.Item{top, right, left, base})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id.String()] = i
	}
	if position["pkg:base"] != 0 {
		t.Errorf("base must come first, got %v", order)
	}
	if position["file:/top"] != len(order)-1 {
		t.Errorf("top must come last, got %v", order)
	}
	if position["file:/left"] > position["file:/right"] {
		t.Errorf("ties must break lexicographically, got %v", order)
	}
}
