package engine

import (
	"fmt"
	"sort"

	"github.com/wieldops/wield/pkg/items"
)

// edge is a directed ordering constraint: From converges before To.
type edge struct {
	From items.ID
	To   items.ID
}

// Resolve orders the node's item set for reconciliation.
//
// Explicit Needs declarations and trigger relationships both contribute
// ordering edges (a trigger source must converge before the action it
// fires). The order is deterministic for a fixed item set: ties are
// broken lexicographically by item identity, so re-runs over an unchanged
// set always reconcile in the same order. Duplicate dependency
// declarations are idempotent.
//
// Any cycle, including a self-dependency, fails with *CycleError naming
// the full cycle path; unknown dependency targets fail with
// *ValidationError. No fix is ever attempted on an unordered set.
func Resolve(set []*items.Item) ([]items.ID, error) {
	index := make(map[items.ID]*items.Item, len(set))
	for _, it := range set {
		if it.ID.Type == "" || it.ID.Name == "" {
			return nil, &ValidationError{Message: "item has incomplete identity", ItemID: it.ID}
		}
		if _, exists := index[it.ID]; exists {
			return nil, &ValidationError{Message: "duplicate item identity", ItemID: it.ID}
		}
		index[it.ID] = it
	}

	adjacency := make(map[items.ID][]items.ID, len(set))
	inDegree := make(map[items.ID]int, len(set))
	seen := make(map[edge]bool)
	for id := range index {
		inDegree[id] = 0
	}

	addEdge := func(from, to items.ID) error {
		if from == to {
			return &CycleError{Cycle: []items.ID{from, to}}
		}
		if _, exists := index[from]; !exists {
			return &ValidationError{
				Message: fmt.Sprintf("depends on unknown item %s", from),
				ItemID:  to,
			}
		}
		e := edge{From: from, To: to}
		if seen[e] {
			// Duplicate declaration, no effect beyond the first.
			return nil
		}
		seen[e] = true
		adjacency[from] = append(adjacency[from], to)
		inDegree[to]++
		return nil
	}

	for _, it := range set {
		for _, need := range it.Needs {
			if err := addEdge(need, it.ID); err != nil {
				return nil, err
			}
		}
		for _, target := range it.Triggers {
			if _, exists := index[target]; !exists {
				return nil, &ValidationError{
					Message: fmt.Sprintf("triggers unknown item %s", target),
					ItemID:  it.ID,
				}
			}
			// The action must come after its trigger source.
			if err := addEdge(it.ID, target); err != nil {
				return nil, err
			}
		}
	}

	// Kahn's algorithm with a sorted ready set for a stable tie-break.
	ready := make([]items.ID, 0, len(set))
	for id, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, id)
		}
	}
	sortIDs(ready)

	order := make([]items.ID, 0, len(set))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		unblocked := make([]items.ID, 0, len(adjacency[next]))
		for _, dependent := range adjacency[next] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				unblocked = append(unblocked, dependent)
			}
		}
		if len(unblocked) > 0 {
			ready = append(ready, unblocked...)
			sortIDs(ready)
		}
	}

	if len(order) != len(set) {
		return nil, &CycleError{Cycle: findCycle(index, adjacency, order)}
	}

	return order, nil
}

// sortIDs sorts identities lexicographically by their canonical form.
func sortIDs(ids []items.ID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
}

// findCycle extracts one cycle path from the nodes Kahn could not order.
func findCycle(
	index map[items.ID]*items.Item,
	adjacency map[items.ID][]items.ID,
	ordered []items.ID,
) []items.ID {
	placed := make(map[items.ID]bool, len(ordered))
	for _, id := range ordered {
		placed[id] = true
	}

	remaining := make([]items.ID, 0, len(index)-len(ordered))
	for id := range index {
		if !placed[id] {
			remaining = append(remaining, id)
		}
	}
	sortIDs(remaining)

	visited := make(map[items.ID]bool)
	onStack := make(map[items.ID]bool)

	var walk func(id items.ID, path []items.ID) []items.ID
	walk = func(id items.ID, path []items.ID) []items.ID {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)

		neighbors := make([]items.ID, 0, len(adjacency[id]))
		for _, next := range adjacency[id] {
			if !placed[next] {
				neighbors = append(neighbors, next)
			}
		}
		sortIDs(neighbors)

		for _, next := range neighbors {
			if onStack[next] {
				for i, p := range path {
					if p == next {
						return append(path[i:], next)
					}
				}
			}
			if !visited[next] {
				if cycle := walk(next, path); cycle != nil {
					return cycle
				}
			}
		}

		onStack[id] = false
		return nil
	}

	for _, id := range remaining {
		if !visited[id] {
			if cycle := walk(id, nil); cycle != nil {
				return cycle
			}
		}
	}

	// Unreachable when Kahn left nodes unordered, kept for safety.
	return remaining
}
