package engine

import "github.com/wieldops/wield/pkg/items"

// TriggerSet tracks which items changed during one run and which canned
// actions have already fired. It is built per run and discarded at run
// end, so firing state never leaks across runs.
type TriggerSet struct {
	// sources maps an action identity to its registered trigger sources.
	sources map[items.ID][]items.ID

	// changed records trigger sources that changed during the run.
	changed map[items.ID]bool

	// fired records actions that have already fired this run.
	fired map[items.ID]bool
}

// NewTriggerSet registers the trigger relationships declared by the item
// set: for every item listing an action in Triggers, the item becomes one
// of that action's sources.
func NewTriggerSet(set []*items.Item) *TriggerSet {
	ts := &TriggerSet{
		sources: make(map[items.ID][]items.ID),
		changed: make(map[items.ID]bool),
		fired:   make(map[items.ID]bool),
	}
	for _, it := range set {
		for _, action := range it.Triggers {
			ts.sources[action] = append(ts.sources[action], it.ID)
		}
	}
	return ts
}

// ItemChanged records that a trigger source converged with a change.
// The reconciler calls this immediately after each successful fix, before
// the next item in order is processed.
func (ts *TriggerSet) ItemChanged(id items.ID) {
	ts.changed[id] = true
}

// ShouldFire reports whether the action should run now. It returns true
// exactly once per run, the first time it is queried after any of the
// action's sources changed; every later query answers false regardless of
// how many more sources change.
func (ts *TriggerSet) ShouldFire(action items.ID) bool {
	if ts.fired[action] {
		return false
	}
	for _, source := range ts.sources[action] {
		if ts.changed[source] {
			ts.fired[action] = true
			return true
		}
	}
	return false
}

// Fired reports whether the action has fired this run.
func (ts *TriggerSet) Fired(action items.ID) bool {
	return ts.fired[action]
}
