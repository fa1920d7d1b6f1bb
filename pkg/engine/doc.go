// Package engine implements the push-based apply engine: it orders a
// node's items into a deterministic dependency-respecting sequence,
// reconciles each item against observed state, fires canned actions when
// their trigger sources change, and serializes concurrent applies per
// node through the lock manager.
//
// The flow for one node is: acquire lock -> resolve order -> reconcile in
// order (reporting changes to the trigger set as they happen) -> release
// lock. Item failures never abort the run; only lock contention and
// dependency cycles do, and both happen before any node state is touched.
package engine
