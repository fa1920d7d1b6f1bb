// Package items defines the unit of desired state the apply engine
// reconciles: an item has an identity, dependency hints, triggers, and a
// capability that can observe and converge the node.
package items

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wieldops/wield/pkg/transport"
)

// ID identifies an item within a node as (type, name).
type ID struct {
	// Type is the item type (e.g., "file", "pkg", "action").
	Type string `json:"type"`

	// Name is the item name, unique within its type (e.g., a file path).
	Name string `json:"name"`
}

// String renders the identity in its canonical "type:name" form.
func (id ID) String() string {
	return id.Type + ":" + id.Name
}

// IsZero reports whether the identity is empty.
func (id ID) IsZero() bool {
	return id.Type == "" && id.Name == ""
}

// ParseID parses a "type:name" identity string.
func ParseID(s string) (ID, error) {
	typ, name, ok := strings.Cut(s, ":")
	if !ok || typ == "" || name == "" {
		return ID{}, fmt.Errorf("invalid item identity %q: want type:name", s)
	}
	return ID{Type: typ, Name: name}, nil
}

// StateSnapshot is a point-in-time description of an item's state.
// Snapshots compare by canonical JSON encoding so map ordering is irrelevant.
type StateSnapshot map[string]interface{}

// Equal reports whether two snapshots describe the same state.
func (s StateSnapshot) Equal(other StateSnapshot) bool {
	a, err := json.Marshal(s)
	if err != nil {
		return false
	}
	b, err := json.Marshal(other)
	if err != nil {
		return false
	}
	return string(a) == string(b)
}

// Capability is implemented per item type. The engine only orchestrates
// calls to it; all node interaction goes through the transport.
type Capability interface {
	// CurrentState inspects the node and returns the observed state.
	CurrentState(ctx context.Context, tr transport.Transport) (StateSnapshot, error)

	// DesiredState returns the declared target state.
	DesiredState() StateSnapshot

	// Fix converges the node toward the desired state.
	Fix(ctx context.Context, tr transport.Transport) error
}

// Item is a single desired-state declaration bound to a node.
// It is immutable during a run; results are recorded separately.
type Item struct {
	// ID is the unique identity of this item on the node.
	ID ID

	// Needs lists identities this item hard-depends on. The item is
	// skipped when any of them fails to converge.
	Needs []ID

	// Triggers lists canned-action identities to fire when this item
	// changes during a run.
	Triggers []ID

	// Triggered marks a canned action: it runs only when fired by one of
	// its trigger sources, never from a state comparison.
	Triggered bool

	// Interactive requires explicit confirmation before fixing.
	Interactive bool

	// Capability observes and converges the item's state.
	Capability Capability
}

// Validate checks the declaration for local consistency. Transitive
// cycles are the dependency resolver's concern.
func (it *Item) Validate() error {
	if it.ID.Type == "" || it.ID.Name == "" {
		return fmt.Errorf("item has incomplete identity %q", it.ID)
	}
	if it.Capability == nil {
		return fmt.Errorf("item %s has no capability", it.ID)
	}
	for _, need := range it.Needs {
		if need == it.ID {
			return fmt.Errorf("item %s depends on itself", it.ID)
		}
	}
	for _, trig := range it.Triggers {
		if trig == it.ID {
			return fmt.Errorf("item %s triggers itself", it.ID)
		}
	}
	return nil
}
