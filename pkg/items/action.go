package items

import (
	"context"
	"fmt"

	"github.com/wieldops/wield/pkg/transport"
)

// Action declares a canned action: a command run on the node when one of
// its trigger sources changes, typically a service reload.
type Action struct {
	// Name identifies the action (e.g., "reload-nginx").
	Name string

	// Command is the shell command to run.
	Command string
}

// NewAction builds a canned-action item. The action only runs when fired
// by a trigger source; it never runs from a state comparison.
func NewAction(a *Action, opts ...Option) *Item {
	item := &Item{
		ID:         ID{Type: "action", Name: a.Name},
		Triggered:  true,
		Capability: a,
	}
	for _, opt := range opts {
		opt(item)
	}
	return item
}

// CurrentState is never consulted for triggered actions; it reports the
// action as not yet run so a mistakenly untriggered action still diverges.
func (a *Action) CurrentState(_ context.Context, _ transport.Transport) (StateSnapshot, error) {
	return StateSnapshot{"ran": false}, nil
}

// DesiredState returns the declared target state.
func (a *Action) DesiredState() StateSnapshot {
	return StateSnapshot{"ran": true}
}

// Fix runs the action's command.
func (a *Action) Fix(ctx context.Context, tr transport.Transport) error {
	res, err := tr.Run(ctx, a.Command)
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("action %s exited %d: %s", a.Name, res.ExitCode, res.Stderr)
	}
	return nil
}
