package engine

import (
	"context"
	"os"
	"testing"

	"github.com/wieldops/wield/pkg/items"
	"github.com/wieldops/wield/pkg/telemetry"
	"github.com/wieldops/wield/pkg/transport"
)

// Shared test fixtures for the engine package.

func testLogger(t *testing.T) *telemetry.Logger {
	t.Helper()
	log, err := telemetry.NewLogger(telemetry.LoggingConfig{Level: "error"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

// fakeCapability is a scriptable capability: it reports a fixed current
// state until Fix succeeds, then reports the desired state.
type fakeCapability struct {
	converged bool
	stateErr  error
	fixErr    error

	stateCalls int
	fixCalls   int
}

func (c *fakeCapability) CurrentState(_ context.Context, _ transport.Transport) (items.StateSnapshot, error) {
	c.stateCalls++
	if c.stateErr != nil {
		return nil, c.stateErr
	}
	return items.StateSnapshot{"converged": c.converged}, nil
}

func (c *fakeCapability) DesiredState() items.StateSnapshot {
	return items.StateSnapshot{"converged": true}
}

func (c *fakeCapability) Fix(_ context.Context, _ transport.Transport) error {
	c.fixCalls++
	if c.fixErr != nil {
		return c.fixErr
	}
	c.converged = true
	return nil
}

// testItem builds an item around a fake capability.
func testItem(t *testing.T, id string, converged bool, opts ...items.Option) (*items.Item, *fakeCapability) {
	t.Helper()
	parsed, err := items.ParseID(id)
	if err != nil {
		t.Fatalf("bad item identity %q: %v", id, err)
	}
	fake := &fakeCapability{converged: converged}
	item := &items.Item{ID: parsed, Capability: fake}
	for _, opt := range opts {
		opt(item)
	}
	return item, fake
}

// testAction builds a triggered action around a fake capability.
func testAction(t *testing.T, id string, opts ...items.Option) (*items.Item, *fakeCapability) {
	t.Helper()
	item, fake := testItem(t, id, false, opts...)
	item.Triggered = true
	return item, fake
}

func mustParseID(t *testing.T, id string) items.ID {
	t.Helper()
	parsed, err := items.ParseID(id)
	if err != nil {
		t.Fatalf("bad item identity %q: %v", id, err)
	}
	return parsed
}

// nopTransport satisfies the transport interface without any node.
type nopTransport struct {
	connected  bool
	connectErr error
}

func (n *nopTransport) Connect(_ context.Context) error {
	if n.connectErr != nil {
		return n.connectErr
	}
	n.connected = true
	return nil
}

func (n *nopTransport) Close() error {
	n.connected = false
	return nil
}

func (n *nopTransport) IsConnected() bool { return n.connected }

func (n *nopTransport) Run(_ context.Context, _ string) (*transport.ExecResult, error) {
	return &transport.ExecResult{}, nil
}

func (n *nopTransport) Upload(_ context.Context, _ []byte, _ string, _ os.FileMode) error {
	return nil
}

func (n *nopTransport) Download(_ context.Context, _ string) ([]byte, error) {
	return nil, nil
}

// statusByID indexes item results for assertions.
func statusByID(results []ItemResult) map[string]ItemStatus {
	statuses := make(map[string]ItemStatus, len(results))
	for _, res := range results {
		statuses[res.ItemID.String()] = res.Status
	}
	return statuses
}
