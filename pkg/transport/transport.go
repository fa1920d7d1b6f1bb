// Package transport provides remote execution transports used by item
// capabilities to inspect and converge node state.
package transport

import (
	"context"
	"os"
	"time"
)

// Transport is the capability item implementations use to reach a node.
// It runs commands and transfers files; it knows nothing about items.
type Transport interface {
	// Connect establishes the connection to the node.
	Connect(ctx context.Context) error

	// Close tears down the connection and releases all resources.
	Close() error

	// IsConnected reports whether the transport has an active connection.
	IsConnected() bool

	// Run executes a command on the node and returns its result.
	// A non-zero exit code is reported in the result, not as an error;
	// err is reserved for transport-level failures.
	Run(ctx context.Context, cmd string) (*ExecResult, error)

	// Upload writes content to a file on the node with the given mode.
	Upload(ctx context.Context, content []byte, remotePath string, mode os.FileMode) error

	// Download reads a file from the node.
	Download(ctx context.Context, remotePath string) ([]byte, error)
}

// ExecResult represents the outcome of a remote command.
type ExecResult struct {
	// Stdout is the trimmed standard output.
	Stdout string

	// Stderr is the trimmed standard error output.
	Stderr string

	// ExitCode is the command's exit code.
	ExitCode int

	// Duration is how long the command took.
	Duration time.Duration
}

// OK reports whether the command exited successfully.
func (r *ExecResult) OK() bool {
	return r.ExitCode == 0
}
