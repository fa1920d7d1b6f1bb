package items

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/wieldops/wield/pkg/transport"
)

// File declares a managed file: content, mode, and optional ownership.
type File struct {
	// Path is the absolute path on the node.
	Path string

	// Content is the desired file content.
	Content []byte

	// Mode is the desired permission bits (default 0644).
	Mode os.FileMode

	// Owner and Group set ownership when non-empty. Changing ownership
	// requires the transport user to have the necessary privileges.
	Owner string
	Group string
}

// NewFile builds a file item declaration for the given path.
func NewFile(f *File, opts ...Option) *Item {
	if f.Mode == 0 {
		f.Mode = 0o644
	}

	item := &Item{
		ID:         ID{Type: "file", Name: f.Path},
		Capability: f,
	}
	for _, opt := range opts {
		opt(item)
	}
	return item
}

// CurrentState observes the file's checksum, mode, and ownership.
func (f *File) CurrentState(ctx context.Context, tr transport.Transport) (StateSnapshot, error) {
	quoted := shellQuote(f.Path)

	res, err := tr.Run(ctx, "sha256sum "+quoted)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		// Missing file (or unreadable): report absent so Fix runs.
		return StateSnapshot{"exists": false}, nil
	}

	checksum, _, _ := strings.Cut(res.Stdout, " ")

	statRes, err := tr.Run(ctx, "stat -c '%a %U %G' "+quoted)
	if err != nil {
		return nil, err
	}
	if !statRes.OK() {
		return nil, fmt.Errorf("stat %s: %s", f.Path, statRes.Stderr)
	}

	fields := strings.Fields(statRes.Stdout)
	if len(fields) != 3 {
		return nil, fmt.Errorf("unexpected stat output for %s: %q", f.Path, statRes.Stdout)
	}

	state := StateSnapshot{
		"exists": true,
		"sha256": checksum,
		"mode":   fields[0],
	}
	if f.Owner != "" {
		state["owner"] = fields[1]
	}
	if f.Group != "" {
		state["group"] = fields[2]
	}
	return state, nil
}

// DesiredState returns the declared target state.
func (f *File) DesiredState() StateSnapshot {
	sum := sha256.Sum256(f.Content)
	state := StateSnapshot{
		"exists": true,
		"sha256": hex.EncodeToString(sum[:]),
		"mode":   fmt.Sprintf("%o", f.Mode.Perm()),
	}
	if f.Owner != "" {
		state["owner"] = f.Owner
	}
	if f.Group != "" {
		state["group"] = f.Group
	}
	return state
}

// Fix uploads the declared content and applies mode and ownership.
func (f *File) Fix(ctx context.Context, tr transport.Transport) error {
	if err := tr.Upload(ctx, f.Content, f.Path, f.Mode); err != nil {
		return err
	}

	if f.Owner != "" || f.Group != "" {
		ownership := f.Owner
		if f.Group != "" {
			ownership += ":" + f.Group
		}
		res, err := tr.Run(ctx, fmt.Sprintf("chown %s %s", ownership, shellQuote(f.Path)))
		if err != nil {
			return err
		}
		if !res.OK() {
			return fmt.Errorf("chown %s: %s", f.Path, res.Stderr)
		}
	}
	return nil
}

// shellQuote single-quotes an argument for remote shell use.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
