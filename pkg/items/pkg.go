package items

import (
	"context"
	"fmt"

	"github.com/wieldops/wield/pkg/transport"
)

// Pkg declares a managed Debian package.
type Pkg struct {
	// Name is the package name.
	Name string

	// Installed is the desired presence: true to install, false to remove.
	Installed bool
}

// NewPkg builds a package item declaration.
func NewPkg(p *Pkg, opts ...Option) *Item {
	item := &Item{
		ID:         ID{Type: "pkg", Name: p.Name},
		Capability: p,
	}
	for _, opt := range opts {
		opt(item)
	}
	return item
}

// CurrentState queries dpkg for the package's install status.
func (p *Pkg) CurrentState(ctx context.Context, tr transport.Transport) (StateSnapshot, error) {
	res, err := tr.Run(ctx, fmt.Sprintf("dpkg-query -W -f='${Status}' %s", shellQuote(p.Name)))
	if err != nil {
		return nil, err
	}

	installed := res.OK() && res.Stdout == "install ok installed"
	return StateSnapshot{"installed": installed}, nil
}

// DesiredState returns the declared target state.
func (p *Pkg) DesiredState() StateSnapshot {
	return StateSnapshot{"installed": p.Installed}
}

// Fix installs or removes the package non-interactively.
func (p *Pkg) Fix(ctx context.Context, tr transport.Transport) error {
	var cmd string
	if p.Installed {
		cmd = fmt.Sprintf("DEBIAN_FRONTEND=noninteractive apt-get install -y %s", shellQuote(p.Name))
	} else {
		cmd = fmt.Sprintf("DEBIAN_FRONTEND=noninteractive apt-get remove -y %s", shellQuote(p.Name))
	}

	res, err := tr.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("apt-get for %s exited %d: %s", p.Name, res.ExitCode, res.Stderr)
	}
	return nil
}
