package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/wieldops/wield/pkg/engine"
	"github.com/wieldops/wield/pkg/items"
	"github.com/wieldops/wield/pkg/transport/ssh"
)

// BuildNode turns one inventory entry into a runnable node with its
// transport and item set.
func BuildNode(nc NodeConfig) (*engine.Node, error) {
	itemSet, err := BuildItems(nc)
	if err != nil {
		return nil, err
	}

	sshCfg := ssh.DefaultConfig(nc.Host, nc.User)
	if nc.Port != 0 {
		sshCfg.Port = nc.Port
	}
	if nc.PrivateKeyPath != "" {
		sshCfg.AuthMethod = ssh.AuthMethodKey
		sshCfg.PrivateKeyPath = nc.PrivateKeyPath
	} else {
		sshCfg.AuthMethod = ssh.AuthMethodPassword
		sshCfg.Password = nc.Password
	}

	client, err := ssh.NewClient(sshCfg)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", nc.Name, err)
	}

	return &engine.Node{
		ID:        nc.Name,
		Transport: client,
		Items:     itemSet,
	}, nil
}

// BuildItems turns a node's item declarations into engine items.
func BuildItems(nc NodeConfig) ([]*items.Item, error) {
	built := make([]*items.Item, 0, len(nc.Items))
	for i, ic := range nc.Items {
		item, err := buildItem(ic)
		if err != nil {
			return nil, fmt.Errorf("node %s item %d: %w", nc.Name, i, err)
		}
		built = append(built, item)
	}
	return built, nil
}

func buildItem(ic ItemConfig) (*items.Item, error) {
	opts, err := buildOptions(ic)
	if err != nil {
		return nil, err
	}

	switch {
	case ic.File != nil:
		content := []byte(ic.File.Content)
		if ic.File.Source != "" {
			content, err = os.ReadFile(ic.File.Source)
			if err != nil {
				return nil, fmt.Errorf("failed to read file source: %w", err)
			}
		}
		var mode os.FileMode
		if ic.File.Mode != "" {
			parsed, err := strconv.ParseUint(ic.File.Mode, 8, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid file mode %q: %w", ic.File.Mode, err)
			}
			mode = os.FileMode(parsed)
		}
		return items.NewFile(&items.File{
			Path:    ic.File.Path,
			Content: content,
			Mode:    mode,
			Owner:   ic.File.Owner,
			Group:   ic.File.Group,
		}, opts...), nil

	case ic.Pkg != nil:
		installed := true
		if ic.Pkg.Installed != nil {
			installed = *ic.Pkg.Installed
		}
		return items.NewPkg(&items.Pkg{
			Name:      ic.Pkg.Name,
			Installed: installed,
		}, opts...), nil

	case ic.Action != nil:
		return items.NewAction(&items.Action{
			Name:    ic.Action.Name,
			Command: ic.Action.Command,
		}, opts...), nil
	}

	return nil, fmt.Errorf("exactly one of file, pkg, or action must be set")
}

func buildOptions(ic ItemConfig) ([]items.Option, error) {
	var opts []items.Option

	if len(ic.Needs) > 0 {
		needs, err := parseIDs(ic.Needs)
		if err != nil {
			return nil, fmt.Errorf("invalid needs: %w", err)
		}
		opts = append(opts, items.WithNeeds(needs...))
	}
	if len(ic.Triggers) > 0 {
		triggers, err := parseIDs(ic.Triggers)
		if err != nil {
			return nil, fmt.Errorf("invalid triggers: %w", err)
		}
		opts = append(opts, items.WithTriggers(triggers...))
	}
	if ic.Interactive {
		opts = append(opts, items.WithInteractive())
	}
	return opts, nil
}

func parseIDs(raw []string) ([]items.ID, error) {
	ids := make([]items.ID, 0, len(raw))
	for _, r := range raw {
		id, err := items.ParseID(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
