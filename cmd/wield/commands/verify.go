package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wieldops/wield/pkg/engine"
	"github.com/wieldops/wield/pkg/items"
)

func newVerifyCommand() *cobra.Command {
	var nodeFilter []string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check node state without changing anything",
		Long: `Compare each node's current state against the desired state and
report divergence. No locks are taken and nothing is fixed; canned
actions are not exercised.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := setupRuntime(ctx, cmd.Root().Version)
			if err != nil {
				return err
			}
			defer env.teardown()

			nodes, err := selectNodes(env.cfg, nodeFilter)
			if err != nil {
				return err
			}

			divergent := 0
			for _, node := range nodes {
				n, err := verifyNode(cmd, node)
				if err != nil {
					return err
				}
				divergent += n
			}

			if divergent > 0 {
				return fmt.Errorf("%d items divergent", divergent)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&nodeFilter, "node", nil, "verify only the named nodes (repeatable)")

	return cmd
}

// verifyNode checks one node's items and returns the divergent count.
func verifyNode(cmd *cobra.Command, node *engine.Node) (int, error) {
	ctx := cmd.Context()

	order, err := engine.Resolve(node.Items)
	if err != nil {
		return 0, fmt.Errorf("node %s: %w", node.ID, err)
	}

	byID := make(map[items.ID]*items.Item, len(node.Items))
	for _, item := range node.Items {
		byID[item.ID] = item
	}

	if err := node.Transport.Connect(ctx); err != nil {
		return 0, fmt.Errorf("node %s: %w", node.ID, err)
	}
	defer func() {
		_ = node.Transport.Close()
	}()

	fmt.Printf("node %s:\n", node.ID)
	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	divergent := 0
	for _, id := range order {
		item := byID[id]
		if item.Triggered {
			continue
		}

		current, err := item.Capability.CurrentState(ctx, node.Transport)
		if err != nil {
			fmt.Fprintf(tw, "  %s\tunknown\t%v\n", id, err)
			divergent++
			continue
		}
		if current.Equal(item.Capability.DesiredState()) {
			fmt.Fprintf(tw, "  %s\tcorrect\t\n", id)
		} else {
			fmt.Fprintf(tw, "  %s\tdivergent\t\n", id)
			divergent++
		}
	}
	if err := tw.Flush(); err != nil {
		return 0, err
	}

	return divergent, nil
}
