package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wieldops/wield/pkg/config"
	"github.com/wieldops/wield/pkg/engine"
	"github.com/wieldops/wield/pkg/items"
	"github.com/wieldops/wield/pkg/report"
)

func newApplyCommand() *cobra.Command {
	var (
		nodeFilter  []string
		interactive bool
		wait        bool
		ttl         time.Duration
		comment     string
		parallelism int
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply desired state to nodes",
		Long: `Apply the configured item sets to their nodes.

This command:
  - Acquires a lock per node (failing fast when another holder has it)
  - Orders each node's items by dependency
  - Fixes divergent items and fires their triggered actions
  - Keeps going past failures, skipping only dependent subtrees
  - Releases locks and prints a per-node report`,
		Example: `  # Apply to every node in the inventory
  wield apply

  # Apply to selected nodes, waiting for contended locks
  wield apply --node web1 --node web2 --wait

  # Prompt before fixing interactive items
  wield apply --interactive`,
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

			opts := engine.ApplyOptions{
				Holder:           defaultHolder(),
				LockTTL:          env.cfg.LockTTL.Std(),
				LockComment:      comment,
				LockWait:         wait || env.cfg.LockWait,
				LockPollInterval: env.cfg.LockPollInterval.Std(),
			}
			if ttl > 0 {
				opts.LockTTL = ttl
			}
			if interactive {
				opts.Confirmer = engine.ConfirmerFunc(promptConfirm)
			}

			maxParallel := env.cfg.Parallelism
			if parallelism > 0 {
				maxParallel = parallelism
			}

			runner := engine.NewRunner(env.manager, env.log, env.metrics, env.tracer)
			scheduler := engine.NewScheduler(runner, maxParallel, env.log)

			results := scheduler.ApplyAll(ctx, nodes, opts)
			if err := report.Write(os.Stdout, results); err != nil {
				return err
			}

			for _, result := range results {
				if result.Status != engine.RunStatusSucceeded {
					return fmt.Errorf("apply did not fully converge")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&nodeFilter, "node", nil, "apply only to the named nodes (repeatable)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "prompt before fixing interactive items")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for contended node locks instead of failing fast")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "lock time-to-live (overrides config)")
	cmd.Flags().StringVar(&comment, "comment", "", "comment recorded on acquired locks")
	cmd.Flags().IntVar(&parallelism, "parallelism", 0, "max nodes applied in parallel (overrides config)")

	return cmd
}

// selectNodes builds runnable nodes from the inventory, optionally
// restricted to the named subset.
func selectNodes(cfg *config.Config, filter []string) ([]*engine.Node, error) {
	wanted := make(map[string]bool, len(filter))
	for _, name := range filter {
		wanted[name] = true
	}

	var nodes []*engine.Node
	for _, nc := range cfg.Nodes {
		if len(wanted) > 0 && !wanted[nc.Name] {
			continue
		}
		delete(wanted, nc.Name)

		node, err := config.BuildNode(nc)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for name := range wanted {
			missing = append(missing, name)
		}
		return nil, fmt.Errorf("unknown nodes: %s", strings.Join(missing, ", "))
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no nodes selected")
	}
	return nodes, nil
}

// promptConfirm asks on the terminal whether an interactive item may be
// fixed. Anything other than y/yes declines.
func promptConfirm(_ context.Context, item *items.Item) (bool, error) {
	fmt.Printf("fix %s? [y/N] ", item.ID)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
