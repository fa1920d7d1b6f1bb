package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wieldops/wield/pkg/locks"
)

func newLockCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Inspect and manage node locks",
		Long: `Inspect and manage the per-node apply locks.

Locks carry their holder's identity, age, and an optional comment so an
operator can tell who is blocking an apply and decide whether to wait
or force the lock open.`,
	}

	cmd.AddCommand(newLockShowCommand())
	cmd.AddCommand(newLockAddCommand())
	cmd.AddCommand(newLockRemoveCommand())

	return cmd
}

func newLockShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <node>",
		Short: "Show the lock state of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			nodeID := args[0]

			env, err := setupRuntime(ctx, cmd.Root().Version)
			if err != nil {
				return err
			}
			defer env.teardown()

			lock, err := env.manager.Status(ctx, nodeID)
			if err != nil {
				return err
			}
			if lock == nil {
				fmt.Printf("node %s is unlocked\n", nodeID)
				return nil
			}

			state := "held"
			if lock.Expired(time.Now()) {
				state = "expired"
			}
			fmt.Printf("node %s: %s by %s (age %s)\n",
				nodeID, state, lock.Holder, lock.Age(time.Now()).Round(time.Second))
			if lock.Comment != "" {
				fmt.Printf("comment: %s\n", lock.Comment)
			}
			return nil
		},
	}
}

func newLockAddCommand() *cobra.Command {
	var (
		ttl     time.Duration
		comment string
	)

	cmd := &cobra.Command{
		Use:   "add <node>",
		Short: "Lock a node to block applies",
		Long: `Lock a node manually, for example during an investigation or a
maintenance window. Applies against the node fail fast until the lock
is removed or expires.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			nodeID := args[0]

			env, err := setupRuntime(ctx, cmd.Root().Version)
			if err != nil {
				return err
			}
			defer env.teardown()

			lockTTL := env.cfg.LockTTL.Std()
			if ttl > 0 {
				lockTTL = ttl
			}

			lock, err := env.manager.Acquire(ctx, nodeID, defaultHolder(), lockTTL, comment)
			if err != nil {
				var held *locks.HeldError
				if errors.As(err, &held) {
					return fmt.Errorf("node already locked: %s", held)
				}
				return err
			}

			fmt.Printf("locked node %s as %s (ttl %s)\n", nodeID, lock.Holder, lockTTL)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "lock time-to-live (overrides config)")
	cmd.Flags().StringVar(&comment, "comment", "", "why the node is being locked")

	return cmd
}

func newLockRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <node>",
		Short: "Force-remove the lock on a node",
		Long: `Remove a node's lock regardless of who holds it. Use with care: the
holder may still be mid-apply.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			nodeID := args[0]

			env, err := setupRuntime(ctx, cmd.Root().Version)
			if err != nil {
				return err
			}
			defer env.teardown()

			lock, err := env.manager.Status(ctx, nodeID)
			if err != nil {
				return err
			}
			if lock == nil {
				fmt.Printf("node %s is not locked\n", nodeID)
				return nil
			}

			if err := env.manager.ForceRelease(ctx, nodeID); err != nil {
				return err
			}
			fmt.Printf("removed lock on %s held by %s\n", nodeID, lock.Holder)
			return nil
		},
	}
}
