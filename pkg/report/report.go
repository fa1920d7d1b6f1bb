// Package report renders apply run results as plain text for terminals.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/wieldops/wield/pkg/engine"
)

// Write renders every run result to w, one section per node.
func Write(w io.Writer, results []*engine.RunResult) error {
	for i, result := range results {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if err := writeRun(w, result); err != nil {
			return err
		}
	}
	return nil
}

// Render returns the rendered report as a string.
func Render(results []*engine.RunResult) string {
	var b strings.Builder
	_ = Write(&b, results)
	return b.String()
}

func writeRun(w io.Writer, result *engine.RunResult) error {
	if _, err := fmt.Fprintf(w, "node %s: %s (%s)\n",
		result.NodeID, result.Status, formatDuration(result.Duration)); err != nil {
		return err
	}

	if result.AbortReason != "" {
		if _, err := fmt.Fprintf(w, "  %s\n", result.AbortReason); err != nil {
			return err
		}
	}

	if len(result.Items) > 0 {
		tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
		for _, item := range result.Items {
			detail := item.Reason
			if item.Err != nil {
				detail = item.Err.Error()
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n",
				item.ItemID, item.Status, formatDuration(item.Duration), detail)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	s := result.Summary
	_, err := fmt.Fprintf(w, "  %d items: %d correct, %d fixed, %d failed, %d skipped, %d pending\n",
		s.Total, s.Correct, s.Fixed, s.Failed, s.Skipped, s.Pending)
	return err
}

// formatDuration trims durations to a readable precision.
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return d.Round(10 * time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(10 * time.Microsecond).String()
	default:
		return d.String()
	}
}
