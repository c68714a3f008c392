package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/stackforge/stackctl/internal/core/resolve"
)

func newStatusCmd() *cobra.Command {
	var history int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the cached resolution alongside live engine state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			status := app.engine.Status(ctx)

			fmt.Fprintf(out, "Lockfile: %s\n", app.engine.CachePath())
			if status.Cached == nil {
				fmt.Fprintln(out, "Cached:   none (run \"stackctl detect\")")
			} else {
				printRecord(out, status.Cached)
			}

			fmt.Fprintln(out, "Engines:")
			for _, live := range status.Live {
				state := "unavailable"
				switch {
				case live.Reachable:
					state = "reachable"
				case live.Installed:
					state = "installed, daemon unreachable"
				}
				if live.Reason != "" {
					fmt.Fprintf(out, "  %-7s %s (%s)\n", live.Engine, state, live.Reason)
				} else {
					fmt.Fprintf(out, "  %-7s %s\n", live.Engine, state)
				}
			}

			if history > 0 {
				if app.journal == nil {
					fmt.Fprintln(out, "History:  journal disabled")
					return nil
				}
				events, err := app.journal.Recent(ctx, history)
				if err != nil {
					return fmt.Errorf("read journal: %w", err)
				}
				fmt.Fprintln(out, "History:")
				if len(events) == 0 {
					fmt.Fprintln(out, "  (empty)")
				}
				for _, ev := range events {
					line := fmt.Sprintf("  %s  %-20s %s", ev.CreatedAt.Format("2006-01-02 15:04:05"), ev.Kind, ev.Runtime)
					if ev.Detail != "" {
						line += "  " + ev.Detail
					}
					fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&history, "history", 0, "Also show the last N resolution events")
	return cmd
}

// printRecord renders one resolution record for human consumption.
func printRecord(w io.Writer, record *resolve.Record) {
	fmt.Fprintf(w, "Runtime:  %s\n", record.Engine)
	fmt.Fprintf(w, "Compose:  %s\n", record.Compose.String())
	if len(record.Compose.Env) > 0 {
		fmt.Fprintf(w, "Env:      %v\n", record.Compose.Env)
	}
	caps := record.Capabilities
	fmt.Fprintf(w, "Capabilities: secrets=%s healthcheck=%s profiles=%s build-engine=%s rootless=%s\n",
		caps.Secrets, yesNo(caps.Healthcheck), caps.Profiles, yesNo(caps.BuildEngine), yesNo(caps.Rootless))
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// sortedExports renders a record's exports as deterministic KEY=value lines.
func sortedExports(record *resolve.Record) []string {
	exports := record.Exports()
	keys := make([]string, 0, len(exports))
	for k := range exports {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s=%s", k, exports[k]))
	}
	return lines
}
