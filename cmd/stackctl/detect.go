package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackforge/stackctl/internal/engine"
)

func newDetectCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Resolve the container runtime and compose command",
		Long: `Detect probes the installed container engines, verifies compose
candidates against a synthetic document, and writes the winning
combination to the lockfile. With a warm cache this is a no-op unless
--force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()

			record, err := app.engine.Resolve(cmd.Context(), engine.ResolveOptions{Force: force})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printRecord(out, record)
			fmt.Fprintf(out, "Lockfile: %s\n", app.engine.CachePath())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-probe even when a cached resolution exists")
	return cmd
}
