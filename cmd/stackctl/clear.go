package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Invalidate the cached resolution",
		Long: `Clear removes the lockfile so the next invocation re-probes from
scratch. Use this after installing or removing an engine or a compose
implementation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()

			if err := app.engine.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", app.engine.CachePath())
			return nil
		},
	}
}
