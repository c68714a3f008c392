package main

import (
	"github.com/spf13/cobra"
)

func newDownCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Resolve the runtime and stop the stack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()
			return runDeploy(cmd.Context(), app, cmd.OutOrStdout(), cmd.ErrOrStderr(),
				file, "deploy-down", []string{"down"})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Compose file (default from config)")
	return cmd
}
