package main

import (
	"github.com/spf13/cobra"
)

func newUpCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Resolve the runtime and start the stack detached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()
			return runDeploy(cmd.Context(), app, cmd.OutOrStdout(), cmd.ErrOrStderr(),
				file, "deploy-up", []string{"up", "-d"})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Compose file (default from config)")
	return cmd
}
