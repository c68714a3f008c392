package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stackforge/stackctl/internal/engine"
	"github.com/stackforge/stackctl/internal/shell/runtime"
)

// inputVariables are the environment variables stackctl itself reads,
// shown by "show --inputs" so operators can see what influences a
// resolution.
var inputVariables = []string{
	runtime.EnvRuntimeOverride,
	runtime.EnvRuntime,
	"DOCKER_HOST",
	"STACKCTL_STATE_DIR",
	"STACKCTL_PROBE_TIMEOUT",
	"STACKCTL_VERIFY_TIMEOUT",
	"STACKCTL_REMEDIATE_ENABLED",
	"STACKCTL_JOURNAL_ENABLED",
	"STACKCTL_LOG_LEVEL",
	"STACKCTL_LOG_FORMAT",
}

func newShowCmd() *cobra.Command {
	var inputs bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved environment as KEY=value lines",
		Long: `Show resolves (from cache when warm) and prints the exported
variables one per line, suitable for eval in a shell:

  eval "$(stackctl show)"

With --inputs it instead lists the variables stackctl reads and their
current values.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()

			out := cmd.OutOrStdout()
			if inputs {
				for _, name := range inputVariables {
					value, set := os.LookupEnv(name)
					if !set {
						fmt.Fprintf(out, "%s is unset\n", name)
						continue
					}
					fmt.Fprintf(out, "%s=%s\n", name, value)
				}
				return nil
			}

			record, err := app.engine.Resolve(cmd.Context(), engine.ResolveOptions{})
			if err != nil {
				return err
			}
			for _, line := range sortedExports(record) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&inputs, "inputs", false, "List the variables stackctl reads instead of its exports")
	return cmd
}
