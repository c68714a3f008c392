package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/stackforge/stackctl/internal/engine"
	"github.com/stackforge/stackctl/internal/shell/execx"
	"github.com/stackforge/stackctl/internal/shell/lock"
	"github.com/stackforge/stackctl/internal/shell/steps"
)

// runDeploy drives one compose action (up or down) end to end: take the
// orchestration lock, resolve the runtime, and run the compose command
// under the retry policy with a step marker bracketing the external
// work. An interrupted run leaves its marker behind; the next run
// reports it and proceeds.
func runDeploy(ctx context.Context, app *app, out, errOut io.Writer, file, step string, action []string) error {
	if file == "" {
		file = app.cfg.Deploy.ComposeFile
	}

	held, err := lock.Acquire(app.cfg.State.DeployLock(), app.cfg.Deploy.LockWait)
	if err != nil {
		return err
	}
	defer held.Release()

	if incomplete, err := app.steps.IsIncomplete(step); err == nil && incomplete {
		app.logger.Warn("previous run was interrupted, retrying", "step", step)
		if err := app.steps.Complete(step); err != nil {
			return err
		}
	}

	record, err := app.engine.Resolve(ctx, engine.ResolveOptions{})
	if err != nil {
		return err
	}

	args := append([]string{}, record.Compose.Args...)
	args = append(args, "-f", file)
	args = append(args, action...)

	env := append([]string{}, record.Compose.Env...)
	for _, kv := range sortedExports(record) {
		env = append(env, kv)
	}

	cmd := execx.Command{Name: record.Compose.Binary, Args: args, Env: env}

	if err := app.steps.Begin(step); err != nil {
		if errors.Is(err, steps.ErrStepInProgress) {
			return fmt.Errorf("deployment step %q already running: %w", step, err)
		}
		return err
	}

	result, err := app.retry.Run(ctx, app.cfg.Retry.Policy(), cmd)
	if err != nil {
		return err
	}
	fmt.Fprint(out, result.Stdout)
	fmt.Fprint(errOut, result.Stderr)
	if result.ExitCode != 0 {
		// A nonzero compose exit is a controlled failure, not a crash;
		// the marker must not survive to masquerade as an interruption.
		if err := app.steps.Complete(step); err != nil {
			app.logger.Warn("step marker not removed", "step", step, "error", err)
		}
		return &commandError{Command: cmd.String(), ExitCode: result.ExitCode}
	}
	return app.steps.Complete(step)
}
