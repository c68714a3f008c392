package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/stackforge/stackctl/internal/core/platform"
	"github.com/stackforge/stackctl/internal/engine"
	"github.com/stackforge/stackctl/internal/shell/cache"
	"github.com/stackforge/stackctl/internal/shell/composeres"
	"github.com/stackforge/stackctl/internal/shell/execx"
	"github.com/stackforge/stackctl/internal/shell/journal"
	"github.com/stackforge/stackctl/internal/shell/runtime"
	"github.com/stackforge/stackctl/internal/shell/steps"
)

// Global flags.
var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "stackctl",
		Short: "Container runtime and compose resolution for multi-service deployments",
		Long: `stackctl decides which container engine (docker or podman) and which
compose implementation a deployment should use, verifies the choice by
actually exercising it, and caches the decision so repeated invocations
are idempotent.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	root.AddCommand(newStatusCmd())
	root.AddCommand(newDetectCmd())
	root.AddCommand(newClearCmd())
	root.AddCommand(newShowCmd())
	root.AddCommand(newUpCmd())
	root.AddCommand(newDownCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// =============================================================================
// Application Wiring
// =============================================================================

// app holds the wired components for one command invocation.
type app struct {
	cfg     *Config
	logger  *slog.Logger
	engine  *engine.Engine
	journal *journal.Journal
	steps   *steps.Tracker
	retry   *execx.RetryEngine
}

// newApp loads configuration and assembles the resolution engine. The
// journal is optional; a failure to open it degrades to no history.
func newApp() (*app, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := SetupLogger(cfg)

	if err := os.MkdirAll(cfg.State.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	pinger := runtime.NewAPIPinger(cfg.Docker.Host)
	detector := runtime.NewDetector(pinger, platform.Load(""), cfg.Probe.Timeout, logger)

	deadline := execx.NewDeadlineRunner(logger)
	verifySpec := execx.DeadlineSpec{Timeout: cfg.Verify.Timeout, Grace: cfg.Verify.Grace}

	var installer *composeres.Installer
	if cfg.Remediate.Enabled {
		installer = composeres.NewInstaller(composeres.InstallerConfig{
			BaseURL: cfg.Remediate.BaseURL,
			Version: cfg.Remediate.Version,
			SHA256:  cfg.Remediate.SHA256,
			Dir:     cfg.Remediate.Dir,
		}, logger)
	}

	resolver := composeres.NewResolver(
		deadline,
		verifySpec,
		cfg.State.ScratchDir(),
		pinger.Socket,
		installer,
		logger,
	)

	var j *journal.Journal
	var recorder engine.Recorder
	if cfg.Journal.Enabled {
		j, err = journal.Open(cfg.State.JournalDSN())
		if err != nil {
			logger.Warn("journal unavailable, continuing without history", "error", err)
		} else {
			recorder = j
			resolver.OnRemediate = func(ctx context.Context, path string) {
				if err := j.Append(ctx, journal.EventRemediation, "", path); err != nil {
					logger.Warn("journal append failed", "kind", journal.EventRemediation, "error", err)
				}
			}
		}
	}

	tracker, err := steps.NewTracker(cfg.State.StepsDir())
	if err != nil {
		return nil, err
	}

	deploySpec := execx.DeadlineSpec{Timeout: cfg.Deploy.Timeout, Grace: cfg.Deploy.Grace}

	return &app{
		cfg:     cfg,
		logger:  logger,
		engine:  engine.New(cache.New(cfg.State.Lockfile(), logger), detector, resolver, recorder, logger),
		journal: j,
		steps:   tracker,
		retry:   execx.NewRetryEngine(deadline.AsRunner(deploySpec), logger),
	}, nil
}

func (a *app) close() {
	if a.journal != nil {
		a.journal.Close()
	}
}
