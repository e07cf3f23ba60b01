package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/scriptengine/internal/compiler"
	"github.com/roach88/scriptengine/internal/config"
	"github.com/roach88/scriptengine/internal/engine"
	"github.com/roach88/scriptengine/internal/journal"
	"github.com/roach88/scriptengine/internal/sandbox"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve requests on stdin (default)",
		Long: `Serve JSON requests on stdin and write responses to stdout.

Serving ends on the "exit" opcode or end of input (exit status 0), or when
the CPU limit is crossed (exit status 1). Logs go to stderr.

Example:
  scriptengine serve --config scriptengine.yaml
  echo '{"opcode": "validate", "source": "1 +"}' | scriptengine`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, cmd)
		},
	}
}

func runServe(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg.Log, opts.Verbose))

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	caps := compiler.SafeBase().WithMaxCallStack(cfg.Sandbox.MaxCallStack)
	engineOpts := []engine.EngineOption{
		engine.WithEnvironment(sandbox.New(caps)),
	}

	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				slog.Error("error closing journal", "error", closeErr)
			}
		}()

		session, err := j.StartSession(ctx, Version)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start journal session", err)
		}
		slog.Info("journal ready", "path", cfg.Journal.Path, "session", session)
		engineOpts = append(engineOpts, engine.WithRecorder(j))
	}

	eng := engine.New(cmd.OutOrStdout(), engineOpts...)

	if err := eng.ApplyLimits(uint64(cfg.Limits.CPUSeconds), uint64(cfg.Limits.MemoryBytes)); err != nil {
		return WrapExitError(ExitCommandError, "failed to apply limits", err)
	}

	libs := make([]engine.Library, 0, len(cfg.Libraries))
	for _, lib := range cfg.Libraries {
		libs = append(libs, engine.Library{Path: lib.Path, Name: lib.Name})
	}
	if err := eng.Preload(ctx, libs); err != nil {
		if engine.IsLibraryError(err) {
			return WrapExitError(ExitCommandError, "configured library failed to load", err)
		}
		return WrapExitError(ExitCommandError, "failed to preload libraries", err)
	}

	slog.Debug("serving", "libraries", len(libs), "bindings", eng.Environment().Len())
	if err := eng.Serve(ctx, cmd.InOrStdin()); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitCommandError, "engine error", err)
	}

	slog.Debug("engine stopped")
	return nil
}

// loadConfig loads the env file and config named by opts.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.EnvFile != "" {
		if err := config.LoadEnvFile(opts.EnvFile); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load env file", err)
		}
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}
