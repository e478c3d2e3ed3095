// Command sparkle-installer is the daemon entrypoint, C6's host
// process. It parses the command line, builds a session and a Stage
// Controller, and blocks until a terminal state is reached, exiting
// with the Controller's exit code — the same die-on-the-way-out shape
// as the teacher's cmd/rawrequest-updater/main.go, rewritten onto
// cobra (present in go.mod for every command-surfaced binary in this
// module) rather than the teacher's bare flag package, since the
// teacher's own main is excluded from its build
// (//go:build ignore) and is reference material, not a CLI pattern to
// copy verbatim.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atomikpanda/Sparkle/cmd/sparkle-installer/internal/daemonopts"
	"github.com/atomikpanda/Sparkle/internal/hostbundle"
	"github.com/atomikpanda/Sparkle/internal/session"
	"github.com/atomikpanda/Sparkle/internal/stagecontroller"
)

func main() {
	os.Exit(run())
}

func run() int {
	var opts daemonopts.Options

	cmd := &cobra.Command{
		Use:           "sparkle-installer",
		Short:         "Runs the Sparkle update installer daemon for one host bundle",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.HostBundleIdentifier, "host-bundle-id", "", "identifier of the host bundle being updated")
	cmd.Flags().StringVar(&opts.SocketDir, "socket-dir", "/tmp", "directory containing the updater and agent unix sockets")
	cmd.Flags().BoolVar(&opts.AllowInteraction, "allow-interaction", true, "permit the agent to show UI during installation")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "info", "one of debug, info, warn, error")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sparkle-installer:", err)
		return stagecontroller.ExitFailure
	}
	return exitCode
}

// exitCode is set by runDaemon once the Controller reaches a terminal
// state; cobra's RunE contract only reports success/failure, not an
// integer, so the actual daemon-computed exit code is threaded out
// here rather than invented at the command layer.
var exitCode = stagecontroller.ExitSuccess

func runDaemon(ctx context.Context, opts daemonopts.Options) error {
	if err := daemonopts.ValidateOptions(opts); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(opts.LogLevel),
	}))

	sess := session.New(opts.HostBundleIdentifier, opts.AllowInteraction)

	ctrl, err := stagecontroller.New(stagecontroller.Config{
		Session:       sess,
		SocketDir:     opts.SocketDir,
		Logger:        logger,
		OwnBundlePath: ownBundlePath(logger),
	})
	if err != nil {
		return fmt.Errorf("constructing stage controller: %w", err)
	}

	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("starting stage controller: %w", err)
	}

	exitCode = ctrl.Wait()
	if exitCode != stagecontroller.ExitSuccess {
		return fmt.Errorf("installation failed with exit code %d", exitCode)
	}
	return nil
}

// ownBundlePath resolves the daemon's own bundle directory from its
// executable path, per spec.md §9: removing it on exit is intentional
// (this is a single-shot installer), not a defect to guard against.
// Platforms without a recognizable bundle convention (anything but
// darwin/windows) simply get no self-removal.
func ownBundlePath(logger *slog.Logger) string {
	exePath, err := os.Executable()
	if err != nil {
		logger.Warn("resolving own executable path failed, skipping self-removal on exit", "error", err)
		return ""
	}
	path, err := hostbundle.DetermineInstallPath(runtime.GOOS, exePath)
	if err != nil {
		logger.Debug("own executable is not inside a recognizable bundle, skipping self-removal on exit", "error", err)
		return ""
	}
	return path
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
