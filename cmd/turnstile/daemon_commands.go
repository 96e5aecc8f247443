package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"turnstile/internal/daemonctl"
	"turnstile/internal/daemonrun"
	"turnstile/internal/preflight"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Control the turnstile daemon",
	}
	daemonCmd.AddCommand(newDaemonRunCommand(ctx))
	daemonCmd.AddCommand(newDaemonStartCommand(ctx))
	daemonCmd.AddCommand(newDaemonStopCommand(ctx))
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	return daemonCmd
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
				SocketPath:  ctx.socketPath(),
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&development, "dev", false, "Enable development logging")
	return cmd
}

func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonctl.LaunchOptions{SocketPath: ctx.socketPath(), ConfigPath: ctx.configPath()},
				10*time.Second,
			)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(out, "Daemon already running (pid %d)\n", result.PID)
			default:
				fmt.Fprintf(out, "Daemon started (pid %d)\n", result.PID)
			}
			return nil
		},
	}
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(out, "Daemon did not exit in time; killed pid %d\n", result.PID)
			}
			fmt.Fprintln(out, "Daemon stopped")
			return nil
		},
	}
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, environment, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			return ctx.emit(cmd, snapshot, func() error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				status := snapshot.Status

				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(out, line)
				}
				if status.Running {
					fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "Not running", colorize))
				}
				if status.StartedAt != "" {
					fmt.Fprintln(out, renderStatusLine("Started", statusInfo, formatDisplayTime(status.StartedAt), colorize))
				}
				fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
				fmt.Fprintln(out, renderStatusLine("Socket", statusInfo, status.SocketPath, colorize))
				if status.APIBind != "" {
					fmt.Fprintln(out, renderStatusLine("HTTP API", statusInfo, status.APIBind, colorize))
				}
				if status.LastError != "" {
					fmt.Fprintln(out, renderStatusLine("Last error", statusError, status.LastError, colorize))
				}
				fmt.Fprintln(out)

				for _, line := range renderSectionHeader("Checks", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, line := range checkLines(snapshot.Checks, colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out)

				for _, line := range renderSectionHeader("Tokens", colorize) {
					fmt.Fprintln(out, line)
				}
				if status.Today.Period != "" {
					fmt.Fprintln(out, renderStatusLine("Period", statusInfo, status.Today.Period, colorize))
				}
				rows := buildCountRows(status.Counts, colorize)
				if len(rows) == 0 {
					fmt.Fprintln(out, "No tokens recorded")
					return nil
				}
				fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Run the checks the daemon performs before starting",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			return ctx.emit(cmd, results, func() error {
				out := cmd.OutOrStdout()
				for _, line := range checkLines(results, shouldColorize(out)) {
					fmt.Fprintln(out, line)
				}
				for _, r := range results {
					if !r.Passed {
						return fmt.Errorf("preflight check %q failed", r.Name)
					}
				}
				return nil
			})
		},
	}
}

func checkLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}

func buildCountRows(counts map[string]int, colorize bool) [][]string {
	total := 0
	keys := make([]string, 0, len(counts))
	for status, count := range counts {
		total += count
		keys = append(keys, status)
	}
	if total == 0 {
		return nil
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, status := range keys {
		rows = append(rows, []string{tokenStatusLabel(status, colorize), strconv.Itoa(counts[status])})
	}
	return rows
}
