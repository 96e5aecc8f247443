package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"turnstile/internal/api"
	"turnstile/internal/ipc"
	"turnstile/internal/queue"
	"turnstile/internal/queueaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the token queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueWorkersCommand(ctx))
	queueCmd.AddCommand(newQueueAnalyticsCommand(ctx))
	queueCmd.AddCommand(newQueueArchiveCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the current period's queue with wait estimates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access queueaccess.Access) error {
				resp, err := access.Queue(cmd.Context())
				if err != nil {
					return err
				}
				return ctx.emit(cmd, resp, func() error {
					out := cmd.OutOrStdout()
					if len(resp.Entries) == 0 {
						fmt.Fprintf(out, "Queue for %s is empty\n", resp.Period)
						return nil
					}
					fmt.Fprintf(out, "Period %s\n", resp.Period)
					fmt.Fprint(out, renderTable(
						[]string{"#", "Owner", "Status", "Ahead", "Wait", "Served By"},
						buildQueueRows(resp.Entries, shouldColorize(out)),
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
					))
					return nil
				})
			})
		},
	}
}

func buildQueueRows(entries []api.QueueEntry, colorize bool) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		ahead := ""
		wait := ""
		if queue.Status(entry.Status) == queue.StatusWaiting {
			ahead = strconv.Itoa(entry.AheadCount)
			wait = formatMinutes(entry.EstimatedWaitMinutes)
		}
		rows = append(rows, []string{
			strconv.Itoa(entry.SequenceNumber),
			tokenDisplayName(entry.Token),
			tokenStatusLabel(entry.Status, colorize),
			ahead,
			wait,
			entry.Token.ServedBy,
		})
	}
	return rows
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show counts for a service period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access queueaccess.Access) error {
				stats, err := access.Stats(cmd.Context(), date)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, stats, func() error {
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "Period %s (%s - %s)\n", stats.Period,
						formatDisplayTime(stats.PeriodStart), formatDisplayTime(stats.PeriodEnd))
					fmt.Fprint(out, renderTable(
						[]string{"Status", "Count"},
						buildStatsRows(stats),
						[]columnAlignment{alignLeft, alignRight},
					))
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Period opening date (YYYY-MM-DD); defaults to today")
	return cmd
}

func buildStatsRows(stats api.DailyStats) [][]string {
	return [][]string{
		{"Waiting", strconv.Itoa(stats.Waiting)},
		{"Serving", strconv.Itoa(stats.Serving)},
		{"Served", strconv.Itoa(stats.Served)},
		{"Total", strconv.Itoa(stats.Total)},
	}
}

func newQueueWorkersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "workers",
		Short: "Show per-worker activity for the current period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access queueaccess.Access) error {
				workers, err := access.Workers(cmd.Context())
				if err != nil {
					return err
				}
				return ctx.emit(cmd, api.WorkerListResponse{Workers: workers}, func() error {
					out := cmd.OutOrStdout()
					if len(workers) == 0 {
						fmt.Fprintln(out, "No worker activity yet")
						return nil
					}
					fmt.Fprint(out, renderTable(
						[]string{"Worker", "Served", "Serving"},
						buildWorkerRows(workers),
						[]columnAlignment{alignLeft, alignRight, alignRight},
					))
					return nil
				})
			})
		},
	}
}

func buildWorkerRows(workers []api.WorkerCount) [][]string {
	rows := make([][]string, 0, len(workers))
	for _, w := range workers {
		rows = append(rows, []string{w.Worker, strconv.Itoa(w.Served), strconv.Itoa(w.Serving)})
	}
	return rows
}

func newQueueAnalyticsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Show the staff overview of the current period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access queueaccess.Access) error {
				report, err := access.Analytics(cmd.Context())
				if err != nil {
					return err
				}
				return ctx.emit(cmd, report, func() error {
					out := cmd.OutOrStdout()
					colorize := shouldColorize(out)
					for _, line := range renderSectionHeader("Period "+report.Period, colorize) {
						fmt.Fprintln(out, line)
					}
					s := report.Summary
					fmt.Fprintln(out, renderStatusLine("Tokens", statusInfo, strconv.Itoa(s.Total), colorize))
					fmt.Fprintln(out, renderStatusLine("Waiting", waitingKind(s.Waiting), strconv.Itoa(s.Waiting), colorize))
					fmt.Fprintln(out, renderStatusLine("Serving", statusInfo, strconv.Itoa(s.Serving), colorize))
					fmt.Fprintln(out, renderStatusLine("Done", statusOK, strconv.Itoa(s.Done), colorize))
					fmt.Fprintln(out, renderStatusLine("Remaining work", statusInfo, formatMinutes(s.RemainingMinutes), colorize))
					if len(report.Workers) > 0 {
						fmt.Fprintln(out)
						fmt.Fprint(out, renderTable(
							[]string{"Worker", "Served", "Serving"},
							buildWorkerRows(report.Workers),
							[]columnAlignment{alignLeft, alignRight, alignRight},
						))
					}
					return nil
				})
			})
		},
	}
}

func waitingKind(waiting int) statusKind {
	if waiting > 0 {
		return statusWarn
	}
	return statusOK
}

func newQueueArchiveCommand(ctx *commandContext) *cobra.Command {
	var policy string

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Purge or archive tokens from expired periods",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access queueaccess.Access) error {
				result, err := access.Archive(cmd.Context(), policy)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, result, func() error {
					out := cmd.OutOrStdout()
					if result.Expired == 0 && result.Purged == 0 {
						fmt.Fprintf(out, "No tokens older than %s\n", result.Period)
						return nil
					}
					fmt.Fprintf(out, "Removed %d expired tokens (%s)\n", result.Purged, result.Policy)
					for _, file := range result.ArchiveFiles {
						fmt.Fprintf(out, "Archived to %s\n", file)
					}
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVar(&policy, "policy", "archive", "Retention policy to apply: purge or archive")
	return cmd
}

type queueHealthView struct {
	Queue    ipc.QueueHealthResponse    `json:"queue"`
	Database ipc.DatabaseHealthResponse `json:"database"`
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show token database diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access queueaccess.Access) error {
				health, err := access.Health(cmd.Context())
				if err != nil {
					return err
				}
				db, err := access.DatabaseHealth(cmd.Context())
				if err != nil {
					return err
				}
				return ctx.emit(cmd, queueHealthView{Queue: health, Database: db}, func() error {
					out := cmd.OutOrStdout()
					colorize := shouldColorize(out)
					for _, line := range renderSectionHeader("Database", colorize) {
						fmt.Fprintln(out, line)
					}
					fmt.Fprintln(out, renderStatusLine("Path", statusInfo, db.DBPath, colorize))
					fmt.Fprintln(out, renderStatusLine("Readable", boolKind(db.DatabaseReadable), yesNo(db.DatabaseReadable), colorize))
					fmt.Fprintln(out, renderStatusLine("Integrity", boolKind(db.IntegrityCheck), yesNo(db.IntegrityCheck), colorize))
					fmt.Fprintln(out, renderStatusLine("Schema version", statusInfo, strconv.Itoa(db.SchemaVersion), colorize))
					if len(db.MissingColumns) > 0 {
						fmt.Fprintln(out, renderStatusLine("Missing columns", statusError, fmt.Sprint(db.MissingColumns), colorize))
					}
					if db.Error != "" {
						fmt.Fprintln(out, renderStatusLine("Error", statusError, db.Error, colorize))
					}
					fmt.Fprintln(out)
					fmt.Fprint(out, renderTable(
						[]string{"Status", "Count"},
						[][]string{
							{"Waiting", strconv.Itoa(health.Waiting)},
							{"Serving", strconv.Itoa(health.Serving)},
							{"Done", strconv.Itoa(health.Done)},
							{"Total", strconv.Itoa(health.Total)},
							{"Periods", strconv.Itoa(health.Periods)},
						},
						[]columnAlignment{alignLeft, alignRight},
					))
					return nil
				})
			})
		},
	}
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}
