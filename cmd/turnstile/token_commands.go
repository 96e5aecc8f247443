package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"turnstile/internal/api"
	"turnstile/internal/queueaccess"
)

func newTokenCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newTakeCommand(ctx),
		newNextCommand(ctx),
		newDoneCommand(ctx),
		newServeCommand(ctx),
		newHistoryCommand(ctx),
	}
}

func newTakeCommand(ctx *commandContext) *cobra.Command {
	var name string
	var email string

	cmd := &cobra.Command{
		Use:   "take <owner>",
		Short: "Take a token for the current period (returns the existing one if held)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.TakeTokenRequest{Owner: args[0], Name: name, Email: email}
			return ctx.withAccess(func(access queueaccess.Access) error {
				ticket, err := access.Take(cmd.Context(), req)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, ticket, func() error {
					out := cmd.OutOrStdout()
					if ticket.Existing {
						fmt.Fprintf(out, "Already holding token #%d\n", ticket.SequenceNumber)
					} else {
						fmt.Fprintf(out, "Token #%d issued\n", ticket.SequenceNumber)
					}
					fmt.Fprintf(out, "Ahead of you: %d\n", ticket.AheadCount)
					fmt.Fprintf(out, "Estimated wait: %s\n", formatMinutes(ticket.EstimatedWaitMinutes))
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name recorded on the token")
	cmd.Flags().StringVar(&email, "email", "", "Contact email recorded on the token")
	return cmd
}

func newNextCommand(ctx *commandContext) *cobra.Command {
	var worker string

	cmd := &cobra.Command{
		Use:   "next",
		Short: "Call the lowest waiting token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access queueaccess.Access) error {
				resp, err := access.Next(cmd.Context(), worker)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, resp, func() error {
					out := cmd.OutOrStdout()
					if resp.Empty || resp.Token == nil {
						fmt.Fprintln(out, "No one is waiting")
						return nil
					}
					fmt.Fprintf(out, "Now serving #%d (%s)\n", resp.Token.SequenceNumber, tokenDisplayName(*resp.Token))
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVarP(&worker, "worker", "w", "", "Worker calling the token")
	_ = cmd.MarkFlagRequired("worker")
	return cmd
}

func newDoneCommand(ctx *commandContext) *cobra.Command {
	var worker string

	cmd := &cobra.Command{
		Use:   "done <token-id>",
		Short: "Mark a serving token as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withAccess(func(access queueaccess.Access) error {
				token, err := access.Done(cmd.Context(), id, worker)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, api.TokenResponse{Token: token}, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Token #%d done\n", token.SequenceNumber)
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVarP(&worker, "worker", "w", "", "Worker completing the token")
	_ = cmd.MarkFlagRequired("worker")
	return cmd
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var worker string

	cmd := &cobra.Command{
		Use:   "serve <sequence>",
		Short: "Mark the serving token with a sequence number as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sequence, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil || sequence < 1 {
				return fmt.Errorf("invalid sequence number %q", args[0])
			}
			return ctx.withAccess(func(access queueaccess.Access) error {
				token, err := access.Serve(cmd.Context(), sequence, worker)
				if err != nil {
					return err
				}
				return ctx.emit(cmd, api.TokenResponse{Token: token}, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Token #%d done\n", token.SequenceNumber)
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVarP(&worker, "worker", "w", "", "Worker completing the token")
	_ = cmd.MarkFlagRequired("worker")
	return cmd
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <owner>",
		Short: "List an owner's tokens across retained periods",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access queueaccess.Access) error {
				tokens, err := access.History(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return ctx.emit(cmd, api.TokenListResponse{Tokens: tokens}, func() error {
					out := cmd.OutOrStdout()
					if len(tokens) == 0 {
						fmt.Fprintln(out, "No tokens found")
						return nil
					}
					fmt.Fprint(out, renderTable(
						[]string{"Period", "#", "Status", "Served By", "Created", "Completed"},
						buildHistoryRows(tokens, shouldColorize(out)),
						[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
					))
					return nil
				})
			})
		},
	}
}

func buildHistoryRows(tokens []api.Token, colorize bool) [][]string {
	rows := make([][]string, 0, len(tokens))
	for _, token := range tokens {
		rows = append(rows, []string{
			token.Period,
			strconv.Itoa(token.SequenceNumber),
			tokenStatusLabel(token.Status, colorize),
			token.ServedBy,
			formatDisplayTime(token.CreatedAt),
			formatDisplayTime(token.CompletedAt),
		})
	}
	return rows
}

func tokenDisplayName(token api.Token) string {
	if name := strings.TrimSpace(token.Name); name != "" {
		return name
	}
	return token.Owner
}

func formatMinutes(minutes int) string {
	if minutes <= 0 {
		return "none"
	}
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}

// formatDisplayTime renders an API timestamp in local time for tables.
func formatDisplayTime(value string) string {
	parsed := api.ParseTime(value)
	if parsed.IsZero() {
		return ""
	}
	return parsed.Local().Format("2006-01-02 15:04")
}
